package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/datamade/la-metro-translations/internal/models"
	"github.com/datamade/la-metro-translations/internal/store"
)

// maxWebhookBody bounds the request body of the document webhook.
const maxWebhookBody = 1 << 20

// WebhookFunction receives document notifications from BoardAgendas.
type WebhookFunction struct {
	store    store.Store
	apiKey   string
	validate *validator.Validate
	logger   *slog.Logger
}

// NewWebhook creates a WebhookFunction accepting apiKey.
func NewWebhook(s store.Store, apiKey string, logger *slog.Logger) *WebhookFunction {
	if logger == nil {
		logger = slog.Default()
	}
	validate := validator.New()
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return &WebhookFunction{store: s, apiKey: apiKey, validate: validate, logger: logger}
}

// ServeHTTP handles POST requests carrying a NewDocumentRequest.
func (f *WebhookFunction) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, models.WebhookResponse{Message: "Method not allowed."})
		return
	}

	var req models.NewDocumentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxWebhookBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.WebhookResponse{Message: "Bad Request: Body must be a JSON object."})
		return
	}

	switch {
	case req.APIKey == "":
		writeJSON(w, http.StatusBadRequest, models.WebhookResponse{
			Message: "Bad Request: Api key missing. Please provide a key in order to notify the suite.",
		})
		return
	case f.apiKey == "" || subtle.ConstantTimeCompare([]byte(req.APIKey), []byte(f.apiKey)) != 1:
		f.logger.Warn("Rejected webhook call with an invalid api key.", "remoteAddr", r.RemoteAddr)
		writeJSON(w, http.StatusUnauthorized, models.WebhookResponse{
			Message: "Unauthorized: Invalid api key. Double check the key submitted.",
		})
		return
	}

	created, err := f.Process(r.Context(), req)
	var invalid *InvalidDocumentError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, models.WebhookResponse{Message: invalid.Error()})
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, models.WebhookResponse{Message: "Internal error: document was not saved."})
	case created:
		writeJSON(w, http.StatusCreated, models.WebhookResponse{Status: "Created", Message: "New document created and saved."})
	default:
		writeJSON(w, http.StatusOK, models.WebhookResponse{Status: "Success", Message: "Existing document updated."})
	}
}

// InvalidDocumentError lists the missing and malformed fields of a request.
type InvalidDocumentError struct {
	Missing []string
	Invalid []string
}

func (e *InvalidDocumentError) Error() string {
	var parts []string
	if len(e.Missing) > 0 {
		parts = append(parts, "Bad Request: Missing attributes. Please provide the following field values - "+strings.Join(e.Missing, ", "))
	}
	if len(e.Invalid) > 0 {
		parts = append(parts, "Bad Request: Invalid attributes - "+strings.Join(e.Invalid, ", "))
	}
	return strings.Join(parts, ". ")
}

// Process validates req and upserts the document by (document_type, document_id).
func (f *WebhookFunction) Process(ctx context.Context, req models.NewDocumentRequest) (bool, error) {
	if err := f.check(req); err != nil {
		return false, err
	}
	createdAt, _ := time.Parse(time.DateOnly, req.CreatedAt)
	doc := models.SourceDocument{
		DocumentKey: models.DocumentKey{DocumentType: req.DocumentType, DocumentID: req.DocumentID},
		Title:       req.Title,
		SourceURL:   req.SourceURL,
		CreatedAt:   createdAt,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
	}
	logCtx := f.logger.With("documentType", doc.DocumentType, "documentId", doc.DocumentID)

	created, err := f.store.UpsertDocument(ctx, doc)
	if err != nil {
		logCtx.Error("Failed to save document.", "error", err)
		return false, fmt.Errorf("save document: %w", err)
	}
	logCtx.Info("Document saved.", "created", created)
	return created, nil
}

func (f *WebhookFunction) check(req models.NewDocumentRequest) error {
	err := f.validate.Struct(req)
	var verrs validator.ValidationErrors
	if err != nil && !errors.As(err, &verrs) {
		return &InvalidDocumentError{Invalid: []string{err.Error()}}
	}
	out := &InvalidDocumentError{}
	for _, fe := range verrs {
		if fe.Tag() == "required" {
			out.Missing = append(out.Missing, fe.Field())
		} else {
			out.Invalid = append(out.Invalid, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
		}
	}
	key := models.DocumentKey{DocumentType: req.DocumentType, DocumentID: req.DocumentID}
	if len(out.Missing) == 0 && len(out.Invalid) == 0 {
		if err := key.Validate(); err != nil {
			out.Invalid = append(out.Invalid, "document_id (format)")
		}
	}
	if len(out.Missing) > 0 || len(out.Invalid) > 0 {
		return out
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
