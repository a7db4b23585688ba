package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/datamade/la-metro-translations/internal/models"
	"github.com/datamade/la-metro-translations/internal/store"
	"github.com/datamade/la-metro-translations/internal/translation"
)

var (
	// ErrTranslationFailed is returned when the transform produced no result.
	ErrTranslationFailed = errors.New("translation failed")
	// ErrInvalidRequest is returned for requests naming no usable document or language.
	ErrInvalidRequest = errors.New("invalid translate request")
)

// Translator is the translation transform.
type Translator interface {
	Translate(ctx context.Context, in translation.Input) (string, bool)
}

// TranslatorConfig holds all configuration for the translator service.
type TranslatorConfig struct {
	// Concurrency bounds the documents translated at once.
	Concurrency int
}

// TranslatorFunction translates extracted contents and persists the results.
type TranslatorFunction struct {
	store      store.Store
	translator Translator
	artifacts  ArtifactSaver
	logger     *slog.Logger
	config     TranslatorConfig
	now        func() time.Time
}

// NewTranslator creates a TranslatorFunction. artifacts may be nil.
func NewTranslator(s store.Store, translator Translator, artifacts ArtifactSaver, logger *slog.Logger, config TranslatorConfig) *TranslatorFunction {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Concurrency <= 0 {
		config.Concurrency = 1
	}
	return &TranslatorFunction{
		store:      s,
		translator: translator,
		artifacts:  artifacts,
		logger:     logger,
		config:     config,
		now:        time.Now,
	}
}

// Process translates a single document. It is the unit of work of the
// translation workflow; an existing translation is kept unless Force is set.
func (f *TranslatorFunction) Process(ctx context.Context, req *models.TranslateDocumentRequest) (*models.TranslateDocumentResponse, error) {
	key := models.DocumentKey{DocumentType: req.DocumentType, DocumentID: req.DocumentID}
	language := translation.NormalizeLanguage(req.Language)
	logCtx := f.logger.With("documentType", key.DocumentType, "documentId", key.DocumentID,
		"language", language, "executionId", req.ExecutionID)

	if err := key.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if language == "" {
		return nil, fmt.Errorf("%w: language is required", ErrInvalidRequest)
	}

	if !req.Force {
		has, err := f.store.HasTranslation(ctx, key, language)
		if err != nil {
			logCtx.Error("Failed to check for an existing translation.", "error", err)
			return nil, err
		}
		if has {
			logCtx.Info("Translation already exists. Skipping.")
			return &models.TranslateDocumentResponse{Status: "skipped"}, nil
		}
	}

	content, err := f.store.GetContent(ctx, key)
	if err != nil {
		logCtx.Error("Failed to load content.", "error", err)
		return nil, err
	}
	t, uri, err := f.translate(ctx, logCtx, content, language)
	if err != nil {
		return nil, err
	}
	return &models.TranslateDocumentResponse{Status: "success", TranslationID: t.ID, MarkdownURI: uri}, nil
}

// TranslateReport summarizes a TranslateAll run.
type TranslateReport struct {
	Language   string `json:"language"`
	Candidates int    `json:"candidates"`
	Translated int    `json:"translated"`
	Failed     int    `json:"failed"`
}

// TranslateAll translates every content lacking a translation in language,
// or every content when force is set. One document failing does not stop
// the others.
func (f *TranslatorFunction) TranslateAll(ctx context.Context, language string, force bool) (*TranslateReport, error) {
	language = translation.NormalizeLanguage(language)
	if language == "" {
		return nil, fmt.Errorf("%w: language is required", ErrInvalidRequest)
	}
	report := &TranslateReport{Language: language}
	logCtx := f.logger.With("language", language)

	var contents []models.ExtractedContent
	var err error
	if force {
		contents, err = f.store.ListContents(ctx)
	} else {
		contents, err = f.store.ContentsMissingTranslation(ctx, language)
	}
	if err != nil {
		logCtx.Error("Failed to list contents to translate.", "error", err)
		return nil, err
	}
	report.Candidates = len(contents)
	logCtx.Info("Starting translation run.", "documentCount", len(contents), "force", force)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.config.Concurrency)
	for _, content := range contents {
		g.Go(func() error {
			docLog := logCtx.With("documentType", content.Key.DocumentType, "documentId", content.Key.DocumentID)
			_, _, err := f.translate(gctx, docLog, content, language)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed++
			} else {
				report.Translated++
			}
			return nil
		})
	}
	_ = g.Wait()

	logCtx.Info("Translation run finished.", "translated", report.Translated, "failed", report.Failed)
	return report, ctx.Err()
}

// translate runs the transform for one content and persists the result.
func (f *TranslatorFunction) translate(ctx context.Context, logCtx *slog.Logger, content models.ExtractedContent, language string) (models.Translation, string, error) {
	var sourceURL string
	if doc, err := f.store.GetDocument(ctx, content.Key); err == nil {
		sourceURL = doc.SourceURL
	}

	markdown, ok := f.translator.Translate(ctx, translation.Input{
		Key:       content.Key,
		SourceURL: sourceURL,
		Language:  language,
		Markdown:  content.Markdown,
	})
	if !ok {
		return models.Translation{}, "", fmt.Errorf("%w: %s to %s", ErrTranslationFailed, content.Key, language)
	}

	now := f.now().UTC()
	t := models.Translation{
		ID:             uuid.NewString(),
		Key:            content.Key,
		Language:       language,
		Markdown:       markdown,
		ApprovalStatus: models.ApprovalWaiting,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := f.store.CreateTranslation(ctx, t); err != nil {
		logCtx.Error("Failed to save translation.", "error", err)
		return models.Translation{}, "", fmt.Errorf("save translation: %w", err)
	}

	var uri string
	if f.artifacts != nil {
		uri = saveMarkdown(ctx, logCtx, f.store, f.artifacts, t, now)
	}
	logCtx.Info("Translation saved.", "translationId", t.ID)
	return t, uri, nil
}

// ServeHTTP decodes a TranslateDocumentRequest from the workflow and
// responds with a TranslateDocumentResponse.
func (f *TranslatorFunction) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	var req models.TranslateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		f.logger.Error("Could not decode request body.", "error", err)
		http.Error(w, "Bad Request: could not parse JSON", http.StatusBadRequest)
		return
	}

	res, err := f.Process(r.Context(), &req)
	switch {
	case errors.Is(err, ErrInvalidRequest):
		http.Error(w, "Bad Request: "+err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Not Found: document has no content", http.StatusNotFound)
		return
	case errors.Is(err, ErrTranslationFailed):
		// The workflow retries on 5xx.
		http.Error(w, "Bad Gateway: translation failed", http.StatusBadGateway)
		return
	case err != nil:
		http.Error(w, "Internal Server Error: processing failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
