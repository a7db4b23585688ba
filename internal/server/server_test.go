package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datamade/la-metro-translations/internal/models"
	"github.com/datamade/la-metro-translations/internal/server"
	"github.com/datamade/la-metro-translations/internal/services"
	"github.com/datamade/la-metro-translations/internal/store"
	"github.com/datamade/la-metro-translations/internal/translation"
)

type upperTranslator struct{}

func (upperTranslator) Translate(_ context.Context, in translation.Input) (string, bool) {
	return strings.ToUpper(in.Markdown), true
}

func newTestServer(t *testing.T, health server.HealthChecker) (*httptest.Server, store.Store) {
	t.Helper()
	log := slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil))
	s := store.NewMemory()
	router := server.NewRouter(server.Handlers{
		Webhook:   services.NewWebhook(s, "key", log),
		Translate: services.NewTranslator(s, upperTranslator{}, nil, log, services.TranslatorConfig{}),
		Health:    health,
	}, log)
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts, s
}

func postJSON(t *testing.T, url string, v any) *http.Response {
	t.Helper()
	body, err := json.Marshal(v)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestHealthz(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Content-Type"))
}

func TestHealthzUnavailable(t *testing.T) {
	ts, _ := newTestServer(t, func(context.Context) error { return errors.New("store down") })
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestWebhookThenTranslate(t *testing.T) {
	ts, s := newTestServer(t, nil)

	resp := postJSON(t, ts.URL+"/webhooks/documents", map[string]string{
		"api_key":       "key",
		"document_id":   "3",
		"title":         "Agenda",
		"source_url":    "https://boardagendas.metro.net/3.pdf",
		"created_at":    "2025-03-01",
		"document_type": "event_document",
		"entity_type":   "event",
		"entity_id":     "e-3",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	key := models.DocumentKey{DocumentType: "event_document", DocumentID: "3"}
	translate := models.TranslateDocumentRequest{DocumentType: "event_document", DocumentID: "3", Language: "spanish"}

	resp = postJSON(t, ts.URL+"/translate", translate)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	require.NoError(t, s.CreateContent(context.Background(), models.ExtractedContent{Key: key, Markdown: "agenda"}))
	resp = postJSON(t, ts.URL+"/translate", translate)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out models.TranslateDocumentResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "success", out.Status)
	assert.NotEmpty(t, out.TranslationID)

	resp = postJSON(t, ts.URL+"/translate", models.TranslateDocumentRequest{DocumentType: "event_document", DocumentID: "3"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestUnknownRoute(t *testing.T) {
	ts, _ := newTestServer(t, nil)
	resp, err := http.Get(ts.URL + "/webhooks/documents")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
