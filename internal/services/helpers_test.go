package services_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/datamade/la-metro-translations/internal/models"
	"github.com/datamade/la-metro-translations/internal/ocr"
	"github.com/datamade/la-metro-translations/internal/store"
	"github.com/datamade/la-metro-translations/internal/translation"
)

// batchProvider completes every job immediately with a fixed output file.
// onPoll runs on every status fetch.
type batchProvider struct {
	status models.JobStatus
	output string
	input  []byte
	onPoll func()
}

func (p *batchProvider) UploadBatchFile(_ context.Context, _ string, content []byte) (string, error) {
	p.input = content
	return "in", nil
}

func (p *batchProvider) CreateBatchJob(context.Context, models.BatchJobRequest) (models.BatchJob, error) {
	return models.BatchJob{ID: "job-1", Status: models.JobQueued}, nil
}

func (p *batchProvider) GetBatchJob(context.Context, string) (models.BatchJob, error) {
	if p.onPoll != nil {
		p.onPoll()
	}
	return models.BatchJob{ID: "job-1", Status: p.status, OutputFile: "out"}, nil
}

func (p *batchProvider) DownloadFile(context.Context, string) (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(p.output)), nil
}

func resultLine(t *testing.T, customID string, pages ...models.Page) string {
	t.Helper()
	b, err := json.Marshal(map[string]any{
		"custom_id": customID,
		"response":  map[string]any{"status_code": 200, "body": map[string]any{"pages": pages}},
	})
	require.NoError(t, err)
	return string(b) + "\n"
}

func newOrchestrator(p ocr.Provider, logger *slog.Logger) *ocr.Orchestrator {
	return ocr.New(p, ocr.Config{Model: "mistral-ocr-latest", TimeoutHours: 1}, logger,
		ocr.WithSleeper(func(context.Context, time.Duration) error { return nil }))
}

func testLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, nil))
}

func seed(t *testing.T, s store.Store, docs ...models.SourceDocument) {
	t.Helper()
	for _, doc := range docs {
		_, err := s.UpsertDocument(context.Background(), doc)
		require.NoError(t, err)
	}
}

func doc(docType, id string) models.SourceDocument {
	return models.SourceDocument{
		DocumentKey: models.DocumentKey{DocumentType: docType, DocumentID: id},
		Title:       "Document " + id,
		SourceURL:   fmt.Sprintf("https://boardagendas.metro.net/%s/%s.pdf", docType, id),
	}
}

// memArtifacts records saved objects.
type memArtifacts struct {
	mu      sync.Mutex
	objects map[string]string
	err     error
}

func (a *memArtifacts) Save(_ context.Context, name, content string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return "", a.err
	}
	if a.objects == nil {
		a.objects = make(map[string]string)
	}
	a.objects[name] = content
	return "https://storage.googleapis.com/artifacts/" + name, nil
}

type fakeWorkflow struct {
	args []models.TranslationWorkflowArgument
	err  error
}

func (w *fakeWorkflow) Launch(_ context.Context, arg any) (string, error) {
	if w.err != nil {
		return "", w.err
	}
	w.args = append(w.args, arg.(models.TranslationWorkflowArgument))
	return "executions/1", nil
}

type fakePages struct {
	n     int
	calls int
}

func (p *fakePages) CountPages(context.Context, string) (int, error) {
	p.calls++
	return p.n, nil
}

// prefixTranslator prefixes the markdown with the language, failing for
// documents listed in fail.
type prefixTranslator struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls int
}

func (p *prefixTranslator) Translate(_ context.Context, in translation.Input) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail[in.Key.DocumentID] {
		return "", false
	}
	return "[" + in.Language + "] " + in.Markdown, true
}
