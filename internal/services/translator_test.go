package services_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datamade/la-metro-translations/internal/models"
	"github.com/datamade/la-metro-translations/internal/services"
	"github.com/datamade/la-metro-translations/internal/store"
)

func seedContent(t *testing.T, s store.Store, docs ...models.SourceDocument) {
	t.Helper()
	seed(t, s, docs...)
	for _, d := range docs {
		require.NoError(t, s.CreateContent(context.Background(), models.ExtractedContent{
			Key:            d.DocumentKey,
			Markdown:       "Agenda " + d.DocumentID,
			ApprovalStatus: models.ApprovalWaiting,
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
		}))
	}
}

func TestTranslatorProcess(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	bill := doc(models.DocumentTypeBill, "7")
	seedContent(t, s, bill)
	artifacts := &memArtifacts{}
	tr := &prefixTranslator{}
	f := services.NewTranslator(s, tr, artifacts, testLogger(&bytes.Buffer{}), services.TranslatorConfig{})

	req := &models.TranslateDocumentRequest{DocumentType: "bill_document", DocumentID: "7", Language: "Spanish"}
	resp, err := f.Process(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	assert.NotEmpty(t, resp.TranslationID)
	assert.Contains(t, resp.MarkdownURI, "bill_document/7/spanish-"+resp.TranslationID+".md")

	list, err := s.ListTranslations(ctx, bill.DocumentKey)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "spanish", list[0].Language)
	assert.Equal(t, "[spanish] Agenda 7", list[0].Markdown)

	// A second request keeps the existing translation.
	resp, err = f.Process(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "skipped", resp.Status)
	assert.Equal(t, 1, tr.calls)

	// Force creates a fresh record next to the old one.
	req.Force = true
	resp, err = f.Process(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "success", resp.Status)
	list, err = s.ListTranslations(ctx, bill.DocumentKey)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	files, err := s.ListFiles(ctx, bill.DocumentKey)
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestTranslatorProcessErrors(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedContent(t, s, doc(models.DocumentTypeBill, "7"))
	seed(t, s, doc(models.DocumentTypeBill, "8"))
	tr := &prefixTranslator{fail: map[string]bool{"7": true}}
	f := services.NewTranslator(s, tr, nil, testLogger(&bytes.Buffer{}), services.TranslatorConfig{})

	_, err := f.Process(ctx, &models.TranslateDocumentRequest{DocumentType: "bill_document", DocumentID: "7", Language: "spanish"})
	assert.ErrorIs(t, err, services.ErrTranslationFailed)

	_, err = f.Process(ctx, &models.TranslateDocumentRequest{DocumentType: "bill_document", DocumentID: "8", Language: "spanish"})
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = f.Process(ctx, &models.TranslateDocumentRequest{DocumentType: "bill_document", DocumentID: "7"})
	assert.Error(t, err)

	_, err = f.Process(ctx, &models.TranslateDocumentRequest{DocumentType: "a:b", DocumentID: "7", Language: "spanish"})
	assert.Error(t, err)
}

func TestTranslateAllSkipsFailures(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	seedContent(t, s,
		doc(models.DocumentTypeBill, "1"),
		doc(models.DocumentTypeBill, "2"),
		doc(models.DocumentTypeBill, "3"),
		doc(models.DocumentTypeEvent, "4"),
	)
	tr := &prefixTranslator{fail: map[string]bool{"2": true}}
	f := services.NewTranslator(s, tr, &memArtifacts{}, testLogger(&bytes.Buffer{}), services.TranslatorConfig{Concurrency: 3})

	report, err := f.TranslateAll(ctx, "es", false)
	require.NoError(t, err)
	assert.Equal(t, "spanish", report.Language)
	assert.Equal(t, 4, report.Candidates)
	assert.Equal(t, 3, report.Translated)
	assert.Equal(t, 1, report.Failed)

	// Only the failed document is retried.
	tr.fail = nil
	report, err = f.TranslateAll(ctx, "spanish", false)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Candidates)
	assert.Equal(t, 1, report.Translated)

	pending, err := s.ContentsMissingTranslation(ctx, "spanish")
	require.NoError(t, err)
	assert.Empty(t, pending)

	report, err = f.TranslateAll(ctx, "spanish", true)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Candidates)
	assert.Equal(t, 4, report.Translated)
}
