package services_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datamade/la-metro-translations/internal/models"
	"github.com/datamade/la-metro-translations/internal/services"
	"github.com/datamade/la-metro-translations/internal/store"
)

func TestExtractorCreatesContent(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	logger := testLogger(&logs)

	s := store.NewMemory()
	bill, event := doc(models.DocumentTypeBill, "7"), doc(models.DocumentTypeEvent, "3")
	seed(t, s, bill, event)

	provider := &batchProvider{
		status: models.JobSuccess,
		output: resultLine(t, "bill_document:7", models.Page{Index: 0, Markdown: "Cost: $5"}) +
			resultLine(t, "invoice:99", models.Page{Index: 0, Markdown: "unknown"}),
	}
	artifacts := &memArtifacts{}
	workflow := &fakeWorkflow{}
	pages := &fakePages{n: 2}

	extractor := services.NewExtractor(services.ExtractorDeps{
		Store:        s,
		Orchestrator: newOrchestrator(provider, logger),
		Artifacts:    artifacts,
		Workflow:     workflow,
		Pages:        pages,
		Logger:       logger,
	}, services.ExtractorConfig{Languages: []string{"spanish"}})

	report, err := extractor.Process(ctx, models.BatchExtractMessage{})
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, "job-1", report.JobID)
	assert.Empty(t, report.JobError)
	assert.Equal(t, 2, report.Candidates)
	assert.Equal(t, 2, report.Submitted)
	assert.Equal(t, 1, report.Created)
	assert.Equal(t, 1, report.Unmatched)
	assert.Equal(t, 1, report.StillMissing)
	assert.Equal(t, "executions/1", report.WorkflowExecution)

	content, err := s.GetContent(ctx, bill.DocumentKey)
	require.NoError(t, err)
	assert.Equal(t, "Cost: \\$5\n\nEnd of Page 1\n\n", content.Markdown)
	assert.Equal(t, models.ApprovalWaiting, content.ApprovalStatus)

	got, err := s.GetDocument(ctx, bill.DocumentKey)
	require.NoError(t, err)
	assert.True(t, got.HasContent)
	assert.Equal(t, 1, got.PageCount)
	assert.Equal(t, 1, pages.calls)
	assert.Contains(t, logs.String(), "OCR page count differs from source PDF.")

	translations, err := s.ListTranslations(ctx, bill.DocumentKey)
	require.NoError(t, err)
	require.Len(t, translations, 1)
	english := translations[0]
	assert.Equal(t, models.LanguageEnglish, english.Language)
	assert.Equal(t, content.Markdown, english.Markdown)

	files, err := s.ListFiles(ctx, bill.DocumentKey)
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, models.FormatPDF, files[0].Format)
	assert.Equal(t, bill.SourceURL, files[0].URL)
	assert.Equal(t, english.ID, files[0].TranslationID)
	assert.Equal(t, models.FormatMarkdown, files[1].Format)

	objectName := services.MarkdownObjectName(bill.DocumentKey, models.LanguageEnglish, english.ID)
	assert.Equal(t, content.Markdown, artifacts.objects[objectName])

	require.Len(t, workflow.args, 1)
	assert.Equal(t, []models.DocumentKey{bill.DocumentKey}, workflow.args[0].Documents)
	assert.Equal(t, []string{"spanish"}, workflow.args[0].Languages)
	assert.Equal(t, report.RunID, workflow.args[0].RunID)

	missing, err := s.DocumentsMissingContent(ctx)
	require.NoError(t, err)
	require.Len(t, missing, 1)
	assert.Equal(t, event.DocumentKey, missing[0].DocumentKey)
}

func TestExtractorNothingToDo(t *testing.T) {
	provider := &batchProvider{status: models.JobSuccess}
	extractor := services.NewExtractor(services.ExtractorDeps{
		Store:        store.NewMemory(),
		Orchestrator: newOrchestrator(provider, testLogger(&bytes.Buffer{})),
	}, services.ExtractorConfig{})

	report, err := extractor.Process(context.Background(), models.BatchExtractMessage{})
	require.NoError(t, err)
	assert.Zero(t, report.Candidates)
	assert.Nil(t, provider.input, "no batch is submitted")
}

func TestExtractorJobFailure(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, doc(models.DocumentTypeBill, "7"))
	provider := &batchProvider{
		status: models.JobTimeoutExceeded,
		output: resultLine(t, "bill_document:7", models.Page{Markdown: "x"}),
	}
	workflow := &fakeWorkflow{}
	extractor := services.NewExtractor(services.ExtractorDeps{
		Store:        s,
		Orchestrator: newOrchestrator(provider, testLogger(&bytes.Buffer{})),
		Workflow:     workflow,
	}, services.ExtractorConfig{Languages: []string{"spanish"}})

	report, err := extractor.Process(context.Background(), models.BatchExtractMessage{})
	require.NoError(t, err)
	assert.Equal(t, models.JobTimeoutExceeded, report.JobStatus)
	assert.Contains(t, report.JobError, "timeout exceeded")
	assert.Zero(t, report.Created)
	assert.Equal(t, 1, report.StillMissing)
	assert.Empty(t, workflow.args)
}

func TestExtractorMessageLanguagesOverride(t *testing.T) {
	s := store.NewMemory()
	seed(t, s, doc(models.DocumentTypeBill, "7"))
	provider := &batchProvider{
		status: models.JobSuccess,
		output: resultLine(t, "bill_document:7", models.Page{Markdown: "x"}),
	}
	workflow := &fakeWorkflow{}
	extractor := services.NewExtractor(services.ExtractorDeps{
		Store:        s,
		Orchestrator: newOrchestrator(provider, testLogger(&bytes.Buffer{})),
		Workflow:     workflow,
	}, services.ExtractorConfig{Languages: []string{"spanish"}})

	_, err := extractor.Process(context.Background(), models.BatchExtractMessage{Languages: []string{"chinese", "korean"}})
	require.NoError(t, err)
	require.Len(t, workflow.args, 1)
	assert.Equal(t, []string{"chinese", "korean"}, workflow.args[0].Languages)
}

func TestExtractorWorkflowFailureIsReported(t *testing.T) {
	var logs bytes.Buffer
	s := store.NewMemory()
	seed(t, s, doc(models.DocumentTypeBill, "7"))
	provider := &batchProvider{
		status: models.JobSuccess,
		output: resultLine(t, "bill_document:7", models.Page{Markdown: "x"}),
	}
	extractor := services.NewExtractor(services.ExtractorDeps{
		Store:        s,
		Orchestrator: newOrchestrator(provider, testLogger(&logs)),
		Workflow:     &fakeWorkflow{err: errors.New("permission denied")},
		Logger:       testLogger(&logs),
	}, services.ExtractorConfig{Languages: []string{"spanish"}})

	report, err := extractor.Process(context.Background(), models.BatchExtractMessage{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)
	assert.Empty(t, report.WorkflowExecution)
	assert.Contains(t, logs.String(), "Failed to start translation workflow.")
}

func TestExtractorKeepsDocumentUpdatedDuringJob(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemory()
	bill := doc(models.DocumentTypeBill, "7")
	seed(t, s, bill)

	revised := bill
	revised.Title = "Revised title"
	revised.SourceURL = "https://boardagendas.metro.net/bill_document/7-v2.pdf"
	provider := &batchProvider{
		status: models.JobSuccess,
		output: resultLine(t, "bill_document:7",
			models.Page{Index: 0, Markdown: "one"}, models.Page{Index: 1, Markdown: "two"}),
		onPoll: func() {
			_, err := s.UpsertDocument(ctx, revised)
			require.NoError(t, err)
		},
	}
	extractor := services.NewExtractor(services.ExtractorDeps{
		Store:        s,
		Orchestrator: newOrchestrator(provider, testLogger(&bytes.Buffer{})),
	}, services.ExtractorConfig{})

	report, err := extractor.Process(ctx, models.BatchExtractMessage{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Created)

	got, err := s.GetDocument(ctx, bill.DocumentKey)
	require.NoError(t, err)
	assert.Equal(t, "Revised title", got.Title)
	assert.Equal(t, revised.SourceURL, got.SourceURL)
	assert.Equal(t, 2, got.PageCount)
	assert.True(t, got.HasContent)

	files, err := s.ListFiles(ctx, bill.DocumentKey)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, revised.SourceURL, files[0].URL)
}

// vanishingStore forgets one document after the batch was submitted.
type vanishingStore struct {
	*store.Memory
	gone models.DocumentKey
}

func (s *vanishingStore) GetDocument(ctx context.Context, key models.DocumentKey) (models.SourceDocument, error) {
	if key == s.gone {
		return models.SourceDocument{}, fmt.Errorf("document %s: %w", key, store.ErrNotFound)
	}
	return s.Memory.GetDocument(ctx, key)
}

func TestExtractorDocumentRemovedDuringJobIsUnmatched(t *testing.T) {
	bill := doc(models.DocumentTypeBill, "7")
	s := &vanishingStore{Memory: store.NewMemory(), gone: bill.DocumentKey}
	seed(t, s, bill)
	provider := &batchProvider{
		status: models.JobSuccess,
		output: resultLine(t, "bill_document:7", models.Page{Markdown: "x"}),
	}
	extractor := services.NewExtractor(services.ExtractorDeps{
		Store:        s,
		Orchestrator: newOrchestrator(provider, testLogger(&bytes.Buffer{})),
	}, services.ExtractorConfig{})

	report, err := extractor.Process(context.Background(), models.BatchExtractMessage{})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Unmatched)
	assert.Zero(t, report.Failed)
	assert.Zero(t, report.Created)

	_, err = s.GetContent(context.Background(), bill.DocumentKey)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
