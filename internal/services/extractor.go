package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/datamade/la-metro-translations/internal/models"
	"github.com/datamade/la-metro-translations/internal/ocr"
	"github.com/datamade/la-metro-translations/internal/store"
)

// ArtifactSaver stores a rendered file and returns its URL.
type ArtifactSaver interface {
	Save(ctx context.Context, objectName, content string) (string, error)
}

// WorkflowLauncher starts a workflow execution and returns its name.
type WorkflowLauncher interface {
	Launch(ctx context.Context, argument any) (string, error)
}

// PageCounter returns the page count of a hosted source document.
type PageCounter interface {
	CountPages(ctx context.Context, url string) (int, error)
}

// MarkdownObjectName is the artifact path of a markdown rendition.
func MarkdownObjectName(key models.DocumentKey, language, translationID string) string {
	return fmt.Sprintf("%s/%s/%s-%s.md", key.DocumentType, key.DocumentID, language, translationID)
}

// ExtractorConfig holds the extraction run settings.
type ExtractorConfig struct {
	// Languages are handed to the translation workflow.
	Languages []string
}

// ExtractorDeps are the collaborators of an ExtractorFunction. Artifacts,
// Workflow and Pages are optional.
type ExtractorDeps struct {
	Store        store.Store
	Orchestrator *ocr.Orchestrator
	Artifacts    ArtifactSaver
	Workflow     WorkflowLauncher
	Pages        PageCounter
	Logger       *slog.Logger
}

// ExtractorFunction runs OCR for every document lacking content and
// materializes the results.
type ExtractorFunction struct {
	store        store.Store
	orchestrator *ocr.Orchestrator
	artifacts    ArtifactSaver
	workflow     WorkflowLauncher
	pages        PageCounter
	logger       *slog.Logger
	config       ExtractorConfig
	now          func() time.Time
}

// NewExtractor creates an ExtractorFunction.
func NewExtractor(deps ExtractorDeps, config ExtractorConfig) *ExtractorFunction {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &ExtractorFunction{
		store:        deps.Store,
		orchestrator: deps.Orchestrator,
		artifacts:    deps.Artifacts,
		workflow:     deps.Workflow,
		pages:        deps.Pages,
		logger:       logger,
		config:       config,
		now:          time.Now,
	}
}

// ExtractReport summarizes an extraction run.
type ExtractReport struct {
	RunID      string           `json:"runId"`
	JobID      string           `json:"jobId,omitempty"`
	JobStatus  models.JobStatus `json:"jobStatus,omitempty"`
	JobError   string           `json:"jobError,omitempty"`
	Candidates int              `json:"candidates"`
	Submitted  int              `json:"submitted"`
	// Excluded documents could not be put in the batch.
	Excluded int `json:"excluded"`
	// Created counts new ExtractedContent records.
	Created    int `json:"created"`
	Duplicates int `json:"duplicates"`
	Failed     int `json:"failed"`
	Unmatched  int `json:"unmatched"`
	Malformed  int `json:"malformed"`
	// StillMissing counts documents without content after the run.
	StillMissing      int    `json:"stillMissing"`
	WorkflowExecution string `json:"workflowExecution,omitempty"`
}

// Process runs one extraction batch. Job-level failures are reported in
// the ExtractReport; only store failures are returned as errors.
func (f *ExtractorFunction) Process(ctx context.Context, msg models.BatchExtractMessage) (*ExtractReport, error) {
	report := &ExtractReport{RunID: uuid.NewString()}
	logCtx := f.logger.With("runId", report.RunID)

	docs, err := f.store.DocumentsMissingContent(ctx)
	if err != nil {
		logCtx.Error("Failed to list documents missing content.", "error", err)
		return report, fmt.Errorf("list documents missing content: %w", err)
	}
	report.Candidates = len(docs)
	if len(docs) == 0 {
		logCtx.Info("All documents currently have content. Not performing OCR.")
		return report, nil
	}
	logCtx.Info("Performing OCR on documents.", "documentCount", len(docs))

	run := f.orchestrator.Start(ctx, docs)
	report.JobID, report.JobStatus = run.Job().ID, run.Job().Status
	report.Submitted, report.Excluded = run.Submitted(), run.Skipped()

	var created []models.DocumentKey
	for ext := range run.Extractions(ctx) {
		switch err := f.materialize(ctx, ext); {
		case err == nil:
			report.Created++
			created = append(created, ext.DocumentKey)
		case errors.Is(err, store.ErrAlreadyExists):
			report.Duplicates++
		case errors.Is(err, store.ErrNotFound):
			// Deleted while the job ran.
			report.Unmatched++
		default:
			report.Failed++
		}
	}
	report.Unmatched += run.Unmatched()
	report.Malformed = run.Malformed()
	report.StillMissing = report.Candidates - report.Created - report.Duplicates
	if err := run.Err(); err != nil {
		report.JobError = err.Error()
	}

	if len(created) > 0 && f.workflow != nil {
		report.WorkflowExecution = f.handOff(ctx, logCtx, report.RunID, created, msg.Languages)
	}

	logCtx.Info("Extraction run finished.",
		"jobId", report.JobID,
		"contentsCreated", report.Created,
		"duplicates", report.Duplicates,
		"failed", report.Failed,
		"unmatched", report.Unmatched,
		"malformed", report.Malformed,
		"stillMissing", report.StillMissing,
	)
	if report.Unmatched > 0 {
		logCtx.Error("Extractions without matching documents.", "count", report.Unmatched)
	}
	if report.StillMissing > 0 {
		logCtx.Error("Documents that still do not have content.", "count", report.StillMissing)
	}
	return report, nil
}

// materialize persists one extraction: the content, its English baseline,
// the source pdf file and, when configured, the markdown artifact. The
// document is re-read because the batch snapshot may be hours old.
func (f *ExtractorFunction) materialize(ctx context.Context, ext models.Extraction) error {
	logCtx := f.logger.With("documentType", ext.DocumentType, "documentId", ext.DocumentID)
	now := f.now().UTC()

	doc, err := f.store.GetDocument(ctx, ext.DocumentKey)
	if errors.Is(err, store.ErrNotFound) {
		logCtx.Error("Extraction has no matching document. It was removed during the run.")
		return err
	}
	if err != nil {
		logCtx.Error("Failed to load document.", "error", err)
		return err
	}

	if doc.PageCount != ext.PageCount {
		f.verifyPageCount(ctx, logCtx, doc, ext.PageCount)
		if err := f.store.SetPageCount(ctx, ext.DocumentKey, ext.PageCount); err != nil {
			logCtx.Warn("Failed to record page count.", "error", err)
		}
	}

	err = f.store.CreateContent(ctx, models.ExtractedContent{
		Key:            ext.DocumentKey,
		Markdown:       ext.Markdown,
		ApprovalStatus: models.ApprovalWaiting,
		CreatedAt:      now,
		UpdatedAt:      now,
	})
	if errors.Is(err, store.ErrAlreadyExists) {
		logCtx.Warn("Document already has content. Keeping the existing content.")
		return err
	}
	if err != nil {
		logCtx.Error("Failed to create content.", "error", err)
		return err
	}

	english := models.Translation{
		ID:             uuid.NewString(),
		Key:            ext.DocumentKey,
		Language:       models.LanguageEnglish,
		Markdown:       ext.Markdown,
		ApprovalStatus: models.ApprovalWaiting,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := f.store.CreateTranslation(ctx, english); err != nil {
		// The content exists; the baseline can be recreated by the translator.
		logCtx.Error("Failed to create English translation.", "error", err)
		return nil
	}
	if doc.SourceURL != "" {
		if err := f.store.AddFile(ctx, models.RenderedFile{
			Key: ext.DocumentKey, TranslationID: english.ID, Format: models.FormatPDF, URL: doc.SourceURL, CreatedAt: now,
		}); err != nil {
			logCtx.Error("Failed to record pdf file.", "error", err)
		}
	}
	if f.artifacts != nil {
		saveMarkdown(ctx, logCtx, f.store, f.artifacts, english, now)
	}
	logCtx.Info("Content created.", "pageCount", ext.PageCount, "chars", len(ext.Markdown))
	return nil
}

// verifyPageCount compares the OCR page count against the source PDF.
func (f *ExtractorFunction) verifyPageCount(ctx context.Context, logCtx *slog.Logger, doc models.SourceDocument, ocrPages int) {
	if f.pages == nil || doc.SourceURL == "" {
		return
	}
	n, err := f.pages.CountPages(ctx, doc.SourceURL)
	if err != nil {
		logCtx.Warn("Could not count source PDF pages.", "error", err)
		return
	}
	if n != ocrPages {
		logCtx.Warn("OCR page count differs from source PDF.", "sourcePages", n, "ocrPages", ocrPages)
	}
}

func (f *ExtractorFunction) handOff(ctx context.Context, logCtx *slog.Logger, runID string, keys []models.DocumentKey, languages []string) string {
	if len(languages) == 0 {
		languages = f.config.Languages
	}
	if len(languages) == 0 {
		return ""
	}
	name, err := f.workflow.Launch(ctx, models.TranslationWorkflowArgument{
		RunID:     runID,
		Documents: keys,
		Languages: languages,
	})
	if err != nil {
		logCtx.Error("Failed to start translation workflow.", "error", err, "documentCount", len(keys))
		return ""
	}
	logCtx.Info("Translation workflow started.", "execution", name, "documentCount", len(keys), "languages", languages)
	return name
}

// saveMarkdown uploads t as a markdown artifact and records the file.
// Failures are logged; the translation itself is already persisted.
func saveMarkdown(ctx context.Context, logCtx *slog.Logger, s store.Store, artifacts ArtifactSaver, t models.Translation, now time.Time) string {
	url, err := artifacts.Save(ctx, MarkdownObjectName(t.Key, t.Language, t.ID), t.Markdown)
	if err != nil {
		logCtx.Error("Failed to upload markdown artifact.", "error", err, "language", t.Language)
		return ""
	}
	if err := s.AddFile(ctx, models.RenderedFile{
		Key: t.Key, TranslationID: t.ID, Format: models.FormatMarkdown, URL: url, CreatedAt: now,
	}); err != nil {
		logCtx.Error("Failed to record markdown file.", "error", err, "language", t.Language)
	}
	return url
}
