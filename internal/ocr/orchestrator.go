// Package ocr runs batch OCR jobs: it builds and submits the batch file,
// polls the job at a fixed interval and turns the results back into one
// markdown document per submitted SourceDocument.
package ocr

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"slices"
	"time"

	"github.com/datamade/la-metro-translations/internal/markdown"
	"github.com/datamade/la-metro-translations/internal/models"
)

var (
	// ErrJobFailed is returned for every batch job that ends in a state other than SUCCESS.
	ErrJobFailed = errors.New("batch job failed")
	// ErrJobTimeout is the ErrJobFailed flavour for jobs that ran out of time.
	ErrJobTimeout = fmt.Errorf("%w: timeout exceeded", ErrJobFailed)
	// ErrNothingToSubmit is returned when no document could be put in the batch.
	ErrNothingToSubmit = errors.New("no documents to submit")
)

// Provider is the batch OCR capability.
type Provider interface {
	UploadBatchFile(ctx context.Context, filename string, content []byte) (string, error)
	CreateBatchJob(ctx context.Context, in models.BatchJobRequest) (models.BatchJob, error)
	GetBatchJob(ctx context.Context, jobID string) (models.BatchJob, error)
	DownloadFile(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Config holds the batch job settings.
type Config struct {
	Model        string
	Endpoint     string
	TimeoutHours int
	PollInterval time.Duration
	// MaxPollFailures is the number of consecutive status fetches allowed to fail.
	MaxPollFailures int
}

// Orchestrator submits and tracks batch OCR jobs.
type Orchestrator struct {
	provider Provider
	config   Config
	logger   *slog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
	now      func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithSleeper replaces the poll-interval wait.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(o *Orchestrator) { o.sleep = sleep }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New creates an Orchestrator.
func New(provider Provider, config Config, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if config.Endpoint == "" {
		config.Endpoint = "/v1/ocr"
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 10 * time.Second
	}
	if config.MaxPollFailures <= 0 {
		config.MaxPollFailures = 4
	}
	o := &Orchestrator{
		provider: provider,
		config:   config,
		logger:   logger,
		sleep:    sleepContext,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BuildBatch returns the JSONL batch file for docs together with the
// documents that made it in. Documents without a usable key or URL, and
// repeated keys, are logged and left out.
func (o *Orchestrator) BuildBatch(docs []models.SourceDocument) ([]byte, []models.SourceDocument, error) {
	seen := make(map[string]struct{}, len(docs))
	included := make([]models.SourceDocument, 0, len(docs))
	for _, doc := range docs {
		logCtx := o.logger.With("documentType", doc.DocumentType, "documentId", doc.DocumentID)
		if err := doc.DocumentKey.Validate(); err != nil {
			logCtx.Error("Document key cannot be used as a correlation key. Skipping.", "error", err)
			continue
		}
		if doc.SourceURL == "" {
			logCtx.Error("Document has no source URL. Skipping.")
			continue
		}
		if _, dup := seen[doc.DocumentKey.String()]; dup {
			logCtx.Warn("Document listed twice. Submitting once.")
			continue
		}
		seen[doc.DocumentKey.String()] = struct{}{}
		included = append(included, doc)
	}
	if len(included) == 0 {
		return nil, nil, ErrNothingToSubmit
	}
	data, err := encodeBatch(included)
	if err != nil {
		return nil, nil, err
	}
	return data, included, nil
}

// Start builds and submits a batch for docs and blocks until the job
// reaches a terminal state. It never panics or returns nil; job-level
// failures are reported through Run.Err and leave the result sequence empty.
func (o *Orchestrator) Start(ctx context.Context, docs []models.SourceDocument) *Run {
	r := &Run{o: o, logger: o.logger, submitted: make(map[string]struct{})}

	data, included, err := o.BuildBatch(docs)
	r.skipped = len(docs) - len(included)
	if err != nil {
		r.err = err
		o.logger.Error("Could not build OCR batch", "error", err, "documentCount", len(docs))
		return r
	}
	for _, doc := range included {
		r.submitted[doc.DocumentKey.String()] = struct{}{}
	}

	filename := fmt.Sprintf("ocr-batch-%d.jsonl", o.now().Unix())
	fileID, err := o.provider.UploadBatchFile(ctx, filename, data)
	if err != nil {
		r.err = fmt.Errorf("upload batch file: %w", err)
		o.logger.Error("Failed to upload OCR batch file", "error", err, "documentCount", len(included))
		return r
	}

	job, err := o.provider.CreateBatchJob(ctx, models.BatchJobRequest{
		InputFileID:  fileID,
		Model:        o.config.Model,
		Endpoint:     o.config.Endpoint,
		TimeoutHours: o.config.TimeoutHours,
		Metadata:     map[string]string{"job_type": "document_ocr"},
	})
	if err != nil {
		r.err = fmt.Errorf("create batch job: %w", err)
		o.logger.Error("Failed to create OCR batch job", "error", err, "inputFileId", fileID)
		return r
	}

	r.logger = o.logger.With("jobId", job.ID)
	r.logger.Info("Batch job submitted.", "status", job.Status, "documentCount", len(included), "inputFileId", fileID)
	r.job, r.err = o.wait(ctx, r.logger, job)
	return r
}

// wait polls job until it leaves QUEUED/RUNNING.
func (o *Orchestrator) wait(ctx context.Context, logCtx *slog.Logger, job models.BatchJob) (models.BatchJob, error) {
	var deadline time.Time
	if o.config.TimeoutHours > 0 {
		deadline = o.now().Add(time.Duration(o.config.TimeoutHours)*time.Hour + o.config.PollInterval)
	}
	failures := 0

	for job.Status.InProgress() {
		if err := o.sleep(ctx, o.config.PollInterval); err != nil {
			logCtx.Warn("Stopped waiting for batch job; it keeps running remotely.", "error", err, "status", job.Status)
			return job, fmt.Errorf("waiting for batch job %s: %w", job.ID, err)
		}
		if !deadline.IsZero() && o.now().After(deadline) {
			logCtx.Error("Batch job exceeded its timeout while still in progress.", "status", job.Status, "timeoutHours", o.config.TimeoutHours)
			return job, fmt.Errorf("%w: job %s still %s", ErrJobTimeout, job.ID, job.Status)
		}

		next, err := o.provider.GetBatchJob(ctx, job.ID)
		if err != nil {
			failures++
			logCtx.Warn("Failed to fetch batch job status.", "error", err, "attempt", failures, "maxFailures", o.config.MaxPollFailures)
			if failures > o.config.MaxPollFailures {
				logCtx.Error("Giving up on batch job after repeated status failures.", "error", err)
				return job, fmt.Errorf("%w: job %s status unavailable: %v", ErrJobFailed, job.ID, err)
			}
			continue
		}
		failures = 0
		job = next
		logCtx.Info("Batch job progress.",
			"status", job.Status,
			"succeeded", job.SucceededRequests,
			"failed", job.FailedRequests,
			"total", job.TotalRequests,
		)
	}

	switch {
	case job.Status == models.JobTimeoutExceeded:
		logCtx.Error("Batch job timed out. No results will be processed.", "status", job.Status)
		return job, fmt.Errorf("%w: job %s", ErrJobTimeout, job.ID)
	case job.Status != models.JobSuccess:
		logCtx.Error("Batch job did not succeed. No results will be processed.", "status", job.Status)
		return job, fmt.Errorf("%w: job %s ended in %s", ErrJobFailed, job.ID, job.Status)
	case job.OutputFile == "":
		logCtx.Error("Batch job succeeded without an output file.")
		return job, fmt.Errorf("%w: job %s has no output file", ErrJobFailed, job.ID)
	}
	if job.FailedRequests > 0 {
		logCtx.Warn("Batch job finished with failed requests.", "failed", job.FailedRequests, "errorFileId", job.ErrorFile)
	}
	logCtx.Info("Batch job succeeded.", "succeeded", job.SucceededRequests, "total", job.TotalRequests)
	return job, nil
}

// Run is one submitted batch.
type Run struct {
	o         *Orchestrator
	logger    *slog.Logger
	submitted map[string]struct{}
	job       models.BatchJob
	err       error

	skipped   int
	unmatched int
	malformed int
	extracted int
}

// Err returns the job-level error, if any.
func (r *Run) Err() error { return r.err }

// Job returns the last observed job snapshot.
func (r *Run) Job() models.BatchJob { return r.job }

// Submitted returns the number of documents in the batch.
func (r *Run) Submitted() int { return len(r.submitted) }

// Skipped returns the number of documents left out of the batch.
func (r *Run) Skipped() int { return r.skipped }

// Unmatched returns the number of results whose key was never submitted.
func (r *Run) Unmatched() int { return r.unmatched }

// Malformed returns the number of undecodable or failed result lines.
func (r *Run) Malformed() int { return r.malformed }

// Extracted returns the number of extractions yielded so far.
func (r *Run) Extracted() int { return r.extracted }

// Extractions lazily downloads the job output and yields one extraction per
// matched result, in provider order. It yields nothing when the job failed.
// Every call downloads the output again.
func (r *Run) Extractions(ctx context.Context) iter.Seq[models.Extraction] {
	return func(yield func(models.Extraction) bool) {
		if r.err != nil {
			return
		}
		rc, err := r.o.provider.DownloadFile(ctx, r.job.OutputFile)
		if err != nil {
			r.err = fmt.Errorf("download batch output %s: %w", r.job.OutputFile, err)
			r.logger.Error("Failed to download batch results.", "error", err, "outputFileId", r.job.OutputFile)
			return
		}
		defer rc.Close()

		for line, err := range decodeLines(rc) {
			if err != nil {
				r.malformed++
				r.logger.Error("Skipping undecodable batch result line.", "error", err)
				continue
			}
			key, err := models.ParseDocumentKey(line.CustomID)
			if err != nil {
				r.malformed++
				r.logger.Error("Skipping batch result with malformed custom_id.", "error", err, "customId", line.CustomID)
				continue
			}
			if _, ok := r.submitted[key.String()]; !ok {
				r.unmatched++
				r.logger.Error("No submitted document matches batch result. Skipping.",
					"documentType", key.DocumentType, "documentId", key.DocumentID)
				continue
			}
			pages, err := line.pages()
			if err != nil {
				r.malformed++
				r.logger.Error("Batch result carries no usable pages. Skipping.",
					"error", err, "documentType", key.DocumentType, "documentId", key.DocumentID)
				continue
			}

			pages = slices.Clone(pages)
			slices.SortStableFunc(pages, func(a, b models.Page) int { return cmp.Compare(a.Index, b.Index) })
			r.extracted++
			if !yield(models.Extraction{
				DocumentKey: key,
				Markdown:    markdown.Reassemble(pages),
				PageCount:   len(pages),
			}) {
				return
			}
		}
	}
}
