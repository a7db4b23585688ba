package mistral

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/datamade/la-metro-translations/internal/models"
)

// OCREndpoint is the batch endpoint for document OCR requests.
const OCREndpoint = "/v1/ocr"

type createJobRequest struct {
	InputFiles   []string          `json:"input_files"`
	Endpoint     string            `json:"endpoint"`
	Model        string            `json:"model"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	TimeoutHours int               `json:"timeout_hours,omitempty"`
}

type batchJob struct {
	models.BatchJob
	CreatedAtUnix int64 `json:"created_at"`
}

func (j batchJob) toModel() models.BatchJob {
	out := j.BatchJob
	if j.CreatedAtUnix > 0 {
		out.CreatedAt = time.Unix(j.CreatedAtUnix, 0).UTC()
	}
	return out
}

// CreateBatchJob creates a batch job over previously uploaded input files.
func (c *Client) CreateBatchJob(ctx context.Context, in models.BatchJobRequest) (models.BatchJob, error) {
	body := createJobRequest{
		InputFiles:   []string{in.InputFileID},
		Endpoint:     in.Endpoint,
		Model:        in.Model,
		Metadata:     in.Metadata,
		TimeoutHours: in.TimeoutHours,
	}
	var job batchJob
	raw, err := c.doJSON(ctx, http.MethodPost, "/v1/batch/jobs", body, &job)
	if err != nil {
		return models.BatchJob{}, err
	}
	if job.ID == "" {
		return models.BatchJob{}, fmt.Errorf("%w: batch job without id; body=%s", ErrMalformedResponse, Truncate(raw, 512))
	}
	return job.toModel(), nil
}

// GetBatchJob fetches the current state of a batch job.
func (c *Client) GetBatchJob(ctx context.Context, jobID string) (models.BatchJob, error) {
	var job batchJob
	raw, err := c.doJSON(ctx, http.MethodGet, "/v1/batch/jobs/"+url.PathEscape(jobID), nil, &job)
	if err != nil {
		return models.BatchJob{}, err
	}
	if job.Status == "" {
		return models.BatchJob{}, fmt.Errorf("%w: batch job %s without status; body=%s", ErrMalformedResponse, jobID, Truncate(raw, 512))
	}
	return job.toModel(), nil
}
