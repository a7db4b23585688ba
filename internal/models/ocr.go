package models

import "time"

// Page is one page of provider OCR output.
type Page struct {
	Index      int      `json:"index"`
	Markdown   string   `json:"markdown"`
	Tables     []Table  `json:"tables"`
	Images     []Image  `json:"images"`
	Hyperlinks []string `json:"hyperlinks"`
}

// Table is a table detected on a page, rendered as markdown.
type Table struct {
	ID      string `json:"id"`
	Content string `json:"content"`
}

// Image is an image detected on a page. ImageBase64 is a full data URI.
type Image struct {
	ID          string `json:"id"`
	ImageBase64 string `json:"image_base64"`
}

// JobStatus is the provider-side state of a batch job.
type JobStatus string

const (
	JobQueued                JobStatus = "QUEUED"
	JobRunning               JobStatus = "RUNNING"
	JobSuccess               JobStatus = "SUCCESS"
	JobFailed                JobStatus = "FAILED"
	JobTimeoutExceeded       JobStatus = "TIMEOUT_EXCEEDED"
	JobCancellationRequested JobStatus = "CANCELLATION_REQUESTED"
	JobCancelled             JobStatus = "CANCELLED"
)

// InProgress reports whether the job has not reached a terminal state.
func (s JobStatus) InProgress() bool {
	return s == JobQueued || s == JobRunning
}

// BatchJob is a snapshot of a provider batch job.
type BatchJob struct {
	ID                string    `json:"id"`
	Status            JobStatus `json:"status"`
	Model             string    `json:"model"`
	Endpoint          string    `json:"endpoint"`
	InputFiles        []string  `json:"input_files"`
	OutputFile        string    `json:"output_file,omitempty"`
	ErrorFile         string    `json:"error_file,omitempty"`
	TotalRequests     int       `json:"total_requests"`
	SucceededRequests int       `json:"succeeded_requests"`
	FailedRequests    int       `json:"failed_requests"`
	CreatedAt         time.Time `json:"-"`
}

// BatchJobRequest describes a batch job to create.
type BatchJobRequest struct {
	InputFileID  string
	Model        string
	Endpoint     string
	TimeoutHours int
	Metadata     map[string]string
}

// Extraction is the reassembled markdown for one batch result.
type Extraction struct {
	DocumentKey
	Markdown  string
	PageCount int
}

// OCRDocument points the OCR capability at a hosted document.
type OCRDocument struct {
	Type        string `json:"type"`
	DocumentURL string `json:"document_url"`
}

// OCRRequest is the body of a single OCR call, synchronous or batched.
// Model is left empty inside batch files; the job names the model.
type OCRRequest struct {
	Model              string      `json:"model,omitempty"`
	Document           OCRDocument `json:"document"`
	TableFormat        string      `json:"table_format"`
	IncludeImageBase64 bool        `json:"include_image_base64"`
}

// NewOCRRequest asks for markdown tables and embedded image payloads.
func NewOCRRequest(documentURL string) OCRRequest {
	return OCRRequest{
		Document:           OCRDocument{Type: "document_url", DocumentURL: documentURL},
		TableFormat:        "markdown",
		IncludeImageBase64: true,
	}
}
