package models

// These structs define the JSON payloads exchanged with the BoardAgendas
// webhook, the Cloud Workflow and the worker Cloud Functions.

// NewDocumentRequest is the body BoardAgendas posts when a document is
// created or changed.
type NewDocumentRequest struct {
	APIKey       string `json:"api_key"`
	DocumentID   string `json:"document_id" validate:"required"`
	Title        string `json:"title" validate:"required"`
	SourceURL    string `json:"source_url" validate:"required,url"`
	CreatedAt    string `json:"created_at" validate:"required,datetime=2006-01-02"`
	DocumentType string `json:"document_type" validate:"required,oneof=event_document bill_document"`
	EntityType   string `json:"entity_type" validate:"required,oneof=event bill"`
	EntityID     string `json:"entity_id" validate:"required"`
}

// WebhookResponse is returned by the document webhook.
type WebhookResponse struct {
	Status  string `json:"status,omitempty"`
	Message string `json:"message"`
}

// TranslateDocumentRequest is the input for the document-translator function.
type TranslateDocumentRequest struct {
	DocumentType string `json:"documentType"`
	DocumentID   string `json:"documentId"`
	Language     string `json:"language"`
	Force        bool   `json:"force,omitempty"`
	ExecutionID  string `json:"executionId,omitempty"`
}

// TranslateDocumentResponse is the output of the document-translator function.
type TranslateDocumentResponse struct {
	Status        string `json:"status"`
	TranslationID string `json:"translationId,omitempty"`
	MarkdownURI   string `json:"markdownUri,omitempty"`
}

// BatchExtractMessage is the Pub/Sub payload that triggers an extraction run.
// Languages overrides the configured target languages for the hand-off.
type BatchExtractMessage struct {
	Languages []string `json:"languages,omitempty"`
}

// TranslationWorkflowArgument is passed to the translation workflow after
// an extraction run created new contents.
type TranslationWorkflowArgument struct {
	RunID     string        `json:"runId"`
	Documents []DocumentKey `json:"documents"`
	Languages []string      `json:"languages"`
}
