package models

import (
	"fmt"
	"strings"
	"time"
)

// KeySeparator joins document_type and document_id in correlation keys.
const KeySeparator = ":"

// DocumentKey identifies a SourceDocument by the upstream BoardAgendas tuple.
type DocumentKey struct {
	DocumentType string `firestore:"documentType" json:"document_type"`
	DocumentID   string `firestore:"documentId" json:"document_id"`
}

// String returns the correlation key form, e.g. "bill_document:7".
func (k DocumentKey) String() string {
	return k.DocumentType + KeySeparator + k.DocumentID
}

// Validate reports whether the key can round-trip through its string form.
// The separator is only allowed inside the document id, since parsing splits
// at the first separator.
func (k DocumentKey) Validate() error {
	if k.DocumentType == "" || k.DocumentID == "" {
		return fmt.Errorf("document key %q: document_type and document_id are required", k.String())
	}
	if strings.Contains(k.DocumentType, KeySeparator) {
		return fmt.Errorf("document key %q: document_type must not contain %q", k.String(), KeySeparator)
	}
	if strings.Contains(k.String(), "/") {
		return fmt.Errorf("document key %q: must not contain '/'", k.String())
	}
	return nil
}

// ParseDocumentKey splits a correlation key at its first separator.
func ParseDocumentKey(s string) (DocumentKey, error) {
	docType, docID, ok := strings.Cut(s, KeySeparator)
	if !ok || docType == "" || docID == "" {
		return DocumentKey{}, fmt.Errorf("malformed document key %q", s)
	}
	return DocumentKey{DocumentType: docType, DocumentID: docID}, nil
}

// Document types and entity types known to the BoardAgendas app.
const (
	DocumentTypeEvent = "event_document"
	DocumentTypeBill  = "bill_document"

	EntityTypeEvent = "event"
	EntityTypeBill  = "bill"
)

// SourceDocument is the original externally hosted agenda or board report.
type SourceDocument struct {
	DocumentKey
	Title      string    `firestore:"title,omitempty" json:"title"`
	SourceURL  string    `firestore:"sourceUrl" json:"source_url"`
	CreatedAt  time.Time `firestore:"createdAt,omitempty" json:"created_at"`
	EntityType string    `firestore:"entityType,omitempty" json:"entity_type"`
	EntityID   string    `firestore:"entityId,omitempty" json:"entity_id"`
	PageCount  int       `firestore:"pageCount,omitempty" json:"page_count,omitempty"`
	HasContent bool      `firestore:"hasContent" json:"has_content"`
	UpdatedAt  time.Time `firestore:"updatedAt,omitempty" json:"updated_at"`
}

// ApprovalStatus is the review state of extracted content and translations.
type ApprovalStatus string

const (
	ApprovalWaiting    ApprovalStatus = "waiting"
	ApprovalApproved   ApprovalStatus = "approved"
	ApprovalAdjustment ApprovalStatus = "adjustment"
)

// Valid reports whether s is one of the three review states.
func (s ApprovalStatus) Valid() bool {
	switch s {
	case ApprovalWaiting, ApprovalApproved, ApprovalAdjustment:
		return true
	}
	return false
}

// ExtractedContent is the OCR-reconstructed markdown of exactly one document.
// It is written once and never updated.
type ExtractedContent struct {
	Key            DocumentKey    `firestore:"key" json:"key"`
	Markdown       string         `firestore:"markdown" json:"markdown"`
	ApprovalStatus ApprovalStatus `firestore:"approvalStatus" json:"approval_status"`
	CreatedAt      time.Time      `firestore:"createdAt" json:"created_at"`
	UpdatedAt      time.Time      `firestore:"updatedAt" json:"updated_at"`
}

// LanguageEnglish is the language of the untranslated baseline rendition.
const LanguageEnglish = "english"

// Translation is markdown in a target language derived from one ExtractedContent.
type Translation struct {
	ID             string         `firestore:"id" json:"id"`
	Key            DocumentKey    `firestore:"key" json:"key"`
	Language       string         `firestore:"language" json:"language"`
	Markdown       string         `firestore:"markdown" json:"markdown"`
	ApprovalStatus ApprovalStatus `firestore:"approvalStatus" json:"approval_status"`
	CreatedAt      time.Time      `firestore:"createdAt" json:"created_at"`
	UpdatedAt      time.Time      `firestore:"updatedAt" json:"updated_at"`
}

// FileFormat is the format of a rendered artifact.
type FileFormat string

const (
	FormatPDF      FileFormat = "pdf"
	FormatMarkdown FileFormat = "md"
	FormatRTF      FileFormat = "rtf"
)

// RenderedFile is a rendition of a content or translation hosted elsewhere.
// TranslationID is empty when the file belongs to the ExtractedContent.
type RenderedFile struct {
	Key           DocumentKey `firestore:"key" json:"key"`
	TranslationID string      `firestore:"translationId,omitempty" json:"translation_id,omitempty"`
	Format        FileFormat  `firestore:"format" json:"format"`
	URL           string      `firestore:"url" json:"url"`
	CreatedAt     time.Time   `firestore:"createdAt" json:"created_at"`
}
