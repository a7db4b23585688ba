// Package store persists source documents, extracted contents, translations
// and rendered files. Firestore is the production backend; Postgres and an
// in-memory store implement the same interface.
package store

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/datamade/la-metro-translations/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned when a write-once record is created twice.
	ErrAlreadyExists = errors.New("record already exists")
)

// Store is the persistence layer. Contents and translations are write-once:
// there are no update methods for them.
type Store interface {
	// UpsertDocument creates or updates a document by key and reports
	// whether it was created. On update it keeps the stored HasContent and
	// PageCount.
	UpsertDocument(ctx context.Context, doc models.SourceDocument) (bool, error)
	// SetPageCount changes only the page count of an existing document.
	SetPageCount(ctx context.Context, key models.DocumentKey, pageCount int) error
	GetDocument(ctx context.Context, key models.DocumentKey) (models.SourceDocument, error)
	// DocumentsMissingContent lists documents without ExtractedContent.
	DocumentsMissingContent(ctx context.Context) ([]models.SourceDocument, error)

	// CreateContent stores content and marks its document as having
	// content. It returns ErrAlreadyExists for a second content and
	// ErrNotFound when the document is unknown.
	CreateContent(ctx context.Context, content models.ExtractedContent) error
	GetContent(ctx context.Context, key models.DocumentKey) (models.ExtractedContent, error)
	ListContents(ctx context.Context) ([]models.ExtractedContent, error)
	// ContentsMissingTranslation lists contents with no translation in language.
	ContentsMissingTranslation(ctx context.Context, language string) ([]models.ExtractedContent, error)

	HasTranslation(ctx context.Context, key models.DocumentKey, language string) (bool, error)
	// CreateTranslation stores a new translation. It returns ErrNotFound
	// when the content is unknown.
	CreateTranslation(ctx context.Context, t models.Translation) error
	ListTranslations(ctx context.Context, key models.DocumentKey) ([]models.Translation, error)

	AddFile(ctx context.Context, f models.RenderedFile) error
	ListFiles(ctx context.Context, key models.DocumentKey) ([]models.RenderedFile, error)

	Close() error
}

func compareKeys(a, b models.DocumentKey) int {
	if c := strings.Compare(a.DocumentType, b.DocumentType); c != 0 {
		return c
	}
	return strings.Compare(a.DocumentID, b.DocumentID)
}

func sortDocuments(docs []models.SourceDocument) {
	slices.SortFunc(docs, func(a, b models.SourceDocument) int { return compareKeys(a.DocumentKey, b.DocumentKey) })
}

func sortContents(contents []models.ExtractedContent) {
	slices.SortFunc(contents, func(a, b models.ExtractedContent) int { return compareKeys(a.Key, b.Key) })
}

func sortTranslations(ts []models.Translation) {
	slices.SortFunc(ts, func(a, b models.Translation) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
