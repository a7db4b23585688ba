package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/datamade/la-metro-translations/internal/models"
)

// Firestore is a Store on Cloud Firestore. Documents and contents are keyed
// by the correlation key; translations by their ID.
type Firestore struct {
	client       *firestore.Client
	documents    *firestore.CollectionRef
	contents     *firestore.CollectionRef
	translations *firestore.CollectionRef
	files        *firestore.CollectionRef
	now          func() time.Time
}

var _ Store = (*Firestore)(nil)

// NewFirestore uses client with collection names prefixed by prefix.
func NewFirestore(client *firestore.Client, prefix string) *Firestore {
	return &Firestore{
		client:       client,
		documents:    client.Collection(prefix + "documents"),
		contents:     client.Collection(prefix + "contents"),
		translations: client.Collection(prefix + "translations"),
		files:        client.Collection(prefix + "files"),
		now:          time.Now,
	}
}

func (f *Firestore) Close() error {
	return f.client.Close()
}

func (f *Firestore) UpsertDocument(ctx context.Context, doc models.SourceDocument) (bool, error) {
	if err := doc.DocumentKey.Validate(); err != nil {
		return false, err
	}
	ref := f.documents.Doc(doc.DocumentKey.String())

	var created bool
	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		snap, err := tx.Get(ref)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		next := doc
		next.UpdatedAt = f.now().UTC()
		next.HasContent = false
		created = snap == nil || !snap.Exists()
		if !created {
			var existing models.SourceDocument
			if err := snap.DataTo(&existing); err != nil {
				return err
			}
			next.HasContent = existing.HasContent
			next.PageCount = existing.PageCount
		}
		return tx.Set(ref, next)
	})
	if err != nil {
		return false, fmt.Errorf("failed to upsert document %s: %w", doc.DocumentKey, err)
	}
	return created, nil
}

func (f *Firestore) SetPageCount(ctx context.Context, key models.DocumentKey, pageCount int) error {
	_, err := f.documents.Doc(key.String()).Update(ctx, []firestore.Update{
		{Path: "pageCount", Value: pageCount},
		{Path: "updatedAt", Value: f.now().UTC()},
	})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("document %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to set page count %s: %w", key, err)
	}
	return nil
}

func (f *Firestore) GetDocument(ctx context.Context, key models.DocumentKey) (models.SourceDocument, error) {
	snap, err := f.documents.Doc(key.String()).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.SourceDocument{}, fmt.Errorf("document %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return models.SourceDocument{}, fmt.Errorf("failed to get document %s: %w", key, err)
	}
	var doc models.SourceDocument
	if err := snap.DataTo(&doc); err != nil {
		return models.SourceDocument{}, fmt.Errorf("failed to decode document %s: %w", key, err)
	}
	return doc, nil
}

// collect decodes every document yielded by it into T.
func collect[T any](it *firestore.DocumentIterator) ([]T, error) {
	defer it.Stop()
	var out []T
	for {
		snap, err := it.Next()
		if errors.Is(err, iterator.Done) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		var v T
		if err := snap.DataTo(&v); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", snap.Ref.ID, err)
		}
		out = append(out, v)
	}
}

func (f *Firestore) DocumentsMissingContent(ctx context.Context) ([]models.SourceDocument, error) {
	docs, err := collect[models.SourceDocument](f.documents.Where("hasContent", "==", false).Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list documents missing content: %w", err)
	}
	sortDocuments(docs)
	return docs, nil
}

// CreateContent writes the content and flips hasContent in one transaction.
func (f *Firestore) CreateContent(ctx context.Context, content models.ExtractedContent) error {
	docRef := f.documents.Doc(content.Key.String())
	contentRef := f.contents.Doc(content.Key.String())

	err := f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		if _, err := tx.Get(docRef); err != nil {
			if status.Code(err) == codes.NotFound {
				return fmt.Errorf("document %s: %w", content.Key, ErrNotFound)
			}
			return err
		}
		snap, err := tx.Get(contentRef)
		if err != nil && status.Code(err) != codes.NotFound {
			return err
		}
		if snap != nil && snap.Exists() {
			return fmt.Errorf("content %s: %w", content.Key, ErrAlreadyExists)
		}
		if err := tx.Create(contentRef, content); err != nil {
			return err
		}
		return tx.Update(docRef, []firestore.Update{
			{Path: "hasContent", Value: true},
			{Path: "updatedAt", Value: f.now().UTC()},
		})
	})
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrAlreadyExists) {
		return err
	}
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("content %s: %w", content.Key, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create content %s: %w", content.Key, err)
	}
	return nil
}

func (f *Firestore) GetContent(ctx context.Context, key models.DocumentKey) (models.ExtractedContent, error) {
	snap, err := f.contents.Doc(key.String()).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return models.ExtractedContent{}, fmt.Errorf("content %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return models.ExtractedContent{}, fmt.Errorf("failed to get content %s: %w", key, err)
	}
	var c models.ExtractedContent
	if err := snap.DataTo(&c); err != nil {
		return models.ExtractedContent{}, fmt.Errorf("failed to decode content %s: %w", key, err)
	}
	return c, nil
}

func (f *Firestore) ListContents(ctx context.Context) ([]models.ExtractedContent, error) {
	contents, err := collect[models.ExtractedContent](f.contents.Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list contents: %w", err)
	}
	sortContents(contents)
	return contents, nil
}

// ContentsMissingTranslation has no server-side anti-join; it diffs all
// contents against the translations in language.
func (f *Firestore) ContentsMissingTranslation(ctx context.Context, language string) ([]models.ExtractedContent, error) {
	contents, err := f.ListContents(ctx)
	if err != nil {
		return nil, err
	}
	translated, err := collect[models.Translation](f.translations.Where("language", "==", language).Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s translations: %w", language, err)
	}
	done := make(map[models.DocumentKey]bool, len(translated))
	for _, t := range translated {
		done[t.Key] = true
	}
	out := contents[:0]
	for _, c := range contents {
		if !done[c.Key] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *Firestore) translationsOf(key models.DocumentKey) firestore.Query {
	return f.translations.
		Where("key.documentType", "==", key.DocumentType).
		Where("key.documentId", "==", key.DocumentID)
}

func (f *Firestore) HasTranslation(ctx context.Context, key models.DocumentKey, language string) (bool, error) {
	it := f.translationsOf(key).Where("language", "==", language).Limit(1).Documents(ctx)
	defer it.Stop()
	_, err := it.Next()
	if errors.Is(err, iterator.Done) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check translation %s/%s: %w", key, language, err)
	}
	return true, nil
}

func (f *Firestore) CreateTranslation(ctx context.Context, t models.Translation) error {
	if _, err := f.contents.Doc(t.Key.String()).Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("content %s: %w", t.Key, ErrNotFound)
		}
		return fmt.Errorf("failed to get content %s: %w", t.Key, err)
	}
	_, err := f.translations.Doc(t.ID).Create(ctx, t)
	if status.Code(err) == codes.AlreadyExists {
		return fmt.Errorf("translation %s: %w", t.ID, ErrAlreadyExists)
	}
	if err != nil {
		return fmt.Errorf("failed to create translation %s: %w", t.ID, err)
	}
	return nil
}

func (f *Firestore) ListTranslations(ctx context.Context, key models.DocumentKey) ([]models.Translation, error) {
	ts, err := collect[models.Translation](f.translationsOf(key).Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list translations %s: %w", key, err)
	}
	sortTranslations(ts)
	return ts, nil
}

func (f *Firestore) AddFile(ctx context.Context, file models.RenderedFile) error {
	if _, err := f.documents.Doc(file.Key.String()).Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return fmt.Errorf("document %s: %w", file.Key, ErrNotFound)
		}
		return fmt.Errorf("failed to get document %s: %w", file.Key, err)
	}
	if _, err := f.files.NewDoc().Create(ctx, file); err != nil {
		return fmt.Errorf("failed to add %s file for %s: %w", file.Format, file.Key, err)
	}
	return nil
}

func (f *Firestore) ListFiles(ctx context.Context, key models.DocumentKey) ([]models.RenderedFile, error) {
	files, err := collect[models.RenderedFile](f.files.
		Where("key.documentType", "==", key.DocumentType).
		Where("key.documentId", "==", key.DocumentID).
		Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to list files %s: %w", key, err)
	}
	return files, nil
}
