package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/datamade/la-metro-translations/internal/models"
)

// Memory is an in-process Store for tests and dry runs.
type Memory struct {
	mu           sync.RWMutex
	now          func() time.Time
	documents    map[models.DocumentKey]models.SourceDocument
	contents     map[models.DocumentKey]models.ExtractedContent
	translations map[models.DocumentKey][]models.Translation
	files        map[models.DocumentKey][]models.RenderedFile
}

// NewMemory returns an empty Memory store.
func NewMemory() *Memory {
	return &Memory{
		now:          time.Now,
		documents:    make(map[models.DocumentKey]models.SourceDocument),
		contents:     make(map[models.DocumentKey]models.ExtractedContent),
		translations: make(map[models.DocumentKey][]models.Translation),
		files:        make(map[models.DocumentKey][]models.RenderedFile),
	}
}

var _ Store = (*Memory)(nil)

func (m *Memory) UpsertDocument(_ context.Context, doc models.SourceDocument) (bool, error) {
	if err := doc.DocumentKey.Validate(); err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.documents[doc.DocumentKey]
	doc.HasContent = ok && existing.HasContent
	if ok {
		doc.PageCount = existing.PageCount
	}
	doc.UpdatedAt = m.now().UTC()
	m.documents[doc.DocumentKey] = doc
	return !ok, nil
}

func (m *Memory) SetPageCount(_ context.Context, key models.DocumentKey, pageCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[key]
	if !ok {
		return fmt.Errorf("document %s: %w", key, ErrNotFound)
	}
	doc.PageCount = pageCount
	doc.UpdatedAt = m.now().UTC()
	m.documents[key] = doc
	return nil
}

func (m *Memory) GetDocument(_ context.Context, key models.DocumentKey) (models.SourceDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	doc, ok := m.documents[key]
	if !ok {
		return models.SourceDocument{}, fmt.Errorf("document %s: %w", key, ErrNotFound)
	}
	return doc, nil
}

func (m *Memory) DocumentsMissingContent(_ context.Context) ([]models.SourceDocument, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.SourceDocument
	for _, doc := range m.documents {
		if !doc.HasContent {
			out = append(out, doc)
		}
	}
	sortDocuments(out)
	return out, nil
}

func (m *Memory) CreateContent(_ context.Context, content models.ExtractedContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[content.Key]
	if !ok {
		return fmt.Errorf("document %s: %w", content.Key, ErrNotFound)
	}
	if _, exists := m.contents[content.Key]; exists {
		return fmt.Errorf("content %s: %w", content.Key, ErrAlreadyExists)
	}
	m.contents[content.Key] = content
	doc.HasContent = true
	m.documents[content.Key] = doc
	return nil
}

func (m *Memory) GetContent(_ context.Context, key models.DocumentKey) (models.ExtractedContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.contents[key]
	if !ok {
		return models.ExtractedContent{}, fmt.Errorf("content %s: %w", key, ErrNotFound)
	}
	return content, nil
}

func (m *Memory) ListContents(_ context.Context) ([]models.ExtractedContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.ExtractedContent, 0, len(m.contents))
	for _, content := range m.contents {
		out = append(out, content)
	}
	sortContents(out)
	return out, nil
}

func (m *Memory) ContentsMissingTranslation(_ context.Context, language string) ([]models.ExtractedContent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.ExtractedContent
	for key, content := range m.contents {
		if !m.hasTranslation(key, language) {
			out = append(out, content)
		}
	}
	sortContents(out)
	return out, nil
}

func (m *Memory) hasTranslation(key models.DocumentKey, language string) bool {
	for _, t := range m.translations[key] {
		if t.Language == language {
			return true
		}
	}
	return false
}

func (m *Memory) HasTranslation(_ context.Context, key models.DocumentKey, language string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.hasTranslation(key, language), nil
}

func (m *Memory) CreateTranslation(_ context.Context, t models.Translation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.contents[t.Key]; !ok {
		return fmt.Errorf("content %s: %w", t.Key, ErrNotFound)
	}
	for _, existing := range m.translations[t.Key] {
		if existing.ID == t.ID {
			return fmt.Errorf("translation %s: %w", t.ID, ErrAlreadyExists)
		}
	}
	m.translations[t.Key] = append(m.translations[t.Key], t)
	return nil
}

func (m *Memory) ListTranslations(_ context.Context, key models.DocumentKey) ([]models.Translation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := append([]models.Translation(nil), m.translations[key]...)
	sortTranslations(out)
	return out, nil
}

func (m *Memory) AddFile(_ context.Context, f models.RenderedFile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[f.Key]; !ok {
		return fmt.Errorf("document %s: %w", f.Key, ErrNotFound)
	}
	m.files[f.Key] = append(m.files[f.Key], f)
	return nil
}

func (m *Memory) ListFiles(_ context.Context, key models.DocumentKey) ([]models.RenderedFile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]models.RenderedFile(nil), m.files[key]...), nil
}

func (m *Memory) Close() error { return nil }
