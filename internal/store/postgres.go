package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datamade/la-metro-translations/internal/models"
)

// Schema creates the Postgres tables. It is idempotent.
//
//go:embed schema.sql
var Schema string

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

// Postgres is a Store backed by a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

// ConnectPostgres opens a pool and verifies the connection.
func ConnectPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Migrate applies Schema.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// Ping checks the pool can reach the database.
func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func (p *Postgres) UpsertDocument(ctx context.Context, doc models.SourceDocument) (bool, error) {
	if err := doc.DocumentKey.Validate(); err != nil {
		return false, err
	}
	var inserted bool
	err := p.pool.QueryRow(ctx,
		`INSERT INTO source_documents
		   (document_type, document_id, title, source_url, created_at, entity_type, entity_id, page_count, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		 ON CONFLICT (document_type, document_id) DO UPDATE SET
		   title = $3, source_url = $4, created_at = $5, entity_type = $6, entity_id = $7,
		   updated_at = NOW()
		 RETURNING (xmax = 0)`,
		doc.DocumentType, doc.DocumentID, doc.Title, doc.SourceURL, nullTime(doc.CreatedAt),
		doc.EntityType, doc.EntityID, doc.PageCount,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("failed to upsert document %s: %w", doc.DocumentKey, err)
	}
	return inserted, nil
}

func (p *Postgres) SetPageCount(ctx context.Context, key models.DocumentKey, pageCount int) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE source_documents SET page_count = $3, updated_at = NOW()
		 WHERE document_type = $1 AND document_id = $2`,
		key.DocumentType, key.DocumentID, pageCount,
	)
	if err != nil {
		return fmt.Errorf("failed to set page count %s: %w", key, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", key, ErrNotFound)
	}
	return nil
}

const documentColumns = `d.document_type, d.document_id, d.title, d.source_url, d.created_at,
	d.entity_type, d.entity_id, d.page_count, d.updated_at,
	EXISTS (SELECT 1 FROM extracted_contents c
	        WHERE c.document_type = d.document_type AND c.document_id = d.document_id)`

func scanDocument(row pgx.Row) (models.SourceDocument, error) {
	var doc models.SourceDocument
	var createdAt *time.Time
	err := row.Scan(&doc.DocumentType, &doc.DocumentID, &doc.Title, &doc.SourceURL, &createdAt,
		&doc.EntityType, &doc.EntityID, &doc.PageCount, &doc.UpdatedAt, &doc.HasContent)
	if createdAt != nil {
		doc.CreatedAt = *createdAt
	}
	return doc, err
}

func (p *Postgres) GetDocument(ctx context.Context, key models.DocumentKey) (models.SourceDocument, error) {
	doc, err := scanDocument(p.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM source_documents d
		 WHERE d.document_type = $1 AND d.document_id = $2`,
		key.DocumentType, key.DocumentID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.SourceDocument{}, fmt.Errorf("document %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return models.SourceDocument{}, fmt.Errorf("failed to get document %s: %w", key, err)
	}
	return doc, nil
}

func (p *Postgres) DocumentsMissingContent(ctx context.Context) ([]models.SourceDocument, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM source_documents d
		 WHERE NOT EXISTS (SELECT 1 FROM extracted_contents c
		                   WHERE c.document_type = d.document_type AND c.document_id = d.document_id)
		 ORDER BY d.document_type, d.document_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents missing content: %w", err)
	}
	defer rows.Close()

	var docs []models.SourceDocument
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

func (p *Postgres) CreateContent(ctx context.Context, content models.ExtractedContent) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO extracted_contents (document_type, document_id, markdown, approval_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		content.Key.DocumentType, content.Key.DocumentID, content.Markdown,
		string(content.ApprovalStatus), content.CreatedAt, content.UpdatedAt,
	)
	switch pgCode(err) {
	case "":
	case pgUniqueViolation:
		return fmt.Errorf("content %s: %w", content.Key, ErrAlreadyExists)
	case pgForeignKeyViolation:
		return fmt.Errorf("document %s: %w", content.Key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to create content %s: %w", content.Key, err)
	}
	return nil
}

const contentColumns = `c.document_type, c.document_id, c.markdown, c.approval_status, c.created_at, c.updated_at`

func scanContent(row pgx.Row) (models.ExtractedContent, error) {
	var c models.ExtractedContent
	var status string
	err := row.Scan(&c.Key.DocumentType, &c.Key.DocumentID, &c.Markdown, &status, &c.CreatedAt, &c.UpdatedAt)
	c.ApprovalStatus = models.ApprovalStatus(status)
	return c, err
}

func (p *Postgres) GetContent(ctx context.Context, key models.DocumentKey) (models.ExtractedContent, error) {
	c, err := scanContent(p.pool.QueryRow(ctx,
		`SELECT `+contentColumns+` FROM extracted_contents c
		 WHERE c.document_type = $1 AND c.document_id = $2`,
		key.DocumentType, key.DocumentID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return models.ExtractedContent{}, fmt.Errorf("content %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return models.ExtractedContent{}, fmt.Errorf("failed to get content %s: %w", key, err)
	}
	return c, nil
}

func (p *Postgres) queryContents(ctx context.Context, sql string, args ...any) ([]models.ExtractedContent, error) {
	rows, err := p.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list contents: %w", err)
	}
	defer rows.Close()

	var out []models.ExtractedContent
	for rows.Next() {
		c, err := scanContent(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) ListContents(ctx context.Context) ([]models.ExtractedContent, error) {
	return p.queryContents(ctx,
		`SELECT `+contentColumns+` FROM extracted_contents c ORDER BY c.document_type, c.document_id`)
}

func (p *Postgres) ContentsMissingTranslation(ctx context.Context, language string) ([]models.ExtractedContent, error) {
	return p.queryContents(ctx,
		`SELECT `+contentColumns+` FROM extracted_contents c
		 WHERE NOT EXISTS (SELECT 1 FROM translations t
		                   WHERE t.document_type = c.document_type AND t.document_id = c.document_id
		                     AND t.language = $1)
		 ORDER BY c.document_type, c.document_id`,
		language)
}

func (p *Postgres) HasTranslation(ctx context.Context, key models.DocumentKey, language string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM translations
		                WHERE document_type = $1 AND document_id = $2 AND language = $3)`,
		key.DocumentType, key.DocumentID, language,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check translation %s/%s: %w", key, language, err)
	}
	return exists, nil
}

func (p *Postgres) CreateTranslation(ctx context.Context, t models.Translation) error {
	id, err := uuid.Parse(t.ID)
	if err != nil {
		return fmt.Errorf("translation id %q: %w", t.ID, err)
	}
	_, err = p.pool.Exec(ctx,
		`INSERT INTO translations (id, document_type, document_id, language, markdown, approval_status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		id, t.Key.DocumentType, t.Key.DocumentID, t.Language, t.Markdown,
		string(t.ApprovalStatus), t.CreatedAt, t.UpdatedAt,
	)
	switch pgCode(err) {
	case "":
	case pgUniqueViolation:
		return fmt.Errorf("translation %s: %w", t.ID, ErrAlreadyExists)
	case pgForeignKeyViolation:
		return fmt.Errorf("content %s: %w", t.Key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to create translation %s: %w", t.ID, err)
	}
	return nil
}

func (p *Postgres) ListTranslations(ctx context.Context, key models.DocumentKey) ([]models.Translation, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, language, markdown, approval_status, created_at, updated_at FROM translations
		 WHERE document_type = $1 AND document_id = $2 ORDER BY created_at, id`,
		key.DocumentType, key.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list translations %s: %w", key, err)
	}
	defer rows.Close()

	var out []models.Translation
	for rows.Next() {
		var t models.Translation
		var id uuid.UUID
		var status string
		if err := rows.Scan(&id, &t.Language, &t.Markdown, &status, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan translation: %w", err)
		}
		t.ID, t.Key, t.ApprovalStatus = id.String(), key, models.ApprovalStatus(status)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (p *Postgres) AddFile(ctx context.Context, f models.RenderedFile) error {
	var translationID *uuid.UUID
	if f.TranslationID != "" {
		id, err := uuid.Parse(f.TranslationID)
		if err != nil {
			return fmt.Errorf("translation id %q: %w", f.TranslationID, err)
		}
		translationID = &id
	}
	_, err := p.pool.Exec(ctx,
		`INSERT INTO rendered_files (document_type, document_id, translation_id, format, url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		f.Key.DocumentType, f.Key.DocumentID, translationID, string(f.Format), f.URL, f.CreatedAt,
	)
	if pgCode(err) == pgForeignKeyViolation {
		return fmt.Errorf("document %s: %w", f.Key, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to add %s file for %s: %w", f.Format, f.Key, err)
	}
	return nil
}

func (p *Postgres) ListFiles(ctx context.Context, key models.DocumentKey) ([]models.RenderedFile, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT translation_id, format, url, created_at FROM rendered_files
		 WHERE document_type = $1 AND document_id = $2 ORDER BY id`,
		key.DocumentType, key.DocumentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list files %s: %w", key, err)
	}
	defer rows.Close()

	var out []models.RenderedFile
	for rows.Next() {
		var f models.RenderedFile
		var translationID *uuid.UUID
		var format string
		if err := rows.Scan(&translationID, &format, &f.URL, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		if translationID != nil {
			f.TranslationID = translationID.String()
		}
		f.Key, f.Format = key, models.FileFormat(format)
		out = append(out, f)
	}
	return out, rows.Err()
}
