package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/lib/pq"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.SourceStore = (*SourceStore)(nil)

const sourceColumns = `id, title, author, type, locator, status, concept_count, generation, last_error,
	created_at, updated_at, processed_at`

// SourceStore implements driven.SourceStore using PostgreSQL
type SourceStore struct {
	db *DB
}

// NewSourceStore creates a new SourceStore
func NewSourceStore(db *DB) *SourceStore {
	return &SourceStore{db: db}
}

// Save creates or updates a source
func (s *SourceStore) Save(ctx context.Context, source *domain.KnowledgeSource) error {
	query := `
		INSERT INTO knowledge_sources (` + sourceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			author = EXCLUDED.author,
			type = EXCLUDED.type,
			locator = EXCLUDED.locator,
			status = EXCLUDED.status,
			concept_count = EXCLUDED.concept_count,
			generation = EXCLUDED.generation,
			last_error = EXCLUDED.last_error,
			updated_at = EXCLUDED.updated_at,
			processed_at = EXCLUDED.processed_at
	`
	_, err := s.db.ExecContext(ctx, query,
		source.ID,
		source.Title,
		source.Author,
		string(source.Type),
		source.Locator,
		string(source.Status),
		source.ConceptCount,
		source.Generation,
		source.LastError,
		source.CreatedAt,
		source.UpdatedAt,
		nullTime(source.ProcessedAt),
	)
	return err
}

// Get retrieves a source by ID
func (s *SourceStore) Get(ctx context.Context, id string) (*domain.KnowledgeSource, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sourceColumns+` FROM knowledge_sources WHERE id = $1`, id)
	source, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return source, err
}

// GetBatch retrieves sources by ID; missing IDs are omitted
func (s *SourceStore) GetBatch(ctx context.Context, ids []string) (map[string]*domain.KnowledgeSource, error) {
	result := make(map[string]*domain.KnowledgeSource, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM knowledge_sources WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		result[source.ID] = source
	}
	return result, rows.Err()
}

// List retrieves all sources, newest first
func (s *SourceStore) List(ctx context.Context) ([]*domain.KnowledgeSource, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sourceColumns+` FROM knowledge_sources ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sources []*domain.KnowledgeSource
	for rows.Next() {
		source, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, source)
	}
	return sources, rows.Err()
}

// Delete removes a source and its stored document. Concepts cascade.
func (s *SourceStore) Delete(ctx context.Context, id string) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM source_documents WHERE source_id = $1`, id); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM knowledge_sources WHERE id = $1`, id)
		if err != nil {
			return err
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

// SaveDocument stores the plain text awaiting ingestion. Documents are
// written before their source row, so they carry no foreign key.
func (s *SourceStore) SaveDocument(ctx context.Context, doc *domain.SourceDocument) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO source_documents (source_id, text, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (source_id) DO UPDATE SET
			text = EXCLUDED.text,
			updated_at = EXCLUDED.updated_at
	`, doc.SourceID, doc.Text, doc.UpdatedAt)
	return err
}

// GetDocument retrieves the stored plain text of a source
func (s *SourceStore) GetDocument(ctx context.Context, sourceID string) (*domain.SourceDocument, error) {
	var doc domain.SourceDocument
	err := s.db.QueryRowContext(ctx,
		`SELECT source_id, text, updated_at FROM source_documents WHERE source_id = $1`, sourceID,
	).Scan(&doc.SourceID, &doc.Text, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(row rowScanner) (*domain.KnowledgeSource, error) {
	var source domain.KnowledgeSource
	var sourceType, status string
	var processedAt sql.NullTime

	err := row.Scan(
		&source.ID,
		&source.Title,
		&source.Author,
		&sourceType,
		&source.Locator,
		&status,
		&source.ConceptCount,
		&source.Generation,
		&source.LastError,
		&source.CreatedAt,
		&source.UpdatedAt,
		&processedAt,
	)
	if err != nil {
		return nil, err
	}
	source.Type = domain.SourceType(sourceType)
	source.Status = domain.ProcessingStatus(status)
	source.ProcessedAt = timePtr(processedAt)
	return &source, nil
}
