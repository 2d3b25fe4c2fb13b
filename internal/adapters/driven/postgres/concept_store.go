package postgres

import (
	"context"
	"database/sql"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.ConceptStore = (*ConceptStore)(nil)

const conceptColumns = `id, source_id, type, title, body, keywords, embedding, page, section, confidence, generation, created_at`

// ConceptStore implements driven.ConceptStore using PostgreSQL. The stored
// embedding is a copy for re-indexing; search goes through VectorIndex.
type ConceptStore struct {
	db *DB
}

// NewConceptStore creates a new ConceptStore
func NewConceptStore(db *DB) *ConceptStore {
	return &ConceptStore{db: db}
}

// SaveBatch stores concepts in one transaction
func (s *ConceptStore) SaveBatch(ctx context.Context, concepts []*domain.KnowledgeConcept) error {
	if len(concepts) == 0 {
		return nil
	}

	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO knowledge_concepts (`+conceptColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, c := range concepts {
			var embedding any
			if len(c.Embedding) > 0 {
				embedding = pgvector.NewVector(c.Embedding)
			}
			keywords := c.Keywords
			if keywords == nil {
				keywords = []string{}
			}
			if _, err := stmt.ExecContext(ctx,
				c.ID,
				c.SourceID,
				c.Type,
				c.Title,
				c.Body,
				pq.Array(keywords),
				embedding,
				c.Position.Page,
				c.Position.Section,
				c.Confidence,
				c.Generation,
				c.CreatedAt,
			); err != nil {
				if isUniqueViolation(err) {
					return domain.ErrAlreadyExists
				}
				return err
			}
		}
		return nil
	})
}

// GetBatch retrieves concepts by ID; missing IDs are omitted
func (s *ConceptStore) GetBatch(ctx context.Context, ids []string) (map[string]*domain.KnowledgeConcept, error) {
	result := make(map[string]*domain.KnowledgeConcept, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conceptColumns+` FROM knowledge_concepts WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, err
		}
		result[c.ID] = c
	}
	return result, rows.Err()
}

// ListBySource retrieves the concepts of a source in creation order
func (s *ConceptStore) ListBySource(ctx context.Context, sourceID string) ([]*domain.KnowledgeConcept, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+conceptColumns+` FROM knowledge_concepts WHERE source_id = $1 ORDER BY seq`, sourceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var concepts []*domain.KnowledgeConcept
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, err
		}
		concepts = append(concepts, c)
	}
	return concepts, rows.Err()
}

// DeleteBatch removes concepts by ID
func (s *ConceptStore) DeleteBatch(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_concepts WHERE id = ANY($1)`, pq.Array(ids))
	return err
}

// DeleteBySource removes every concept of a source
func (s *ConceptStore) DeleteBySource(ctx context.Context, sourceID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_concepts WHERE source_id = $1`, sourceID)
	return err
}

func scanConcept(row rowScanner) (*domain.KnowledgeConcept, error) {
	var c domain.KnowledgeConcept
	var keywords pq.StringArray
	var embedding sql.Null[pgvector.Vector]

	err := row.Scan(
		&c.ID,
		&c.SourceID,
		&c.Type,
		&c.Title,
		&c.Body,
		&keywords,
		&embedding,
		&c.Position.Page,
		&c.Position.Section,
		&c.Confidence,
		&c.Generation,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if embedding.Valid {
		c.Embedding = embedding.V.Slice()
	}
	c.Keywords = []string(keywords)
	return &c, nil
}
