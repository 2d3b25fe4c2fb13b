package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
	"github.com/m-mizutani/goerr/v2"
	"github.com/pgvector/pgvector-go"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.VectorIndex = (*VectorIndex)(nil)

// VectorIndex implements driven.VectorIndex on the pgvector extension. Each
// mutating call is a single transaction, so a search sees a source's entries
// either entirely before or entirely after a swap.
type VectorIndex struct {
	db         *DB
	dimensions int
}

// NewVectorIndex creates an index over the concept_vectors table
func NewVectorIndex(db *DB, dimensions int) *VectorIndex {
	return &VectorIndex{db: db, dimensions: dimensions}
}

// Dimensions returns the index-wide vector dimension
func (x *VectorIndex) Dimensions() int {
	return x.dimensions
}

func (x *VectorIndex) checkDims(v []float32) error {
	if len(v) != x.dimensions {
		return goerr.Wrap(domain.ErrInvalidInput, "vector has wrong dimension",
			goerr.V("expected", x.dimensions), goerr.V("actual", len(v)))
	}
	return nil
}

// Upsert inserts or replaces entries; a replaced entry keeps its seq
func (x *VectorIndex) Upsert(ctx context.Context, entries []domain.VectorEntry) error {
	for _, e := range entries {
		if err := x.checkDims(e.Vector); err != nil {
			return err
		}
	}
	if len(entries) == 0 {
		return nil
	}
	return x.db.Transaction(ctx, func(tx *sql.Tx) error {
		return upsertVectors(ctx, tx, entries)
	})
}

func upsertVectors(ctx context.Context, tx *sql.Tx, entries []domain.VectorEntry) error {
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO concept_vectors (concept_id, source_id, embedding)
		VALUES ($1, $2, $3)
		ON CONFLICT (concept_id) DO UPDATE SET
			source_id = EXCLUDED.source_id,
			embedding = EXCLUDED.embedding
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.ConceptID, e.SourceID, pgvector.NewVector(e.Vector)); err != nil {
			return fmt.Errorf("upsert vector %s: %w", e.ConceptID, err)
		}
	}
	return nil
}

// Delete removes entries by concept ID
func (x *VectorIndex) Delete(ctx context.Context, conceptIDs []string) error {
	if len(conceptIDs) == 0 {
		return nil
	}
	_, err := x.db.ExecContext(ctx, `DELETE FROM concept_vectors WHERE concept_id = ANY($1)`, pq.Array(conceptIDs))
	return err
}

// ReplaceSource swaps every entry of a source for the given set
func (x *VectorIndex) ReplaceSource(ctx context.Context, sourceID string, entries []domain.VectorEntry) error {
	keep := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.SourceID != sourceID {
			return goerr.Wrap(domain.ErrInvalidInput, "entry belongs to another source",
				goerr.V(domain.KeySourceID, sourceID), goerr.V(domain.KeyConceptID, e.ConceptID))
		}
		if err := x.checkDims(e.Vector); err != nil {
			return err
		}
		keep = append(keep, e.ConceptID)
	}

	return x.db.Transaction(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM concept_vectors WHERE source_id = $1 AND NOT (concept_id = ANY($2))`,
			sourceID, pq.Array(keep),
		); err != nil {
			return err
		}
		if len(entries) == 0 {
			return nil
		}
		return upsertVectors(ctx, tx, entries)
	})
}

// DeleteSource removes every entry of a source
func (x *VectorIndex) DeleteSource(ctx context.Context, sourceID string) error {
	_, err := x.db.ExecContext(ctx, `DELETE FROM concept_vectors WHERE source_id = $1`, sourceID)
	return err
}

// Search ranks entries by cosine similarity. A zero vector on either side
// scores 0 rather than NaN.
func (x *VectorIndex) Search(ctx context.Context, query []float32, topK int, minScore float64) ([]domain.VectorMatch, error) {
	if topK <= 0 {
		return []domain.VectorMatch{}, nil
	}
	if err := x.checkDims(query); err != nil {
		return nil, err
	}

	rows, err := x.db.QueryContext(ctx, `
		SELECT concept_id, source_id, score, seq FROM (
			SELECT concept_id, source_id, seq,
				COALESCE(NULLIF(1 - (embedding <=> $1), 'NaN'::float8), 0) AS score
			FROM concept_vectors
		) scored
		WHERE score >= $2
		ORDER BY score DESC, seq ASC
		LIMIT $3
	`, pgvector.NewVector(query), minScore, topK)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]domain.VectorMatch, 0, topK)
	for rows.Next() {
		var m domain.VectorMatch
		if err := rows.Scan(&m.ConceptID, &m.SourceID, &m.Score, &m.Seq); err != nil {
			return nil, err
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

// Count returns the number of indexed entries
func (x *VectorIndex) Count(ctx context.Context) (int, error) {
	var n int
	err := x.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM concept_vectors`).Scan(&n)
	return n, err
}
