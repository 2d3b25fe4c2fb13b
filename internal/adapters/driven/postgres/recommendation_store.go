package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
	"github.com/Rikshjoeriks/sales-assistant/internal/core/ports/driven"
)

// Verify interface compliance
var (
	_ driven.ContextStore        = (*ContextStore)(nil)
	_ driven.RecommendationStore = (*RecommendationStore)(nil)
)

// ContextStore implements driven.ContextStore using PostgreSQL
type ContextStore struct {
	db *DB
}

// NewContextStore creates a new ContextStore
func NewContextStore(db *DB) *ContextStore {
	return &ContextStore{db: db}
}

// Create stores a new context
func (s *ContextStore) Create(ctx context.Context, salesCtx *domain.SalesContext) error {
	signals, err := json.Marshal(salesCtx.Signals)
	if err != nil {
		return fmt.Errorf("marshal signals: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sales_contexts (id, customer_id, signals, description, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, salesCtx.ID, salesCtx.CustomerID, signals, salesCtx.Description, salesCtx.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrAlreadyExists
	}
	return err
}

// Get retrieves a context by ID
func (s *ContextStore) Get(ctx context.Context, id string) (*domain.SalesContext, error) {
	var c domain.SalesContext
	var signals []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, customer_id, signals, description, created_at
		FROM sales_contexts WHERE id = $1
	`, id).Scan(&c.ID, &c.CustomerID, &signals, &c.Description, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(signals, &c.Signals); err != nil {
		return nil, fmt.Errorf("unmarshal signals: %w", err)
	}
	return &c, nil
}

// RecommendationStore implements driven.RecommendationStore using PostgreSQL.
// A recommendation and its references are written in one transaction.
type RecommendationStore struct {
	db *DB
}

// NewRecommendationStore creates a new RecommendationStore
func NewRecommendationStore(db *DB) *RecommendationStore {
	return &RecommendationStore{db: db}
}

const recommendationColumns = `id, context_id, text, output_format, tone, confidence,
	prompt_tokens, completion_tokens, total_tokens, usage_estimated, model, attempts, created_at`

// Save writes the recommendation and all of its references atomically
func (s *RecommendationStore) Save(ctx context.Context, rec *domain.SalesRecommendation) error {
	return s.db.Transaction(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sales_recommendations (`+recommendationColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		`,
			rec.ID,
			rec.ContextID,
			rec.Text,
			string(rec.OutputFormat),
			rec.Tone,
			rec.Confidence,
			rec.Usage.PromptTokens,
			rec.Usage.CompletionTokens,
			rec.Usage.TotalTokens,
			rec.Usage.Estimated,
			rec.Model,
			rec.Attempts,
			rec.CreatedAt,
		)
		if isUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		if err != nil {
			return err
		}

		if len(rec.References) == 0 {
			return nil
		}
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO source_references (recommendation_id, ordinal, source_id, concept_id, kind, score, position)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, ref := range rec.References {
			if _, err := stmt.ExecContext(ctx,
				rec.ID, i, ref.SourceID, ref.ConceptID, string(ref.Kind), ref.Score, ref.Position,
			); err != nil {
				return fmt.Errorf("insert reference %d: %w", i, err)
			}
		}
		return nil
	})
}

// Get retrieves a recommendation with its references
func (s *RecommendationStore) Get(ctx context.Context, id string) (*domain.SalesRecommendation, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recommendationColumns+` FROM sales_recommendations WHERE id = $1`, id)
	rec, err := scanRecommendation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if rec.References, err = s.references(ctx, rec.ID); err != nil {
		return nil, err
	}
	return rec, nil
}

// ListByContext retrieves the recommendations generated for a context, oldest first
func (s *RecommendationStore) ListByContext(ctx context.Context, contextID string) ([]*domain.SalesRecommendation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+recommendationColumns+` FROM sales_recommendations
		WHERE context_id = $1 ORDER BY created_at
	`, contextID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*domain.SalesRecommendation
	for rows.Next() {
		rec, err := scanRecommendation(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, rec := range recs {
		if rec.References, err = s.references(ctx, rec.ID); err != nil {
			return nil, err
		}
	}
	return recs, nil
}

func (s *RecommendationStore) references(ctx context.Context, recID string) ([]domain.SourceReference, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, concept_id, kind, score, position
		FROM source_references WHERE recommendation_id = $1 ORDER BY ordinal
	`, recID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := []domain.SourceReference{}
	for rows.Next() {
		ref := domain.SourceReference{RecommendationID: recID}
		var kind string
		if err := rows.Scan(&ref.SourceID, &ref.ConceptID, &kind, &ref.Score, &ref.Position); err != nil {
			return nil, err
		}
		ref.Kind = domain.ReferenceKind(kind)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

func scanRecommendation(row rowScanner) (*domain.SalesRecommendation, error) {
	var rec domain.SalesRecommendation
	var format string
	err := row.Scan(
		&rec.ID,
		&rec.ContextID,
		&rec.Text,
		&format,
		&rec.Tone,
		&rec.Confidence,
		&rec.Usage.PromptTokens,
		&rec.Usage.CompletionTokens,
		&rec.Usage.TotalTokens,
		&rec.Usage.Estimated,
		&rec.Model,
		&rec.Attempts,
		&rec.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	rec.OutputFormat = domain.OutputFormat(format)
	return &rec, nil
}
