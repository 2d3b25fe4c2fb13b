package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/m-mizutani/goerr/v2"

	"github.com/Rikshjoeriks/sales-assistant/internal/core/domain"
)

//go:embed schema.sql
var schema string

// SQLSTATE codes the stores branch on
const (
	uniqueViolation = "23505"
	undefinedTable  = "42P01"
)

// DB is the shared connection pool of the knowledge base stores
type DB struct {
	*sql.DB
}

// Config holds pool settings. URL is a lib/pq connection string or URL.
type Config struct {
	URL string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConfig returns pool settings sized for one API process plus a
// handful of ingestion workers
func DefaultConfig(url string) Config {
	return Config{
		URL:             url,
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
		ConnMaxIdleTime: time.Minute,
	}
}

// Connect opens the pool and pings the server once
func Connect(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.URL == "" {
		return nil, goerr.Wrap(domain.ErrInvalidInput, "database url is empty", goerr.V(domain.KeyField, "DATABASE_URL"))
	}
	pool, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := pool.PingContext(ctx); err != nil {
		_ = pool.Close()
		return nil, goerr.Wrap(domain.ErrUnavailable, "database unreachable", goerr.V("cause", err.Error()))
	}
	return &DB{DB: pool}, nil
}

// InitSchema applies schema.sql. Every statement is IF NOT EXISTS, so it
// runs on each start.
func (db *DB) InitSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// VerifyDimensions fails when the index already holds vectors of another
// dimension than the configured embedding produces. An empty index passes.
func (db *DB) VerifyDimensions(ctx context.Context, dimensions int) error {
	var stored int
	err := db.QueryRowContext(ctx, `SELECT vector_dims(embedding) FROM concept_vectors LIMIT 1`).Scan(&stored)
	switch {
	case errors.Is(err, sql.ErrNoRows), isCode(err, undefinedTable):
		return nil
	case err != nil:
		return fmt.Errorf("read stored vector dimension: %w", err)
	case stored != dimensions:
		return goerr.Wrap(domain.ErrInvalidInput, "stored vectors do not match the embedding dimension",
			goerr.V(domain.KeyField, "VECTOR_DIMENSIONS"), goerr.V("stored", stored), goerr.V("configured", dimensions))
	}
	return nil
}

// Ping reports whether the database answers
func (db *DB) Ping(ctx context.Context) error {
	return db.PingContext(ctx)
}

// Close closes the pool
func (db *DB) Close() error {
	return db.DB.Close()
}

// Transaction runs fn in a transaction, committing only when fn succeeds
func (db *DB) Transaction(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				err = fmt.Errorf("%w (rollback: %v)", err, rbErr)
			}
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// nullTime maps an optional timestamp to a nullable column
func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func timePtr(nt sql.NullTime) *time.Time {
	if !nt.Valid {
		return nil
	}
	return &nt.Time
}

func isUniqueViolation(err error) bool {
	return isCode(err, uniqueViolation)
}

func isCode(err error, code string) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == code
}
