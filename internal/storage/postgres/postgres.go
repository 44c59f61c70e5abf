// Package postgres provides a PostgreSQL-backed implementation of the
// storage.Store interface using pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/MJ-02/BillSplitter/internal/storage"
)

// Ensure PostgresStore implements storage.Store
var _ storage.Store = (*PostgresStore)(nil)

// dbtx is satisfied by both *pgxpool.Pool and pgx.Tx.
type dbtx interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type queries struct {
	db dbtx
}

// PostgresStore implements storage.Store on a pgx connection pool.
type PostgresStore struct {
	*queries
	pool *pgxpool.Pool
}

// New connects to the database at databaseURL and runs migrations.
func New(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := runMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{queries: &queries{db: pool}, pool: pool}, nil
}

// Close closes every pooled connection.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// RunInTx runs fn inside a transaction, committing only if fn succeeds.
func (s *PostgresStore) RunInTx(ctx context.Context, fn func(q storage.Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&queries{db: tx}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// classify maps constraint violations onto storage errors. Other errors
// are wrapped with op.
func classify(err error, op, subject string) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgerrcode.UniqueViolation:
			return fmt.Errorf("%s: %w", subject, storage.ErrConflict)
		case pgerrcode.ForeignKeyViolation:
			return fmt.Errorf("%s references a missing row: %w", subject, storage.ErrNotFound)
		}
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// notFound wraps pgx.ErrNoRows as storage.ErrNotFound.
func notFound(err error, op, kind, id string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return fmt.Errorf("failed to %s: %w", op, err)
}

// expectAffected turns a zero-row update or delete into ErrNotFound.
func expectAffected(tag pgconn.CommandTag, kind, id string) error {
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, storage.ErrNotFound)
	}
	return nil
}

// money parses NUMERIC columns selected as ::text.
type money struct {
	dst *decimal.Decimal
	raw string
}

func (m *money) parse() error {
	d, err := decimal.NewFromString(m.raw)
	if err != nil {
		return fmt.Errorf("invalid numeric %q: %w", m.raw, err)
	}
	*m.dst = d
	return nil
}

func parseMoney(fields ...*money) error {
	for _, f := range fields {
		if err := f.parse(); err != nil {
			return err
		}
	}
	return nil
}
