// Package store holds the sqlx repositories backing charges, fan relationships,
// profile views and the creator catalog.
//
// Queries are written with '?' placeholders and passed through Rebind, so the
// same code runs against Postgres (pgx) and SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("store: not found")

type queries struct {
	ext sqlx.ExtContext
}

func (q queries) get(ctx context.Context, dest any, query string, args ...any) error {
	err := sqlx.GetContext(ctx, q.ext, dest, q.ext.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func (q queries) selectAll(ctx context.Context, dest any, query string, args ...any) error {
	return sqlx.SelectContext(ctx, q.ext, dest, q.ext.Rebind(query), args...)
}

func (q queries) exec(ctx context.Context, query string, args ...any) (int64, error) {
	res, err := q.ext.ExecContext(ctx, q.ext.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Store runs queries directly against the pool.
type Store struct {
	queries
	db *sqlx.DB
}

// Tx runs the same queries inside one database transaction.
type Tx struct {
	queries
	tx *sqlx.Tx
}

func New(db *sqlx.DB) *Store {
	return &Store{queries: queries{ext: db}, db: db}
}

// DB exposes the underlying pool.
func (s *Store) DB() *sqlx.DB {
	return s.db
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// InTx calls fn inside a transaction, committing when fn returns nil.
func (s *Store) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	// Ensure the transaction is rolled back on error
	defer tx.Rollback()

	if err := fn(&Tx{queries: queries{ext: tx}, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
