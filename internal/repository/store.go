package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// maxTxAttempts bounds retries of transactions aborted by a serialization
// conflict.
const maxTxAttempts = 3

// TxBeginner is satisfied by *pgxpool.Pool and *pgx.Conn.
type TxBeginner interface {
	DBTX
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// Store provides access to the query set and transaction scoping.
type Store struct {
	db      TxBeginner
	queries *Queries
}

// NewStore creates a store wrapper around a pool or single connection.
func NewStore(db TxBeginner) *Store {
	return &Store{
		db:      db,
		queries: New(db),
	}
}

// Queries returns the non-transactional query set.
func (s *Store) Queries() *Queries {
	return s.queries
}

// RunInTx executes fn within a read-committed transaction.
func (s *Store) RunInTx(ctx context.Context, fn func(q *Queries) error) error {
	return s.RunInTxWith(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// RunInTxWith executes fn within a transaction using opts. Serialization
// failures restart fn from scratch, so fn must not keep state across calls.
func (s *Store) RunInTxWith(ctx context.Context, opts pgx.TxOptions, fn func(q *Queries) error) error {
	var err error
	for attempt := 1; attempt <= maxTxAttempts; attempt++ {
		err = s.runOnce(ctx, opts, fn)
		if !isSerializationFailure(err) {
			return err
		}
	}
	return fmt.Errorf("transaction retries exhausted: %w", err)
}

func (s *Store) runOnce(ctx context.Context, opts pgx.TxOptions, fn func(q *Queries) error) error {
	tx, err := s.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(s.queries.WithTx(tx)); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func isSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01")
}
