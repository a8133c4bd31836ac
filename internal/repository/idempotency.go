package repository

import (
	"context"

	"github.com/ayo6706/booking-ledger/internal/models"
)

// IdempotencyRepository is the durable record behind the idempotency cache.
type IdempotencyRepository struct {
	q *Queries
}

func NewIdempotencyRepository(db DBTX) *IdempotencyRepository {
	return &IdempotencyRepository{q: New(db)}
}

func (r *IdempotencyRepository) Get(ctx context.Context, key string) (*models.IdempotencyRecord, error) {
	return r.q.GetIdempotencyKey(ctx, key)
}

func (r *IdempotencyRepository) Reserve(ctx context.Context, key, requestHash, method, path string) (bool, error) {
	return r.q.ReserveIdempotencyKey(ctx, key, requestHash, method, path)
}

func (r *IdempotencyRepository) Finalize(ctx context.Context, key, requestHash string, status int, body []byte, contentType string) (*models.IdempotencyRecord, error) {
	return r.q.FinalizeIdempotencyKey(ctx, key, requestHash, status, body, contentType)
}

func (r *IdempotencyRepository) Release(ctx context.Context, key string) error {
	return r.q.DeleteIdempotencyKey(ctx, key)
}
