package repository

import (
	"context"

	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
)

// LedgerRepository is the Postgres ledger. Uniqueness of
// (account, booking, subtype) is enforced by a partial unique index, so
// Append is a single conflict-aware insert.
type LedgerRepository struct {
	q *Queries
}

func NewLedgerRepository(db DBTX) *LedgerRepository {
	return &LedgerRepository{q: New(db)}
}

func (r *LedgerRepository) Append(ctx context.Context, entry *models.LedgerEntry) (bool, error) {
	return r.q.InsertLedgerEntry(ctx, entry)
}

func (r *LedgerRepository) Query(ctx context.Context, filter models.EntryFilter) ([]models.LedgerEntry, error) {
	return r.q.ListLedgerEntries(ctx, filter)
}

func (r *LedgerRepository) ExistsReversal(ctx context.Context, accountID, bookingID uuid.UUID, subtype string) (bool, error) {
	return r.q.LedgerEntryExists(ctx, accountID, bookingID, subtype)
}

func (r *LedgerRepository) MarkReversed(ctx context.Context, ids []uuid.UUID) error {
	return r.q.MarkLedgerEntriesReversed(ctx, ids)
}
