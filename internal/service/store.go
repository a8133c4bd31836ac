package service

import (
	"context"

	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
)

// LedgerStore is the append-only ledger. Append must check the
// (account, booking, subtype) uniqueness and insert in one atomic step and
// report inserted=false when an entry with that key already exists.
type LedgerStore interface {
	Append(ctx context.Context, entry *models.LedgerEntry) (inserted bool, err error)
	Query(ctx context.Context, filter models.EntryFilter) ([]models.LedgerEntry, error)
	ExistsReversal(ctx context.Context, accountID, bookingID uuid.UUID, subtype string) (bool, error)
	MarkReversed(ctx context.Context, ids []uuid.UUID) error
}

// AccountStore holds accounts, their ledger projections and the referral
// guard set.
type AccountStore interface {
	GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error)
	ListAccountIDs(ctx context.Context, limit, offset int) ([]uuid.UUID, error)
	// ClaimReferral atomically adds buyerEmail to the referrer's
	// already-commissioned set, reporting false if it was already present.
	ClaimReferral(ctx context.Context, referrerID uuid.UUID, buyerEmail string) (bool, error)
	ReleaseReferral(ctx context.Context, referrerID uuid.UUID, buyerEmail string) error
	// RebuildProjection reads the account's ledger and stores what fn
	// derives from it as one step. Rebuilds of the same account must not
	// interleave, so the last one to finish always folded the newest ledger.
	RebuildProjection(ctx context.Context, accountID uuid.UUID, fn models.ProjectionFunc) error
}

// AuditStore persists immutable state-change records.
type AuditStore interface {
	WriteAudit(ctx context.Context, rec models.AuditRecord) error
}
