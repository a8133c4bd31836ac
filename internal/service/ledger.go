package service

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/booking-ledger/internal/domain"
	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
)

// LedgerService enforces the entry contract in front of a LedgerStore.
type LedgerService struct {
	store LedgerStore
	now   func() time.Time
}

func NewLedgerService(store LedgerStore) *LedgerService {
	return &LedgerService{store: store, now: time.Now}
}

// Append validates and stores entry. When the (account, booking, subtype)
// key already exists it returns ErrDuplicateEntry; the check is done by the
// store in the same operation as the insert.
func (s *LedgerService) Append(ctx context.Context, entry *models.LedgerEntry) (*models.LedgerEntry, error) {
	if err := validateEntry(entry); err != nil {
		return nil, err
	}
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Currency == "" {
		entry.Currency = domain.DefaultCurrency
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = s.now().UTC()
	}

	inserted, err := s.store.Append(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("append ledger entry: %w", err)
	}
	if !inserted {
		return nil, ErrDuplicateEntry
	}
	return entry, nil
}

// Query returns entries matching filter.
func (s *LedgerService) Query(ctx context.Context, filter models.EntryFilter) ([]models.LedgerEntry, error) {
	entries, err := s.store.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query ledger: %w", err)
	}
	return entries, nil
}

// ExistsReversal is a read-only convenience. Callers must still rely on
// Append's duplicate detection for idempotency.
func (s *LedgerService) ExistsReversal(ctx context.Context, accountID, bookingID uuid.UUID, subtype string) (bool, error) {
	return s.store.ExistsReversal(ctx, accountID, bookingID, subtype)
}

// MarkReversed sets the display flag on original entries.
func (s *LedgerService) MarkReversed(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	return s.store.MarkReversed(ctx, ids)
}

func validateEntry(e *models.LedgerEntry) error {
	const op = "ledger append"
	if e == nil {
		return validationError(op, "entry is required")
	}
	if e.Amount < 0 {
		return validationError(op, "amount must not be negative")
	}
	if e.AccountID == uuid.Nil {
		return validationError(op, "account_id is required")
	}
	switch e.AccountType {
	case domain.AccountTypeUser, domain.AccountTypeVendor, domain.AccountTypeAdmin:
	default:
		return validationError(op, fmt.Sprintf("invalid account_type %q", e.AccountType))
	}
	switch e.Direction {
	case domain.DirectionCredit, domain.DirectionDebit:
	default:
		return validationError(op, fmt.Sprintf("invalid direction %q", e.Direction))
	}
	switch e.SourceType {
	case domain.SourceBooking, domain.SourceAdjustment:
		if e.BookingID == nil || *e.BookingID == uuid.Nil {
			return validationError(op, e.SourceType+" entries require booking_id")
		}
	case domain.SourceTransaction:
	default:
		return validationError(op, fmt.Sprintf("invalid source_type %q", e.SourceType))
	}
	if domain.IsReversalSubtype(e.Meta.Subtype) && (e.BookingID == nil || e.Direction != domain.DirectionDebit) {
		return validationError(op, "reversal entries must be debits referencing a booking")
	}
	return nil
}
