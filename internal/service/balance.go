package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ayo6706/booking-ledger/internal/domain"
	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
)

// Balance is an account's position derived from its ledger entries.
type Balance struct {
	AccountID      uuid.UUID `json:"account_id"`
	TotalEarned    int64     `json:"total_earned"`
	CurrentBalance int64     `json:"current_balance"`
	MonthlyEarned  int64     `json:"monthly_earned"`
}

// BalanceService folds ledger entries into balances and keeps the cached
// account projection in step with the fold.
type BalanceService struct {
	ledger   LedgerStore
	accounts AccountStore
	now      func() time.Time
}

func NewBalanceService(ledger LedgerStore, accounts AccountStore) *BalanceService {
	return &BalanceService{ledger: ledger, accounts: accounts, now: time.Now}
}

// BalanceOf computes the balance of accountID from the ledger alone.
func (s *BalanceService) BalanceOf(ctx context.Context, accountID uuid.UUID) (Balance, error) {
	entries, err := s.entries(ctx, accountID)
	if err != nil {
		return Balance{}, err
	}
	b := Fold(entries, s.now())
	b.AccountID = accountID
	return b, nil
}

// Rebuild recomputes the account's payout status and earnings mirror from
// the ledger and stores them. It is the only writer of those fields.
func (s *BalanceService) Rebuild(ctx context.Context, accountID uuid.UUID) (Balance, error) {
	now := s.now()
	var b Balance
	err := s.accounts.RebuildProjection(ctx, accountID, func(acc *models.Account, entries []models.LedgerEntry) (models.PayoutStatus, []models.Earning) {
		b = Fold(entries, now)
		b.AccountID = accountID
		return models.PayoutStatus{
			TotalEarned:    b.TotalEarned,
			CurrentBalance: b.CurrentBalance,
			MonthlyEarned:  b.MonthlyEarned,
			LastPayoutDate: acc.PayoutStatus.LastPayoutDate,
		}, Earnings(entries)
	})
	if errors.Is(err, models.ErrNotFound) {
		return Balance{}, notFoundError("rebuild projection", "account not found", err)
	}
	if err != nil {
		return Balance{}, fmt.Errorf("rebuild projection for %s: %w", accountID, err)
	}
	return b, nil
}

func (s *BalanceService) entries(ctx context.Context, accountID uuid.UUID) ([]models.LedgerEntry, error) {
	id := accountID
	entries, err := s.ledger.Query(ctx, models.EntryFilter{AccountID: &id})
	if err != nil {
		return nil, fmt.Errorf("load entries for %s: %w", accountID, err)
	}
	return entries, nil
}

// Fold reduces entries to a Balance. Entries flagged as reversed are still
// counted; their compensating debit is what nets them out.
func Fold(entries []models.LedgerEntry, now time.Time) Balance {
	var b Balance
	now = now.UTC()
	for _, e := range entries {
		thisMonth := e.CreatedAt.UTC().Year() == now.Year() && e.CreatedAt.UTC().Month() == now.Month()
		switch e.Direction {
		case domain.DirectionCredit:
			b.CurrentBalance += e.Amount
			b.TotalEarned += e.Amount
			if thisMonth {
				b.MonthlyEarned += e.Amount
			}
		case domain.DirectionDebit:
			b.CurrentBalance -= e.Amount
			if domain.IsReversalSubtype(e.Meta.Subtype) {
				b.TotalEarned -= e.Amount
				if thisMonth {
					b.MonthlyEarned -= e.Amount
				}
			}
		}
	}
	return b
}

// Earnings projects ledger entries onto the account's earnings history.
func Earnings(entries []models.LedgerEntry) []models.Earning {
	out := make([]models.Earning, 0, len(entries))
	for _, e := range entries {
		earning := models.Earning{
			EntryID:   e.ID,
			AccountID: e.AccountID,
			Amount:    e.Amount,
			Direction: e.Direction,
			Subtype:   e.Meta.Subtype,
			Reversed:  e.Meta.Reversed,
			CreatedAt: e.CreatedAt,
		}
		if e.BookingID != nil {
			earning.BookingID = *e.BookingID
		}
		out = append(out, earning)
	}
	return out
}
