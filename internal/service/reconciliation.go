package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/booking-ledger/internal/booking"
	"github.com/ayo6706/booking-ledger/internal/domain"
	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/ayo6706/booking-ledger/internal/observability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const reconciliationPageSize = 200

// ReconciliationReport summarises one projection check.
type ReconciliationReport struct {
	Checked int `json:"checked"`
	Drifted int `json:"drifted"`
	Rebuilt int `json:"rebuilt"`
	Failed  int `json:"failed"`
	// ReversalsRepaired counts cancelled bookings whose missing compensating
	// debits were posted by this run.
	ReversalsRepaired int `json:"reversals_repaired"`
}

// ReconciliationService compares every account's cached payout status with
// its ledger fold and rebuilds projections that drifted.
type ReconciliationService struct {
	accounts  AccountStore
	balances  *BalanceService
	ledger    *LedgerService
	bookings  *booking.Registry
	reversals *ReversalService
	pageSize  int
}

// NewReconciliationService creates a reconciliation service.
func NewReconciliationService(accounts AccountStore, balances *BalanceService) *ReconciliationService {
	return &ReconciliationService{accounts: accounts, balances: balances, pageSize: reconciliationPageSize}
}

// WithReversalRepair makes Run first re-run reversal for cancelled bookings
// that still carry unreversed credits. That is the state left behind when
// the cancellation committed but its reversal failed part way.
func (s *ReconciliationService) WithReversalRepair(ledger *LedgerService, bookings *booking.Registry, reversals *ReversalService) *ReconciliationService {
	s.ledger, s.bookings, s.reversals = ledger, bookings, reversals
	return s
}

// Run walks all accounts. Per-account failures are counted and logged; only
// a failure to list accounts or ledger entries aborts the run.
func (s *ReconciliationService) Run(ctx context.Context) (ReconciliationReport, error) {
	var report ReconciliationReport
	if s.reversals != nil {
		if err := s.repairReversals(ctx, &report); err != nil {
			return report, err
		}
	}
	for offset := 0; ; offset += s.pageSize {
		ids, err := s.accounts.ListAccountIDs(ctx, s.pageSize, offset)
		if err != nil {
			return report, fmt.Errorf("list accounts: %w", err)
		}
		for _, id := range ids {
			if err := ctx.Err(); err != nil {
				return report, err
			}
			report.Checked++

			account, err := s.accounts.GetAccount(ctx, id)
			if err != nil {
				report.Failed++
				zap.L().Error("reconciliation: load account failed", zap.Error(err), zap.String("account_id", id.String()))
				continue
			}
			fold, err := s.balances.BalanceOf(ctx, id)
			if err != nil {
				report.Failed++
				zap.L().Error("reconciliation: fold ledger failed", zap.Error(err), zap.String("account_id", id.String()))
				continue
			}
			cached := account.PayoutStatus
			if cached.CurrentBalance == fold.CurrentBalance && cached.TotalEarned == fold.TotalEarned {
				continue
			}

			report.Drifted++
			observability.IncrementProjectionDrift(account.AccountType)
			zap.L().Error("projection drift detected",
				zap.String("account_id", id.String()),
				zap.Int64("cached_current_balance", cached.CurrentBalance),
				zap.Int64("ledger_current_balance", fold.CurrentBalance),
				zap.Int64("cached_total_earned", cached.TotalEarned),
				zap.Int64("ledger_total_earned", fold.TotalEarned),
			)
			if _, err := s.balances.Rebuild(ctx, id); err != nil {
				report.Failed++
				zap.L().Error("reconciliation: rebuild failed", zap.Error(err), zap.String("account_id", id.String()))
				continue
			}
			report.Rebuilt++
		}
		if len(ids) < s.pageSize {
			break
		}
	}

	if report.Drifted == 0 {
		zap.L().Info("projections match ledger", zap.Int("checked", report.Checked))
	}
	return report, nil
}

// repairReversals collects the bookings behind every unreversed credit and
// reverses those whose booking is cancelled. Reverse is idempotent per
// group, so bookings it already fully compensated only get their originals
// flagged.
func (s *ReconciliationService) repairReversals(ctx context.Context, report *ReconciliationReport) error {
	categories := map[uuid.UUID]string{}
	var order []uuid.UUID
	for offset := 0; ; offset += s.pageSize {
		entries, err := s.ledger.Query(ctx, models.EntryFilter{
			Direction:  domain.DirectionCredit,
			Unreversed: true,
			Limit:      s.pageSize,
			Offset:     offset,
		})
		if err != nil {
			return fmt.Errorf("list unreversed credits: %w", err)
		}
		for _, e := range entries {
			if e.BookingID == nil {
				continue
			}
			cat, seen := categories[*e.BookingID]
			if !seen {
				order = append(order, *e.BookingID)
			}
			if cat == "" {
				categories[*e.BookingID] = e.Meta.Category
			}
		}
		if len(entries) < s.pageSize {
			break
		}
	}

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return err
		}
		b, err := s.findBooking(ctx, id, categories[id])
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			report.Failed++
			zap.L().Error("reversal repair: load booking failed", zap.Error(err), zap.String("booking_id", id.String()))
			continue
		}
		if b.Status != domain.BookingStatusCancelled {
			continue
		}

		rev, err := s.reversals.Reverse(ctx, id, b.Category)
		if err != nil {
			report.Failed++
			zap.L().Error("reversal repair failed", zap.Error(err), zap.String("booking_id", id.String()))
			continue
		}
		posted, failed := false, false
		for _, p := range rev.Postings {
			posted = posted || p.Outcome == OutcomePosted
			failed = failed || p.Outcome == OutcomeFailed
		}
		if failed {
			report.Failed++
		}
		if posted {
			report.ReversalsRepaired++
			zap.L().Warn("reversal repaired for cancelled booking",
				zap.String("booking_id", id.String()),
				zap.String("category", b.Category),
			)
		}
	}
	return nil
}

// findBooking looks the booking up in its recorded category, or in every
// store in priority order for credits written before categories were kept.
func (s *ReconciliationService) findBooking(ctx context.Context, id uuid.UUID, category string) (*models.Booking, error) {
	if category != "" {
		store, err := s.bookings.Store(category)
		if err != nil {
			return nil, err
		}
		b, err := store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		b.Category = store.Category().Name
		return b, nil
	}
	for _, store := range s.bookings.Ordered() {
		b, err := store.Get(ctx, id)
		if errors.Is(err, models.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		b.Category = store.Category().Name
		return b, nil
	}
	return nil, models.ErrNotFound
}
