package service

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/ayo6706/booking-ledger/internal/booking"
	"github.com/ayo6706/booking-ledger/internal/domain"
	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/ayo6706/booking-ledger/internal/observability"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type ReversalReport struct {
	BookingID uuid.UUID `json:"booking_id"`
	Category  string    `json:"category"`
	Postings  []Posting `json:"postings"`
}

// ReversalService posts compensating debits for every credit accrued on a
// cancelled booking. Each compensation is keyed by (account, booking,
// subtype) so re-running it is a no-op.
type ReversalService struct {
	ledger   *LedgerService
	bookings *booking.Registry
	balances *BalanceService
	rates    Rates
}

func NewReversalService(ledger *LedgerService, bookings *booking.Registry, balances *BalanceService, rates Rates) *ReversalService {
	return &ReversalService{
		ledger:   ledger,
		bookings: bookings,
		balances: balances,
		rates:    rates,
	}
}

type reversalGroup struct {
	accountID   uuid.UUID
	accountType string
	origin      string
	net         int64
	currency    string
	originals   []uuid.UUID
	reversed    bool
}

type groupKey struct {
	accountID uuid.UUID
	origin    string
}

// Reverse compensates the booking's accruals. It only returns an error when
// the booking's ledger rows cannot be read; per-account failures are logged
// and reported in the result.
func (s *ReversalService) Reverse(ctx context.Context, bookingID uuid.UUID, category string) (*ReversalReport, error) {
	store, err := s.bookings.Store(category)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Op: "reverse", Msg: "unknown category", Err: err}
	}
	cat := store.Category()

	id := bookingID
	entries, err := s.ledger.Query(ctx, models.EntryFilter{BookingID: &id})
	if err != nil {
		return nil, fmt.Errorf("load ledger for booking %s: %w", bookingID, err)
	}

	groups := groupForReversal(entries)
	report := &ReversalReport{BookingID: bookingID, Category: cat.Name}
	touched := map[uuid.UUID]struct{}{}

	for _, g := range groups {
		p := s.reverseGroup(ctx, cat, bookingID, g)
		s.record(report, p, touched)
	}

	if len(entries) == 0 {
		if p, ok := s.reverseFallback(ctx, store, bookingID); ok {
			s.record(report, p, touched)
		}
	}

	for accountID := range touched {
		if _, err := s.balances.Rebuild(ctx, accountID); err != nil {
			zap.L().Error("projection rebuild after reversal failed", zap.Error(err), zap.String("account_id", accountID.String()))
		}
	}
	return report, nil
}

func (s *ReversalService) record(report *ReversalReport, p Posting, touched map[uuid.UUID]struct{}) {
	observability.IncrementReversal(p.Subtype, p.Outcome)
	switch p.Outcome {
	case OutcomePosted:
		touched[p.AccountID] = struct{}{}
	case OutcomeFailed:
		zap.L().Error("reversal posting failed",
			zap.String("booking_id", report.BookingID.String()),
			zap.String("category", report.Category),
			zap.String("subtype", p.Subtype),
			zap.String("account_id", p.AccountID.String()),
			zap.String("detail", p.Detail),
		)
	}
	report.Postings = append(report.Postings, p)
}

func (s *ReversalService) reverseGroup(ctx context.Context, cat booking.Category, bookingID uuid.UUID, g *reversalGroup) Posting {
	subtype, _ := domain.ReversalSubtype(g.origin)
	p := Posting{Subtype: subtype, AccountID: g.accountID, Amount: g.net}

	switch {
	case g.reversed:
		p.Outcome, p.Detail = OutcomeSkipped, "already reversed"
	case g.net <= 0:
		p.Outcome, p.Detail = OutcomeSkipped, "nothing to reverse"
	default:
		bid := bookingID
		_, err := s.ledger.Append(ctx, &models.LedgerEntry{
			AccountType: g.accountType,
			AccountID:   g.accountID,
			BookingID:   &bid,
			SourceType:  domain.SourceAdjustment,
			Direction:   domain.DirectionDebit,
			Amount:      g.net,
			Currency:    g.currency,
			Status:      domain.EntryStatusReversed,
			Reason:      domain.ReversalReason(g.origin),
			Meta:        models.EntryMeta{Subtype: subtype, Category: cat.Name},
		})
		switch {
		case err == nil:
			p.Outcome = OutcomePosted
		case errors.Is(err, ErrDuplicateEntry):
			p.Outcome, p.Detail = OutcomeSkipped, "already reversed"
		default:
			p.Outcome, p.Detail = OutcomeFailed, err.Error()
			return p
		}
	}

	if p.Outcome == OutcomePosted || p.Detail == "already reversed" {
		if err := s.ledger.MarkReversed(ctx, g.originals); err != nil {
			zap.L().Warn("flag reversed entries failed", zap.Error(err), zap.String("account_id", g.accountID.String()))
		}
	}
	return p
}

// reverseFallback handles legacy bookings that have no ledger rows: the
// vendor share is recomputed from the booking record. A second call finds
// the fallback row itself and takes the grouped path instead.
func (s *ReversalService) reverseFallback(ctx context.Context, store booking.Store, bookingID uuid.UUID) (Posting, bool) {
	b, err := store.Get(ctx, bookingID)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			zap.L().Error("load booking for fallback reversal failed", zap.Error(err), zap.String("booking_id", bookingID.String()))
		}
		return Posting{}, false
	}
	if b.VendorID == nil {
		return Posting{}, false
	}

	p := Posting{
		Subtype:   domain.SubtypeVendorShareReversal,
		AccountID: *b.VendorID,
		Amount:    VendorShare(b, s.rates.VendorShare),
	}
	if p.Amount <= 0 {
		p.Outcome, p.Detail = OutcomeSkipped, "nothing to reverse"
		return p, true
	}

	bid := bookingID
	_, err = s.ledger.Append(ctx, &models.LedgerEntry{
		AccountType: domain.AccountTypeVendor,
		AccountID:   *b.VendorID,
		BookingID:   &bid,
		SourceType:  domain.SourceAdjustment,
		Direction:   domain.DirectionDebit,
		Amount:      p.Amount,
		Currency:    b.Currency,
		Status:      domain.EntryStatusReversed,
		Reason:      domain.ReasonTransactionReversal,
		Meta:        models.EntryMeta{Subtype: domain.SubtypeVendorShareReversal, Category: store.Category().Name, Fallback: true},
	})
	switch {
	case err == nil:
		p.Outcome, p.Detail = OutcomePosted, "fallback"
	case errors.Is(err, ErrDuplicateEntry):
		p.Outcome, p.Detail = OutcomeSkipped, "already reversed"
	default:
		p.Outcome, p.Detail = OutcomeFailed, err.Error()
	}
	return p, true
}

// groupForReversal nets credits against non-reversal debits per account and
// origin subtype, and notes groups that already carry a compensating entry.
func groupForReversal(entries []models.LedgerEntry) []*reversalGroup {
	groups := map[groupKey]*reversalGroup{}
	get := func(e models.LedgerEntry, origin string) *reversalGroup {
		k := groupKey{accountID: e.AccountID, origin: origin}
		g, ok := groups[k]
		if !ok {
			g = &reversalGroup{accountID: e.AccountID, accountType: e.AccountType, origin: origin, currency: e.Currency}
			groups[k] = g
		}
		return g
	}

	for _, e := range entries {
		if domain.IsReversalSubtype(e.Meta.Subtype) {
			for _, origin := range []string{domain.SubtypeReferralCommission, domain.SubtypeCashback, domain.SubtypeVendorShare} {
				if sub, _ := domain.ReversalSubtype(origin); sub == e.Meta.Subtype {
					get(e, origin).reversed = true
				}
			}
			continue
		}
		origin := originSubtype(e)
		if origin == "" {
			continue
		}
		g := get(e, origin)
		switch e.Direction {
		case domain.DirectionCredit:
			g.net += e.Amount
			g.originals = append(g.originals, e.ID)
		case domain.DirectionDebit:
			g.net -= e.Amount
		}
	}

	out := make([]*reversalGroup, 0, len(groups))
	for _, g := range groups {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].origin != out[j].origin {
			return out[i].origin < out[j].origin
		}
		return out[i].accountID.String() < out[j].accountID.String()
	})
	return out
}

// originSubtype names the accrual an entry belongs to. Entries written
// before subtypes were recorded are classified by account type and reason,
// which also lets legacy vendor adjustments net against the share.
func originSubtype(e models.LedgerEntry) string {
	switch e.Meta.Subtype {
	case domain.SubtypeReferralCommission, domain.SubtypeCashback, domain.SubtypeVendorShare:
		return e.Meta.Subtype
	case "":
	default:
		return ""
	}
	switch {
	case e.AccountType == domain.AccountTypeVendor:
		return domain.SubtypeVendorShare
	case e.AccountType == domain.AccountTypeUser && e.Reason == domain.ReasonBooking:
		return domain.SubtypeReferralCommission
	case e.AccountType == domain.AccountTypeUser && e.Reason == domain.ReasonTransaction:
		return domain.SubtypeCashback
	default:
		return ""
	}
}
