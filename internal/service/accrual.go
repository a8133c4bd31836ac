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
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	OutcomePosted  = "posted"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Rates are the fractions applied to a booking's price at accrual time.
type Rates struct {
	Commission  decimal.Decimal
	Cashback    decimal.Decimal
	VendorShare decimal.Decimal
}

func DefaultRates() Rates {
	return Rates{
		Commission:  decimal.RequireFromString("0.05"),
		Cashback:    decimal.RequireFromString("0.05"),
		VendorShare: decimal.RequireFromString("0.85"),
	}
}

// AccrualRequest identifies the completed booking.
type AccrualRequest struct {
	Category  string
	BookingID uuid.UUID
}

// Posting is the outcome of one credit attempted during accrual or reversal.
type Posting struct {
	Subtype   string    `json:"subtype"`
	AccountID uuid.UUID `json:"account_id"`
	Amount    int64     `json:"amount"`
	Outcome   string    `json:"outcome"`
	Detail    string    `json:"detail,omitempty"`
}

type AccrualResult struct {
	BookingID uuid.UUID `json:"booking_id"`
	Category  string    `json:"category"`
	Postings  []Posting `json:"postings"`
}

// Failed reports whether any posting failed and needs reconciliation.
func (r *AccrualResult) Failed() bool {
	for _, p := range r.Postings {
		if p.Outcome == OutcomeFailed {
			return true
		}
	}
	return false
}

// AccrualService posts referral commission, buyer cashback and vendor share
// credits when a booking completes.
type AccrualService struct {
	ledger   *LedgerService
	bookings *booking.Registry
	accounts AccountStore
	balances *BalanceService
	rates    Rates
}

func NewAccrualService(ledger *LedgerService, bookings *booking.Registry, accounts AccountStore, balances *BalanceService, rates Rates) *AccrualService {
	return &AccrualService{
		ledger:   ledger,
		bookings: bookings,
		accounts: accounts,
		balances: balances,
		rates:    rates,
	}
}

// Accrue posts the three credits independently. A failed posting does not
// undo the others; it is reported in the result and logged.
func (s *AccrualService) Accrue(ctx context.Context, req AccrualRequest) (*AccrualResult, error) {
	const op = "accrue"
	if req.BookingID == uuid.Nil {
		return nil, validationError(op, "booking id is required")
	}
	store, err := s.bookings.Store(req.Category)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Op: op, Msg: "unknown category", Err: err}
	}
	b, err := store.Get(ctx, req.BookingID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, notFoundError(op, "booking not found", err)
		}
		return nil, fmt.Errorf("load booking %s: %w", req.BookingID, err)
	}
	if b.Status == domain.BookingStatusCancelled {
		return nil, validationError(op, "booking is cancelled")
	}

	category := store.Category()
	result := &AccrualResult{BookingID: b.ID, Category: category.Name}
	touched := map[uuid.UUID]struct{}{}

	for _, p := range []Posting{
		s.postReferral(ctx, category, b),
		s.postCashback(ctx, category, b),
		s.postVendorShare(ctx, category, b),
	} {
		observability.IncrementAccrual(p.Subtype, p.Outcome)
		if p.Outcome == OutcomeFailed {
			zap.L().Error("accrual posting failed",
				zap.String("booking_id", b.ID.String()),
				zap.String("category", category.Name),
				zap.String("subtype", p.Subtype),
				zap.String("account_id", p.AccountID.String()),
				zap.String("detail", p.Detail),
			)
		}
		if p.Outcome == OutcomePosted {
			touched[p.AccountID] = struct{}{}
		}
		result.Postings = append(result.Postings, p)
	}

	for id := range touched {
		if _, err := s.balances.Rebuild(ctx, id); err != nil {
			zap.L().Error("projection rebuild after accrual failed", zap.Error(err), zap.String("account_id", id.String()))
		}
	}
	return result, nil
}

func (s *AccrualService) postReferral(ctx context.Context, c booking.Category, b *models.Booking) Posting {
	p := Posting{Subtype: domain.SubtypeReferralCommission}
	if b.ReferrerID == nil {
		p.Outcome, p.Detail = OutcomeSkipped, "no referrer"
		return p
	}
	p.AccountID = *b.ReferrerID
	email := c.PrimaryEmail(b)
	if email == "" {
		p.Outcome, p.Detail = OutcomeSkipped, "no buyer email"
		return p
	}
	p.Amount = domain.NewMoney(b.CommissionBase(), b.Currency).ApplyRate(s.rates.Commission).Amount
	if p.Amount <= 0 {
		p.Outcome, p.Detail = OutcomeSkipped, "zero amount"
		return p
	}

	claimed, err := s.accounts.ClaimReferral(ctx, p.AccountID, email)
	if err != nil {
		p.Outcome, p.Detail = OutcomeFailed, err.Error()
		return p
	}
	if !claimed {
		p.Outcome, p.Detail = OutcomeSkipped, "buyer already commissioned for referrer"
		return p
	}

	s.post(ctx, &p, c, b, domain.AccountTypeUser, domain.SourceBooking, domain.ReasonBooking)
	if p.Outcome == OutcomeFailed {
		if err := s.accounts.ReleaseReferral(ctx, p.AccountID, email); err != nil {
			zap.L().Error("release referral claim failed", zap.Error(err), zap.String("referrer_id", p.AccountID.String()))
		}
	}
	return p
}

func (s *AccrualService) postCashback(ctx context.Context, c booking.Category, b *models.Booking) Posting {
	p := Posting{Subtype: domain.SubtypeCashback}
	if b.BuyerID == nil {
		p.Outcome, p.Detail = OutcomeSkipped, "guest buyer"
		return p
	}
	p.AccountID = *b.BuyerID
	base := b.Price
	if base == 0 {
		base = b.ShareBase()
	}
	p.Amount = domain.NewMoney(base, b.Currency).ApplyRate(s.rates.Cashback).Amount
	s.post(ctx, &p, c, b, domain.AccountTypeUser, domain.SourceTransaction, domain.ReasonTransaction)
	return p
}

func (s *AccrualService) postVendorShare(ctx context.Context, c booking.Category, b *models.Booking) Posting {
	p := Posting{Subtype: domain.SubtypeVendorShare}
	if b.VendorID == nil {
		p.Outcome, p.Detail = OutcomeSkipped, "no vendor"
		return p
	}
	p.AccountID = *b.VendorID
	p.Amount = VendorShare(b, s.rates.VendorShare)
	s.post(ctx, &p, c, b, domain.AccountTypeVendor, domain.SourceTransaction, domain.ReasonTransaction)
	return p
}

func (s *AccrualService) post(ctx context.Context, p *Posting, c booking.Category, b *models.Booking, accountType, source, reason string) {
	if p.Amount <= 0 {
		p.Outcome, p.Detail = OutcomeSkipped, "zero amount"
		return
	}
	bookingID := b.ID
	_, err := s.ledger.Append(ctx, &models.LedgerEntry{
		AccountType: accountType,
		AccountID:   p.AccountID,
		BookingID:   &bookingID,
		SourceType:  source,
		Direction:   domain.DirectionCredit,
		Amount:      p.Amount,
		Currency:    b.Currency,
		Status:      domain.EntryStatusAvailable,
		Reason:      reason,
		Meta:        models.EntryMeta{Subtype: p.Subtype, Category: c.Name},
	})
	switch {
	case err == nil:
		p.Outcome = OutcomePosted
	case errors.Is(err, ErrDuplicateEntry):
		p.Outcome, p.Detail = OutcomeSkipped, "already posted"
	default:
		p.Outcome, p.Detail = OutcomeFailed, err.Error()
	}
}

// VendorShare is the vendor's cut of a booking. Reversal uses the same
// computation for bookings that have no ledger rows.
func VendorShare(b *models.Booking, rate decimal.Decimal) int64 {
	return domain.NewMoney(b.ShareBase(), b.Currency).ApplyRate(rate).Amount
}
