package service

import (
	"context"
	"testing"

	"github.com/ayo6706/booking-ledger/internal/booking"
	"github.com/ayo6706/booking-ledger/internal/domain"
	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func postingFor(t *testing.T, r *AccrualResult, subtype string) Posting {
	t.Helper()
	for _, p := range r.Postings {
		if p.Subtype == subtype {
			return p
		}
	}
	t.Fatalf("no posting for %s", subtype)
	return Posting{}
}

func TestAccrue_ShortletVendorShare(t *testing.T) {
	h := newHarness(t)
	vendor := h.account(domain.AccountTypeVendor)
	b := h.booking(bookingSpec{
		category:  booking.Shortlet,
		price:     20000,
		totalCost: booking.ShortletTotal(20000, true, 5000),
		reference: "SL-100200300",
		email:     "guest@example.com",
		vendor:    &vendor,
	})

	res, err := h.accrual.Accrue(context.Background(), AccrualRequest{Category: booking.Shortlet, BookingID: b.ID})
	require.NoError(t, err)
	assert.False(t, res.Failed())

	p := postingFor(t, res, domain.SubtypeVendorShare)
	assert.Equal(t, OutcomePosted, p.Outcome)
	assert.Equal(t, int64(21250), p.Amount)

	entries := h.forBooking(t, b.ID)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.DirectionCredit, entries[0].Direction)
	assert.Equal(t, domain.SourceTransaction, entries[0].SourceType)
	assert.Equal(t, domain.ReasonTransaction, entries[0].Reason)
	assert.Equal(t, booking.Shortlet, entries[0].Meta.Category)
	h.requireProjectionMatchesFold(t, vendor)
}

func TestAccrue_ReferralCommission(t *testing.T) {
	h := newHarness(t)
	referrer := h.account(domain.AccountTypeUser)
	b := h.booking(bookingSpec{
		category:  booking.Hotel,
		price:     100000,
		reference: "HP-1",
		email:     "Buyer@Example.com",
		referrer:  &referrer,
	})

	res, err := h.accrual.Accrue(context.Background(), AccrualRequest{Category: booking.Hotel, BookingID: b.ID})
	require.NoError(t, err)

	p := postingFor(t, res, domain.SubtypeReferralCommission)
	assert.Equal(t, OutcomePosted, p.Outcome)
	assert.Equal(t, int64(5000), p.Amount)

	entries := h.entries(t, models.EntryFilter{AccountID: &referrer})
	require.Len(t, entries, 1)
	assert.Equal(t, domain.SourceBooking, entries[0].SourceType)
	assert.Equal(t, domain.ReasonBooking, entries[0].Reason)
	h.requireProjectionMatchesFold(t, referrer)
}

func TestAccrue_SingleCommissionPerBuyerEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	referrer := h.account(domain.AccountTypeUser)

	emails := []string{"Buyer@Example.com", " buyer@example.com", "BUYER@EXAMPLE.COM"}
	categories := []string{booking.Hotel, booking.Tour, booking.Chops}
	for i, email := range emails {
		b := h.booking(bookingSpec{
			category:  categories[i],
			price:     100000,
			reference: uuid.NewString(),
			email:     email,
			referrer:  &referrer,
		})
		res, err := h.accrual.Accrue(ctx, AccrualRequest{Category: categories[i], BookingID: b.ID})
		require.NoError(t, err)
		p := postingFor(t, res, domain.SubtypeReferralCommission)
		if i == 0 {
			assert.Equal(t, OutcomePosted, p.Outcome)
		} else {
			assert.Equal(t, OutcomeSkipped, p.Outcome)
		}
	}

	entries := h.entries(t, models.EntryFilter{AccountID: &referrer})
	assert.Equal(t, 1, countSubtype(entries, domain.SubtypeReferralCommission))

	other := h.booking(bookingSpec{category: booking.Gifts, price: 100000, reference: "G-1", email: "someone@else.com", referrer: &referrer})
	_, err := h.accrual.Accrue(ctx, AccrualRequest{Category: booking.Gifts, BookingID: other.ID})
	require.NoError(t, err)
	entries = h.entries(t, models.EntryFilter{AccountID: &referrer})
	assert.Equal(t, 2, countSubtype(entries, domain.SubtypeReferralCommission))
	h.requireProjectionMatchesFold(t, referrer)
}

func TestAccrue_IsIdempotentPerBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	vendor, buyer := h.account(domain.AccountTypeVendor), h.account(domain.AccountTypeUser)
	b := h.booking(bookingSpec{category: booking.Event, price: 40000, reference: "EV-1", email: "b@x.com", vendor: &vendor, buyer: &buyer})

	_, err := h.accrual.Accrue(ctx, AccrualRequest{Category: booking.Event, BookingID: b.ID})
	require.NoError(t, err)
	res, err := h.accrual.Accrue(ctx, AccrualRequest{Category: booking.Event, BookingID: b.ID})
	require.NoError(t, err)

	for _, p := range res.Postings {
		assert.NotEqual(t, OutcomePosted, p.Outcome, p.Subtype)
	}
	entries := h.forBooking(t, b.ID)
	assert.Len(t, entries, 2)
	assert.Equal(t, int64(2000), sumFor(entries, buyer))
	assert.Equal(t, int64(34000), sumFor(entries, vendor))
	h.requireProjectionMatchesFold(t, vendor, buyer)
}

func TestAccrue_FailedPostingDoesNotBlockOthers(t *testing.T) {
	h := newHarness(t)
	referrer := h.account(domain.AccountTypeUser)
	buyer := h.account(domain.AccountTypeUser)
	vendor := h.account(domain.AccountTypeVendor)
	b := h.booking(bookingSpec{category: booking.Restaurant, price: 10000, reference: "R-1", email: "b@x.com", vendor: &vendor, referrer: &referrer, buyer: &buyer})

	h.ledgerDB.failSubtype = domain.SubtypeCashback
	res, err := h.accrual.Accrue(context.Background(), AccrualRequest{Category: booking.Restaurant, BookingID: b.ID})
	require.NoError(t, err)

	assert.True(t, res.Failed())
	assert.Equal(t, OutcomePosted, postingFor(t, res, domain.SubtypeReferralCommission).Outcome)
	assert.Equal(t, OutcomeFailed, postingFor(t, res, domain.SubtypeCashback).Outcome)
	assert.Equal(t, OutcomePosted, postingFor(t, res, domain.SubtypeVendorShare).Outcome)
	h.requireProjectionMatchesFold(t, referrer, buyer, vendor)
}

func TestAccrue_FailedReferralReleasesClaim(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	referrer := h.account(domain.AccountTypeUser)
	first := h.booking(bookingSpec{category: booking.Hotel, price: 100000, reference: "H-1", email: "b@x.com", referrer: &referrer})
	second := h.booking(bookingSpec{category: booking.Hotel, price: 100000, reference: "H-2", email: "b@x.com", referrer: &referrer})

	h.ledgerDB.failSubtype = domain.SubtypeReferralCommission
	res, err := h.accrual.Accrue(ctx, AccrualRequest{Category: booking.Hotel, BookingID: first.ID})
	require.NoError(t, err)
	assert.Equal(t, OutcomeFailed, postingFor(t, res, domain.SubtypeReferralCommission).Outcome)

	h.ledgerDB.failSubtype = ""
	res, err = h.accrual.Accrue(ctx, AccrualRequest{Category: booking.Hotel, BookingID: second.ID})
	require.NoError(t, err)
	assert.Equal(t, OutcomePosted, postingFor(t, res, domain.SubtypeReferralCommission).Outcome)
}

func TestAccrue_SkipsMissingParties(t *testing.T) {
	h := newHarness(t)
	b := h.booking(bookingSpec{category: booking.Tour, price: 5000, reference: "T-1", email: "g@x.com"})

	res, err := h.accrual.Accrue(context.Background(), AccrualRequest{Category: booking.Tour, BookingID: b.ID})
	require.NoError(t, err)
	for _, p := range res.Postings {
		assert.Equal(t, OutcomeSkipped, p.Outcome, p.Subtype)
	}
	assert.Empty(t, h.forBooking(t, b.ID))
}

func TestAccrue_RejectsBadRequests(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.accrual.Accrue(ctx, AccrualRequest{Category: "spa", BookingID: uuid.New()})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.accrual.Accrue(ctx, AccrualRequest{Category: booking.Hotel})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.accrual.Accrue(ctx, AccrualRequest{Category: booking.Hotel, BookingID: uuid.New()})
	assert.ErrorIs(t, err, ErrNotFound)

	b := h.booking(bookingSpec{category: booking.Hotel, price: 100, reference: "X", email: "x@x.com"})
	h.stores[booking.Hotel].Update(b.ID, func(b *models.Booking) { b.Status = domain.BookingStatusCancelled })
	_, err = h.accrual.Accrue(ctx, AccrualRequest{Category: booking.Hotel, BookingID: b.ID})
	assert.ErrorIs(t, err, ErrValidation)
}
