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

func TestReverse_ReferralNetsToZero(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	referrer := h.account(domain.AccountTypeUser)
	b := h.booking(bookingSpec{category: booking.Hotel, price: 100000, reference: "HP-1", email: "b@x.com", referrer: &referrer})

	_, err := h.accrual.Accrue(ctx, AccrualRequest{Category: booking.Hotel, BookingID: b.ID})
	require.NoError(t, err)
	before, err := h.balances.BalanceOf(ctx, referrer)
	require.NoError(t, err)

	report, err := h.reversal.Reverse(ctx, b.ID, booking.Hotel)
	require.NoError(t, err)
	require.Len(t, report.Postings, 1)
	assert.Equal(t, OutcomePosted, report.Postings[0].Outcome)

	entries := h.entries(t, models.EntryFilter{AccountID: &referrer})
	require.Len(t, entries, 2)
	assert.Equal(t, int64(0), sumFor(entries, referrer))

	var debit models.LedgerEntry
	for _, e := range entries {
		if e.Direction == domain.DirectionDebit {
			debit = e
		} else {
			assert.True(t, e.Meta.Reversed, "original flagged")
		}
	}
	assert.Equal(t, int64(5000), debit.Amount)
	assert.Equal(t, domain.SourceAdjustment, debit.SourceType)
	assert.Equal(t, domain.ReasonReferralReversal, debit.Reason)
	assert.Equal(t, domain.SubtypeReferralReversal, debit.Meta.Subtype)
	assert.Equal(t, domain.EntryStatusReversed, debit.Status)

	after, err := h.balances.BalanceOf(ctx, referrer)
	require.NoError(t, err)
	assert.Equal(t, before.TotalEarned-5000, after.TotalEarned)
	assert.Equal(t, int64(0), after.CurrentBalance)
	h.requireProjectionMatchesFold(t, referrer)

	report, err = h.reversal.Reverse(ctx, b.ID, booking.Hotel)
	require.NoError(t, err)
	for _, p := range report.Postings {
		assert.Equal(t, OutcomeSkipped, p.Outcome)
	}
	assert.Len(t, h.entries(t, models.EntryFilter{AccountID: &referrer}), 2)
}

func TestReverse_AllRolesAndScenarioA(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	referrer := h.account(domain.AccountTypeUser)
	buyer := h.account(domain.AccountTypeUser)
	vendor := h.account(domain.AccountTypeVendor)
	b := h.booking(bookingSpec{
		category:  booking.Shortlet,
		price:     20000,
		totalCost: 25000,
		reference: "SL-1",
		email:     "b@x.com",
		vendor:    &vendor,
		referrer:  &referrer,
		buyer:     &buyer,
	})

	_, err := h.accrual.Accrue(ctx, AccrualRequest{Category: booking.Shortlet, BookingID: b.ID})
	require.NoError(t, err)
	_, err = h.reversal.Reverse(ctx, b.ID, booking.Shortlet)
	require.NoError(t, err)

	entries := h.forBooking(t, b.ID)
	assert.Len(t, entries, 6)
	for _, id := range []uuid.UUID{referrer, buyer, vendor} {
		assert.Equal(t, int64(0), sumFor(entries, id))
	}
	assert.Equal(t, 1, countSubtype(entries, domain.SubtypeVendorShareReversal))
	assert.Equal(t, 1, countSubtype(entries, domain.SubtypeCashbackReversal))
	assert.Equal(t, 1, countSubtype(entries, domain.SubtypeReferralReversal))

	for _, e := range entries {
		if e.Meta.Subtype == domain.SubtypeVendorShareReversal {
			assert.Equal(t, int64(21250), e.Amount)
			assert.Equal(t, vendor, e.AccountID)
			assert.Equal(t, domain.ReasonTransactionReversal, e.Reason)
		}
	}
	h.requireProjectionMatchesFold(t, referrer, buyer, vendor)
}

func TestReverse_NetsPriorDebits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	vendor := h.account(domain.AccountTypeVendor)
	b := h.booking(bookingSpec{category: booking.Event, price: 10000, reference: "E-1", email: "b@x.com", vendor: &vendor})

	_, err := h.accrual.Accrue(ctx, AccrualRequest{Category: booking.Event, BookingID: b.ID})
	require.NoError(t, err)
	_, err = h.ledger.Append(ctx, &models.LedgerEntry{
		AccountType: domain.AccountTypeVendor,
		AccountID:   vendor,
		BookingID:   ptr(b.ID),
		SourceType:  domain.SourceAdjustment,
		Direction:   domain.DirectionDebit,
		Amount:      500,
		Reason:      domain.ReasonAdjustment,
	})
	require.NoError(t, err)

	report, err := h.reversal.Reverse(ctx, b.ID, booking.Event)
	require.NoError(t, err)
	require.Len(t, report.Postings, 1)
	assert.Equal(t, int64(8000), report.Postings[0].Amount)
	assert.Equal(t, int64(0), sumFor(h.forBooking(t, b.ID), vendor))
}

func TestReverse_LegacyFallback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	vendor := h.account(domain.AccountTypeVendor)
	b := h.booking(bookingSpec{category: booking.Shortlet, price: 20000, totalCost: 25000, reference: "SL-OLD", email: "b@x.com", vendor: &vendor})

	report, err := h.reversal.Reverse(ctx, b.ID, booking.Shortlet)
	require.NoError(t, err)
	require.Len(t, report.Postings, 1)
	assert.Equal(t, OutcomePosted, report.Postings[0].Outcome)

	entries := h.forBooking(t, b.ID)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Meta.Fallback)
	assert.Equal(t, int64(21250), entries[0].Amount)
	assert.Equal(t, domain.SubtypeVendorShareReversal, entries[0].Meta.Subtype)

	_, err = h.reversal.Reverse(ctx, b.ID, booking.Shortlet)
	require.NoError(t, err)
	assert.Len(t, h.forBooking(t, b.ID), 1)
	h.requireProjectionMatchesFold(t, vendor)
}

func TestReverse_FailureIsIsolatedPerAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	referrer := h.account(domain.AccountTypeUser)
	vendor := h.account(domain.AccountTypeVendor)
	b := h.booking(bookingSpec{category: booking.Tour, price: 10000, reference: "T-1", email: "b@x.com", vendor: &vendor, referrer: &referrer})

	_, err := h.accrual.Accrue(ctx, AccrualRequest{Category: booking.Tour, BookingID: b.ID})
	require.NoError(t, err)

	h.ledgerDB.failSubtype = domain.SubtypeReferralReversal
	report, err := h.reversal.Reverse(ctx, b.ID, booking.Tour)
	require.NoError(t, err)

	outcomes := map[string]string{}
	for _, p := range report.Postings {
		outcomes[p.Subtype] = p.Outcome
	}
	assert.Equal(t, OutcomeFailed, outcomes[domain.SubtypeReferralReversal])
	assert.Equal(t, OutcomePosted, outcomes[domain.SubtypeVendorShareReversal])

	h.ledgerDB.failSubtype = ""
	_, err = h.reversal.Reverse(ctx, b.ID, booking.Tour)
	require.NoError(t, err)
	entries := h.forBooking(t, b.ID)
	assert.Equal(t, int64(0), sumFor(entries, referrer))
	assert.Equal(t, int64(0), sumFor(entries, vendor))
}

func TestOriginSubtype_LegacyEntries(t *testing.T) {
	assert.Equal(t, domain.SubtypeReferralCommission, originSubtype(models.LedgerEntry{
		Direction: domain.DirectionCredit, Reason: domain.ReasonBooking, AccountType: domain.AccountTypeUser,
	}))
	assert.Equal(t, domain.SubtypeCashback, originSubtype(models.LedgerEntry{
		Direction: domain.DirectionCredit, Reason: domain.ReasonTransaction, AccountType: domain.AccountTypeUser,
	}))
	assert.Equal(t, domain.SubtypeVendorShare, originSubtype(models.LedgerEntry{
		Direction: domain.DirectionCredit, Reason: domain.ReasonTransaction, AccountType: domain.AccountTypeVendor,
	}))
	assert.Equal(t, "", originSubtype(models.LedgerEntry{Direction: domain.DirectionDebit}))
}
