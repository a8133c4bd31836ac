package service

import (
	"context"
	"testing"
	"time"

	"github.com/ayo6706/booking-ledger/internal/booking"
	"github.com/ayo6706/booking-ledger/internal/domain"
	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconciliationRun_RebuildsDriftedProjections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	vendor := h.account(domain.AccountTypeVendor)
	clean := h.account(domain.AccountTypeUser)
	b := h.booking(bookingSpec{category: booking.Chops, price: 10000, reference: "CH-1", email: "b@x.com", vendor: &vendor})

	_, err := h.accrual.Accrue(ctx, AccrualRequest{Category: booking.Chops, BookingID: b.ID})
	require.NoError(t, err)
	h.accounts.SetPayoutStatus(vendor, models.PayoutStatus{CurrentBalance: 1, TotalEarned: 1})

	report, err := h.reconciliation.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	assert.Equal(t, 1, report.Drifted)
	assert.Equal(t, 1, report.Rebuilt)
	assert.Zero(t, report.Failed)
	h.requireProjectionMatchesFold(t, vendor, clean)

	report, err = h.reconciliation.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Drifted)
}

func TestReconciliationRun_Pages(t *testing.T) {
	h := newHarness(t)
	h.reconciliation.pageSize = 2
	for i := 0; i < 5; i++ {
		h.account(domain.AccountTypeUser)
	}

	report, err := h.reconciliation.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Checked)
}

func TestReconciliationRun_RepairsReversalThatFailedAfterCancel(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	vendor := h.account(domain.AccountTypeVendor)
	cancelled := h.booking(bookingSpec{category: booking.Chops, price: 10000, reference: "CH-10", email: "a@x.com", vendor: &vendor})
	pending := h.booking(bookingSpec{category: booking.Chops, price: 4000, reference: "CH-11", email: "b@x.com", vendor: &vendor})

	for _, id := range []uuid.UUID{cancelled.ID, pending.ID} {
		_, err := h.accrual.Accrue(ctx, AccrualRequest{Category: booking.Chops, BookingID: id})
		require.NoError(t, err)
	}

	// The cancellation commits but the compensating debit does not land.
	won, err := h.stores[booking.Chops].MarkCancelled(ctx, cancelled.ID, time.Now())
	require.NoError(t, err)
	require.True(t, won)
	h.ledgerDB.failSubtype = domain.SubtypeVendorShareReversal
	rev, err := h.reversal.Reverse(ctx, cancelled.ID, booking.Chops)
	require.NoError(t, err)
	require.Len(t, rev.Postings, 1)
	require.Equal(t, OutcomeFailed, rev.Postings[0].Outcome)

	report, err := h.reconciliation.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.ReversalsRepaired)
	assert.Equal(t, 1, report.Failed)

	h.ledgerDB.failSubtype = ""
	report, err = h.reconciliation.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.ReversalsRepaired)
	assert.Zero(t, report.Failed)

	entries := h.forBooking(t, cancelled.ID)
	assert.Zero(t, sumFor(entries, vendor))
	assert.Equal(t, 1, countSubtype(entries, domain.SubtypeVendorShareReversal))
	for _, e := range entries {
		if e.Direction == domain.DirectionCredit {
			assert.True(t, e.Meta.Reversed)
		}
	}
	assert.Zero(t, countSubtype(h.forBooking(t, pending.ID), domain.SubtypeVendorShareReversal))
	h.requireProjectionMatchesFold(t, vendor)

	report, err = h.reconciliation.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.ReversalsRepaired)
	assert.Len(t, h.forBooking(t, cancelled.ID), 2)
}
