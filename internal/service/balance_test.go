package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/booking-ledger/internal/domain"
	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/ayo6706/booking-ledger/internal/repository/memory"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFold(t *testing.T) {
	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	lastMonth := time.Date(2026, 2, 27, 0, 0, 0, 0, time.UTC)
	entries := []models.LedgerEntry{
		{Direction: domain.DirectionCredit, Amount: 5000, CreatedAt: lastMonth, Meta: models.EntryMeta{Subtype: domain.SubtypeReferralCommission, Reversed: true}},
		{Direction: domain.DirectionCredit, Amount: 1000, CreatedAt: now},
		{Direction: domain.DirectionDebit, Amount: 5000, CreatedAt: now, Meta: models.EntryMeta{Subtype: domain.SubtypeReferralReversal}},
		{Direction: domain.DirectionDebit, Amount: 300, CreatedAt: now},
	}

	b := Fold(entries, now)
	assert.Equal(t, int64(700), b.CurrentBalance)
	assert.Equal(t, int64(1000), b.TotalEarned)
	assert.Equal(t, int64(-4000), b.MonthlyEarned)
}

func TestRebuild_WritesProjectionAndEarnings(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	vendor := h.account(domain.AccountTypeVendor)

	paid := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	h.accounts.SetPayoutStatus(vendor, models.PayoutStatus{CurrentBalance: 999, LastPayoutDate: &paid})

	_, err := h.ledger.Append(ctx, &models.LedgerEntry{
		AccountType: domain.AccountTypeVendor,
		AccountID:   vendor,
		BookingID:   ptr(uuid.New()),
		SourceType:  domain.SourceTransaction,
		Direction:   domain.DirectionCredit,
		Amount:      8500,
		Reason:      domain.ReasonTransaction,
		Meta:        models.EntryMeta{Subtype: domain.SubtypeVendorShare},
	})
	require.NoError(t, err)

	b, err := h.balances.Rebuild(ctx, vendor)
	require.NoError(t, err)
	assert.Equal(t, int64(8500), b.CurrentBalance)

	acc, err := h.accounts.GetAccount(ctx, vendor)
	require.NoError(t, err)
	assert.Equal(t, int64(8500), acc.PayoutStatus.CurrentBalance)
	assert.Equal(t, int64(8500), acc.PayoutStatus.TotalEarned)
	require.NotNil(t, acc.PayoutStatus.LastPayoutDate)
	assert.True(t, paid.Equal(*acc.PayoutStatus.LastPayoutDate))

	earnings := h.accounts.Earnings(vendor)
	require.Len(t, earnings, 1)
	assert.Equal(t, domain.SubtypeVendorShare, earnings[0].Subtype)
}

func TestRebuild_UnknownAccount(t *testing.T) {
	h := newHarness(t)
	_, err := h.balances.Rebuild(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

// pausingLedger holds the first Query after it has read the ledger until
// resume is closed.
type pausingLedger struct {
	memory.EntrySource
	once   sync.Once
	paused chan struct{}
	resume chan struct{}
}

func (p *pausingLedger) Query(ctx context.Context, f models.EntryFilter) ([]models.LedgerEntry, error) {
	entries, err := p.EntrySource.Query(ctx, f)
	first := false
	p.once.Do(func() { first = true })
	if first {
		close(p.paused)
		<-p.resume
	}
	return entries, err
}

func TestRebuild_InterleavedRebuildsKeepNewestFold(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	vendor := h.account(domain.AccountTypeVendor)

	slow := &pausingLedger{EntrySource: h.ledgerDB, paused: make(chan struct{}), resume: make(chan struct{})}
	h.accounts.WithLedger(slow)

	first := make(chan error, 1)
	go func() {
		_, err := h.balances.Rebuild(ctx, vendor)
		first <- err
	}()
	<-slow.paused

	// The first rebuild has folded an empty ledger; the credit lands after.
	_, err := h.ledger.Append(ctx, &models.LedgerEntry{
		AccountType: domain.AccountTypeVendor,
		AccountID:   vendor,
		BookingID:   ptr(uuid.New()),
		SourceType:  domain.SourceTransaction,
		Direction:   domain.DirectionCredit,
		Amount:      21250,
		Reason:      domain.ReasonTransaction,
		Meta:        models.EntryMeta{Subtype: domain.SubtypeVendorShare},
	})
	require.NoError(t, err)

	second := make(chan error, 1)
	go func() {
		_, err := h.balances.Rebuild(ctx, vendor)
		second <- err
	}()
	close(slow.resume)
	require.NoError(t, <-first)
	require.NoError(t, <-second)

	folded, err := h.balances.BalanceOf(ctx, vendor)
	require.NoError(t, err)
	acc, err := h.accounts.GetAccount(ctx, vendor)
	require.NoError(t, err)
	assert.Equal(t, int64(21250), folded.CurrentBalance)
	assert.Equal(t, folded.CurrentBalance, acc.PayoutStatus.CurrentBalance)
	assert.Len(t, h.accounts.Earnings(vendor), 1)
}
