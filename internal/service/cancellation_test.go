package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/ayo6706/booking-ledger/internal/booking"
	"github.com/ayo6706/booking-ledger/internal/domain"
	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/ayo6706/booking-ledger/internal/token"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tokenFromLink(t *testing.T, link string) string {
	t.Helper()
	u, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/cancel", u.Path)
	return u.Query().Get("token")
}

type cancelFixture struct {
	h        *harness
	referrer uuid.UUID
	vendor   uuid.UUID
	booking  models.Booking
	token    string
}

func newCancelFixture(t *testing.T) *cancelFixture {
	t.Helper()
	h := newHarness(t)
	f := &cancelFixture{h: h, referrer: h.account(domain.AccountTypeUser), vendor: h.account(domain.AccountTypeVendor)}
	f.booking = h.booking(bookingSpec{
		category:  booking.Hotel,
		price:     100000,
		reference: "HP-1700000000000",
		email:     "guest@example.com",
		vendor:    &f.vendor,
		referrer:  &f.referrer,
	})
	_, err := h.accrual.Accrue(context.Background(), AccrualRequest{Category: booking.Hotel, BookingID: f.booking.ID})
	require.NoError(t, err)

	res, err := h.cancellation.RequestToken(context.Background(), "Guest@Example.com", "HP-1700000000000")
	require.NoError(t, err)
	require.NotEmpty(t, res.Link)
	assert.True(t, strings.HasPrefix(res.Link, "https://shop.example.com/cancel?token="))
	f.token = tokenFromLink(t, res.Link)
	return f
}

func TestRequestToken_MailsLinkAndAudits(t *testing.T) {
	f := newCancelFixture(t)

	require.Len(t, f.h.mail.sent, 1)
	msg := f.h.mail.sent[0]
	assert.Equal(t, "guest@example.com", msg.To)
	assert.Contains(t, msg.Text, f.token)

	claims, err := f.h.tokens.Verify(f.token)
	require.NoError(t, err)
	assert.Equal(t, f.booking.ID.String(), claims.BookingID)
	assert.Equal(t, booking.Hotel, claims.Category)
	assert.Equal(t, booking.Fingerprint("HP-1700000000000"), claims.RefFingerprint)

	records := f.h.audit.For(f.booking.ID)
	require.Len(t, records, 2)
	assert.Equal(t, CancelStateRequested, records[0].NextState)
	assert.Equal(t, CancelStateTokenIssued, records[1].NextState)
}

func TestRequestToken_HidesLinkWhenNotExposed(t *testing.T) {
	h := newHarness(t)
	h.booking(bookingSpec{category: booking.Event, price: 1000, reference: "EV-555555", email: "g@x.com"})
	svc := NewCancellationService(h.resolver, h.registry, h.tokens, h.mail, h.reversal, nil, CancellationConfig{PublicBaseURL: "https://shop.example.com"})

	res, err := svc.RequestToken(context.Background(), "g@x.com", "EV-555555")
	require.NoError(t, err)
	assert.Empty(t, res.Link)
	assert.Len(t, h.mail.sent, 1)
}

func TestRequestToken_MailFailureDoesNotFail(t *testing.T) {
	h := newHarness(t)
	h.booking(bookingSpec{category: booking.Event, price: 1000, reference: "EV-1", email: "g@x.com"})
	h.mail.err = errors.New("smtp down")

	res, err := h.cancellation.RequestToken(context.Background(), "g@x.com", "EV-1")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Link)
}

func TestRequestToken_ResolverErrors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.cancellation.RequestToken(ctx, "g@x.com", "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.cancellation.RequestToken(ctx, "g@x.com", "NOPE")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, h.mail.sent)
}

func TestConfirm_CancelsAndReverses(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()

	res, err := f.h.cancellation.Confirm(ctx, f.token)
	require.NoError(t, err)
	assert.False(t, res.AlreadyCancelled)
	assert.Equal(t, booking.Hotel, res.Category)
	assert.Equal(t, f.booking.ID, res.BookingID)

	b, err := f.h.stores[booking.Hotel].Get(ctx, f.booking.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, b.Status)

	entries := f.h.forBooking(t, f.booking.ID)
	assert.Equal(t, int64(0), sumFor(entries, f.referrer))
	assert.Equal(t, int64(0), sumFor(entries, f.vendor))
	f.h.requireProjectionMatchesFold(t, f.referrer, f.vendor)

	records := f.h.audit.For(f.booking.ID)
	require.Len(t, records, 3)
	assert.Equal(t, CancelStateConfirmed, records[2].NextState)
}

func TestConfirm_ReplayIsIdempotent(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()

	first, err := f.h.cancellation.Confirm(ctx, f.token)
	require.NoError(t, err)
	count := len(f.h.forBooking(t, f.booking.ID))

	second, err := f.h.cancellation.Confirm(ctx, f.token)
	require.NoError(t, err)
	assert.True(t, second.AlreadyCancelled)
	assert.Equal(t, first.BookingID, second.BookingID)
	assert.Equal(t, first.Category, second.Category)
	assert.Nil(t, second.Reversal)

	entries := f.h.forBooking(t, f.booking.ID)
	assert.Len(t, entries, count)
	assert.Equal(t, 1, countSubtype(entries, domain.SubtypeReferralReversal))
	assert.Equal(t, 1, countSubtype(entries, domain.SubtypeVendorShareReversal))
}

func TestConfirm_ConcurrentConfirmationsReverseOnce(t *testing.T) {
	f := newCancelFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.h.cancellation.Confirm(context.Background(), f.token)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	entries := f.h.forBooking(t, f.booking.ID)
	assert.Equal(t, 1, countSubtype(entries, domain.SubtypeReferralReversal))
	assert.Equal(t, 1, countSubtype(entries, domain.SubtypeVendorShareReversal))
	assert.Equal(t, int64(0), sumFor(entries, f.referrer))
}

func TestConfirm_TokenErrors(t *testing.T) {
	f := newCancelFixture(t)
	ctx := context.Background()

	_, err := f.h.cancellation.Confirm(ctx, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = f.h.cancellation.Confirm(ctx, "abc")
	assert.ErrorIs(t, err, ErrValidation)

	forger, err := token.NewIssuer("not-the-server-secret-not-the-secret", "booking-ledger-test", token.DefaultTTL)
	require.NoError(t, err)
	forged, err := forger.Issue(f.booking.ID, booking.Hotel, "guest@example.com", booking.Fingerprint("HP-1700000000000"))
	require.NoError(t, err)
	_, err = f.h.cancellation.Confirm(ctx, forged)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestConfirm_LiveRecordMismatch(t *testing.T) {
	f := newCancelFixture(t)
	f.h.stores[booking.Hotel].Update(f.booking.ID, func(b *models.Booking) {
		b.References["payment_reference"] = "HP-9999999999999"
	})

	_, err := f.h.cancellation.Confirm(context.Background(), f.token)
	assert.ErrorIs(t, err, ErrForbidden)

	b, _ := f.h.stores[booking.Hotel].Get(context.Background(), f.booking.ID)
	assert.Equal(t, domain.BookingStatusPending, b.Status)
	assert.Zero(t, countSubtype(f.h.forBooking(t, f.booking.ID), domain.SubtypeReferralReversal))
}

func TestConfirm_EmailChanged(t *testing.T) {
	f := newCancelFixture(t)
	f.h.stores[booking.Hotel].Update(f.booking.ID, func(b *models.Booking) {
		b.Emails["email"] = "new-owner@example.com"
	})

	_, err := f.h.cancellation.Confirm(context.Background(), f.token)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestConfirm_BookingGone(t *testing.T) {
	f := newCancelFixture(t)
	f.h.stores[booking.Hotel].Delete(f.booking.ID)

	_, err := f.h.cancellation.Confirm(context.Background(), f.token)
	assert.ErrorIs(t, err, ErrNotFound)
}
