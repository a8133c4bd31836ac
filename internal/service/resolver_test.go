package service

import (
	"context"
	"errors"
	"testing"

	"github.com/ayo6706/booking-ledger/internal/booking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_PriorityOrderPicksShortletOverRestaurant(t *testing.T) {
	h := newHarness(t)
	h.booking(bookingSpec{category: booking.Restaurant, price: 1000, reference: "HP-1700000000000", email: "guest@example.com"})
	want := h.booking(bookingSpec{category: booking.Shortlet, price: 1000, reference: "HP-1700000000000", email: "guest@example.com"})

	res, err := h.resolver.Resolve(context.Background(), "HP-1700000000000", "guest@example.com")
	require.NoError(t, err)
	assert.Equal(t, booking.Shortlet, res.Category)
	assert.Equal(t, want.ID, res.BookingID)
	assert.Equal(t, "HP-1700000000000", res.Reference)
}

func TestResolve_MatchVariants(t *testing.T) {
	h := newHarness(t)
	b := h.booking(bookingSpec{category: booking.Tour, price: 1000, reference: "hp/1700 000 000 000", email: "Guest@Example.com"})

	for _, ref := range []string{"HP-1700000000000", "1700 000", "HP/1700"} {
		res, err := h.resolver.Resolve(context.Background(), ref, "guest@example.com")
		require.NoError(t, err, ref)
		assert.Equal(t, b.ID, res.BookingID, ref)
		assert.Equal(t, "hp/1700 000 000 000", res.Reference, ref)
	}
}

func TestResolve_EmailMustIntersect(t *testing.T) {
	h := newHarness(t)
	h.booking(bookingSpec{category: booking.Hotel, price: 1000, reference: "REF-9", email: "owner@example.com"})

	_, err := h.resolver.Resolve(context.Background(), "REF-9", "intruder@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolve_RecoversEmailFromProvider(t *testing.T) {
	h := newHarness(t)
	b := h.booking(bookingSpec{category: booking.Gifts, price: 1000, reference: "GF-123456", email: "buyer@example.com"})
	h.verifier.Register("GF-123456", "Buyer@Example.com")

	res, err := h.resolver.Resolve(context.Background(), "GF-123456", "")
	require.NoError(t, err)
	assert.Equal(t, b.ID, res.BookingID)
	assert.Equal(t, "buyer@example.com", res.Email)
}

func TestResolve_Errors(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.resolver.Resolve(ctx, "  ", "a@b.com")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = h.resolver.Resolve(ctx, "UNKNOWN-REF", "")
	assert.ErrorIs(t, err, ErrValidation, "provider has no record and no email given")

	_, err = h.resolver.Resolve(ctx, "UNKNOWN-REF", "a@b.com")
	assert.ErrorIs(t, err, ErrNotFound)

	h.verifier.Err = errors.New("provider timeout")
	_, err = h.resolver.Resolve(ctx, "UNKNOWN-REF", "")
	assert.ErrorIs(t, err, ErrTransient)
	assert.Equal(t, KindTransient, KindOf(err))
}
