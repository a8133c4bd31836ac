// Package booking describes the seven category stores a booking can live in
// and the matching rules used to find one from a guest's payment reference.
package booking

import (
	"fmt"
	"strings"

	"github.com/ayo6706/booking-ledger/internal/models"
)

const (
	Hotel      = "hotel"
	Shortlet   = "shortlet"
	Restaurant = "restaurant"
	Event      = "event"
	Tour       = "tour"
	Chops      = "chops"
	Gifts      = "gifts"
)

// Category describes how one category store lays out a booking: which
// fields may carry the payment reference and which may carry the buyer email.
type Category struct {
	Name             string
	Table            string
	ReferenceAliases []string
	EmailAliases     []string
	// VendorSQL derives the owning vendor for rows that predate vendor_id
	// being stored on the booking itself. Empty means vendor_id is used as is.
	VendorSQL string
	// HasRide marks stores whose rows carry an optional airport ride that is
	// part of the total cost.
	HasRide bool
}

// PriorityOrder is the fixed order category stores are consulted in when
// resolving a reference. The first store with a match wins.
var PriorityOrder = []string{Hotel, Shortlet, Restaurant, Event, Tour, Chops, Gifts}

var categories = map[string]Category{
	Hotel: {
		Name:             Hotel,
		Table:            "hotel_bookings",
		ReferenceAliases: []string{"payment_reference", "paystack_reference", "reference", "transaction_ref"},
		EmailAliases:     []string{"email", "guest_email", "customer_email"},
		VendorSQL:        "(SELECT r.vendor_id FROM hotel_rooms r WHERE r.id = b.room_id)",
	},
	Shortlet: {
		Name:             Shortlet,
		Table:            "shortlet_bookings",
		ReferenceAliases: []string{"payment_reference", "paystack_reference", "reference"},
		EmailAliases:     []string{"email", "guest_email"},
		VendorSQL:        "(SELECT s.vendor_id FROM shortlets s WHERE s.id = b.shortlet_id)",
		HasRide:          true,
	},
	Restaurant: {
		Name:             Restaurant,
		Table:            "restaurant_reservations",
		ReferenceAliases: []string{"payment_reference", "reference", "booking_reference"},
		EmailAliases:     []string{"email", "customer_email"},
	},
	Event: {
		Name:             Event,
		Table:            "event_center_bookings",
		ReferenceAliases: []string{"payment_reference", "paystack_reference", "reference"},
		EmailAliases:     []string{"email", "contact_email"},
	},
	Tour: {
		Name:             Tour,
		Table:            "tour_bookings",
		ReferenceAliases: []string{"payment_reference", "reference"},
		EmailAliases:     []string{"email", "guest_email"},
	},
	Chops: {
		Name:             Chops,
		Table:            "chops_orders",
		ReferenceAliases: []string{"payment_reference", "order_reference", "reference"},
		EmailAliases:     []string{"email", "buyer_email", "customer_email"},
	},
	Gifts: {
		Name:             Gifts,
		Table:            "gift_orders",
		ReferenceAliases: []string{"payment_reference", "order_reference", "reference"},
		EmailAliases:     []string{"email", "buyer_email", "sender_email"},
	},
}

// Lookup returns the descriptor for a category name.
func Lookup(name string) (Category, error) {
	c, ok := categories[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Category{}, fmt.Errorf("unknown booking category %q", name)
	}
	return c, nil
}

// MustLookup is Lookup for names known at compile time.
func MustLookup(name string) Category {
	c, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return c
}

// PrimaryEmail returns the first non-empty email alias of b in alias order.
func (c Category) PrimaryEmail(b *models.Booking) string {
	for _, alias := range c.EmailAliases {
		if v := strings.TrimSpace(b.Emails[alias]); v != "" {
			return NormalizeEmail(v)
		}
	}
	return ""
}

// TotalCost is the stored total of b. Rows written before totals were
// stored fall back to the price, plus the ride for stores that have one.
func (c Category) TotalCost(b *models.Booking) int64 {
	if b.TotalCost > 0 {
		return b.TotalCost
	}
	if c.HasRide {
		return ShortletTotal(b.Price, b.RideRequested, b.RideCost)
	}
	return b.Price
}

// ShortletTotal is the total cost of a shortlet stay including an optional
// airport ride.
func ShortletTotal(baseCost int64, rideRequested bool, rideCost int64) int64 {
	if !rideRequested || rideCost < 0 {
		return baseCost
	}
	return baseCost + rideCost
}
