package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("record not found")

// Account is a user or vendor that can earn ledger credits. PayoutStatus and
// Earnings are projections of the ledger and are only written by a rebuild.
type Account struct {
	ID           uuid.UUID    `json:"id"`
	AccountType  string       `json:"account_type"`
	Email        string       `json:"email"`
	PayoutStatus PayoutStatus `json:"payout_status"`
	CreatedAt    time.Time    `json:"created_at"`
}

type PayoutStatus struct {
	TotalEarned    int64      `json:"total_earned"`
	CurrentBalance int64      `json:"current_balance"`
	MonthlyEarned  int64      `json:"monthly_earned"`
	LastPayoutDate *time.Time `json:"last_payout_date,omitempty"`
}

// Earning mirrors one ledger entry on the account for display.
type Earning struct {
	EntryID   uuid.UUID `json:"entry_id"`
	AccountID uuid.UUID `json:"account_id"`
	BookingID uuid.UUID `json:"booking_id"`
	Amount    int64     `json:"amount"`
	Direction string    `json:"direction"`
	Subtype   string    `json:"subtype"`
	Reversed  bool      `json:"reversed"`
	CreatedAt time.Time `json:"created_at"`
}

type EntryMeta struct {
	Subtype  string `json:"subtype,omitempty"`
	Category string `json:"category,omitempty"`
	Reversed bool   `json:"reversed,omitempty"`
	Fallback bool   `json:"fallback,omitempty"`
}

type LedgerEntry struct {
	ID          uuid.UUID  `json:"id"`
	AccountType string     `json:"account_type"`
	AccountID   uuid.UUID  `json:"account_id"`
	BookingID   *uuid.UUID `json:"booking_id,omitempty"`
	SourceType  string     `json:"source_type"`
	Direction   string     `json:"direction"`
	Amount      int64      `json:"amount"`
	Currency    string     `json:"currency"`
	Status      string     `json:"status"`
	Reason      string     `json:"reason"`
	Meta        EntryMeta  `json:"meta"`
	CreatedAt   time.Time  `json:"created_at"`
}

// EntryFilter selects ledger entries. Zero-valued fields are ignored.
type EntryFilter struct {
	AccountID   *uuid.UUID
	BookingID   *uuid.UUID
	AccountType string
	SourceType  string
	Direction   string
	// Unreversed drops entries already flagged as reversed.
	Unreversed bool
	Limit      int
	Offset     int
}

// ProjectionFunc derives an account's cached payout status and earnings
// mirror from its full ledger history.
type ProjectionFunc func(acc *Account, entries []LedgerEntry) (PayoutStatus, []Earning)

// Booking is the common shape of a record owned by one of the category
// stores. References and Emails are keyed by the store's alias field names.
type Booking struct {
	ID         uuid.UUID  `json:"id"`
	Category   string     `json:"category"`
	Price      int64      `json:"price"`
	TotalCost  int64      `json:"total_cost"`
	Currency   string     `json:"currency"`
	VendorID   *uuid.UUID `json:"vendor_id,omitempty"`
	ReferrerID *uuid.UUID `json:"referrer_id,omitempty"`
	BuyerID    *uuid.UUID `json:"buyer_id,omitempty"`
	// RideRequested and RideCost are only carried by shortlet stays.
	RideRequested bool              `json:"ride_requested,omitempty"`
	RideCost      int64             `json:"ride_cost,omitempty"`
	References    map[string]string `json:"references"`
	Emails        map[string]string `json:"emails"`
	Status        string            `json:"status"`
	CanceledAt    *time.Time        `json:"canceled_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
}

// ShareBase is the amount vendor share and fallback reversals are computed from.
func (b *Booking) ShareBase() int64 {
	if b.TotalCost > 0 {
		return b.TotalCost
	}
	return b.Price
}

// CommissionBase is the total price the referral commission is computed from.
func (b *Booking) CommissionBase() int64 {
	return b.ShareBase()
}

// AuditRecord is one immutable state-change record.
type AuditRecord struct {
	EntityType string          `json:"entity_type"`
	EntityID   uuid.UUID       `json:"entity_id"`
	Action     string          `json:"action"`
	PrevState  string          `json:"prev_state,omitempty"`
	NextState  string          `json:"next_state,omitempty"`
	Metadata   json.RawMessage `json:"metadata,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// IdempotencyRecord is a stored request key and, once finalized, the
// response replayed for repeats of the same request.
type IdempotencyRecord struct {
	Key         string
	RequestHash string
	Method      string
	Path        string
	InProgress  bool
	Status      int
	Body        []byte
	ContentType string
}
