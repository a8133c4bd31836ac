// Package memory provides in-process store implementations for local runs
// and tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
)

type entryKey struct {
	accountID uuid.UUID
	bookingID uuid.UUID
	subtype   string
}

// Ledger is an append-only in-memory ledger.
type Ledger struct {
	mu      sync.RWMutex
	entries []models.LedgerEntry
	byID    map[uuid.UUID]int
	keys    map[entryKey]struct{}
}

func NewLedger() *Ledger {
	return &Ledger{
		byID: make(map[uuid.UUID]int),
		keys: make(map[entryKey]struct{}),
	}
}

func keyOf(e *models.LedgerEntry) (entryKey, bool) {
	if e.BookingID == nil || e.Meta.Subtype == "" {
		return entryKey{}, false
	}
	return entryKey{accountID: e.AccountID, bookingID: *e.BookingID, subtype: e.Meta.Subtype}, true
}

// Append checks the uniqueness key and inserts under one lock.
func (l *Ledger) Append(_ context.Context, entry *models.LedgerEntry) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	k, keyed := keyOf(entry)
	if keyed {
		if _, taken := l.keys[k]; taken {
			return false, nil
		}
	}
	if _, taken := l.byID[entry.ID]; taken {
		return false, nil
	}

	l.byID[entry.ID] = len(l.entries)
	l.entries = append(l.entries, *entry)
	if keyed {
		l.keys[k] = struct{}{}
	}
	return true, nil
}

func (l *Ledger) Query(_ context.Context, f models.EntryFilter) ([]models.LedgerEntry, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.LedgerEntry, 0)
	for _, e := range l.entries {
		if f.AccountID != nil && e.AccountID != *f.AccountID {
			continue
		}
		if f.BookingID != nil && (e.BookingID == nil || *e.BookingID != *f.BookingID) {
			continue
		}
		if f.AccountType != "" && e.AccountType != f.AccountType {
			continue
		}
		if f.SourceType != "" && e.SourceType != f.SourceType {
			continue
		}
		if f.Direction != "" && e.Direction != f.Direction {
			continue
		}
		if f.Unreversed && e.Meta.Reversed {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return []models.LedgerEntry{}, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && f.Limit < len(out) {
		out = out[:f.Limit]
	}
	return out, nil
}

func (l *Ledger) ExistsReversal(_ context.Context, accountID, bookingID uuid.UUID, subtype string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.keys[entryKey{accountID: accountID, bookingID: bookingID, subtype: subtype}]
	return ok, nil
}

// MarkReversed sets the display flag. It is the only mutation the ledger
// allows.
func (l *Ledger) MarkReversed(_ context.Context, ids []uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, id := range ids {
		if i, ok := l.byID[id]; ok {
			l.entries[i].Meta.Reversed = true
		}
	}
	return nil
}

// Len reports the number of stored entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
