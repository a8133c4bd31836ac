package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/ayo6706/booking-ledger/internal/booking"
	"github.com/ayo6706/booking-ledger/internal/domain"
	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
)

// Bookings is an in-memory category store.
type Bookings struct {
	category booking.Category
	mu       sync.RWMutex
	rows     map[uuid.UUID]models.Booking
}

func NewBookings(category booking.Category) *Bookings {
	return &Bookings{category: category, rows: make(map[uuid.UUID]models.Booking)}
}

// NewRegistry builds a registry with one empty store per category and
// returns the stores keyed by name for seeding.
func NewRegistry() (*booking.Registry, map[string]*Bookings, error) {
	stores := make(map[string]*Bookings, len(booking.PriorityOrder))
	list := make([]booking.Store, 0, len(booking.PriorityOrder))
	for _, name := range booking.PriorityOrder {
		s := NewBookings(booking.MustLookup(name))
		stores[name] = s
		list = append(list, s)
	}
	reg, err := booking.NewRegistry(list...)
	if err != nil {
		return nil, nil, err
	}
	return reg, stores, nil
}

// Put creates or replaces a booking. Missing status defaults to pending and
// a missing total cost is derived from the category.
func (s *Bookings) Put(b models.Booking) {
	b = cloneBooking(b)
	b.TotalCost = s.category.TotalCost(&b)
	if b.Status == "" {
		b.Status = domain.BookingStatusPending
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	b.Category = s.category.Name
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[b.ID] = b
}

// Delete removes a booking, as the owning listing service might.
func (s *Bookings) Delete(id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rows, id)
}

// Update applies fn to a stored booking.
func (s *Bookings) Update(id uuid.UUID, fn func(*models.Booking)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if b, ok := s.rows[id]; ok {
		b = cloneBooking(b)
		fn(&b)
		s.rows[id] = b
	}
}

func (s *Bookings) Category() booking.Category { return s.category }

func (s *Bookings) matching(m booking.Match) []models.Booking {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Booking
	for _, b := range s.rows {
		if m.Matches(s.category, &b) {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (s *Bookings) Count(_ context.Context, m booking.Match) (int64, error) {
	return int64(len(s.matching(m))), nil
}

func (s *Bookings) FindOne(_ context.Context, m booking.Match) (*models.Booking, error) {
	rows := s.matching(m)
	if len(rows) == 0 {
		return nil, models.ErrNotFound
	}
	b := cloneBooking(rows[0])
	return &b, nil
}

func (s *Bookings) Get(_ context.Context, id uuid.UUID) (*models.Booking, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.rows[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	b = cloneBooking(b)
	return &b, nil
}

func (s *Bookings) MarkCancelled(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.rows[id]
	if !ok {
		return false, models.ErrNotFound
	}
	if b.Status != domain.BookingStatusPending {
		return false, nil
	}
	b.Status = domain.BookingStatusCancelled
	b.CanceledAt = &at
	s.rows[id] = b
	return true, nil
}

// cloneBooking copies the alias maps so stored rows never share them with
// callers.
func cloneBooking(b models.Booking) models.Booking {
	b.References = maps.Clone(b.References)
	b.Emails = maps.Clone(b.Emails)
	return b
}
