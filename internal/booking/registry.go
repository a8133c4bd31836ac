package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
)

// Store is the capability every category store exposes to the ledger. The
// ledger reads bookings and flips their status; it never edits other fields.
type Store interface {
	Category() Category
	Count(ctx context.Context, m Match) (int64, error)
	// FindOne returns one matching booking or models.ErrNotFound.
	FindOne(ctx context.Context, m Match) (*models.Booking, error)
	// Get returns the booking by id or models.ErrNotFound.
	Get(ctx context.Context, id uuid.UUID) (*models.Booking, error)
	// MarkCancelled flips pending to cancelled. It reports false when the
	// booking was not pending, so exactly one concurrent caller wins.
	MarkCancelled(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
}

// Registry dispatches by category name to the store that owns it.
type Registry struct {
	stores map[string]Store
}

func NewRegistry(stores ...Store) (*Registry, error) {
	r := &Registry{stores: make(map[string]Store, len(stores))}
	for _, s := range stores {
		name := s.Category().Name
		if _, err := Lookup(name); err != nil {
			return nil, err
		}
		if _, dup := r.stores[name]; dup {
			return nil, fmt.Errorf("duplicate store for category %q", name)
		}
		r.stores[name] = s
	}
	return r, nil
}

// Store returns the store for category.
func (r *Registry) Store(category string) (Store, error) {
	c, err := Lookup(category)
	if err != nil {
		return nil, err
	}
	s, ok := r.stores[c.Name]
	if !ok {
		return nil, fmt.Errorf("no store registered for category %q", c.Name)
	}
	return s, nil
}

// Ordered returns the registered stores in PriorityOrder.
func (r *Registry) Ordered() []Store {
	out := make([]Store, 0, len(r.stores))
	for _, name := range PriorityOrder {
		if s, ok := r.stores[name]; ok {
			out = append(out, s)
		}
	}
	return out
}
