package memory

import (
	"context"
	"sync"

	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
)

type Audit struct {
	mu      sync.Mutex
	records []models.AuditRecord
}

func NewAudit() *Audit {
	return &Audit{}
}

func (a *Audit) WriteAudit(_ context.Context, rec models.AuditRecord) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.records = append(a.records, rec)
	return nil
}

// For returns the records written for one entity, oldest first.
func (a *Audit) For(entityID uuid.UUID) []models.AuditRecord {
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []models.AuditRecord
	for _, r := range a.records {
		if r.EntityID == entityID {
			out = append(out, r)
		}
	}
	return out
}
