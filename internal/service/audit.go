package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
)

// AuditService writes immutable audit trail entries.
type AuditService struct {
	store AuditStore
	now   func() time.Time
}

func NewAuditService(store AuditStore) *AuditService {
	return &AuditService{store: store, now: time.Now}
}

// Write stores a single immutable audit record. A nil service is a no-op so
// callers without an audit sink still work.
func (s *AuditService) Write(ctx context.Context, entityType string, entityID uuid.UUID, action, prevState, nextState string, metadata map[string]string) error {
	if s == nil || s.store == nil {
		return nil
	}
	var raw json.RawMessage
	if len(metadata) > 0 {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
		raw = b
	}
	if err := s.store.WriteAudit(ctx, models.AuditRecord{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		PrevState:  prevState,
		NextState:  nextState,
		Metadata:   raw,
		CreatedAt:  s.now().UTC(),
	}); err != nil {
		return fmt.Errorf("insert audit log: %w", err)
	}
	return nil
}
