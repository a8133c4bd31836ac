package repository

import (
	"context"

	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
)

type AuditRepository struct {
	q *Queries
}

func NewAuditRepository(db DBTX) *AuditRepository {
	return &AuditRepository{q: New(db)}
}

func (r *AuditRepository) WriteAudit(ctx context.Context, rec models.AuditRecord) error {
	return r.q.InsertAuditLog(ctx, rec)
}

func (r *AuditRepository) For(ctx context.Context, entityID uuid.UUID) ([]models.AuditRecord, error) {
	return r.q.ListAuditLogs(ctx, entityID)
}
