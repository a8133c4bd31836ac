package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	CancelStateRequested   = "REQUESTED"
	CancelStateTokenIssued = "TOKEN_ISSUED"
	CancelStateConfirmed   = "CONFIRMED"

	auditEntityCancellation = "booking_cancellation"
)

var cancellationTransitions = map[string]map[string]struct{}{
	"": {
		CancelStateRequested: {},
	},
	CancelStateRequested: {
		CancelStateTokenIssued: {},
	},
	CancelStateTokenIssued: {
		CancelStateConfirmed: {},
	},
	CancelStateConfirmed: {},
}

func normalizeState(state string) string {
	return strings.ToUpper(strings.TrimSpace(state))
}

func canTransition(current, next string) bool {
	nextStates, ok := cancellationTransitions[normalizeState(current)]
	if !ok {
		return false
	}
	_, ok = nextStates[normalizeState(next)]
	return ok
}

// recordTransition audits one workflow step. The workflow carries no server
// side session, so the previous state is the one the caller just left. Audit
// failures are logged and never fail the step.
func recordTransition(ctx context.Context, audit *AuditService, bookingID uuid.UUID, current, next, action string, metadata map[string]string) {
	if !canTransition(current, next) {
		zap.L().Error("invalid cancellation state transition",
			zap.String("booking_id", bookingID.String()),
			zap.String("from", current),
			zap.String("to", next),
		)
		return
	}
	if err := audit.Write(ctx, auditEntityCancellation, bookingID, action, current, next, metadata); err != nil {
		zap.L().Warn("audit cancellation transition failed",
			zap.Error(fmt.Errorf("%s -> %s: %w", current, next, err)),
			zap.String("booking_id", bookingID.String()),
		)
	}
}
