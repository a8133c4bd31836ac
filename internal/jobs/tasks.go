package jobs

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ayo6706/booking-ledger/internal/mailer"
	"github.com/ayo6706/booking-ledger/internal/observability"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTypeSendEmail is the task type for transactional emails.
	TaskTypeSendEmail = "mail:send"

	maxEmailRetries = 5
)

// NewSendEmailTask constructs an Asynq task carrying msg.
func NewSendEmailTask(msg mailer.Message) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal email payload: %w", err)
	}
	return asynq.NewTask(TaskTypeSendEmail, data, asynq.MaxRetry(maxEmailRetries), asynq.Queue(QueueDefault)), nil
}

// EmailHandler delivers queued messages through the configured mailer.
type EmailHandler struct {
	deliver mailer.Mailer
}

func NewEmailHandler(deliver mailer.Mailer) *EmailHandler {
	if deliver == nil {
		deliver = mailer.LogMailer{}
	}
	return &EmailHandler{deliver: deliver}
}

// Handle processes TaskTypeSendEmail tasks. Undecodable or invalid payloads
// are not retried.
func (h *EmailHandler) Handle(ctx context.Context, t *asynq.Task) error {
	var msg mailer.Message
	if err := json.Unmarshal(t.Payload(), &msg); err != nil {
		observability.IncrementMail("deliver", "invalid")
		return fmt.Errorf("decode email payload: %v: %w", err, asynq.SkipRetry)
	}
	if err := msg.Validate(); err != nil {
		observability.IncrementMail("deliver", "invalid")
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	if err := h.deliver.Send(ctx, msg); err != nil {
		observability.IncrementMail("deliver", "error")
		zap.L().Warn("email delivery failed", zap.Error(err), zap.String("to", msg.To))
		return fmt.Errorf("deliver email: %w", err)
	}
	observability.IncrementMail("deliver", "ok")
	return nil
}
