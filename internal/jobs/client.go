package jobs

import (
	"context"
	"fmt"

	"github.com/ayo6706/booking-ledger/internal/mailer"
	"github.com/ayo6706/booking-ledger/internal/observability"
	"github.com/hibiken/asynq"
)

// Enqueuer is the subset of *asynq.Client used to submit tasks.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueMailer implements mailer.Mailer by enqueueing a send task. Delivery
// happens in the worker process.
type QueueMailer struct {
	client Enqueuer
}

func NewQueueMailer(client Enqueuer) *QueueMailer {
	return &QueueMailer{client: client}
}

func (m *QueueMailer) Send(ctx context.Context, msg mailer.Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	task, err := NewSendEmailTask(msg)
	if err != nil {
		return err
	}
	if _, err := m.client.EnqueueContext(ctx, task); err != nil {
		observability.IncrementMail("enqueue", "error")
		return fmt.Errorf("enqueue email: %w", err)
	}
	observability.IncrementMail("enqueue", "ok")
	return nil
}

// NewClient constructs an Asynq client for redisURL.
func NewClient(redisURL string) (*asynq.Client, error) {
	opt, err := asynq.ParseRedisURI(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return asynq.NewClient(opt), nil
}
