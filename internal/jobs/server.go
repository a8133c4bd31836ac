package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// Worker wraps the Asynq server.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
}

// WorkerConfig collects dependencies required to bootstrap the worker.
type WorkerConfig struct {
	RedisURL    string
	Concurrency int
	Email       *EmailHandler
}

func NewWorker(cfg WorkerConfig) (*Worker, error) {
	opt, err := asynq.ParseRedisURI(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}
	if cfg.Email == nil {
		cfg.Email = NewEmailHandler(nil)
	}

	srv := asynq.NewServer(opt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{QueueDefault: 1},
		Logger:      zap.S(),
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			zap.L().Error("task failed", zap.String("type", task.Type()), zap.Error(err))
		}),
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeSendEmail, cfg.Email.Handle)

	return &Worker{server: srv, mux: mux}, nil
}

// Run starts processing jobs until context cancellation.
func (w *Worker) Run(ctx context.Context) error {
	if w == nil {
		return errors.New("worker: not configured")
	}
	if err := w.server.Start(w.mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}
	<-ctx.Done()
	w.server.Shutdown()
	return ctx.Err()
}
