package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/booking-ledger/internal/api"
	"github.com/ayo6706/booking-ledger/internal/api/handler"
	"github.com/ayo6706/booking-ledger/internal/api/middleware"
	"github.com/ayo6706/booking-ledger/internal/config"
	"github.com/ayo6706/booking-ledger/internal/gateway"
	"github.com/ayo6706/booking-ledger/internal/idempotency"
	"github.com/ayo6706/booking-ledger/internal/jobs"
	"github.com/ayo6706/booking-ledger/internal/mailer"
	"github.com/ayo6706/booking-ledger/internal/observability"
	"github.com/ayo6706/booking-ledger/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Run bootstraps the HTTP server and reconciliation worker, blocking until shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	redisClient, err := newRedisClient(cfg.RedisURL)
	if err != nil {
		if cfg.Storage != config.StorageMemory {
			return fmt.Errorf("connect redis: %w", err)
		}
		logger.Warn("redis unavailable, running without cache and mail queue", zap.Error(err))
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var mail mailer.Mailer = mailer.LogMailer{}
	if redisClient != nil {
		queue, err := jobs.NewClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("mail queue client: %w", err)
		}
		defer queue.Close()
		mail = jobs.NewQueueMailer(queue)
	}

	container, err := Build(cfg, stores, mail, newVerifier(cfg, logger))
	if err != nil {
		return err
	}

	var cache redis.Cmdable
	if redisClient != nil {
		cache = redisClient
	}
	idemStore := idempotency.NewStore(cache, stores.Idempotency, cfg.IdempotencyTTL).WithSource(cfg.Storage)

	reconciler := worker.NewReconciliationWorker(container.Reconciliation).WithInterval(cfg.ReconciliationInterval)
	stopWorker := reconciler.Run(ctx)
	logger.Info("reconciliation worker started", zap.Duration("interval", cfg.ReconciliationInterval))

	health := map[string]handler.Pinger{"database": stores.DB}
	if redisClient != nil {
		health["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}
	router := api.NewRouter(cfg, logger, container.APIServices(), idemStore, health)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort), zap.String("storage", cfg.Storage))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
	}

	logger.Info("stopping reconciliation worker")
	stopWorker()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return nil
}

// RunWorker consumes the mail queue until interrupted.
func RunWorker() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()

	w, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisURL:    cfg.RedisURL,
		Concurrency: cfg.WorkerConcurrency,
		Email:       jobs.NewEmailHandler(mailer.LogMailer{}),
	})
	if err != nil {
		return fmt.Errorf("init worker: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	logger.Info("mail worker starting", zap.Int("concurrency", cfg.WorkerConcurrency))
	return w.Run(ctx)
}

// newVerifier picks the payment provider used to recover buyer emails.
// Without a secret key outside production a verifier that knows no
// references is used, so email recovery simply finds nothing.
func newVerifier(cfg *config.Config, logger *zap.Logger) gateway.Verifier {
	if strings.TrimSpace(cfg.PaystackSecretKey) != "" {
		return gateway.NewPaystackVerifier(cfg.PaystackBaseURL, cfg.PaystackSecretKey, cfg.ProviderTimeout)
	}
	logger.Warn("PAYSTACK_SECRET_KEY not set, email recovery from the payment provider is disabled")
	return gateway.NewMockVerifier()
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
