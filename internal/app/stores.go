package app

import (
	"context"
	"fmt"

	"github.com/ayo6706/booking-ledger/internal/api/handler"
	"github.com/ayo6706/booking-ledger/internal/booking"
	"github.com/ayo6706/booking-ledger/internal/config"
	"github.com/ayo6706/booking-ledger/internal/db"
	"github.com/ayo6706/booking-ledger/internal/idempotency"
	"github.com/ayo6706/booking-ledger/internal/repository"
	"github.com/ayo6706/booking-ledger/internal/repository/memory"
	"github.com/ayo6706/booking-ledger/internal/service"
)

// Stores is the persistence the services are built on.
type Stores struct {
	Ledger      service.LedgerStore
	Accounts    service.AccountStore
	Audit       service.AuditStore
	Bookings    *booking.Registry
	Idempotency idempotency.Backend
	// DB is nil for in-memory storage.
	DB    handler.Pinger
	close func()
}

func (s *Stores) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStores connects the configured storage. Postgres schemas are applied
// on open.
func OpenStores(ctx context.Context, cfg *config.Config) (*Stores, error) {
	if cfg.Storage == config.StorageMemory {
		return MemoryStores()
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{
		MaxConns:         int32(cfg.DBMaxConns),
		StatementTimeout: cfg.DBStatementTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := repository.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	registry, err := repository.NewRegistry(pool)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("build booking registry: %w", err)
	}
	return &Stores{
		Ledger:      repository.NewLedgerRepository(pool),
		Accounts:    repository.NewAccountRepository(repository.NewStore(pool)),
		Audit:       repository.NewAuditRepository(pool),
		Bookings:    registry,
		Idempotency: repository.NewIdempotencyRepository(pool),
		DB:          pool,
		close:       pool.Close,
	}, nil
}

// MemoryStores builds empty in-process stores for local runs.
func MemoryStores() (*Stores, error) {
	registry, _, err := memory.NewRegistry()
	if err != nil {
		return nil, err
	}
	ledger := memory.NewLedger()
	return &Stores{
		Ledger:      ledger,
		Accounts:    memory.NewAccounts().WithLedger(ledger),
		Audit:       memory.NewAudit(),
		Bookings:    registry,
		Idempotency: memory.NewIdempotency(),
	}, nil
}
