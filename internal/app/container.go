package app

import (
	"fmt"

	"github.com/ayo6706/booking-ledger/internal/api"
	"github.com/ayo6706/booking-ledger/internal/config"
	"github.com/ayo6706/booking-ledger/internal/gateway"
	"github.com/ayo6706/booking-ledger/internal/mailer"
	"github.com/ayo6706/booking-ledger/internal/service"
	"github.com/ayo6706/booking-ledger/internal/token"
)

// Container holds the wired domain services.
type Container struct {
	Ledger         *service.LedgerService
	Balances       *service.BalanceService
	Accruals       *service.AccrualService
	Reversals      *service.ReversalService
	Resolver       *service.ResolverService
	Cancellation   *service.CancellationService
	Accounts       *service.AccountService
	Reconciliation *service.ReconciliationService
}

// Build wires the services over stores. mail and verifier are the external
// collaborators for link delivery and email recovery.
func Build(cfg *config.Config, stores *Stores, mail mailer.Mailer, verifier gateway.Verifier) (*Container, error) {
	tokens, err := token.NewIssuer(cfg.MagicLinkSecret, cfg.JWTIssuer, cfg.MagicLinkTTL)
	if err != nil {
		return nil, fmt.Errorf("magic link issuer: %w", err)
	}
	rates := service.Rates{
		Commission:  cfg.CommissionRate,
		Cashback:    cfg.CashbackRate,
		VendorShare: cfg.VendorShareRate,
	}

	ledger := service.NewLedgerService(stores.Ledger)
	balances := service.NewBalanceService(stores.Ledger, stores.Accounts)
	reversals := service.NewReversalService(ledger, stores.Bookings, balances, rates)
	resolver := service.NewResolverService(stores.Bookings, verifier).WithVerifyTimeout(cfg.ProviderTimeout)
	audit := service.NewAuditService(stores.Audit)

	return &Container{
		Ledger:    ledger,
		Balances:  balances,
		Accruals:  service.NewAccrualService(ledger, stores.Bookings, stores.Accounts, balances, rates),
		Reversals: reversals,
		Resolver:  resolver,
		Cancellation: service.NewCancellationService(resolver, stores.Bookings, tokens, mail, reversals, audit, service.CancellationConfig{
			PublicBaseURL: cfg.PublicBaseURL,
			ExposeLink:    !cfg.IsProduction(),
			MailTimeout:   cfg.MailTimeout,
		}),
		Accounts:       service.NewAccountService(stores.Accounts, ledger, balances),
		Reconciliation: service.NewReconciliationService(stores.Accounts, balances).WithReversalRepair(ledger, stores.Bookings, reversals),
	}, nil
}

// APIServices selects what the HTTP layer dispatches to.
func (c *Container) APIServices() api.Services {
	return api.Services{
		Cancellation: c.Cancellation,
		Accrual:      c.Accruals,
		Account:      c.Accounts,
	}
}
