package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/ayo6706/booking-ledger/internal/booking"
	"github.com/ayo6706/booking-ledger/internal/domain"
	"github.com/ayo6706/booking-ledger/internal/gateway"
	"github.com/ayo6706/booking-ledger/internal/mailer"
	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/ayo6706/booking-ledger/internal/repository/memory"
	"github.com/ayo6706/booking-ledger/internal/token"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

const testTokenSecret = "test-secret-test-secret-test-secret"

// flakyLedger fails appends for one subtype.
type flakyLedger struct {
	*memory.Ledger
	failSubtype string
}

func (f *flakyLedger) Append(ctx context.Context, e *models.LedgerEntry) (bool, error) {
	if f.failSubtype != "" && e.Meta.Subtype == f.failSubtype {
		return false, errors.New("ledger unavailable")
	}
	return f.Ledger.Append(ctx, e)
}

type recordingMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (r *recordingMailer) Send(_ context.Context, msg mailer.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

type harness struct {
	mem      *memory.Ledger
	ledgerDB *flakyLedger
	accounts *memory.Accounts
	audit    *memory.Audit
	stores   map[string]*memory.Bookings
	registry *booking.Registry
	verifier *gateway.MockVerifier
	mail     *recordingMailer
	tokens   *token.Issuer

	ledger         *LedgerService
	balances       *BalanceService
	accrual        *AccrualService
	reversal       *ReversalService
	resolver       *ResolverService
	cancellation   *CancellationService
	accountService *AccountService
	reconciliation *ReconciliationService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		mem:      memory.NewLedger(),
		accounts: memory.NewAccounts(),
		audit:    memory.NewAudit(),
		verifier: gateway.NewMockVerifier(),
		mail:     &recordingMailer{},
	}
	h.ledgerDB = &flakyLedger{Ledger: h.mem}
	h.accounts.WithLedger(h.ledgerDB)

	reg, stores, err := memory.NewRegistry()
	require.NoError(t, err)
	h.registry, h.stores = reg, stores

	h.tokens, err = token.NewIssuer(testTokenSecret, "booking-ledger-test", token.DefaultTTL)
	require.NoError(t, err)

	rates := DefaultRates()
	h.ledger = NewLedgerService(h.ledgerDB)
	h.balances = NewBalanceService(h.ledgerDB, h.accounts)
	h.accrual = NewAccrualService(h.ledger, reg, h.accounts, h.balances, rates)
	h.reversal = NewReversalService(h.ledger, reg, h.balances, rates)
	h.resolver = NewResolverService(reg, h.verifier).WithVerifyTimeout(time.Second)
	h.cancellation = NewCancellationService(h.resolver, reg, h.tokens, h.mail, h.reversal, NewAuditService(h.audit), CancellationConfig{
		PublicBaseURL: "https://shop.example.com/",
		ExposeLink:    true,
	})
	h.accountService = NewAccountService(h.accounts, h.ledger, h.balances)
	h.reconciliation = NewReconciliationService(h.accounts, h.balances).WithReversalRepair(h.ledger, reg, h.reversal)
	return h
}

func (h *harness) account(accountType string) uuid.UUID {
	id := uuid.New()
	h.accounts.Put(models.Account{ID: id, AccountType: accountType, CreatedAt: time.Now()})
	return id
}

type bookingSpec struct {
	category  string
	price     int64
	totalCost int64
	reference string
	email     string
	vendor    *uuid.UUID
	referrer  *uuid.UUID
	buyer     *uuid.UUID
}

func (h *harness) booking(s bookingSpec) models.Booking {
	b := models.Booking{
		ID:         uuid.New(),
		Price:      s.price,
		TotalCost:  s.totalCost,
		Currency:   domain.DefaultCurrency,
		VendorID:   s.vendor,
		ReferrerID: s.referrer,
		BuyerID:    s.buyer,
		References: map[string]string{"payment_reference": s.reference},
		Emails:     map[string]string{"email": s.email},
	}
	h.stores[s.category].Put(b)
	got, _ := h.stores[s.category].Get(context.Background(), b.ID)
	return *got
}

func (h *harness) entries(t *testing.T, filter models.EntryFilter) []models.LedgerEntry {
	t.Helper()
	out, err := h.ledger.Query(context.Background(), filter)
	require.NoError(t, err)
	return out
}

func (h *harness) forBooking(t *testing.T, id uuid.UUID) []models.LedgerEntry {
	return h.entries(t, models.EntryFilter{BookingID: &id})
}

// requireProjectionMatchesFold asserts the cached payout status equals the
// ledger fold for each account.
func (h *harness) requireProjectionMatchesFold(t *testing.T, ids ...uuid.UUID) {
	t.Helper()
	for _, id := range ids {
		acc, err := h.accounts.GetAccount(context.Background(), id)
		require.NoError(t, err)
		fold, err := h.balances.BalanceOf(context.Background(), id)
		require.NoError(t, err)
		require.Equal(t, fold.CurrentBalance, acc.PayoutStatus.CurrentBalance, "current balance of %s", id)
		require.Equal(t, fold.TotalEarned, acc.PayoutStatus.TotalEarned, "total earned of %s", id)
	}
}

func ptr(id uuid.UUID) *uuid.UUID { return &id }

func countSubtype(entries []models.LedgerEntry, subtype string) int {
	n := 0
	for _, e := range entries {
		if e.Meta.Subtype == subtype {
			n++
		}
	}
	return n
}

func sumFor(entries []models.LedgerEntry, accountID uuid.UUID) int64 {
	var net int64
	for _, e := range entries {
		if e.AccountID != accountID {
			continue
		}
		if e.Direction == domain.DirectionCredit {
			net += e.Amount
		} else {
			net -= e.Amount
		}
	}
	return net
}
