package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
)

type referralKey struct {
	referrerID uuid.UUID
	email      string
}

// EntrySource is the ledger a projection rebuild folds.
type EntrySource interface {
	Query(ctx context.Context, filter models.EntryFilter) ([]models.LedgerEntry, error)
}

// Accounts holds accounts, their projections and the referral guard set.
type Accounts struct {
	mu        sync.RWMutex
	accounts  map[uuid.UUID]models.Account
	earnings  map[uuid.UUID][]models.Earning
	referrals map[referralKey]struct{}
	// rebuilding holds one lock per account so a rebuild's read of the
	// ledger and its write of the projection are not interleaved with
	// another rebuild of the same account.
	rebuilding map[uuid.UUID]*sync.Mutex
	ledger     EntrySource
}

func NewAccounts() *Accounts {
	return &Accounts{
		accounts:   make(map[uuid.UUID]models.Account),
		earnings:   make(map[uuid.UUID][]models.Earning),
		referrals:  make(map[referralKey]struct{}),
		rebuilding: make(map[uuid.UUID]*sync.Mutex),
	}
}

// WithLedger sets the ledger that RebuildProjection folds.
func (a *Accounts) WithLedger(ledger EntrySource) *Accounts {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.ledger = ledger
	return a
}

// Put creates or replaces an account.
func (a *Accounts) Put(acc models.Account) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accounts[acc.ID] = acc
}

func (a *Accounts) GetAccount(_ context.Context, id uuid.UUID) (*models.Account, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acc, ok := a.accounts[id]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &acc, nil
}

func (a *Accounts) ListAccountIDs(_ context.Context, limit, offset int) ([]uuid.UUID, error) {
	a.mu.RLock()
	ids := make([]uuid.UUID, 0, len(a.accounts))
	for id := range a.accounts {
		ids = append(ids, id)
	}
	a.mu.RUnlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	if offset >= len(ids) {
		return []uuid.UUID{}, nil
	}
	ids = ids[offset:]
	if limit > 0 && limit < len(ids) {
		ids = ids[:limit]
	}
	return ids, nil
}

func (a *Accounts) ClaimReferral(_ context.Context, referrerID uuid.UUID, buyerEmail string) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	k := referralKey{referrerID: referrerID, email: buyerEmail}
	if _, ok := a.referrals[k]; ok {
		return false, nil
	}
	a.referrals[k] = struct{}{}
	return true, nil
}

func (a *Accounts) ReleaseReferral(_ context.Context, referrerID uuid.UUID, buyerEmail string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.referrals, referralKey{referrerID: referrerID, email: buyerEmail})
	return nil
}

func (a *Accounts) RebuildProjection(ctx context.Context, accountID uuid.UUID, fn models.ProjectionFunc) error {
	a.mu.Lock()
	lock, ok := a.rebuilding[accountID]
	if !ok {
		lock = &sync.Mutex{}
		a.rebuilding[accountID] = lock
	}
	ledger := a.ledger
	a.mu.Unlock()

	lock.Lock()
	defer lock.Unlock()

	acc, err := a.GetAccount(ctx, accountID)
	if err != nil {
		return err
	}
	var entries []models.LedgerEntry
	if ledger != nil {
		id := accountID
		if entries, err = ledger.Query(ctx, models.EntryFilter{AccountID: &id}); err != nil {
			return err
		}
	}
	status, earnings := fn(acc, entries)

	a.mu.Lock()
	defer a.mu.Unlock()
	current, ok := a.accounts[accountID]
	if !ok {
		return models.ErrNotFound
	}
	current.PayoutStatus = status
	a.accounts[accountID] = current
	a.earnings[accountID] = append([]models.Earning(nil), earnings...)
	return nil
}

// Earnings returns the stored earnings mirror of an account.
func (a *Accounts) Earnings(accountID uuid.UUID) []models.Earning {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]models.Earning(nil), a.earnings[accountID]...)
}

// SetPayoutStatus overwrites the cached projection without touching the
// ledger. Used to simulate drift.
func (a *Accounts) SetPayoutStatus(accountID uuid.UUID, status models.PayoutStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if acc, ok := a.accounts[accountID]; ok {
		acc.PayoutStatus = status
		a.accounts[accountID] = acc
	}
}
