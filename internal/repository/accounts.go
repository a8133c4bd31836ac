package repository

import (
	"context"

	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
)

type AccountRepository struct {
	store *Store
}

func NewAccountRepository(store *Store) *AccountRepository {
	return &AccountRepository{store: store}
}

func (r *AccountRepository) Upsert(ctx context.Context, acc *models.Account) error {
	return r.store.Queries().UpsertAccount(ctx, acc)
}

func (r *AccountRepository) GetAccount(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return r.store.Queries().GetAccount(ctx, id)
}

func (r *AccountRepository) ListAccountIDs(ctx context.Context, limit, offset int) ([]uuid.UUID, error) {
	return r.store.Queries().ListAccountIDs(ctx, limit, offset)
}

func (r *AccountRepository) ClaimReferral(ctx context.Context, referrerID uuid.UUID, buyerEmail string) (bool, error) {
	return r.store.Queries().InsertReferral(ctx, referrerID, buyerEmail)
}

func (r *AccountRepository) ReleaseReferral(ctx context.Context, referrerID uuid.UUID, buyerEmail string) error {
	return r.store.Queries().DeleteReferral(ctx, referrerID, buyerEmail)
}

// RebuildProjection recomputes the cached totals and earnings mirror from
// the ledger inside one transaction. The account row is locked before the
// ledger is read, so a concurrent rebuild waits and then folds a ledger that
// includes everything the first one saw plus anything appended since.
func (r *AccountRepository) RebuildProjection(ctx context.Context, accountID uuid.UUID, fn models.ProjectionFunc) error {
	return r.store.RunInTx(ctx, func(q *Queries) error {
		acc, err := q.GetAccountForUpdate(ctx, accountID)
		if err != nil {
			return err
		}
		id := accountID
		entries, err := q.ListLedgerEntries(ctx, models.EntryFilter{AccountID: &id})
		if err != nil {
			return err
		}
		status, earnings := fn(acc, entries)

		ok, err := q.UpdateAccountProjection(ctx, accountID, status)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrNotFound
		}
		if err := q.DeleteEarnings(ctx, accountID); err != nil {
			return err
		}
		for _, e := range earnings {
			if err := q.InsertEarning(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *AccountRepository) Earnings(ctx context.Context, accountID uuid.UUID) ([]models.Earning, error) {
	return r.store.Queries().ListEarnings(ctx, accountID)
}
