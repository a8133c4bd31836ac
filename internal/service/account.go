package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/ayo6706/booking-ledger/internal/models"
	"github.com/google/uuid"
)

// AccountView is an account with its ledger-derived balance.
type AccountView struct {
	Account *models.Account `json:"account"`
	Balance Balance         `json:"balance"`
}

// AccountService serves read access to accounts and their ledger history.
type AccountService struct {
	accounts AccountStore
	ledger   *LedgerService
	balances *BalanceService
}

func NewAccountService(accounts AccountStore, ledger *LedgerService, balances *BalanceService) *AccountService {
	return &AccountService{accounts: accounts, ledger: ledger, balances: balances}
}

// GetBalance returns the account and its balance folded from the ledger.
// The cached projection is returned alongside for comparison only.
func (s *AccountService) GetBalance(ctx context.Context, accountID uuid.UUID) (*AccountView, error) {
	account, err := s.getAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	b, err := s.balances.BalanceOf(ctx, accountID)
	if err != nil {
		return nil, err
	}
	return &AccountView{Account: account, Balance: b}, nil
}

// GetStatement pages through the account's ledger entries, oldest first.
func (s *AccountService) GetStatement(ctx context.Context, accountID uuid.UUID, page, pageSize int) ([]models.LedgerEntry, error) {
	if _, err := s.getAccount(ctx, accountID); err != nil {
		return nil, err
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	if pageSize > 100 {
		pageSize = 100
	}
	id := accountID
	return s.ledger.Query(ctx, models.EntryFilter{
		AccountID: &id,
		Limit:     pageSize,
		Offset:    (page - 1) * pageSize,
	})
}

// Rebuild recomputes the account's cached projection from the ledger.
func (s *AccountService) Rebuild(ctx context.Context, accountID uuid.UUID) (Balance, error) {
	return s.balances.Rebuild(ctx, accountID)
}

func (s *AccountService) getAccount(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	account, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, notFoundError("get account", "account not found", err)
		}
		return nil, fmt.Errorf("get account %s: %w", accountID, err)
	}
	return account, nil
}
