package service

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/cryptotracker/internal/logging"
	"github.com/cryptotracker/internal/models"
	"github.com/cryptotracker/internal/storage"
	"github.com/cryptotracker/internal/types"
)

const (
	accountNameMinLen = 3
	accountNameMaxLen = 20
)

// AccountRepository is the account persistence surface the account service needs
type AccountRepository interface {
	Create(ctx context.Context, account *models.Account) error
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.Account, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Account, error)
	ExistsByNameAndUser(ctx context.Context, name, userID string) (bool, error)
	Rename(ctx context.Context, id, userID, name string) error
	DeleteByIDAndUser(ctx context.Context, id, userID string) error
}

// AccountService manages the wallet groupings a user files addresses under
type AccountService struct {
	accountRepo AccountRepository
	logger      *logging.Logger
}

// NewAccountService creates a new account service
func NewAccountService(accountRepo AccountRepository, logger *logging.Logger) *AccountService {
	return &AccountService{
		accountRepo: accountRepo,
		logger:      logger,
	}
}

func validateAccountName(name string) error {
	// Length limits are in characters, not bytes
	if n := utf8.RuneCountInString(name); n < accountNameMinLen || n > accountNameMaxLen {
		return types.ValidationError("name",
			fmt.Sprintf("Account name must be between %d and %d characters", accountNameMinLen, accountNameMaxLen))
	}
	return nil
}

// Create adds a new account for the user. Names are unique per user, not
// globally.
func (s *AccountService) Create(ctx context.Context, userID, name string) (*models.Account, error) {
	if err := validateAccountName(name); err != nil {
		return nil, err
	}

	exists, err := s.accountRepo.ExistsByNameAndUser(ctx, name, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to check account name: %w", err)
	}
	if exists {
		return nil, duplicateAccountError(name)
	}

	account := &models.Account{
		UserID: userID,
		Name:   name,
	}

	if err := s.accountRepo.Create(ctx, account); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, duplicateAccountError(name)
		}
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"accountId": account.ID,
		"userId":    userID,
	}).Info("account created")

	return account, nil
}

// Get retrieves one of the user's accounts
func (s *AccountService) Get(ctx context.Context, userID, accountID string) (*models.Account, error) {
	account, err := s.accountRepo.GetByIDAndUser(ctx, accountID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFoundError("account", accountID)
		}
		return nil, err
	}
	return account, nil
}

// List retrieves all of the user's accounts
func (s *AccountService) List(ctx context.Context, userID string) ([]*models.Account, error) {
	return s.accountRepo.ListByUser(ctx, userID)
}

// Rename changes an account's name, subject to the same per-user uniqueness
func (s *AccountService) Rename(ctx context.Context, userID, accountID, name string) error {
	if err := validateAccountName(name); err != nil {
		return err
	}

	if err := s.accountRepo.Rename(ctx, accountID, userID, name); err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return notFoundError("account", accountID)
		case errors.Is(err, storage.ErrDuplicate):
			return duplicateAccountError(name)
		}
		return err
	}
	return nil
}

// Delete removes an account and, via cascade, every address filed under it
func (s *AccountService) Delete(ctx context.Context, userID, accountID string) error {
	if err := s.accountRepo.DeleteByIDAndUser(ctx, accountID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFoundError("account", accountID)
		}
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"accountId": accountID,
		"userId":    userID,
	}).Info("account deleted")

	return nil
}

func duplicateAccountError(name string) *types.ServiceError {
	return &types.ServiceError{
		Code:    types.CodeDuplicateAccount,
		Message: "An account with this name already exists",
		Details: map[string]interface{}{"field": "name", "name": name},
	}
}
