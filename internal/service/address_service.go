package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/cryptotracker/internal/logging"
	"github.com/cryptotracker/internal/models"
	"github.com/cryptotracker/internal/storage"
	"github.com/cryptotracker/internal/types"
	"github.com/ethereum/go-ethereum/common"
)

var hexAddressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// AddressRepository is the address persistence surface the address service needs
type AddressRepository interface {
	Create(ctx context.Context, address *models.UserAddress) error
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.UserAddress, error)
	Exists(ctx context.Context, publicAddress string) (bool, error)
	ListByUser(ctx context.Context, userID string) ([]*models.UserAddress, error)
	ListByAccount(ctx context.Context, accountID string) ([]*models.UserAddress, error)
	Update(ctx context.Context, address *models.UserAddress) error
	DeleteByIDAndUser(ctx context.Context, id, userID string) error
}

// AddressAccountRepository is the slice of account persistence the address
// service needs to verify ownership of the target account.
type AddressAccountRepository interface {
	GetByIDAndUser(ctx context.Context, id, userID string) (*models.Account, error)
}

// AddressService manages the registry of tracked wallet addresses
type AddressService struct {
	addressRepo AddressRepository
	accountRepo AddressAccountRepository
	logger      *logging.Logger
}

// NewAddressService creates a new address service
func NewAddressService(addressRepo AddressRepository, accountRepo AddressAccountRepository, logger *logging.Logger) *AddressService {
	return &AddressService{
		addressRepo: addressRepo,
		accountRepo: accountRepo,
		logger:      logger,
	}
}

// AddAddressInput represents a request to track a new address
type AddAddressInput struct {
	AccountID     string           `json:"accountId"`
	PublicAddress string           `json:"publicAddress"`
	WalletType    types.WalletType `json:"walletType"`
	Name          *string          `json:"name,omitempty"`
}

// NormalizeAddress validates an EVM address and returns it in its EIP-55
// checksummed form. Addresses are stored checksummed so that case variants of
// the same address compare equal under the uniqueness constraint.
func NormalizeAddress(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if len(raw) != 42 {
		return "", types.ValidationError("publicAddress", "Address must be exactly 42 characters")
	}
	if !strings.HasPrefix(raw, "0x") {
		return "", types.ValidationError("publicAddress", "Address must start with 0x")
	}
	if !hexAddressPattern.MatchString(raw) {
		return "", types.ValidationError("publicAddress", "Address must be hexadecimal")
	}
	return common.HexToAddress(raw).Hex(), nil
}

func validateAddressName(name *string) error {
	if name == nil {
		return nil
	}
	// Length limits are in characters, not bytes
	if n := utf8.RuneCountInString(*name); n < 3 || n > 20 {
		return types.ValidationError("name", "Address name must be between 3 and 20 characters")
	}
	return nil
}

// Add registers a new tracked address under one of the user's accounts.
// The address is unique across the whole system: two users cannot track the
// same wallet, which keeps snapshot rows attributable to one owner.
func (s *AddressService) Add(ctx context.Context, userID string, input *AddAddressInput) (*models.UserAddress, error) {
	normalized, err := NormalizeAddress(input.PublicAddress)
	if err != nil {
		return nil, err
	}
	if !input.WalletType.Valid() {
		return nil, types.ValidationError("walletType",
			fmt.Sprintf("Wallet type must be one of: %s", types.WalletTypes))
	}
	if err := validateAddressName(input.Name); err != nil {
		return nil, err
	}

	// Ownership check doubles as existence check for the account
	if _, err := s.accountRepo.GetByIDAndUser(ctx, input.AccountID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFoundError("account", input.AccountID)
		}
		return nil, err
	}

	// Friendly pre-check; the unique index is authoritative under races
	exists, err := s.addressRepo.Exists(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("failed to check address: %w", err)
	}
	if exists {
		return nil, duplicateAddressError(normalized)
	}

	address := &models.UserAddress{
		UserID:        userID,
		AccountID:     input.AccountID,
		PublicAddress: normalized,
		WalletType:    input.WalletType,
		Name:          input.Name,
	}

	if err := s.addressRepo.Create(ctx, address); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, duplicateAddressError(normalized)
		}
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"addressId": address.ID,
		"userId":    userID,
	}).Info("address registered")

	return address, nil
}

// Get retrieves one of the user's tracked addresses
func (s *AddressService) Get(ctx context.Context, userID, addressID string) (*models.UserAddress, error) {
	address, err := s.addressRepo.GetByIDAndUser(ctx, addressID, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFoundError("address", addressID)
		}
		return nil, err
	}
	return address, nil
}

// List retrieves all of the user's tracked addresses
func (s *AddressService) List(ctx context.Context, userID string) ([]*models.UserAddress, error) {
	return s.addressRepo.ListByUser(ctx, userID)
}

// ListByAccount retrieves the user's addresses filed under one account
func (s *AddressService) ListByAccount(ctx context.Context, userID, accountID string) ([]*models.UserAddress, error) {
	if _, err := s.accountRepo.GetByIDAndUser(ctx, accountID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFoundError("account", accountID)
		}
		return nil, err
	}
	return s.addressRepo.ListByAccount(ctx, accountID)
}

// UpdateAddressInput represents a request to edit a tracked address.
// The public address itself is immutable; remove and re-add to change it.
type UpdateAddressInput struct {
	AccountID  string           `json:"accountId"`
	WalletType types.WalletType `json:"walletType"`
	Name       *string          `json:"name,omitempty"`
}

// Update changes the account, wallet type, or label of a tracked address
func (s *AddressService) Update(ctx context.Context, userID, addressID string, input *UpdateAddressInput) (*models.UserAddress, error) {
	if !input.WalletType.Valid() {
		return nil, types.ValidationError("walletType",
			fmt.Sprintf("Wallet type must be one of: %s", types.WalletTypes))
	}
	if err := validateAddressName(input.Name); err != nil {
		return nil, err
	}

	address, err := s.Get(ctx, userID, addressID)
	if err != nil {
		return nil, err
	}

	if _, err := s.accountRepo.GetByIDAndUser(ctx, input.AccountID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFoundError("account", input.AccountID)
		}
		return nil, err
	}

	address.AccountID = input.AccountID
	address.WalletType = input.WalletType
	address.Name = input.Name

	if err := s.addressRepo.Update(ctx, address); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFoundError("address", addressID)
		}
		return nil, err
	}

	return address, nil
}

// Delete stops tracking an address. Its historical snapshot rows cascade away
// with it.
func (s *AddressService) Delete(ctx context.Context, userID, addressID string) error {
	if err := s.addressRepo.DeleteByIDAndUser(ctx, addressID, userID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFoundError("address", addressID)
		}
		return err
	}

	s.logger.WithFields(map[string]interface{}{
		"addressId": addressID,
		"userId":    userID,
	}).Info("address removed")

	return nil
}

func duplicateAddressError(address string) *types.ServiceError {
	return &types.ServiceError{
		Code:    types.CodeDuplicateAddress,
		Message: "This address is already being tracked",
		Details: map[string]interface{}{"field": "publicAddress", "publicAddress": address},
	}
}
