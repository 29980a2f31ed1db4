package models

import (
	"github.com/cryptotracker/internal/types"
)

// UserAddress represents a tracked wallet address.
// PublicAddress is stored in EIP-55 checksummed form and is globally unique
// across all users.
type UserAddress struct {
	ID            string           `json:"id" db:"id"`
	UserID        string           `json:"userId" db:"user_id"`
	AccountID     string           `json:"accountId" db:"account_id"`
	PublicAddress string           `json:"publicAddress" db:"public_address"`
	WalletType    types.WalletType `json:"walletType" db:"wallet_type"`
	Name          *string          `json:"name,omitempty" db:"name"`
}
