package models

import (
	"github.com/cryptotracker/internal/types"
	"github.com/shopspring/decimal"
)

// Validator represents a staking validator tied to a tracked address
type Validator struct {
	ID             string `json:"id" db:"id"`
	UserAddressID  string `json:"userAddressId" db:"user_address_id"`
	ValidatorIndex int64  `json:"validatorIndex" db:"validator_index"`
	PublicKey      string `json:"publicKey" db:"public_key"`
	ActivationDate string `json:"activationDate" db:"activation_date"`
}

// ValidatorSnapshot represents a validator's state at one snapshot
type ValidatorSnapshot struct {
	ID          string                `json:"id" db:"id"`
	ValidatorID string                `json:"validatorId" db:"validator_id"`
	SnapshotID  string                `json:"snapshotId" db:"snapshot_id"`
	Balance     decimal.Decimal       `json:"balance" db:"balance"`
	Status      types.ValidatorStatus `json:"status" db:"status"`
	Rewards     decimal.Decimal       `json:"rewards" db:"rewards"`
}
