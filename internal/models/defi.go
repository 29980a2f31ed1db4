package models

import (
	"github.com/shopspring/decimal"
)

// Protocol represents a DeFi protocol
type Protocol struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Image string `json:"image" db:"image"`
}

// ProtocolNetwork represents a protocol deployment on a specific network
type ProtocolNetwork struct {
	ID         string `json:"id" db:"id"`
	ProtocolID string `json:"protocolId" db:"protocol_id"`
	NetworkID  string `json:"networkId" db:"network_id"`
}

// PoolType categorizes pools (lending, liquidity, stability, ...)
type PoolType struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}

// Pool represents a pool contract on a protocol deployment
type Pool struct {
	ID                string  `json:"id" db:"id"`
	PoolTypeID        string  `json:"poolTypeId" db:"pool_type_id"`
	ProtocolNetworkID string  `json:"protocolNetworkId" db:"protocol_network_id"`
	ContractAddress   *string `json:"contractAddress,omitempty" db:"contract_address"`
	Description       *string `json:"description,omitempty" db:"description"`
}

// PoolPosition represents a user's position in a pool
type PoolPosition struct {
	ID            string  `json:"id" db:"id"`
	PoolID        string  `json:"poolId" db:"pool_id"`
	UserAddressID string  `json:"userAddressId" db:"user_address_id"`
	PositionID    *string `json:"positionId,omitempty" db:"position_id"`
}

// PoolBalanceSnapshot represents a pool position balance at one snapshot
type PoolBalanceSnapshot struct {
	ID               string          `json:"id" db:"id"`
	PoolPositionID   string          `json:"poolPositionId" db:"pool_position_id"`
	CryptocurrencyID string          `json:"cryptocurrencyId" db:"cryptocurrency_id"`
	SnapshotID       string          `json:"snapshotId" db:"snapshot_id"`
	Quantity         decimal.Decimal `json:"quantity" db:"quantity"`
}

// PoolRewardsSnapshot represents unclaimed pool rewards at one snapshot
type PoolRewardsSnapshot struct {
	ID               string          `json:"id" db:"id"`
	PoolPositionID   string          `json:"poolPositionId" db:"pool_position_id"`
	CryptocurrencyID string          `json:"cryptocurrencyId" db:"cryptocurrency_id"`
	SnapshotID       string          `json:"snapshotId" db:"snapshot_id"`
	Quantity         decimal.Decimal `json:"quantity" db:"quantity"`
}

// Trove represents a collateralized-debt position
type Trove struct {
	ID               string `json:"id" db:"id"`
	UserAddressID    string `json:"userAddressId" db:"user_address_id"`
	PoolID           string `json:"poolId" db:"pool_id"`
	TroveID          string `json:"troveId" db:"trove_id"`
	CryptocurrencyID string `json:"cryptocurrencyId" db:"cryptocurrency_id"`
}

// TroveSnapshot represents a trove's state at one snapshot
type TroveSnapshot struct {
	ID           string          `json:"id" db:"id"`
	TroveID      string          `json:"troveId" db:"trove_id"`
	SnapshotID   string          `json:"snapshotId" db:"snapshot_id"`
	Collateral   decimal.Decimal `json:"collateral" db:"collateral"`
	Debt         decimal.Decimal `json:"debt" db:"debt"`
	Balance      decimal.Decimal `json:"balance" db:"balance"`
	InterestRate decimal.Decimal `json:"interestRate" db:"interest_rate"`
}
