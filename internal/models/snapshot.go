package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot represents one point-in-time valuation run.
// A snapshot and all of its child rows commit in a single transaction, so a
// visible snapshot is always complete.
type Snapshot struct {
	ID   string    `json:"id" db:"id"`
	Date time.Time `json:"date" db:"date"`
}

// SnapshotAsset represents a token balance for one address at one snapshot
type SnapshotAsset struct {
	ID                      string          `json:"id" db:"id"`
	CryptocurrencyNetworkID string          `json:"cryptocurrencyNetworkId" db:"cryptocurrency_network_id"`
	UserAddressID           string          `json:"userAddressId" db:"user_address_id"`
	SnapshotID              string          `json:"snapshotId" db:"snapshot_id"`
	Quantity                decimal.Decimal `json:"quantity" db:"quantity"`
}
