package models

import (
	"github.com/shopspring/decimal"
)

// Network represents a blockchain network tokens can live on
type Network struct {
	ID     string  `json:"id" db:"id"`
	Name   string  `json:"name" db:"name"`
	RPCURL *string `json:"rpcUrl,omitempty" db:"url_rpc"`
	Image  *string `json:"image,omitempty" db:"image"`
}

// Cryptocurrency represents a token or coin
type Cryptocurrency struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Symbol string `json:"symbol" db:"symbol"`
	Image  string `json:"image" db:"image"`
}

// CryptocurrencyNetwork represents a token deployed on a specific network
type CryptocurrencyNetwork struct {
	ID               string  `json:"id" db:"id"`
	CryptocurrencyID string  `json:"cryptocurrencyId" db:"cryptocurrency_id"`
	NetworkID        string  `json:"networkId" db:"network_id"`
	TokenAddress     *string `json:"tokenAddress,omitempty" db:"token_address"`
}

// Price represents the reporting-currency price of a token at one snapshot
type Price struct {
	ID               string          `json:"id" db:"id"`
	CryptocurrencyID string          `json:"cryptocurrencyId" db:"cryptocurrency_id"`
	SnapshotID       string          `json:"snapshotId" db:"snapshot_id"`
	Price            decimal.Decimal `json:"price" db:"price"`
}
