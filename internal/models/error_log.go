package models

import (
	"github.com/cryptotracker/internal/types"
)

// SnapshotError records a per-snapshot, per-address collection failure.
// Collection errors are persisted data rather than exceptions so the
// portfolio view can surface them later as non-fatal warnings.
type SnapshotError struct {
	ID               string                    `json:"id" db:"id"`
	SnapshotID       string                    `json:"snapshotId" db:"snapshot_id"`
	UserAddressID    *string                   `json:"userAddressId,omitempty" db:"user_address_id"`
	ErrorType        types.CollectionErrorType `json:"errorType" db:"error_type"`
	CryptocurrencyID *string                   `json:"cryptocurrencyId,omitempty" db:"cryptocurrency_id"`
	ProtocolID       *string                   `json:"protocolId,omitempty" db:"protocol_id"`
	Message          string                    `json:"message" db:"message"`
}
