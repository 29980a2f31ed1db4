package storage

import (
	"context"
	"fmt"

	"github.com/cryptotracker/internal/models"
)

// ErrorRepository reads the snapshot error ledger
type ErrorRepository struct {
	db *PostgresDB
}

// NewErrorRepository creates a new error repository
func NewErrorRepository(db *PostgresDB) *ErrorRepository {
	return &ErrorRepository{db: db}
}

const snapshotErrorColumns = `id, snapshot_id, user_address_id, error_type, cryptocurrency_id, protocol_id, message`

// ListBySnapshot lists every collection error recorded for a snapshot,
// restricted to the given addresses. Errors not tied to any address (price
// fetch failures) are always included.
func (r *ErrorRepository) ListBySnapshot(ctx context.Context, snapshotID string, addressIDs []string) ([]*models.SnapshotError, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM snapshot_errors
		WHERE snapshot_id = $1
		  AND (user_address_id IS NULL OR user_address_id = ANY($2::uuid[]))
	`, snapshotErrorColumns)

	rows, err := r.db.Pool().Query(ctx, query, snapshotID, addressIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot errors: %w", err)
	}
	defer rows.Close()

	var errs []*models.SnapshotError
	for rows.Next() {
		var se models.SnapshotError
		if err := rows.Scan(
			&se.ID,
			&se.SnapshotID,
			&se.UserAddressID,
			&se.ErrorType,
			&se.CryptocurrencyID,
			&se.ProtocolID,
			&se.Message,
		); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot error: %w", err)
		}
		errs = append(errs, &se)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshot errors: %w", err)
	}

	return errs, nil
}
