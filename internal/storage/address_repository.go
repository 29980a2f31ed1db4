package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cryptotracker/internal/models"
	"github.com/cryptotracker/internal/types"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AddressRepository handles tracked wallet address persistence
type AddressRepository struct {
	db *PostgresDB
}

// NewAddressRepository creates a new address repository
func NewAddressRepository(db *PostgresDB) *AddressRepository {
	return &AddressRepository{db: db}
}

// Create inserts a tracked address. Global uniqueness of public_address is
// enforced by the unique index, not the application pre-check, so concurrent
// registrations of the same address cannot both land.
func (r *AddressRepository) Create(ctx context.Context, address *models.UserAddress) error {
	if address.ID == "" {
		address.ID = uuid.New().String()
	}

	query := `
		INSERT INTO user_addresses (id, user_id, account_id, public_address, wallet_type, name)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		address.ID,
		address.UserID,
		address.AccountID,
		address.PublicAddress,
		address.WalletType,
		address.Name,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create address: %w", err)
	}

	return nil
}

// GetByIDAndUser retrieves an address owned by the given user
func (r *AddressRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.UserAddress, error) {
	query := `
		SELECT id, user_id, account_id, public_address, wallet_type, name
		FROM user_addresses
		WHERE id = $1 AND user_id = $2
	`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, id, userID))
}

func (r *AddressRepository) scanOne(row pgx.Row) (*models.UserAddress, error) {
	var address models.UserAddress
	err := row.Scan(
		&address.ID,
		&address.UserID,
		&address.AccountID,
		&address.PublicAddress,
		&address.WalletType,
		&address.Name,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return &address, nil
}

// Exists checks whether any user has registered this public address
func (r *AddressRepository) Exists(ctx context.Context, publicAddress string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM user_addresses WHERE public_address = $1)`

	err := r.db.Pool().QueryRow(ctx, query, publicAddress).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check address existence: %w", err)
	}

	return exists, nil
}

// ListByUser retrieves all addresses owned by a user
func (r *AddressRepository) ListByUser(ctx context.Context, userID string) ([]*models.UserAddress, error) {
	query := `
		SELECT id, user_id, account_id, public_address, wallet_type, name
		FROM user_addresses
		WHERE user_id = $1
		ORDER BY public_address
	`
	return r.list(ctx, query, userID)
}

// ListByAccount retrieves all addresses grouped under an account
func (r *AddressRepository) ListByAccount(ctx context.Context, accountID string) ([]*models.UserAddress, error) {
	query := `
		SELECT id, user_id, account_id, public_address, wallet_type, name
		FROM user_addresses
		WHERE account_id = $1
		ORDER BY public_address
	`
	return r.list(ctx, query, accountID)
}

// ListByUserAndWalletType retrieves a user's addresses of one wallet category
func (r *AddressRepository) ListByUserAndWalletType(ctx context.Context, userID string, walletType types.WalletType) ([]*models.UserAddress, error) {
	query := `
		SELECT id, user_id, account_id, public_address, wallet_type, name
		FROM user_addresses
		WHERE user_id = $1 AND wallet_type = $2
		ORDER BY public_address
	`
	return r.list(ctx, query, userID, walletType)
}

func (r *AddressRepository) list(ctx context.Context, query string, args ...interface{}) ([]*models.UserAddress, error) {
	rows, err := r.db.Pool().Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	var addresses []*models.UserAddress
	for rows.Next() {
		var address models.UserAddress
		if err := rows.Scan(
			&address.ID,
			&address.UserID,
			&address.AccountID,
			&address.PublicAddress,
			&address.WalletType,
			&address.Name,
		); err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		addresses = append(addresses, &address)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating addresses: %w", err)
	}

	return addresses, nil
}

// Update changes the mutable fields of an address (account, wallet type, label)
func (r *AddressRepository) Update(ctx context.Context, address *models.UserAddress) error {
	query := `
		UPDATE user_addresses
		SET account_id = $3, wallet_type = $4, name = $5
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.db.Pool().Exec(ctx, query,
		address.ID,
		address.UserID,
		address.AccountID,
		address.WalletType,
		address.Name,
	)
	if err != nil {
		return fmt.Errorf("failed to update address: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteByIDAndUser removes a tracked address owned by the user
func (r *AddressRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) error {
	query := `DELETE FROM user_addresses WHERE id = $1 AND user_id = $2`

	result, err := r.db.Pool().Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
