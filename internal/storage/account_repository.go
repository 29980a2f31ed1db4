package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/cryptotracker/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AccountRepository handles account persistence
type AccountRepository struct {
	db *PostgresDB
}

// NewAccountRepository creates a new account repository
func NewAccountRepository(db *PostgresDB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create inserts an account. The (user_id, name) unique constraint backs the
// per-user name uniqueness rule; the application-level check only exists for a
// friendlier error message.
func (r *AccountRepository) Create(ctx context.Context, account *models.Account) error {
	if account.ID == "" {
		account.ID = uuid.New().String()
	}

	query := `
		INSERT INTO accounts (id, user_id, name)
		VALUES ($1, $2, $3)
	`

	_, err := r.db.Pool().Exec(ctx, query, account.ID, account.UserID, account.Name)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	return nil
}

// GetByIDAndUser retrieves an account owned by the given user
func (r *AccountRepository) GetByIDAndUser(ctx context.Context, id, userID string) (*models.Account, error) {
	query := `
		SELECT id, user_id, name
		FROM accounts
		WHERE id = $1 AND user_id = $2
	`

	var account models.Account
	err := r.db.Pool().QueryRow(ctx, query, id, userID).Scan(
		&account.ID,
		&account.UserID,
		&account.Name,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}

	return &account, nil
}

// ListByUser retrieves all accounts owned by a user
func (r *AccountRepository) ListByUser(ctx context.Context, userID string) ([]*models.Account, error) {
	query := `
		SELECT id, user_id, name
		FROM accounts
		WHERE user_id = $1
		ORDER BY name
	`

	rows, err := r.db.Pool().Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var account models.Account
		if err := rows.Scan(&account.ID, &account.UserID, &account.Name); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &account)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// ExistsByNameAndUser checks whether the user already has an account with this name
func (r *AccountRepository) ExistsByNameAndUser(ctx context.Context, name, userID string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM accounts WHERE name = $1 AND user_id = $2)`

	err := r.db.Pool().QueryRow(ctx, query, name, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check account existence: %w", err)
	}

	return exists, nil
}

// Rename updates an account's name for the owning user
func (r *AccountRepository) Rename(ctx context.Context, id, userID, name string) error {
	query := `UPDATE accounts SET name = $3 WHERE id = $1 AND user_id = $2`

	result, err := r.db.Pool().Exec(ctx, query, id, userID, name)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to rename account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// DeleteByIDAndUser removes an account owned by the user; addresses cascade
func (r *AccountRepository) DeleteByIDAndUser(ctx context.Context, id, userID string) error {
	query := `DELETE FROM accounts WHERE id = $1 AND user_id = $2`

	result, err := r.db.Pool().Exec(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
