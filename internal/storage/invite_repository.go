package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cryptotracker/internal/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// InviteRepository handles invite code persistence
type InviteRepository struct {
	db *PostgresDB
}

// NewInviteRepository creates a new invite repository
func NewInviteRepository(db *PostgresDB) *InviteRepository {
	return &InviteRepository{db: db}
}

// Create stores a fresh invite code
func (r *InviteRepository) Create(ctx context.Context, code *models.InviteCode) error {
	if code.ID == "" {
		code.ID = uuid.New().String()
	}
	code.CreatedAt = time.Now().UTC()
	code.IsActive = true

	query := `
		INSERT INTO invite_codes (id, code, created_by, is_active, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.Pool().Exec(ctx, query,
		code.ID,
		code.Code,
		code.CreatedBy,
		code.IsActive,
		code.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create invite code: %w", err)
	}

	return nil
}

// GetByID retrieves an invite code by id
func (r *InviteRepository) GetByID(ctx context.Context, id string) (*models.InviteCode, error) {
	query := `
		SELECT id, code, created_by, used_by, is_active, created_at, used_at
		FROM invite_codes
		WHERE id = $1
	`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, id))
}

// GetByCode retrieves an invite code by its code string
func (r *InviteRepository) GetByCode(ctx context.Context, code string) (*models.InviteCode, error) {
	query := `
		SELECT id, code, created_by, used_by, is_active, created_at, used_at
		FROM invite_codes
		WHERE code = $1
	`
	return r.scanOne(r.db.Pool().QueryRow(ctx, query, code))
}

func (r *InviteRepository) scanOne(row pgx.Row) (*models.InviteCode, error) {
	var code models.InviteCode
	err := row.Scan(
		&code.ID,
		&code.Code,
		&code.CreatedBy,
		&code.UsedBy,
		&code.IsActive,
		&code.CreatedAt,
		&code.UsedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get invite code: %w", err)
	}
	return &code, nil
}

// List retrieves all invite codes, newest first
func (r *InviteRepository) List(ctx context.Context) ([]*models.InviteCode, error) {
	query := `
		SELECT id, code, created_by, used_by, is_active, created_at, used_at
		FROM invite_codes
		ORDER BY created_at DESC
	`

	rows, err := r.db.Pool().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list invite codes: %w", err)
	}
	defer rows.Close()

	var codes []*models.InviteCode
	for rows.Next() {
		var code models.InviteCode
		if err := rows.Scan(
			&code.ID,
			&code.Code,
			&code.CreatedBy,
			&code.UsedBy,
			&code.IsActive,
			&code.CreatedAt,
			&code.UsedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan invite code: %w", err)
		}
		codes = append(codes, &code)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating invite codes: %w", err)
	}

	return codes, nil
}

// ConsumeWithTx marks a code as used by a user inside the signup transaction.
// The update is conditional on the code still being active and unconsumed, so
// two racing signups can never both consume the same code: exactly one update
// matches, the other sees zero rows and gets ErrNotFound.
func (r *InviteRepository) ConsumeWithTx(ctx context.Context, tx pgx.Tx, code, userID string) error {
	query := `
		UPDATE invite_codes
		SET used_by = $2, used_at = $3
		WHERE code = $1 AND is_active AND used_by IS NULL
	`

	result, err := tx.Exec(ctx, query, code, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to consume invite code: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}

// Revoke deactivates a code. Revoking an already revoked code is a no-op.
func (r *InviteRepository) Revoke(ctx context.Context, id string) error {
	query := `UPDATE invite_codes SET is_active = FALSE WHERE id = $1`

	result, err := r.db.Pool().Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to revoke invite code: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNotFound
	}

	return nil
}
