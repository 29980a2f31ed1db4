// Package service implements the application's business logic on top of the
// storage repositories.
package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/cryptotracker/internal/logging"
	"github.com/cryptotracker/internal/models"
	"github.com/cryptotracker/internal/storage"
	"github.com/cryptotracker/internal/types"
	"github.com/jackc/pgx/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthUserRepository is the user persistence surface the auth service needs
type AuthUserRepository interface {
	BeginTx(ctx context.Context) (pgx.Tx, error)
	CreateWithTx(ctx context.Context, tx pgx.Tx, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
}

// AuthInviteRepository is the invite persistence surface the auth service needs
type AuthInviteRepository interface {
	ConsumeWithTx(ctx context.Context, tx pgx.Tx, code, userID string) error
	Create(ctx context.Context, code *models.InviteCode) error
	Revoke(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*models.InviteCode, error)
	List(ctx context.Context) ([]*models.InviteCode, error)
}

// AuthService handles signup, login, and invite code administration
type AuthService struct {
	userRepo   AuthUserRepository
	inviteRepo AuthInviteRepository
	logger     *logging.Logger
}

// NewAuthService creates a new auth service
func NewAuthService(userRepo AuthUserRepository, inviteRepo AuthInviteRepository, logger *logging.Logger) *AuthService {
	return &AuthService{
		userRepo:   userRepo,
		inviteRepo: inviteRepo,
		logger:     logger,
	}
}

// RegisterInput represents a signup request
type RegisterInput struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	InviteCode      string `json:"inviteCode,omitempty"`
}

// Register creates a user behind the invite gate.
//
// The first user ever bootstraps as admin and needs no invite code. Every
// later signup must present an active, unconsumed code. User creation and
// code consumption happen in one transaction: the insert itself decides
// whether this is the first user, and the code update is conditional on the
// code still being consumable, so concurrent signups can neither both
// bootstrap as admin nor both consume the same code.
func (s *AuthService) Register(ctx context.Context, input *RegisterInput) (*models.User, error) {
	if input.Username == "" {
		return nil, types.ValidationError("username", "Username is required")
	}
	if len(input.Password) < 8 {
		return nil, types.ValidationError("password", "Password must be at least 8 characters")
	}
	if input.Password != input.ConfirmPassword {
		return nil, &types.ServiceError{
			Code:    types.CodePasswordMismatch,
			Message: "Passwords don't match",
			Details: map[string]interface{}{"field": "confirmPassword"},
		}
	}

	// Friendly pre-check; the unique constraint is authoritative
	taken, err := s.userRepo.ExistsByUsername(ctx, input.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return nil, usernameTakenError(input.Username)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		Username:     input.Username,
		PasswordHash: string(hash),
	}

	tx, err := s.userRepo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin signup transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback(ctx) // nolint:errcheck // no-op after commit
	}()

	if err := s.userRepo.CreateWithTx(ctx, tx, user); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return nil, usernameTakenError(input.Username)
		}
		return nil, err
	}

	// IsAdmin was decided by the insert: true means this was the first user
	if !user.IsAdmin {
		if input.InviteCode == "" {
			return nil, &types.ServiceError{
				Code:    types.CodeInviteRequired,
				Message: "Invite code is required",
				Details: map[string]interface{}{"field": "inviteCode"},
			}
		}

		if err := s.inviteRepo.ConsumeWithTx(ctx, tx, input.InviteCode, user.ID); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, &types.ServiceError{
					Code:    types.CodeInviteInvalid,
					Message: "Invalid or already used invite code",
					Details: map[string]interface{}{"field": "inviteCode"},
				}
			}
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit signup: %w", err)
	}

	s.logger.WithFields(map[string]interface{}{
		"username": user.Username,
		"admin":    user.IsAdmin,
	}).Info("user registered")

	return user, nil
}

// Login verifies credentials and returns the user
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, badCredentialsError()
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, badCredentialsError()
	}

	return user, nil
}

// GenerateInviteCode creates a fresh random invite code for an admin
func (s *AuthService) GenerateInviteCode(ctx context.Context, creatorID string) (*models.InviteCode, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("failed to generate invite code: %w", err)
	}

	code := &models.InviteCode{
		Code:      base64.RawURLEncoding.EncodeToString(buf)[:32],
		CreatedBy: creatorID,
	}

	if err := s.inviteRepo.Create(ctx, code); err != nil {
		return nil, err
	}

	s.logger.WithField("codeId", code.ID).Info("invite code generated")
	return code, nil
}

// RevokeInviteCode deactivates a code; revoking twice is a no-op
func (s *AuthService) RevokeInviteCode(ctx context.Context, id string) error {
	if err := s.inviteRepo.Revoke(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return notFoundError("invite code", id)
		}
		return err
	}
	return nil
}

// ListInviteCodes lists every invite code, newest first
func (s *AuthService) ListInviteCodes(ctx context.Context) ([]*models.InviteCode, error) {
	return s.inviteRepo.List(ctx)
}

func usernameTakenError(username string) *types.ServiceError {
	return &types.ServiceError{
		Code:    types.CodeUsernameTaken,
		Message: "Username already exists",
		Details: map[string]interface{}{"field": "username", "username": username},
	}
}

func badCredentialsError() *types.ServiceError {
	return &types.ServiceError{
		Code:    types.CodeBadCredentials,
		Message: "Invalid username or password",
	}
}

func notFoundError(kind, id string) *types.ServiceError {
	return &types.ServiceError{
		Code:    types.CodeNotFound,
		Message: fmt.Sprintf("%s not found: %s", kind, id),
		Details: map[string]interface{}{"id": id},
	}
}
