package service

import (
	"context"
	"errors"

	"github.com/cryptotracker/internal/logging"
	"github.com/cryptotracker/internal/models"
	"github.com/cryptotracker/internal/storage"
	"github.com/cryptotracker/internal/types"
)

// AdminUserRepository is the user persistence surface the admin service needs
type AdminUserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context) ([]*models.User, error)
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
}

// AdminService handles user administration
type AdminService struct {
	userRepo AdminUserRepository
	logger   *logging.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(userRepo AdminUserRepository, logger *logging.Logger) *AdminService {
	return &AdminService{
		userRepo: userRepo,
		logger:   logger,
	}
}

// ListUsers lists every registered user
func (s *AdminService) ListUsers(ctx context.Context) ([]*models.User, error) {
	return s.userRepo.List(ctx)
}

// ToggleAdmin flips a user's admin flag. Admins cannot toggle themselves, so
// the system can never end up without any admin.
func (s *AdminService) ToggleAdmin(ctx context.Context, actorID, targetID string) (*models.User, error) {
	if actorID == targetID {
		return nil, &types.ServiceError{
			Code:    types.CodeForbidden,
			Message: "You cannot change your own admin status",
		}
	}

	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, notFoundError("user", targetID)
		}
		return nil, err
	}

	target.IsAdmin = !target.IsAdmin
	if err := s.userRepo.SetAdmin(ctx, targetID, target.IsAdmin); err != nil {
		return nil, err
	}

	s.logger.WithFields(map[string]interface{}{
		"actorId":  actorID,
		"targetId": targetID,
		"admin":    target.IsAdmin,
	}).Info("admin status toggled")

	return target, nil
}
