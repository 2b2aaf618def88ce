package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
)

type AdminService interface {
	SetUserRole(ctx context.Context, actor Actor, userID int, role models.UserRole) (*models.User, error)
	DeleteUser(ctx context.Context, actor Actor, userID int) error
}

type adminService struct {
	userRepo repositories.UserRepository
	logger   *slog.Logger
}

func NewAdminService(userRepo repositories.UserRepository, logger *slog.Logger) AdminService {
	return &adminService{userRepo: userRepo, logger: logger}
}

// SetUserRole назначает роль; организаторы создают турниры.
func (s *adminService) SetUserRole(ctx context.Context, actor Actor, userID int, role models.UserRole) (*models.User, error) {
	if !actor.IsAdmin() {
		return nil, ErrForbiddenOperation
	}
	switch role {
	case models.RoleAdmin, models.RoleOrganizer, models.RolePlayer:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidationFailed, role)
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserRepoError(err)
	}
	if user.Role != role {
		user.Role = role
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, mapUserRepoError(err)
		}
		s.logger.InfoContext(ctx, "user role changed",
			slog.Int("user_id", userID), slog.String("role", string(role)), slog.Int("by", actor.UserID))
	}
	user.PasswordHash = ""
	return user, nil
}

func (s *adminService) DeleteUser(ctx context.Context, actor Actor, userID int) error {
	if !actor.IsAdmin() {
		return ErrForbiddenOperation
	}
	if actor.UserID == userID {
		return fmt.Errorf("%w: admins cannot delete themselves", ErrForbiddenOperation)
	}
	if err := s.userRepo.Delete(ctx, userID); err != nil {
		return mapUserRepoError(err)
	}
	return nil
}

func mapUserRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrUserNotFound):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrUserEmailConflict):
		return ErrUserEmailConflict
	case errors.Is(err, repositories.ErrUserInUse):
		return ErrResourceInUse
	}
	return err
}
