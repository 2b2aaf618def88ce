package services

import (
	"context"
	"fmt"
	"net/mail"
	"strings"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
)

type UserService interface {
	GetProfile(ctx context.Context, userID int) (*UserProfile, error)
	UpdateProfile(ctx context.Context, actor Actor, userID int, input UpdateProfileInput) (*models.User, error)
}

// UserProfile - пользователь и его профиль игрока, если он есть.
type UserProfile struct {
	User   *models.User   `json:"user"`
	Player *models.Player `json:"player,omitempty"`
}

type UpdateProfileInput struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Email     *string `json:"email,omitempty"`
}

type userService struct {
	userRepo   repositories.UserRepository
	playerRepo repositories.PlayerRepository
}

func NewUserService(userRepo repositories.UserRepository, playerRepo repositories.PlayerRepository) UserService {
	return &userService{userRepo: userRepo, playerRepo: playerRepo}
}

func (s *userService) GetProfile(ctx context.Context, userID int) (*UserProfile, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserRepoError(err)
	}
	user.PasswordHash = ""
	profile := &UserProfile{User: user}

	player, err := s.playerRepo.GetByUserID(ctx, userID)
	if err == nil {
		profile.Player = player
	}
	return profile, nil
}

func (s *userService) UpdateProfile(ctx context.Context, actor Actor, userID int, input UpdateProfileInput) (*models.User, error) {
	if !actor.CanManage(userID) {
		return nil, ErrForbiddenOperation
	}
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return nil, mapUserRepoError(err)
	}

	if input.FirstName != nil {
		name := strings.TrimSpace(*input.FirstName)
		if name == "" {
			return nil, fmt.Errorf("%w: first name cannot be empty", ErrValidationFailed)
		}
		user.FirstName = name
	}
	if input.LastName != nil {
		user.LastName = strings.TrimSpace(*input.LastName)
	}
	if input.Email != nil {
		email := strings.ToLower(strings.TrimSpace(*input.Email))
		if _, err := mail.ParseAddress(email); err != nil {
			return nil, fmt.Errorf("%w: invalid email address", ErrValidationFailed)
		}
		user.Email = email
	}

	if err := s.userRepo.Update(ctx, user); err != nil {
		return nil, mapUserRepoError(err)
	}
	user.PasswordHash = ""
	return user, nil
}
