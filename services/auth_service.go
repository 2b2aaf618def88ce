package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*models.User, error)
	Login(ctx context.Context, input LoginInput) (*models.User, error)
}

type RegisterInput struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authService struct {
	userRepo   repositories.UserRepository
	playerRepo repositories.PlayerRepository
	logger     *slog.Logger
}

func NewAuthService(userRepo repositories.UserRepository, playerRepo repositories.PlayerRepository, logger *slog.Logger) AuthService {
	return &authService{
		userRepo:   userRepo,
		playerRepo: playerRepo,
		logger:     logger,
	}
}

// Register создаёт учётную запись игрока и привязанный к ней профиль игрока.
func (s *authService) Register(ctx context.Context, input RegisterInput) (*models.User, error) {
	firstName := strings.TrimSpace(input.FirstName)
	email := strings.ToLower(strings.TrimSpace(input.Email))
	if firstName == "" || email == "" {
		return nil, fmt.Errorf("%w: first name and email are required", ErrValidationFailed)
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, fmt.Errorf("%w: invalid email address", ErrValidationFailed)
	}
	if len(input.Password) < minPasswordLength {
		return nil, ErrPasswordTooShort
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("ошибка хеширования пароля: %w", err)
	}

	user := &models.User{
		FirstName:    firstName,
		LastName:     strings.TrimSpace(input.LastName),
		Email:        email,
		PasswordHash: string(hashedPassword),
		Role:         models.RolePlayer,
	}

	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, repositories.ErrUserEmailConflict) {
			return nil, ErrUserEmailConflict
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	player := &models.Player{FirstName: user.FirstName, LastName: user.LastName, UserID: &user.ID}
	if err := s.playerRepo.Create(ctx, nil, player); err != nil {
		// учётная запись уже создана, профиль можно завести позже
		s.logger.WarnContext(ctx, "failed to create player profile for new user",
			slog.Int("user_id", user.ID), slog.Any("error", err))
	}

	user.PasswordHash = ""
	return user, nil
}

func (s *authService) Login(ctx context.Context, input LoginInput) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repositories.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to compare password hash: %w", err)
	}

	user.PasswordHash = ""
	return user, nil
}
