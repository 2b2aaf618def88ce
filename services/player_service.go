package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
)

type PlayerService interface {
	CreatePlayer(ctx context.Context, actor Actor, input PlayerInput) (*models.Player, error)
	GetPlayer(ctx context.Context, id int) (*models.Player, error)
	ListPlayers(ctx context.Context, filter repositories.ListPlayersFilter) ([]models.Player, error)
	UpdatePlayer(ctx context.Context, actor Actor, id int, input PlayerInput) (*models.Player, error)
	DeletePlayer(ctx context.Context, actor Actor, id int) error
}

type PlayerInput struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Gender    *string `json:"gender,omitempty"`
	Level     *string `json:"level,omitempty"`
}

type playerService struct {
	playerRepo repositories.PlayerRepository
}

func NewPlayerService(playerRepo repositories.PlayerRepository) PlayerService {
	return &playerService{playerRepo: playerRepo}
}

func normalizePlayerInput(input PlayerInput) (PlayerInput, error) {
	input.FirstName = strings.TrimSpace(input.FirstName)
	input.LastName = strings.TrimSpace(input.LastName)
	if input.FirstName == "" {
		return input, ErrPlayerNameRequired
	}
	if input.Gender != nil {
		g := strings.ToLower(strings.TrimSpace(*input.Gender))
		switch g {
		case "":
			input.Gender = nil
		case "m", "f", "x":
			input.Gender = &g
		default:
			return input, fmt.Errorf("%w: gender must be m, f or x", ErrValidationFailed)
		}
	}
	if input.Level != nil {
		lvl := strings.TrimSpace(*input.Level)
		if lvl == "" {
			input.Level = nil
		} else {
			input.Level = &lvl
		}
	}
	return input, nil
}

// CreatePlayer: организатор заводит любого игрока, игрок - только собственный профиль.
func (s *playerService) CreatePlayer(ctx context.Context, actor Actor, input PlayerInput) (*models.Player, error) {
	input, err := normalizePlayerInput(input)
	if err != nil {
		return nil, err
	}
	p := &models.Player{
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Gender:    input.Gender,
		Level:     input.Level,
	}
	if !actor.IsStaff() {
		if actor.UserID == 0 {
			return nil, ErrForbiddenOperation
		}
		userID := actor.UserID
		p.UserID = &userID
	}
	if err := s.playerRepo.Create(ctx, nil, p); err != nil {
		return nil, mapPlayerRepoError(err)
	}
	return p, nil
}

func (s *playerService) GetPlayer(ctx context.Context, id int) (*models.Player, error) {
	p, err := s.playerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapPlayerRepoError(err)
	}
	return p, nil
}

func (s *playerService) ListPlayers(ctx context.Context, filter repositories.ListPlayersFilter) ([]models.Player, error) {
	if filter.Limit <= 0 || filter.Limit > 200 {
		filter.Limit = 50
	}
	filter.Search = strings.TrimSpace(filter.Search)
	return s.playerRepo.List(ctx, filter)
}

func canEditPlayer(actor Actor, p *models.Player) bool {
	if actor.IsStaff() {
		return true
	}
	return p.UserID != nil && *p.UserID == actor.UserID
}

func (s *playerService) UpdatePlayer(ctx context.Context, actor Actor, id int, input PlayerInput) (*models.Player, error) {
	p, err := s.playerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapPlayerRepoError(err)
	}
	if !canEditPlayer(actor, p) {
		return nil, ErrForbiddenOperation
	}
	input, err = normalizePlayerInput(input)
	if err != nil {
		return nil, err
	}
	p.FirstName = input.FirstName
	p.LastName = input.LastName
	p.Gender = input.Gender
	p.Level = input.Level
	if err := s.playerRepo.Update(ctx, p); err != nil {
		return nil, mapPlayerRepoError(err)
	}
	return p, nil
}

func (s *playerService) DeletePlayer(ctx context.Context, actor Actor, id int) error {
	p, err := s.playerRepo.GetByID(ctx, id)
	if err != nil {
		return mapPlayerRepoError(err)
	}
	if !canEditPlayer(actor, p) {
		return ErrForbiddenOperation
	}
	return mapPlayerRepoError(s.playerRepo.Delete(ctx, id))
}

func mapPlayerRepoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repositories.ErrPlayerNotFound):
		return ErrPlayerNotFound
	case errors.Is(err, repositories.ErrPlayerUserConflict):
		return ErrPlayerProfileConflict
	case errors.Is(err, repositories.ErrPlayerUserInvalid):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrPlayerInUse):
		return ErrResourceInUse
	}
	return err
}
