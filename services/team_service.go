package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
	"github.com/Dosada05/volley-tournament/storage"
)

// maxRosterSize - игроков в заявке команды, включая запасных.
const maxRosterSize = 12

type TeamService interface {
	CreateTeam(ctx context.Context, actor Actor, input TeamInput) (*models.Team, error)
	GetTeam(ctx context.Context, id int) (*models.Team, error)
	ListTeams(ctx context.Context, limit, offset int) ([]models.Team, error)
	UpdateTeam(ctx context.Context, actor Actor, id int, name string) (*models.Team, error)
	DeleteTeam(ctx context.Context, actor Actor, id int) error
	AddPlayer(ctx context.Context, actor Actor, teamID, playerID int) (*models.Team, error)
	RemovePlayer(ctx context.Context, actor Actor, teamID, playerID int) (*models.Team, error)
	UploadTeamLogo(ctx context.Context, actor Actor, teamID int, file io.Reader, contentType string) (*models.Team, error)
}

type TeamInput struct {
	Name      string `json:"name"`
	PlayerIDs []int  `json:"player_ids"`
}

type teamService struct {
	teamRepo   repositories.TeamRepository
	playerRepo repositories.PlayerRepository
	uploader   storage.FileUploader
	logger     *slog.Logger
}

func NewTeamService(teamRepo repositories.TeamRepository, playerRepo repositories.PlayerRepository, uploader storage.FileUploader, logger *slog.Logger) TeamService {
	return &teamService{
		teamRepo:   teamRepo,
		playerRepo: playerRepo,
		uploader:   uploader,
		logger:     logger,
	}
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

// checkPlayersExist returns ErrPlayerNotFound when any id is unknown.
func (s *teamService) checkPlayersExist(ctx context.Context, ids []int) ([]models.Player, error) {
	players, err := s.playerRepo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(players) != len(ids) {
		return nil, fmt.Errorf("%w: some of %v do not exist", ErrPlayerNotFound, ids)
	}
	return players, nil
}

func (s *teamService) CreateTeam(ctx context.Context, actor Actor, input TeamInput) (*models.Team, error) {
	if actor.UserID == 0 {
		return nil, ErrForbiddenOperation
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}
	ids := uniqueIDs(input.PlayerIDs)
	if len(ids) > maxRosterSize {
		return nil, fmt.Errorf("%w: a team has at most %d players", ErrValidationFailed, maxRosterSize)
	}
	players, err := s.checkPlayersExist(ctx, ids)
	if err != nil {
		return nil, err
	}

	captainID := actor.UserID
	team := &models.Team{Name: name, CaptainID: &captainID, PlayerIDs: ids}
	if err := s.teamRepo.Create(ctx, team); err != nil {
		return nil, mapTeamRepoError(err)
	}
	team.Players = players
	s.logger.InfoContext(ctx, "team created", slog.Int("team_id", team.ID), slog.Int("captain_user_id", captainID))
	return team, nil
}

func (s *teamService) GetTeam(ctx context.Context, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	players, err := s.playerRepo.ListByIDs(ctx, team.PlayerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to load players of team %d: %w", id, err)
	}
	team.Players = players
	populateTeamLogoURLFunc(team, s.uploader)
	return team, nil
}

func (s *teamService) ListTeams(ctx context.Context, limit, offset int) ([]models.Team, error) {
	teams, err := s.teamRepo.List(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	for i := range teams {
		populateTeamLogoURLFunc(&teams[i], s.uploader)
	}
	return teams, nil
}

// getOwned загружает команду и проверяет, что actor - капитан или администратор.
func (s *teamService) getOwned(ctx context.Context, actor Actor, id int) (*models.Team, error) {
	team, err := s.teamRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTeamRepoError(err)
	}
	owner := 0
	if team.CaptainID != nil {
		owner = *team.CaptainID
	}
	if !actor.CanManage(owner) {
		return nil, ErrForbiddenOperation
	}
	return team, nil
}

func (s *teamService) UpdateTeam(ctx context.Context, actor Actor, id int, name string) (*models.Team, error) {
	team, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrTeamNameRequired
	}
	team.Name = name
	if err := s.teamRepo.Update(ctx, team); err != nil {
		return nil, mapTeamRepoError(err)
	}
	populateTeamLogoURLFunc(team, s.uploader)
	return team, nil
}

func (s *teamService) DeleteTeam(ctx context.Context, actor Actor, id int) error {
	team, err := s.getOwned(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.teamRepo.Delete(ctx, id); err != nil {
		return mapTeamRepoError(err)
	}
	if team.LogoKey != nil && s.uploader != nil {
		if err := s.uploader.Delete(ctx, *team.LogoKey); err != nil {
			s.logger.WarnContext(ctx, "failed to delete team logo", slog.Int("team_id", id), slog.Any("error", err))
		}
	}
	return nil
}

func (s *teamService) AddPlayer(ctx context.Context, actor Actor, teamID, playerID int) (*models.Team, error) {
	team, err := s.getOwned(ctx, actor, teamID)
	if err != nil {
		return nil, err
	}
	if team.HasPlayer(playerID) {
		return s.GetTeam(ctx, teamID)
	}
	if len(team.PlayerIDs) >= maxRosterSize {
		return nil, fmt.Errorf("%w: a team has at most %d players", ErrValidationFailed, maxRosterSize)
	}
	if _, err := s.checkPlayersExist(ctx, []int{playerID}); err != nil {
		return nil, err
	}
	if err := s.teamRepo.UpdatePlayers(ctx, teamID, append(team.PlayerIDs, playerID)); err != nil {
		return nil, mapTeamRepoError(err)
	}
	return s.GetTeam(ctx, teamID)
}

func (s *teamService) RemovePlayer(ctx context.Context, actor Actor, teamID, playerID int) (*models.Team, error) {
	team, err := s.getOwned(ctx, actor, teamID)
	if err != nil {
		return nil, err
	}
	if !team.HasPlayer(playerID) {
		return nil, fmt.Errorf("%w: player %d is not in team %d", ErrPlayerNotFound, playerID, teamID)
	}
	remaining := make([]int, 0, len(team.PlayerIDs)-1)
	for _, id := range team.PlayerIDs {
		if id != playerID {
			remaining = append(remaining, id)
		}
	}
	if err := s.teamRepo.UpdatePlayers(ctx, teamID, remaining); err != nil {
		return nil, mapTeamRepoError(err)
	}
	return s.GetTeam(ctx, teamID)
}

func (s *teamService) UploadTeamLogo(ctx context.Context, actor Actor, teamID int, file io.Reader, contentType string) (*models.Team, error) {
	if s.uploader == nil {
		return nil, ErrUploadsDisabled
	}
	team, err := s.getOwned(ctx, actor, teamID)
	if err != nil {
		return nil, err
	}
	key, err := newLogoKey(storage.OwnerTeams, teamID, contentType)
	if err != nil {
		return nil, err
	}
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload team logo: %w", err)
	}
	oldKey := team.LogoKey
	if err := s.teamRepo.UpdateLogoKey(ctx, teamID, &key); err != nil {
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			s.logger.WarnContext(ctx, "failed to clean up uploaded logo", slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, mapTeamRepoError(err)
	}
	if oldKey != nil && *oldKey != "" && *oldKey != key {
		if err := s.uploader.Delete(ctx, *oldKey); err != nil {
			s.logger.WarnContext(ctx, "failed to delete old team logo", slog.String("key", *oldKey), slog.Any("error", err))
		}
	}
	team.LogoKey = &key
	populateTeamLogoURLFunc(team, s.uploader)
	return team, nil
}

func mapTeamRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrTeamNotFound):
		return ErrTeamNotFound
	case errors.Is(err, repositories.ErrTeamNameConflict):
		return ErrTeamNameConflict
	case errors.Is(err, repositories.ErrTeamInUse):
		return ErrResourceInUse
	case errors.Is(err, repositories.ErrUserNotFound):
		return ErrUserNotFound
	}
	return err
}
