package services

import (
	"context"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
	"golang.org/x/sync/errgroup"
)

type DashboardService interface {
	GetStats(ctx context.Context) (models.DashboardStats, error)
}

type dashboardService struct {
	userRepo         repositories.UserRepository
	playerRepo       repositories.PlayerRepository
	teamRepo         repositories.TeamRepository
	tournamentRepo   repositories.TournamentRepository
	matchRepo        repositories.MatchRepository
	registrationRepo repositories.RegistrationRepository
}

func NewDashboardService(
	userRepo repositories.UserRepository,
	playerRepo repositories.PlayerRepository,
	teamRepo repositories.TeamRepository,
	tournamentRepo repositories.TournamentRepository,
	matchRepo repositories.MatchRepository,
	registrationRepo repositories.RegistrationRepository,
) DashboardService {
	return &dashboardService{
		userRepo:         userRepo,
		playerRepo:       playerRepo,
		teamRepo:         teamRepo,
		tournamentRepo:   tournamentRepo,
		matchRepo:        matchRepo,
		registrationRepo: registrationRepo,
	}
}

func (s *dashboardService) GetStats(ctx context.Context) (models.DashboardStats, error) {
	var stats models.DashboardStats
	active := models.StatusActive
	completed := models.MatchStatusCompleted

	g, gCtx := errgroup.WithContext(ctx)
	count := func(dst *int, fn func(context.Context) (int, error)) {
		g.Go(func() error {
			n, err := fn(gCtx)
			*dst = n
			return err
		})
	}
	count(&stats.UsersTotal, s.userRepo.Count)
	count(&stats.PlayersTotal, s.playerRepo.Count)
	count(&stats.TeamsTotal, s.teamRepo.Count)
	count(&stats.TournamentsTotal, func(ctx context.Context) (int, error) { return s.tournamentRepo.Count(ctx, nil) })
	count(&stats.ActiveTournaments, func(ctx context.Context) (int, error) { return s.tournamentRepo.Count(ctx, &active) })
	count(&stats.MatchesTotal, func(ctx context.Context) (int, error) { return s.matchRepo.Count(ctx, nil) })
	count(&stats.CompletedMatches, func(ctx context.Context) (int, error) { return s.matchRepo.Count(ctx, &completed) })
	count(&stats.PendingRegistrations, func(ctx context.Context) (int, error) {
		return s.registrationRepo.CountAllByStatus(ctx, models.RegistrationPending)
	})

	if err := g.Wait(); err != nil {
		return models.DashboardStats{}, err
	}
	return stats, nil
}
