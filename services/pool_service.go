package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/volley-tournament/brackets"
	"github.com/Dosada05/volley-tournament/events"
	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
	"go.opentelemetry.io/otel/attribute"
)

// PoolService ведёт групповой этап классического турнира и таблицы любых пулов.
type PoolService interface {
	CreatePools(ctx context.Context, actor Actor, tournamentID int, poolCount int) ([]models.Pool, error)
	ListPools(ctx context.Context, tournamentID int) ([]models.Pool, error)
	PoolStandings(ctx context.Context, poolID int) (*PoolStandings, error)
	TournamentStandings(ctx context.Context, tournamentID int) ([]PoolStandings, error)
}

type StageServiceDeps struct {
	TournamentRepo   repositories.TournamentRepository
	RegistrationRepo repositories.RegistrationRepository
	PoolRepo         repositories.PoolRepository
	MatchRepo        repositories.MatchRepository
	PhaseRepo        repositories.PhaseRepository
	Tx               Transactor
	Events           EventPublisher
	Logger           *slog.Logger
	Now              func() time.Time
}

type poolService struct {
	tournamentRepo   repositories.TournamentRepository
	registrationRepo repositories.RegistrationRepository
	poolRepo         repositories.PoolRepository
	matchRepo        repositories.MatchRepository
	tx               Transactor
	events           EventPublisher
	logger           *slog.Logger
}

func NewPoolService(deps StageServiceDeps) PoolService {
	return &poolService{
		tournamentRepo:   deps.TournamentRepo,
		registrationRepo: deps.RegistrationRepo,
		poolRepo:         deps.PoolRepo,
		matchRepo:        deps.MatchRepo,
		tx:               deps.Tx,
		events:           publisherOrNoop(deps.Events),
		logger:           deps.Logger,
	}
}

// CreatePools раскладывает подтверждённые заявки змейкой по пулам и генерирует
// круговые матчи. Повторный вызов пересоздаёт пулы, пока ни один матч не сыгран.
func (s *poolService) CreatePools(ctx context.Context, actor Actor, tournamentID int, poolCount int) (_ []models.Pool, err error) {
	ctx, span := tracer.Start(ctx, "PoolService.CreatePools")
	span.SetAttributes(attribute.Int("tournament_id", tournamentID))
	defer func() { endSpan(span, err) }()

	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if !actor.CanManage(t.OrganizerID) {
		return nil, ErrForbiddenOperation
	}
	if t.Kind != models.KindClassic {
		return nil, ErrWrongTournamentKind
	}
	if t.Status.IsTerminal() {
		return nil, ErrTournamentFinished
	}
	if poolCount <= 0 {
		poolCount = t.Settings.PoolCount
	}
	if poolCount <= 0 {
		poolCount = 1
	}

	confirmed := models.RegistrationConfirmed
	regs, err := s.registrationRepo.ListByTournament(ctx, tournamentID, &confirmed, false)
	if err != nil {
		return nil, fmt.Errorf("failed to load confirmed registrations: %w", err)
	}
	if len(regs) < 2*poolCount {
		return nil, fmt.Errorf("%w: %d entries for %d pools", ErrNotEnoughEntries, len(regs), poolCount)
	}
	distribution := brackets.SnakeDistribute(orderBySeed(regs), poolCount)

	var pools []models.Pool
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID); err != nil {
			return mapTournamentRepoError(err)
		}
		stage := models.StagePool
		existing, err := s.matchRepo.List(ctx, exec, repositories.ListMatchesFilter{TournamentID: &tournamentID, Stage: &stage})
		if err != nil {
			return err
		}
		if anyCompleted(existing) {
			return ErrStageAlreadyPlayed
		}
		bracketStage := models.StageBracket
		bracket, err := s.matchRepo.List(ctx, exec, repositories.ListMatchesFilter{TournamentID: &tournamentID, Stage: &bracketStage})
		if err != nil {
			return err
		}
		if len(bracket) > 0 {
			return ErrStageAlreadyPlayed
		}
		if err := s.poolRepo.DeleteStageByTournament(ctx, exec, tournamentID); err != nil {
			return err
		}

		generator, err := brackets.NewGeneratorForStage(t.Kind, models.StagePool)
		if err != nil {
			return err
		}
		for i, entries := range distribution {
			pool := models.Pool{
				TournamentID: tournamentID,
				Name:         poolName(i + 1),
				Position:     i + 1,
				EntryIDs:     entries,
			}
			if err := s.poolRepo.Create(ctx, exec, &pool); err != nil {
				return fmt.Errorf("failed to create pool %s: %w", pool.Name, err)
			}
			generated, err := generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
				Tournament: t,
				Entries:    entries,
				Label:      fmt.Sprintf("P%d-", pool.Position),
			})
			if err != nil {
				return err
			}
			poolID := pool.ID
			base := models.Match{TournamentID: tournamentID, Stage: models.StagePool, PoolID: &poolID}
			if _, err := persistMatches(ctx, exec, s.matchRepo, base, generated); err != nil {
				return err
			}
			pools = append(pools, pool)
		}
		return nil
	})
	if err != nil {
		return nil, mapEngineError(err)
	}

	s.logger.InfoContext(ctx, "pools created",
		slog.Int("tournament_id", tournamentID), slog.Int("pools", len(pools)), slog.Int("entries", len(regs)))
	publish(ctx, s.events, s.logger, events.TopicPoolsGenerated, tournamentID, pools)
	return pools, nil
}

func (s *poolService) ListPools(ctx context.Context, tournamentID int) ([]models.Pool, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return s.poolRepo.ListByTournament(ctx, tournamentID)
}

func (s *poolService) PoolStandings(ctx context.Context, poolID int) (*PoolStandings, error) {
	pool, err := s.poolRepo.GetByID(ctx, poolID)
	if err != nil {
		return nil, mapEngineError(err)
	}
	t, err := s.tournamentRepo.GetByID(ctx, pool.TournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	matches, err := s.matchRepo.List(ctx, nil, repositories.ListMatchesFilter{PoolID: &pool.ID})
	if err != nil {
		return nil, err
	}
	regs, err := s.registrationRepo.ListByTournament(ctx, t.ID, nil, true)
	if err != nil {
		return nil, err
	}
	table := rankPool(t, *pool, matches, nameMap(regs))
	return &table, nil
}

// TournamentStandings returns the table of every pool of the tournament, phases included.
func (s *poolService) TournamentStandings(ctx context.Context, tournamentID int) ([]PoolStandings, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	pools, err := s.poolRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	matches, err := s.matchRepo.List(ctx, nil, repositories.ListMatchesFilter{TournamentID: &tournamentID})
	if err != nil {
		return nil, err
	}
	regs, err := s.registrationRepo.ListByTournament(ctx, tournamentID, nil, true)
	if err != nil {
		return nil, err
	}
	names := nameMap(regs)
	tables := make([]PoolStandings, 0, len(pools))
	for _, pool := range pools {
		tables = append(tables, rankPool(t, pool, matches, names))
	}
	return tables, nil
}
