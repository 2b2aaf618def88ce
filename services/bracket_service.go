package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Dosada05/volley-tournament/brackets"
	"github.com/Dosada05/volley-tournament/events"
	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
	"go.opentelemetry.io/otel/attribute"
)

const bracketLabel = "B-"

// defaultQualifiersPerPool - сколько команд выходит из пула, если в настройках не задано.
const defaultQualifiersPerPool = 2

type BracketService interface {
	GenerateBracket(ctx context.Context, actor Actor, tournamentID int) ([]*models.Match, error)
	GetBracket(ctx context.Context, tournamentID int) ([]*models.Match, error)
}

type bracketService struct {
	tournamentRepo   repositories.TournamentRepository
	registrationRepo repositories.RegistrationRepository
	poolRepo         repositories.PoolRepository
	matchRepo        repositories.MatchRepository
	tx               Transactor
	events           EventPublisher
	logger           *slog.Logger
}

func NewBracketService(deps StageServiceDeps) BracketService {
	return &bracketService{
		tournamentRepo:   deps.TournamentRepo,
		registrationRepo: deps.RegistrationRepo,
		poolRepo:         deps.PoolRepo,
		matchRepo:        deps.MatchRepo,
		tx:               deps.Tx,
		events:           publisherOrNoop(deps.Events),
		logger:           deps.Logger,
	}
}

// isFinal reports whether m decides the tournament winner.
func isFinal(m *models.Match) bool {
	if m.Stage != models.StageBracket || m.NextMatchID != nil {
		return false
	}
	return m.BracketUID == nil || !strings.HasSuffix(*m.BracketUID, brackets.ThirdPlaceUID)
}

// GenerateBracket строит сетку плей-офф. Если есть пулы, в сетку выходят лучшие
// из каждого пула, иначе все подтверждённые заявки по посеву.
func (s *bracketService) GenerateBracket(ctx context.Context, actor Actor, tournamentID int) (_ []*models.Match, err error) {
	ctx, span := tracer.Start(ctx, "BracketService.GenerateBracket")
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

	var created []*models.Match
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID); err != nil {
			return mapTournamentRepoError(err)
		}
		stage := models.StageBracket
		existing, err := s.matchRepo.List(ctx, exec, repositories.ListMatchesFilter{TournamentID: &tournamentID, Stage: &stage})
		if err != nil {
			return err
		}
		if anyCompleted(existing) {
			return ErrStageAlreadyPlayed
		}

		entries, err := s.qualifiedEntries(ctx, exec, t)
		if err != nil {
			return err
		}
		if len(entries) < 2 {
			return fmt.Errorf("%w: bracket needs at least 2 entries", ErrNotEnoughEntries)
		}

		if err := s.matchRepo.DeleteByStage(ctx, exec, tournamentID, models.StageBracket); err != nil {
			return err
		}
		generator, err := brackets.NewGeneratorForStage(t.Kind, models.StageBracket)
		if err != nil {
			return err
		}
		generated, err := generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
			Tournament: t,
			Entries:    entries,
			Label:      bracketLabel,
		})
		if err != nil {
			return err
		}
		created, err = persistMatches(ctx, exec, s.matchRepo, models.Match{TournamentID: tournamentID, Stage: models.StageBracket}, generated)
		return err
	})
	if err != nil {
		return nil, mapEngineError(err)
	}

	s.logger.InfoContext(ctx, "bracket generated",
		slog.Int("tournament_id", tournamentID), slog.Int("matches", len(created)))
	publish(ctx, s.events, s.logger, events.TopicBracketGenerated, tournamentID, created)
	return created, nil
}

func (s *bracketService) qualifiedEntries(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) ([]int, error) {
	pools, err := s.poolRepo.ListByTournament(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	stagePools := make([]models.Pool, 0, len(pools))
	for _, p := range pools {
		if p.PhaseID == nil {
			stagePools = append(stagePools, p)
		}
	}

	if len(stagePools) == 0 {
		confirmed := models.RegistrationConfirmed
		regs, err := s.registrationRepo.ListByTournament(ctx, t.ID, &confirmed, false)
		if err != nil {
			return nil, err
		}
		return orderBySeed(regs), nil
	}

	stage := models.StagePool
	matches, err := s.matchRepo.List(ctx, exec, repositories.ListMatchesFilter{TournamentID: &t.ID, Stage: &stage})
	if err != nil {
		return nil, err
	}
	if !allCompleted(matches) {
		return nil, ErrPoolStageIncomplete
	}

	perPool := t.Settings.QualifiersPerPool
	if perPool <= 0 {
		perPool = defaultQualifiersPerPool
	}
	tables := make([][]models.Standing, 0, len(stagePools))
	for _, pool := range stagePools {
		tables = append(tables, rankPool(t, pool, matches, nil).Standings)
	}
	return brackets.SelectQualifiers(tables, perPool, 0)
}

func (s *bracketService) GetBracket(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	stage := models.StageBracket
	return s.matchRepo.List(ctx, nil, repositories.ListMatchesFilter{TournamentID: &tournamentID, Stage: &stage})
}
