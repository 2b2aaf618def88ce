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

type MatchService interface {
	GetMatch(ctx context.Context, id int) (*models.Match, error)
	ListMatches(ctx context.Context, filter repositories.ListMatchesFilter) ([]*models.Match, error)
	RecordResult(ctx context.Context, actor Actor, matchID int, sets models.Sets) (*models.Match, error)
	ResetResult(ctx context.Context, actor Actor, matchID int) (*models.Match, error)
	UpdateSchedule(ctx context.Context, actor Actor, matchID int, input ScheduleInput) (*models.Match, error)
}

type ScheduleInput struct {
	Court       *string    `json:"court,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
}

// TournamentCompletedPayload - тело события tournament.completed.
type TournamentCompletedPayload struct {
	TournamentID         int `json:"tournament_id"`
	WinnerRegistrationID int `json:"winner_registration_id"`
	FinalMatchID         int `json:"final_match_id,omitempty"`
}

type matchService struct {
	tournamentRepo repositories.TournamentRepository
	matchRepo      repositories.MatchRepository
	phaseRepo      repositories.PhaseRepository
	tx             Transactor
	events         EventPublisher
	logger         *slog.Logger
}

func NewMatchService(deps StageServiceDeps) MatchService {
	return &matchService{
		tournamentRepo: deps.TournamentRepo,
		matchRepo:      deps.MatchRepo,
		phaseRepo:      deps.PhaseRepo,
		tx:             deps.Tx,
		events:         publisherOrNoop(deps.Events),
		logger:         deps.Logger,
	}
}

func (s *matchService) GetMatch(ctx context.Context, id int) (*models.Match, error) {
	m, err := s.matchRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapEngineError(err)
	}
	return m, nil
}

func (s *matchService) ListMatches(ctx context.Context, filter repositories.ListMatchesFilter) ([]*models.Match, error) {
	if filter.TournamentID != nil {
		if _, err := s.tournamentRepo.GetByID(ctx, *filter.TournamentID); err != nil {
			return nil, mapTournamentRepoError(err)
		}
	}
	matches, err := s.matchRepo.List(ctx, nil, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	if matches == nil {
		return []*models.Match{}, nil
	}
	return matches, nil
}

// lockMatch loads the match with its tournament and checks that it may be changed.
func (s *matchService) lockMatch(ctx context.Context, exec repositories.SQLExecutor, actor Actor, matchID int) (*models.Match, *models.Tournament, error) {
	m, err := s.matchRepo.GetByIDForUpdate(ctx, exec, matchID)
	if err != nil {
		return nil, nil, mapEngineError(err)
	}
	t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, m.TournamentID)
	if err != nil {
		return nil, nil, mapTournamentRepoError(err)
	}
	if !actor.CanManage(t.OrganizerID) {
		return nil, nil, ErrForbiddenOperation
	}
	if t.Status.IsTerminal() {
		return nil, nil, ErrTournamentFinished
	}
	if m.Stage == models.StagePool {
		bracketStage := models.StageBracket
		bracket, err := s.matchRepo.List(ctx, exec, repositories.ListMatchesFilter{TournamentID: &t.ID, Stage: &bracketStage})
		if err != nil {
			return nil, nil, err
		}
		if len(bracket) > 0 {
			return nil, nil, ErrPoolStageLocked
		}
	}
	if m.PhaseID != nil {
		phase, err := s.phaseRepo.GetByIDForUpdate(ctx, exec, *m.PhaseID)
		if err != nil {
			return nil, nil, mapEngineError(err)
		}
		if phase.Status == models.PhaseCompleted {
			return nil, nil, ErrPhaseClosed
		}
	}
	return m, t, nil
}

// checkDownstream fails when a match fed by m already has a result.
func (s *matchService) checkDownstream(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	for _, id := range []*int{m.NextMatchID, m.LoserNextMatchID} {
		if id == nil {
			continue
		}
		next, err := s.matchRepo.GetByIDForUpdate(ctx, exec, *id)
		if err != nil {
			return mapEngineError(err)
		}
		if next.IsCompleted() {
			return ErrDownstreamPlayed
		}
	}
	return nil
}

// finishedFinal returns the final once every bracket match, the third place
// match included, is completed or canceled. Otherwise it returns nil.
func (s *matchService) finishedFinal(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*models.Match, error) {
	stage := models.StageBracket
	bracket, err := s.matchRepo.List(ctx, exec, repositories.ListMatchesFilter{TournamentID: &tournamentID, Stage: &stage})
	if err != nil {
		return nil, err
	}
	if !allCompleted(bracket) {
		return nil, nil
	}
	for _, m := range bracket {
		if isFinal(m) && m.IsCompleted() && len(m.Winners()) == 1 {
			return m, nil
		}
	}
	return nil, nil
}

// RecordResult сохраняет счёт по сетам, определяет победителя и продвигает
// стороны по сетке. Турнир завершается, когда сыграна вся сетка: финал и матч
// за третье место в любом порядке.
func (s *matchService) RecordResult(ctx context.Context, actor Actor, matchID int, sets models.Sets) (_ *models.Match, err error) {
	ctx, span := tracer.Start(ctx, "MatchService.RecordResult")
	span.SetAttributes(attribute.Int("match_id", matchID))
	defer func() { endSpan(span, err) }()

	var (
		m         *models.Match
		completed *TournamentCompletedPayload
	)
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var t *models.Tournament
		var err error
		m, t, err = s.lockMatch(ctx, exec, actor, matchID)
		if err != nil {
			return err
		}
		if len(m.SideA) == 0 || len(m.SideB) == 0 {
			return ErrMatchNotReady
		}
		if m.Status == models.MatchStatusCanceled {
			return fmt.Errorf("%w: match is canceled", ErrInvalidMatchResult)
		}
		winner, err := brackets.WinnerSide(sets, t.Settings.SetsToWin)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidMatchResult, err)
		}
		if m.IsCompleted() && *m.WinnerSide != winner {
			if err := s.checkDownstream(ctx, exec, m); err != nil {
				return err
			}
		}

		if err := s.matchRepo.UpdateResult(ctx, exec, m.ID, sets, models.MatchStatusCompleted, &winner); err != nil {
			return err
		}
		m.Sets = sets
		m.Status = models.MatchStatusCompleted
		m.WinnerSide = &winner

		if m.NextMatchID != nil && m.WinnerToSlot != nil {
			if err := s.matchRepo.SetSlot(ctx, exec, *m.NextMatchID, *m.WinnerToSlot, m.Winners()); err != nil {
				return fmt.Errorf("failed to advance winner of match %d: %w", m.ID, err)
			}
		}
		if m.LoserNextMatchID != nil && m.LoserToSlot != nil {
			if err := s.matchRepo.SetSlot(ctx, exec, *m.LoserNextMatchID, *m.LoserToSlot, m.Losers()); err != nil {
				return fmt.Errorf("failed to move loser of match %d: %w", m.ID, err)
			}
		}

		if m.Stage != models.StageBracket {
			return nil
		}
		final, err := s.finishedFinal(ctx, exec, t.ID)
		if err != nil || final == nil {
			return err
		}
		winnerID := final.Winners()[0]
		if err := s.tournamentRepo.UpdateWinner(ctx, exec, t.ID, &winnerID); err != nil {
			return err
		}
		if err := s.tournamentRepo.UpdateStatus(ctx, exec, t.ID, models.StatusCompleted); err != nil {
			return err
		}
		completed = &TournamentCompletedPayload{TournamentID: t.ID, WinnerRegistrationID: winnerID, FinalMatchID: final.ID}
		return nil
	})
	if err != nil {
		return nil, mapEngineError(err)
	}

	s.logger.InfoContext(ctx, "match result recorded",
		slog.Int("tournament_id", m.TournamentID), slog.Int("match_id", m.ID), slog.Int("winner_side", *m.WinnerSide))
	publish(ctx, s.events, s.logger, events.TopicMatchUpdated, m.TournamentID, m)
	if completed != nil {
		s.logger.InfoContext(ctx, "tournament completed",
			slog.Int("tournament_id", completed.TournamentID), slog.Int("winner_registration_id", completed.WinnerRegistrationID))
		publish(ctx, s.events, s.logger, events.TopicTournamentCompleted, completed.TournamentID, completed)
	}
	return m, nil
}

// ResetResult отменяет результат, если следующие матчи сетки ещё не сыграны.
func (s *matchService) ResetResult(ctx context.Context, actor Actor, matchID int) (*models.Match, error) {
	var m *models.Match
	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var err error
		m, _, err = s.lockMatch(ctx, exec, actor, matchID)
		if err != nil {
			return err
		}
		if !m.IsCompleted() {
			return nil
		}
		if err := s.checkDownstream(ctx, exec, m); err != nil {
			return err
		}
		if m.NextMatchID != nil && m.WinnerToSlot != nil {
			if err := s.matchRepo.SetSlot(ctx, exec, *m.NextMatchID, *m.WinnerToSlot, nil); err != nil {
				return err
			}
		}
		if m.LoserNextMatchID != nil && m.LoserToSlot != nil {
			if err := s.matchRepo.SetSlot(ctx, exec, *m.LoserNextMatchID, *m.LoserToSlot, nil); err != nil {
				return err
			}
		}
		if err := s.matchRepo.UpdateResult(ctx, exec, m.ID, nil, models.MatchStatusScheduled, nil); err != nil {
			return err
		}
		m.Sets = nil
		m.Status = models.MatchStatusScheduled
		m.WinnerSide = nil
		return nil
	})
	if err != nil {
		return nil, mapEngineError(err)
	}
	s.logger.InfoContext(ctx, "match result reset", slog.Int("match_id", m.ID))
	publish(ctx, s.events, s.logger, events.TopicMatchUpdated, m.TournamentID, m)
	return m, nil
}

func (s *matchService) UpdateSchedule(ctx context.Context, actor Actor, matchID int, input ScheduleInput) (*models.Match, error) {
	m, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, mapEngineError(err)
	}
	t, err := s.tournamentRepo.GetByID(ctx, m.TournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if !actor.CanManage(t.OrganizerID) {
		return nil, ErrForbiddenOperation
	}
	if t.Status.IsTerminal() {
		return nil, ErrTournamentFinished
	}
	if err := s.matchRepo.UpdateSchedule(ctx, m.ID, input.Court, input.ScheduledAt); err != nil {
		return nil, mapEngineError(err)
	}
	m.Court = input.Court
	m.ScheduledAt = input.ScheduledAt
	publish(ctx, s.events, s.logger, events.TopicMatchUpdated, m.TournamentID, m)
	return m, nil
}
