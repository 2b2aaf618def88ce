package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/volley-tournament/brackets"
	"github.com/Dosada05/volley-tournament/events"
	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
	"go.opentelemetry.io/otel/attribute"
)

// KingService управляет фазами King of the Beach: план, старт, закрытие, таблицы.
type KingService interface {
	GetPhases(ctx context.Context, tournamentID int) ([]models.Phase, error)
	ConfigurePhases(ctx context.Context, actor Actor, tournamentID int, plan []PhaseInput) ([]models.Phase, error)
	StartPhase(ctx context.Context, actor Actor, phaseID int) (*PhaseView, error)
	CompletePhase(ctx context.Context, actor Actor, phaseID int) (*PhaseView, error)
	PhaseStandings(ctx context.Context, phaseID int) (*PhaseView, error)
}

type PhaseInput struct {
	Name              string `json:"name"`
	TeamSize          int    `json:"team_size"`
	PoolCount         int    `json:"pool_count"`
	QualifiersPerPool int    `json:"qualifiers_per_pool"`
	RepechageSlots    int    `json:"repechage_slots"`
	RoundsPerPool     int    `json:"rounds_per_pool"`
}

// PhaseView - фаза вместе с таблицами её пулов.
type PhaseView struct {
	Phase models.Phase    `json:"phase"`
	Pools []PoolStandings `json:"pools"`
	// Promoted names the entries that went through, in promotion order.
	Promoted []models.Standing `json:"promoted,omitempty"`
}

type kingService struct {
	tournamentRepo   repositories.TournamentRepository
	registrationRepo repositories.RegistrationRepository
	poolRepo         repositories.PoolRepository
	matchRepo        repositories.MatchRepository
	phaseRepo        repositories.PhaseRepository
	tx               Transactor
	events           EventPublisher
	logger           *slog.Logger
	now              func() time.Time
}

func NewKingService(deps StageServiceDeps) KingService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &kingService{
		tournamentRepo:   deps.TournamentRepo,
		registrationRepo: deps.RegistrationRepo,
		poolRepo:         deps.PoolRepo,
		matchRepo:        deps.MatchRepo,
		phaseRepo:        deps.PhaseRepo,
		tx:               deps.Tx,
		events:           publisherOrNoop(deps.Events),
		logger:           deps.Logger,
		now:              now,
	}
}

func (s *kingService) GetPhases(ctx context.Context, tournamentID int) ([]models.Phase, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	return s.phaseRepo.ListByTournament(ctx, nil, tournamentID)
}

func (s *kingService) getManaged(ctx context.Context, id int, actor Actor) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if !actor.CanManage(t.OrganizerID) {
		return nil, ErrForbiddenOperation
	}
	if !t.Kind.IsPhased() {
		return nil, ErrWrongTournamentKind
	}
	if t.Status.IsTerminal() {
		return nil, ErrTournamentFinished
	}
	return t, nil
}

// ConfigurePhases заменяет план фаз целиком. Пока ни одна фаза не стартовала.
func (s *kingService) ConfigurePhases(ctx context.Context, actor Actor, tournamentID int, plan []PhaseInput) ([]models.Phase, error) {
	t, err := s.getManaged(ctx, tournamentID, actor)
	if err != nil {
		return nil, err
	}

	phases := make([]models.Phase, len(plan))
	for i, in := range plan {
		name := strings.TrimSpace(in.Name)
		if name == "" {
			name = fmt.Sprintf("Phase %d", i+1)
		}
		teamSize := in.TeamSize
		if t.Kind == models.KindTeamKing {
			teamSize = t.TeamSize
		}
		phases[i] = models.Phase{
			TournamentID:      tournamentID,
			Number:            i + 1,
			Name:              name,
			TeamSize:          teamSize,
			PoolCount:         in.PoolCount,
			QualifiersPerPool: in.QualifiersPerPool,
			RepechageSlots:    in.RepechageSlots,
			RoundsPerPool:     in.RoundsPerPool,
			Status:            models.PhaseConfigured,
		}
	}

	// Число участников известно только после закрытия регистрации.
	entries := 0
	if t.Status == models.StatusFull || t.Status == models.StatusActive {
		n, err := s.registrationRepo.CountByStatus(ctx, tournamentID, models.RegistrationConfirmed)
		if err != nil {
			return nil, err
		}
		entries = n
	}
	if err := brackets.ValidatePhasePlan(t.Kind, phases, entries); err != nil {
		return nil, mapEngineError(err)
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if _, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, tournamentID); err != nil {
			return mapTournamentRepoError(err)
		}
		current, err := s.phaseRepo.ListByTournament(ctx, exec, tournamentID)
		if err != nil {
			return err
		}
		for _, p := range current {
			if p.Status != models.PhaseConfigured {
				return ErrPhasePlanLocked
			}
		}
		return s.phaseRepo.ReplacePlan(ctx, exec, tournamentID, phases)
	})
	if err != nil {
		return nil, mapEngineError(err)
	}

	saved, err := s.phaseRepo.ListByTournament(ctx, nil, tournamentID)
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "phase plan configured",
		slog.Int("tournament_id", tournamentID), slog.Int("phases", len(saved)))
	publish(ctx, s.events, s.logger, events.TopicPhaseUpdated, tournamentID, saved)
	return saved, nil
}

// lockPhase loads the phase, its tournament and the whole plan inside exec.
func (s *kingService) lockPhase(ctx context.Context, exec repositories.SQLExecutor, actor Actor, phaseID int) (*models.Phase, *models.Tournament, []models.Phase, error) {
	phase, err := s.phaseRepo.GetByIDForUpdate(ctx, exec, phaseID)
	if err != nil {
		return nil, nil, nil, mapEngineError(err)
	}
	t, err := s.tournamentRepo.GetByIDForUpdate(ctx, exec, phase.TournamentID)
	if err != nil {
		return nil, nil, nil, mapTournamentRepoError(err)
	}
	if !actor.CanManage(t.OrganizerID) {
		return nil, nil, nil, ErrForbiddenOperation
	}
	if t.Status.IsTerminal() {
		return nil, nil, nil, ErrTournamentFinished
	}
	plan, err := s.phaseRepo.ListByTournament(ctx, exec, t.ID)
	if err != nil {
		return nil, nil, nil, err
	}
	return phase, t, plan, nil
}

// StartPhase раскладывает участников фазы змейкой по пулам и генерирует ротацию.
// Первая фаза берёт подтверждённые заявки по посеву, следующие - прошедших дальше.
func (s *kingService) StartPhase(ctx context.Context, actor Actor, phaseID int) (_ *PhaseView, err error) {
	ctx, span := tracer.Start(ctx, "KingService.StartPhase")
	span.SetAttributes(attribute.Int("phase_id", phaseID))
	defer func() { endSpan(span, err) }()

	var (
		t     *models.Tournament
		phase *models.Phase
	)
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var plan []models.Phase
		var err error
		phase, t, plan, err = s.lockPhase(ctx, exec, actor, phaseID)
		if err != nil {
			return err
		}
		if phase.Status != models.PhaseConfigured {
			return fmt.Errorf("%w: phase %d is %s", ErrPhaseNotStartable, phase.Number, phase.Status)
		}
		if t.Status == models.StatusSoon {
			return fmt.Errorf("%w: registration has not opened yet", ErrPhaseNotStartable)
		}

		var entries []int
		if phase.Number == 1 {
			confirmed := models.RegistrationConfirmed
			regs, err := s.registrationRepo.ListByTournament(ctx, t.ID, &confirmed, false)
			if err != nil {
				return err
			}
			entries = orderBySeed(regs)
		} else {
			prev := findPhase(plan, phase.Number-1)
			if prev == nil || prev.Status != models.PhaseCompleted {
				return fmt.Errorf("%w: phase %d is not completed", ErrPhaseNotStartable, phase.Number-1)
			}
			entries = prev.Promoted
		}

		minSize := brackets.MinPoolSize(t.Kind, phase.TeamSize)
		if len(entries) < phase.PoolCount*minSize {
			return fmt.Errorf("%w: phase %d needs %d entries, has %d", ErrNotEnoughEntries, phase.Number, phase.PoolCount*minSize, len(entries))
		}
		if len(entries)/phase.PoolCount < phase.QualifiersPerPool {
			return fmt.Errorf("%w: pools are smaller than the qualification quota", ErrValidationFailed)
		}

		if err := s.poolRepo.DeleteByPhase(ctx, exec, phase.ID); err != nil {
			return err
		}
		generator, err := brackets.NewGeneratorForStage(t.Kind, models.StageKing)
		if err != nil {
			return err
		}
		for i, poolEntries := range brackets.SnakeDistribute(entries, phase.PoolCount) {
			phaseID := phase.ID
			pool := models.Pool{
				TournamentID: t.ID,
				PhaseID:      &phaseID,
				Name:         poolName(i + 1),
				Position:     i + 1,
				EntryIDs:     poolEntries,
			}
			if err := s.poolRepo.Create(ctx, exec, &pool); err != nil {
				return fmt.Errorf("failed to create pool %s of phase %d: %w", pool.Name, phase.Number, err)
			}
			generated, err := generator.GenerateBracket(ctx, brackets.GenerateBracketParams{
				Tournament: t,
				Entries:    poolEntries,
				Label:      fmt.Sprintf("F%dP%d-", phase.Number, pool.Position),
				TeamSize:   phase.TeamSize,
				Rounds:     phase.RoundsPerPool,
			})
			if err != nil {
				return err
			}
			poolID := pool.ID
			base := models.Match{TournamentID: t.ID, Stage: models.StageKing, PoolID: &poolID, PhaseID: &phaseID}
			if _, err := persistMatches(ctx, exec, s.matchRepo, base, generated); err != nil {
				return err
			}
		}

		if err := s.phaseRepo.MarkStarted(ctx, exec, phase.ID, s.now()); err != nil {
			return err
		}
		if t.Status == models.StatusRegistration || t.Status == models.StatusFull {
			if err := s.tournamentRepo.UpdateStatus(ctx, exec, t.ID, models.StatusActive); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapEngineError(err)
	}

	s.logger.InfoContext(ctx, "phase started",
		slog.Int("tournament_id", t.ID), slog.Int("phase", phase.Number), slog.Int("pools", phase.PoolCount))
	view, err := s.PhaseStandings(ctx, phaseID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, s.logger, events.TopicPhaseUpdated, t.ID, view)
	return view, nil
}

// CompletePhase закрывает фазу: считает таблицы, выбирает прошедших дальше.
// Закрытие последней фазы определяет победителя турнира.
func (s *kingService) CompletePhase(ctx context.Context, actor Actor, phaseID int) (_ *PhaseView, err error) {
	ctx, span := tracer.Start(ctx, "KingService.CompletePhase")
	span.SetAttributes(attribute.Int("phase_id", phaseID))
	defer func() { endSpan(span, err) }()

	var (
		t        *models.Tournament
		phase    *models.Phase
		winnerID *int
	)
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		var plan []models.Phase
		var err error
		phase, t, plan, err = s.lockPhase(ctx, exec, actor, phaseID)
		if err != nil {
			return err
		}
		if phase.Status != models.PhaseInProgress {
			return fmt.Errorf("%w: phase %d is %s", ErrPhaseNotCompletable, phase.Number, phase.Status)
		}
		matches, err := s.matchRepo.List(ctx, exec, repositories.ListMatchesFilter{PhaseID: &phase.ID})
		if err != nil {
			return err
		}
		if !allCompleted(matches) {
			return ErrPhaseNotCompletable
		}
		pools, err := s.poolRepo.ListByPhase(ctx, exec, phase.ID)
		if err != nil {
			return err
		}
		tables := make([][]models.Standing, 0, len(pools))
		for _, pool := range pools {
			tables = append(tables, rankPool(t, pool, matches, nil).Standings)
		}
		promoted, err := brackets.SelectQualifiers(tables, phase.QualifiersPerPool, phase.RepechageSlots)
		if err != nil {
			return err
		}
		if err := s.phaseRepo.MarkCompleted(ctx, exec, phase.ID, promoted, s.now()); err != nil {
			return err
		}

		if isLastPhase(plan, phase.Number) && len(promoted) > 0 {
			winner := promoted[0]
			winnerID = &winner
			if err := s.tournamentRepo.UpdateWinner(ctx, exec, t.ID, winnerID); err != nil {
				return err
			}
			if err := s.tournamentRepo.UpdateStatus(ctx, exec, t.ID, models.StatusCompleted); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, mapEngineError(err)
	}

	s.logger.InfoContext(ctx, "phase completed",
		slog.Int("tournament_id", t.ID), slog.Int("phase", phase.Number))
	view, err := s.PhaseStandings(ctx, phaseID)
	if err != nil {
		return nil, err
	}
	publish(ctx, s.events, s.logger, events.TopicPhaseUpdated, t.ID, view)
	if winnerID != nil {
		s.logger.InfoContext(ctx, "tournament completed",
			slog.Int("tournament_id", t.ID), slog.Int("winner_registration_id", *winnerID))
		publish(ctx, s.events, s.logger, events.TopicTournamentCompleted, t.ID, map[string]int{"winner_registration_id": *winnerID})
	}
	return view, nil
}

func (s *kingService) PhaseStandings(ctx context.Context, phaseID int) (*PhaseView, error) {
	phase, err := s.phaseRepo.GetByID(ctx, phaseID)
	if err != nil {
		return nil, mapEngineError(err)
	}
	t, err := s.tournamentRepo.GetByID(ctx, phase.TournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	pools, err := s.poolRepo.ListByPhase(ctx, nil, phase.ID)
	if err != nil {
		return nil, err
	}
	matches, err := s.matchRepo.List(ctx, nil, repositories.ListMatchesFilter{PhaseID: &phase.ID})
	if err != nil {
		return nil, err
	}
	regs, err := s.registrationRepo.ListByTournament(ctx, t.ID, nil, true)
	if err != nil {
		return nil, err
	}
	names := nameMap(regs)

	view := &PhaseView{Phase: *phase, Pools: make([]PoolStandings, 0, len(pools))}
	byEntry := make(map[int]models.Standing)
	for _, pool := range pools {
		table := rankPool(t, pool, matches, names)
		for _, st := range table.Standings {
			byEntry[st.EntryID] = st
		}
		view.Pools = append(view.Pools, table)
	}
	for _, id := range phase.Promoted {
		st, ok := byEntry[id]
		if !ok {
			st = models.Standing{EntryID: id, Name: names[id]}
		}
		view.Promoted = append(view.Promoted, st)
	}
	return view, nil
}

func findPhase(plan []models.Phase, number int) *models.Phase {
	for i := range plan {
		if plan[i].Number == number {
			return &plan[i]
		}
	}
	return nil
}

func isLastPhase(plan []models.Phase, number int) bool {
	for _, p := range plan {
		if p.Number > number {
			return false
		}
	}
	return true
}
