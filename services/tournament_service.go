package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Dosada05/volley-tournament/events"
	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
	"github.com/Dosada05/volley-tournament/storage"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

var ErrTournamentNameRequired = errors.New("tournament name is required")

type TournamentService interface {
	CreateTournament(ctx context.Context, actor Actor, input CreateTournamentInput) (*models.Tournament, error)
	GetTournamentByID(ctx context.Context, id int) (*models.Tournament, error)
	GetOverview(ctx context.Context, id int) (*models.Tournament, error)
	ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error)
	UpdateTournamentDetails(ctx context.Context, id int, actor Actor, input UpdateTournamentInput) (*models.Tournament, error)
	UpdateTournamentStatus(ctx context.Context, id int, actor Actor, status models.TournamentStatus) (*models.Tournament, error)
	DeleteTournament(ctx context.Context, id int, actor Actor) error
	UploadTournamentLogo(ctx context.Context, id int, actor Actor, file io.Reader, contentType string) (*models.Tournament, error)
	AutoUpdateTournamentStatusesByDates(ctx context.Context) (int, error)
}

type CreateTournamentInput struct {
	Name        string                     `json:"name"`
	Description *string                    `json:"description,omitempty"`
	Location    *string                    `json:"location,omitempty"`
	Kind        models.TournamentKind      `json:"kind"`
	RegDate     time.Time                  `json:"reg_date"`
	StartDate   time.Time                  `json:"start_date"`
	EndDate     time.Time                  `json:"end_date"`
	MaxEntries  int                        `json:"max_entries"`
	TeamSize    int                        `json:"team_size"`
	Settings    *models.TournamentSettings `json:"settings,omitempty"`
}

type UpdateTournamentInput struct {
	Name        *string                    `json:"name,omitempty"`
	Description *string                    `json:"description,omitempty"`
	Location    *string                    `json:"location,omitempty"`
	RegDate     *time.Time                 `json:"reg_date,omitempty"`
	StartDate   *time.Time                 `json:"start_date,omitempty"`
	EndDate     *time.Time                 `json:"end_date,omitempty"`
	MaxEntries  *int                       `json:"max_entries,omitempty"`
	TeamSize    *int                       `json:"team_size,omitempty"`
	Settings    *models.TournamentSettings `json:"settings,omitempty"`
}

type TournamentServiceDeps struct {
	TournamentRepo   repositories.TournamentRepository
	RegistrationRepo repositories.RegistrationRepository
	PoolRepo         repositories.PoolRepository
	MatchRepo        repositories.MatchRepository
	PhaseRepo        repositories.PhaseRepository
	UserRepo         repositories.UserRepository
	Uploader         storage.FileUploader
	Tx               Transactor
	Events           EventPublisher
	Logger           *slog.Logger
	Now              func() time.Time
}

type tournamentService struct {
	tournamentRepo   repositories.TournamentRepository
	registrationRepo repositories.RegistrationRepository
	poolRepo         repositories.PoolRepository
	matchRepo        repositories.MatchRepository
	phaseRepo        repositories.PhaseRepository
	userRepo         repositories.UserRepository
	uploader         storage.FileUploader
	tx               Transactor
	events           EventPublisher
	logger           *slog.Logger
	now              func() time.Time
}

func NewTournamentService(deps TournamentServiceDeps) TournamentService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &tournamentService{
		tournamentRepo:   deps.TournamentRepo,
		registrationRepo: deps.RegistrationRepo,
		poolRepo:         deps.PoolRepo,
		matchRepo:        deps.MatchRepo,
		phaseRepo:        deps.PhaseRepo,
		userRepo:         deps.UserRepo,
		uploader:         deps.Uploader,
		tx:               deps.Tx,
		events:           publisherOrNoop(deps.Events),
		logger:           deps.Logger,
		now:              now,
	}
}

func validateTournamentShape(kind models.TournamentKind, maxEntries, teamSize int, settings models.TournamentSettings) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %q", ErrTournamentInvalidKind, kind)
	}
	if maxEntries < 0 {
		return ErrTournamentInvalidCapacity
	}
	if teamSize < 0 || teamSize > 6 {
		return fmt.Errorf("%w: team size must be between 0 and 6", ErrValidationFailed)
	}
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return nil
}

func (s *tournamentService) CreateTournament(ctx context.Context, actor Actor, input CreateTournamentInput) (*models.Tournament, error) {
	if !actor.IsStaff() {
		return nil, ErrForbiddenOperation
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, ErrTournamentNameRequired
	}
	if err := validateTournamentDates(input.RegDate, input.StartDate, input.EndDate); err != nil {
		return nil, err
	}
	settings := models.TournamentSettings{}
	if input.Settings != nil {
		settings = *input.Settings
	}
	if err := validateTournamentShape(input.Kind, input.MaxEntries, input.TeamSize, settings); err != nil {
		return nil, err
	}

	t := &models.Tournament{
		Name:        name,
		Description: input.Description,
		Location:    input.Location,
		Kind:        input.Kind,
		OrganizerID: actor.UserID,
		RegDate:     input.RegDate,
		StartDate:   input.StartDate,
		EndDate:     input.EndDate,
		MaxEntries:  input.MaxEntries,
		TeamSize:    input.TeamSize,
		Settings:    settings,
	}
	t.Status = ComputeStatus(t, 0, s.now())

	if err := s.tournamentRepo.Create(ctx, t); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	s.logger.InfoContext(ctx, "tournament created",
		slog.Int("tournament_id", t.ID), slog.String("kind", string(t.Kind)), slog.Int("organizer_id", t.OrganizerID))
	return t, nil
}

func (s *tournamentService) GetTournamentByID(ctx context.Context, id int) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	populateTournamentLogoURLFunc(t, s.uploader)
	return t, nil
}

// GetOverview загружает турнир вместе с заявками, пулами, матчами и фазами параллельно.
func (s *tournamentService) GetOverview(ctx context.Context, id int) (_ *models.Tournament, err error) {
	ctx, span := tracer.Start(ctx, "TournamentService.GetOverview")
	span.SetAttributes(attribute.Int("tournament_id", id))
	defer func() { endSpan(span, err) }()

	t, err := s.GetTournamentByID(ctx, id)
	if err != nil {
		return nil, err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		organizer, err := s.userRepo.GetByID(gCtx, t.OrganizerID)
		if err != nil {
			s.logger.WarnContext(gCtx, "failed to load organizer", slog.Int("tournament_id", id), slog.Any("error", err))
			return nil
		}
		organizer.PasswordHash = ""
		t.Organizer = organizer
		return nil
	})

	g.Go(func() error {
		regs, err := s.registrationRepo.ListByTournament(gCtx, id, nil, true)
		if err != nil {
			return fmt.Errorf("failed to load registrations: %w", err)
		}
		populateRegistrationListDetailsFunc(regs, s.uploader)
		t.Registrations = derefRegistrations(regs)
		return nil
	})

	g.Go(func() error {
		pools, err := s.poolRepo.ListByTournament(gCtx, id)
		if err != nil {
			return fmt.Errorf("failed to load pools: %w", err)
		}
		t.Pools = pools
		return nil
	})

	g.Go(func() error {
		matches, err := s.matchRepo.List(gCtx, nil, repositories.ListMatchesFilter{TournamentID: &id})
		if err != nil {
			return fmt.Errorf("failed to load matches: %w", err)
		}
		t.Matches = derefMatches(matches)
		return nil
	})

	g.Go(func() error {
		phases, err := s.phaseRepo.ListByTournament(gCtx, nil, id)
		if err != nil {
			return fmt.Errorf("failed to load phases: %w", err)
		}
		t.Phases = phases
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return t, nil
}

func (s *tournamentService) ListTournaments(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	if filter.Limit <= 0 {
		filter.Limit = 20
	}
	tournaments, err := s.tournamentRepo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	for i := range tournaments {
		populateTournamentLogoURLFunc(&tournaments[i], s.uploader)
	}
	return tournaments, nil
}

// getManaged loads a tournament and checks the actor may change it.
func (s *tournamentService) getManaged(ctx context.Context, id int, actor Actor) (*models.Tournament, error) {
	t, err := s.tournamentRepo.GetByID(ctx, id)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if !actor.CanManage(t.OrganizerID) {
		return nil, ErrForbiddenOperation
	}
	return t, nil
}

func (s *tournamentService) UpdateTournamentDetails(ctx context.Context, id int, actor Actor, input UpdateTournamentInput) (*models.Tournament, error) {
	t, err := s.getManaged(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if t.Status.IsTerminal() {
		return nil, ErrTournamentFinished
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, ErrTournamentNameRequired
		}
		t.Name = name
	}
	if input.Description != nil {
		t.Description = input.Description
	}
	if input.Location != nil {
		t.Location = input.Location
	}
	if input.RegDate != nil {
		t.RegDate = *input.RegDate
	}
	if input.StartDate != nil {
		t.StartDate = *input.StartDate
	}
	if input.EndDate != nil {
		t.EndDate = *input.EndDate
	}
	if input.MaxEntries != nil {
		t.MaxEntries = *input.MaxEntries
	}
	if input.TeamSize != nil {
		t.TeamSize = *input.TeamSize
	}
	if input.Settings != nil {
		t.Settings = *input.Settings
	}
	if err := validateTournamentDates(t.RegDate, t.StartDate, t.EndDate); err != nil {
		return nil, err
	}
	if err := validateTournamentShape(t.Kind, t.MaxEntries, t.TeamSize, t.Settings); err != nil {
		return nil, err
	}

	if err := s.tournamentRepo.Update(ctx, t); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	populateTournamentLogoURLFunc(t, s.uploader)
	publish(ctx, s.events, s.logger, events.TopicTournamentUpdated, t.ID, t)
	return t, nil
}

func (s *tournamentService) UpdateTournamentStatus(ctx context.Context, id int, actor Actor, status models.TournamentStatus) (*models.Tournament, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrTournamentInvalidStatus, status)
	}
	t, err := s.getManaged(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	if !isValidStatusTransition(t.Status, status) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrTournamentInvalidStatusTransition, t.Status, status)
	}
	if t.Status == status {
		return t, nil
	}
	if err := s.tournamentRepo.UpdateStatus(ctx, nil, id, status); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	s.logger.InfoContext(ctx, "tournament status changed",
		slog.Int("tournament_id", id), slog.String("from", string(t.Status)), slog.String("to", string(status)))
	t.Status = status
	populateTournamentLogoURLFunc(t, s.uploader)
	publish(ctx, s.events, s.logger, events.TopicTournamentUpdated, t.ID, t)
	return t, nil
}

func (s *tournamentService) DeleteTournament(ctx context.Context, id int, actor Actor) error {
	t, err := s.getManaged(ctx, id, actor)
	if err != nil {
		return err
	}
	if err := s.tournamentRepo.Delete(ctx, id); err != nil {
		return mapTournamentRepoError(err)
	}
	if t.LogoKey != nil && s.uploader != nil {
		if err := s.uploader.Delete(ctx, *t.LogoKey); err != nil {
			s.logger.WarnContext(ctx, "failed to delete tournament logo", slog.Int("tournament_id", id), slog.Any("error", err))
		}
	}
	return nil
}

func (s *tournamentService) UploadTournamentLogo(ctx context.Context, id int, actor Actor, file io.Reader, contentType string) (*models.Tournament, error) {
	if s.uploader == nil {
		return nil, ErrUploadsDisabled
	}
	t, err := s.getManaged(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	key, err := newLogoKey(storage.OwnerTournaments, id, contentType)
	if err != nil {
		return nil, err
	}
	if _, err := s.uploader.Upload(ctx, key, contentType, file); err != nil {
		return nil, fmt.Errorf("failed to upload tournament logo: %w", err)
	}
	oldKey := t.LogoKey
	if err := s.tournamentRepo.UpdateLogoKey(ctx, id, &key); err != nil {
		if delErr := s.uploader.Delete(ctx, key); delErr != nil {
			s.logger.WarnContext(ctx, "failed to clean up uploaded logo", slog.String("key", key), slog.Any("error", delErr))
		}
		return nil, mapTournamentRepoError(err)
	}
	if oldKey != nil && *oldKey != "" && *oldKey != key {
		if err := s.uploader.Delete(ctx, *oldKey); err != nil {
			s.logger.WarnContext(ctx, "failed to delete old tournament logo", slog.String("key", *oldKey), slog.Any("error", err))
		}
	}
	t.LogoKey = &key
	populateTournamentLogoURLFunc(t, s.uploader)
	return t, nil
}

// AutoUpdateTournamentStatusesByDates пересчитывает статусы всех незавершённых турниров.
func (s *tournamentService) AutoUpdateTournamentStatusesByDates(ctx context.Context) (int, error) {
	now := s.now()
	changed := make([]*models.Tournament, 0)

	err := s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		tournaments, err := s.tournamentRepo.ListNonTerminal(ctx, exec)
		if err != nil {
			return err
		}
		for _, t := range tournaments {
			confirmed, err := s.registrationRepo.CountByStatus(ctx, t.ID, models.RegistrationConfirmed)
			if err != nil {
				return fmt.Errorf("failed to count confirmed registrations of tournament %d: %w", t.ID, err)
			}
			next := ComputeStatus(t, confirmed, now)
			if !shouldAutoApply(t.Status, next) {
				continue
			}
			if err := s.tournamentRepo.UpdateStatus(ctx, exec, t.ID, next); err != nil {
				return fmt.Errorf("failed to update status of tournament %d: %w", t.ID, err)
			}
			s.logger.InfoContext(ctx, "tournament status updated by schedule",
				slog.Int("tournament_id", t.ID), slog.String("from", string(t.Status)), slog.String("to", string(next)))
			t.Status = next
			changed = append(changed, t)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	for _, t := range changed {
		publish(ctx, s.events, s.logger, events.TopicTournamentUpdated, t.ID, t)
	}
	return len(changed), nil
}

// refreshRegistrationStatus переключает registration <-> full после изменения числа подтверждённых заявок.
func refreshRegistrationStatus(ctx context.Context, tournamentRepo repositories.TournamentRepository, registrationRepo repositories.RegistrationRepository, t *models.Tournament, now time.Time) (bool, error) {
	if t.Status != models.StatusRegistration && t.Status != models.StatusFull {
		return false, nil
	}
	confirmed, err := registrationRepo.CountByStatus(ctx, t.ID, models.RegistrationConfirmed)
	if err != nil {
		return false, err
	}
	next := ComputeStatus(t, confirmed, now)
	if next == t.Status || statusRank(next) != 1 {
		return false, nil
	}
	if err := tournamentRepo.UpdateStatus(ctx, nil, t.ID, next); err != nil {
		return false, err
	}
	t.Status = next
	return true, nil
}

func mapTournamentRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrTournamentNotFound):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrTournamentNameConflict):
		return ErrTournamentNameConflict
	case errors.Is(err, repositories.ErrTournamentInUse):
		return ErrResourceInUse
	case errors.Is(err, repositories.ErrTournamentInvalidOrg):
		return ErrUserNotFound
	case errors.Is(err, repositories.ErrTournamentInvalidValue):
		return ErrValidationFailed
	}
	return err
}
