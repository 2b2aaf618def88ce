package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Dosada05/volley-tournament/events"
	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
	"github.com/Dosada05/volley-tournament/spreadsheets"
	"github.com/Dosada05/volley-tournament/storage"
)

const notifyTimeout = 30 * time.Second

type RegistrationService interface {
	Register(ctx context.Context, actor Actor, tournamentID int, input RegisterEntryInput) (*models.Registration, error)
	ListRegistrations(ctx context.Context, tournamentID int, status *models.RegistrationStatus) ([]*models.Registration, error)
	UpdateRegistration(ctx context.Context, actor Actor, registrationID int, input UpdateRegistrationInput) (*models.Registration, error)
	Withdraw(ctx context.Context, actor Actor, registrationID int) error
	ImportPlayers(ctx context.Context, actor Actor, tournamentID int, file io.Reader) (*ImportResult, error)
}

// RegisterEntryInput: ровно одно из полей заполнено, в зависимости от вида турнира.
type RegisterEntryInput struct {
	TeamID   *int `json:"team_id,omitempty"`
	PlayerID *int `json:"player_id,omitempty"`
}

type UpdateRegistrationInput struct {
	Status    *models.RegistrationStatus `json:"status,omitempty"`
	Seed      *int                       `json:"seed,omitempty"`
	ClearSeed bool                       `json:"clear_seed,omitempty"`
}

type ImportResult struct {
	Imported      int                    `json:"imported"`
	Registrations []*models.Registration `json:"registrations"`
}

type RegistrationServiceDeps struct {
	TournamentRepo   repositories.TournamentRepository
	RegistrationRepo repositories.RegistrationRepository
	TeamRepo         repositories.TeamRepository
	PlayerRepo       repositories.PlayerRepository
	UserRepo         repositories.UserRepository
	Uploader         storage.FileUploader
	Notifier         Notifier
	Tx               Transactor
	Events           EventPublisher
	Logger           *slog.Logger
	Now              func() time.Time
}

type registrationService struct {
	tournamentRepo   repositories.TournamentRepository
	registrationRepo repositories.RegistrationRepository
	teamRepo         repositories.TeamRepository
	playerRepo       repositories.PlayerRepository
	userRepo         repositories.UserRepository
	uploader         storage.FileUploader
	notifier         Notifier
	tx               Transactor
	events           EventPublisher
	logger           *slog.Logger
	now              func() time.Time
}

func NewRegistrationService(deps RegistrationServiceDeps) RegistrationService {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	notifier := deps.Notifier
	if notifier == nil {
		notifier = noopNotifier{}
	}
	return &registrationService{
		tournamentRepo:   deps.TournamentRepo,
		registrationRepo: deps.RegistrationRepo,
		teamRepo:         deps.TeamRepo,
		playerRepo:       deps.PlayerRepo,
		userRepo:         deps.UserRepo,
		uploader:         deps.Uploader,
		notifier:         notifier,
		tx:               deps.Tx,
		events:           publisherOrNoop(deps.Events),
		logger:           deps.Logger,
		now:              now,
	}
}

func isActiveRegistration(r *models.Registration) bool {
	return r.Status == models.RegistrationPending || r.Status == models.RegistrationConfirmed
}

// entryPlayers returns the player ids an entry brings to the tournament.
func entryPlayers(r *models.Registration) []int {
	if r.PlayerID != nil {
		return []int{*r.PlayerID}
	}
	if r.Team != nil {
		return r.Team.PlayerIDs
	}
	return nil
}

func (s *registrationService) Register(ctx context.Context, actor Actor, tournamentID int, input RegisterEntryInput) (*models.Registration, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	switch t.Status {
	case models.StatusRegistration:
	case models.StatusFull:
		return nil, ErrTournamentFull
	default:
		return nil, ErrRegistrationNotOpen
	}

	reg := &models.Registration{TournamentID: t.ID, Status: models.RegistrationPending}
	var players []int

	if t.Kind.IsIndividual() {
		if input.PlayerID == nil || input.TeamID != nil {
			return nil, fmt.Errorf("%w: %s registers individual players", ErrWrongEntryType, t.Kind)
		}
		player, err := s.playerRepo.GetByID(ctx, *input.PlayerID)
		if err != nil {
			return nil, mapPlayerRepoError(err)
		}
		if !canEditPlayer(actor, player) {
			return nil, ErrForbiddenOperation
		}
		reg.PlayerID = &player.ID
		reg.Player = player
		players = []int{player.ID}
	} else {
		if input.TeamID == nil || input.PlayerID != nil {
			return nil, fmt.Errorf("%w: %s registers teams", ErrWrongEntryType, t.Kind)
		}
		team, err := s.teamRepo.GetByID(ctx, *input.TeamID)
		if err != nil {
			return nil, mapTeamRepoError(err)
		}
		captain := 0
		if team.CaptainID != nil {
			captain = *team.CaptainID
		}
		if !actor.CanManage(captain) && !actor.CanManage(t.OrganizerID) {
			return nil, ErrForbiddenOperation
		}
		if t.TeamSize > 0 && len(team.PlayerIDs) != t.TeamSize {
			return nil, fmt.Errorf("%w: team has %d players, tournament needs %d", ErrTeamSizeMismatch, len(team.PlayerIDs), t.TeamSize)
		}
		reg.TeamID = &team.ID
		reg.Team = team
		players = team.PlayerIDs
	}

	existing, err := s.registrationRepo.ListByTournament(ctx, t.ID, nil, true)
	if err != nil {
		return nil, err
	}
	var withdrawn *models.Registration
	for _, other := range existing {
		sameEntry := (reg.TeamID != nil && other.TeamID != nil && *other.TeamID == *reg.TeamID) ||
			(reg.PlayerID != nil && other.PlayerID != nil && *other.PlayerID == *reg.PlayerID)
		if sameEntry {
			if isActiveRegistration(other) || other.Status == models.RegistrationRejected {
				return nil, ErrRegistrationConflict
			}
			withdrawn = other
			continue
		}
		if !isActiveRegistration(other) {
			continue
		}
		for _, pid := range entryPlayers(other) {
			if containsID(players, pid) {
				return nil, fmt.Errorf("%w: player %d plays for %s", ErrPlayerInOtherEntry, pid, other.DisplayName())
			}
		}
	}

	if withdrawn != nil {
		// снявшаяся заявка возвращается в ожидание
		if err := s.registrationRepo.UpdateStatus(ctx, withdrawn.ID, models.RegistrationPending); err != nil {
			return nil, mapRegistrationRepoError(err)
		}
		withdrawn.Status = models.RegistrationPending
		s.afterRegister(ctx, t, withdrawn)
		return withdrawn, nil
	}

	if err := s.registrationRepo.Create(ctx, nil, reg); err != nil {
		return nil, mapRegistrationRepoError(err)
	}
	s.afterRegister(ctx, t, reg)
	return reg, nil
}

func (s *registrationService) afterRegister(ctx context.Context, t *models.Tournament, reg *models.Registration) {
	s.logger.InfoContext(ctx, "registration received",
		slog.Int("tournament_id", t.ID), slog.Int("registration_id", reg.ID), slog.String("entry", reg.DisplayName()))
	publish(ctx, s.events, s.logger, events.TopicTournamentUpdated, t.ID, reg)

	organizer, err := s.userRepo.GetByID(ctx, t.OrganizerID)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load organizer for notification", slog.Int("tournament_id", t.ID), slog.Any("error", err))
		return
	}
	go func() {
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		defer cancel()
		if err := s.notifier.RegistrationReceived(nctx, organizer, t, reg); err != nil {
			s.logger.Warn("failed to notify organizer", slog.Int("tournament_id", t.ID), slog.Any("error", err))
		}
	}()
}

func (s *registrationService) ListRegistrations(ctx context.Context, tournamentID int, status *models.RegistrationStatus) ([]*models.Registration, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	regs, err := s.registrationRepo.ListByTournament(ctx, tournamentID, status, true)
	if err != nil {
		return nil, err
	}
	populateRegistrationListDetailsFunc(regs, s.uploader)
	return regs, nil
}

// UpdateRegistration - подтверждение, отклонение и посев заявки организатором.
func (s *registrationService) UpdateRegistration(ctx context.Context, actor Actor, registrationID int, input UpdateRegistrationInput) (*models.Registration, error) {
	reg, err := s.registrationRepo.GetByID(ctx, registrationID)
	if err != nil {
		return nil, mapRegistrationRepoError(err)
	}
	t, err := s.tournamentRepo.GetByID(ctx, reg.TournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if !actor.CanManage(t.OrganizerID) {
		return nil, ErrForbiddenOperation
	}
	if t.Status.IsTerminal() {
		return nil, ErrTournamentFinished
	}

	if input.Seed != nil || input.ClearSeed {
		var seed *int
		if !input.ClearSeed {
			if *input.Seed < 1 {
				return nil, ErrInvalidSeed
			}
			seed = input.Seed
		}
		if err := s.registrationRepo.UpdateSeed(ctx, reg.ID, seed); err != nil {
			return nil, mapRegistrationRepoError(err)
		}
		reg.Seed = seed
	}

	if input.Status != nil && *input.Status != reg.Status {
		next := *input.Status
		if !next.Valid() {
			return nil, fmt.Errorf("%w: unknown registration status %q", ErrValidationFailed, next)
		}
		if next == models.RegistrationConfirmed && t.MaxEntries > 0 {
			confirmed, err := s.registrationRepo.CountByStatus(ctx, t.ID, models.RegistrationConfirmed)
			if err != nil {
				return nil, err
			}
			if confirmed >= t.MaxEntries {
				return nil, ErrTournamentFull
			}
		}
		if err := s.registrationRepo.UpdateStatus(ctx, reg.ID, next); err != nil {
			return nil, mapRegistrationRepoError(err)
		}
		s.logger.InfoContext(ctx, "registration status changed",
			slog.Int("registration_id", reg.ID), slog.String("from", string(reg.Status)), slog.String("to", string(next)))
		reg.Status = next
		s.refreshStatus(ctx, t)
	}

	publish(ctx, s.events, s.logger, events.TopicTournamentUpdated, t.ID, reg)
	return reg, nil
}

// Withdraw снимает заявку: игрок сам, капитан команды или организатор.
func (s *registrationService) Withdraw(ctx context.Context, actor Actor, registrationID int) error {
	reg, err := s.registrationRepo.GetByID(ctx, registrationID)
	if err != nil {
		return mapRegistrationRepoError(err)
	}
	t, err := s.tournamentRepo.GetByID(ctx, reg.TournamentID)
	if err != nil {
		return mapTournamentRepoError(err)
	}
	if t.Status.IsTerminal() {
		return ErrTournamentFinished
	}

	allowed := actor.CanManage(t.OrganizerID)
	if !allowed && reg.PlayerID != nil {
		if p, err := s.playerRepo.GetByID(ctx, *reg.PlayerID); err == nil {
			allowed = canEditPlayer(actor, p)
		}
	}
	if !allowed && reg.TeamID != nil {
		if team, err := s.teamRepo.GetByID(ctx, *reg.TeamID); err == nil && team.CaptainID != nil {
			allowed = actor.CanManage(*team.CaptainID)
		}
	}
	if !allowed {
		return ErrForbiddenOperation
	}
	if reg.Status == models.RegistrationWithdrawn {
		return nil
	}

	if err := s.registrationRepo.UpdateStatus(ctx, reg.ID, models.RegistrationWithdrawn); err != nil {
		return mapRegistrationRepoError(err)
	}
	s.refreshStatus(ctx, t)
	publish(ctx, s.events, s.logger, events.TopicTournamentUpdated, t.ID, map[string]int{"withdrawn_registration_id": reg.ID})
	return nil
}

func (s *registrationService) refreshStatus(ctx context.Context, t *models.Tournament) {
	changed, err := refreshRegistrationStatus(ctx, s.tournamentRepo, s.registrationRepo, t, s.now())
	if err != nil {
		s.logger.WarnContext(ctx, "failed to refresh tournament status", slog.Int("tournament_id", t.ID), slog.Any("error", err))
		return
	}
	if changed {
		s.logger.InfoContext(ctx, "tournament status follows registrations",
			slog.Int("tournament_id", t.ID), slog.String("status", string(t.Status)))
		publish(ctx, s.events, s.logger, events.TopicTournamentUpdated, t.ID, t)
	}
}

// ImportPlayers creates a player and a confirmed registration for every row of
// an XLSX player list. All rows are imported or none.
func (s *registrationService) ImportPlayers(ctx context.Context, actor Actor, tournamentID int, file io.Reader) (*ImportResult, error) {
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if !actor.CanManage(t.OrganizerID) {
		return nil, ErrForbiddenOperation
	}
	if !t.Kind.IsIndividual() {
		return nil, fmt.Errorf("%w: only individual tournaments import player lists", ErrWrongTournamentKind)
	}
	switch t.Status {
	case models.StatusSoon, models.StatusRegistration, models.StatusFull:
	default:
		return nil, ErrRegistrationNotOpen
	}

	rows, err := spreadsheets.ParsePlayers(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImportFile, err)
	}
	inputs := make([]PlayerInput, len(rows))
	for i, row := range rows {
		in := PlayerInput{FirstName: row.FirstName, LastName: row.LastName}
		if row.Gender != "" {
			g := row.Gender
			in.Gender = &g
		}
		if row.Level != "" {
			l := row.Level
			in.Level = &l
		}
		if inputs[i], err = normalizePlayerInput(in); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrInvalidImportFile, row.Line, err)
		}
	}

	if t.MaxEntries > 0 {
		confirmed, err := s.registrationRepo.CountByStatus(ctx, t.ID, models.RegistrationConfirmed)
		if err != nil {
			return nil, err
		}
		if confirmed+len(inputs) > t.MaxEntries {
			return nil, fmt.Errorf("%w: %d confirmed + %d imported exceeds %d", ErrTournamentFull, confirmed, len(inputs), t.MaxEntries)
		}
	}

	result := &ImportResult{Registrations: make([]*models.Registration, 0, len(inputs))}
	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		for _, in := range inputs {
			p := &models.Player{FirstName: in.FirstName, LastName: in.LastName, Gender: in.Gender, Level: in.Level}
			if err := s.playerRepo.Create(ctx, exec, p); err != nil {
				return mapPlayerRepoError(err)
			}
			reg := &models.Registration{
				TournamentID: t.ID,
				PlayerID:     &p.ID,
				Status:       models.RegistrationConfirmed,
				Player:       p,
			}
			if err := s.registrationRepo.Create(ctx, exec, reg); err != nil {
				return mapRegistrationRepoError(err)
			}
			result.Registrations = append(result.Registrations, reg)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	result.Imported = len(result.Registrations)

	s.logger.InfoContext(ctx, "players imported", slog.Int("tournament_id", t.ID), slog.Int("count", result.Imported))
	s.refreshStatus(ctx, t)
	publish(ctx, s.events, s.logger, events.TopicTournamentUpdated, t.ID, map[string]int{"imported": result.Imported})
	return result, nil
}

func containsID(ids []int, id int) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func mapRegistrationRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrRegistrationNotFound):
		return ErrRegistrationNotFound
	case errors.Is(err, repositories.ErrRegistrationConflict):
		return ErrRegistrationConflict
	case errors.Is(err, repositories.ErrRegistrationTeamInvalid):
		return ErrTeamNotFound
	case errors.Is(err, repositories.ErrRegistrationPlayerInvalid):
		return ErrPlayerNotFound
	case errors.Is(err, repositories.ErrRegistrationTournamentInvalid):
		return ErrTournamentNotFound
	case errors.Is(err, repositories.ErrRegistrationTypeViolation):
		return ErrWrongEntryType
	}
	return err
}
