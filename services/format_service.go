package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Dosada05/volley-tournament/config"
	"github.com/Dosada05/volley-tournament/events"
	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/repositories"
)

// FormatService отдаёт готовые форматы турниров и применяет их к турниру.
type FormatService interface {
	ListPresets(ctx context.Context) []config.FormatPreset
	GetPreset(ctx context.Context, key string) (*config.FormatPreset, error)
	ApplyPreset(ctx context.Context, actor Actor, tournamentID int, key string) (*models.Tournament, error)
}

type formatService struct {
	presets        *config.Presets
	tournamentRepo repositories.TournamentRepository
	kingService    KingService
	events         EventPublisher
	logger         *slog.Logger
}

func NewFormatService(presets *config.Presets, tournamentRepo repositories.TournamentRepository, kingService KingService, publisher EventPublisher, logger *slog.Logger) FormatService {
	return &formatService{
		presets:        presets,
		tournamentRepo: tournamentRepo,
		kingService:    kingService,
		events:         publisherOrNoop(publisher),
		logger:         logger,
	}
}

func (s *formatService) ListPresets(ctx context.Context) []config.FormatPreset {
	return s.presets.All()
}

func (s *formatService) GetPreset(ctx context.Context, key string) (*config.FormatPreset, error) {
	preset, ok := s.presets.Get(key)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, key)
	}
	return &preset, nil
}

// ApplyPreset копирует настройки формата в турнир и, для King-турниров,
// заменяет план фаз. Вид формата должен совпадать с видом турнира.
func (s *formatService) ApplyPreset(ctx context.Context, actor Actor, tournamentID int, key string) (*models.Tournament, error) {
	preset, err := s.GetPreset(ctx, key)
	if err != nil {
		return nil, err
	}
	t, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, mapTournamentRepoError(err)
	}
	if !actor.CanManage(t.OrganizerID) {
		return nil, ErrForbiddenOperation
	}
	if t.Status.IsTerminal() {
		return nil, ErrTournamentFinished
	}
	if preset.Kind != t.Kind {
		return nil, fmt.Errorf("%w: preset %q is for %s tournaments", ErrWrongTournamentKind, preset.Key, preset.Kind)
	}

	if t.Kind.IsPhased() {
		plan := make([]PhaseInput, len(preset.Phases))
		for i, p := range preset.Phases {
			plan[i] = PhaseInput{
				Name:              p.Name,
				TeamSize:          p.TeamSize,
				PoolCount:         p.PoolCount,
				QualifiersPerPool: p.QualifiersPerPool,
				RepechageSlots:    p.RepechageSlots,
				RoundsPerPool:     p.RoundsPerPool,
			}
		}
		phases, err := s.kingService.ConfigurePhases(ctx, actor, tournamentID, plan)
		if err != nil {
			return nil, err
		}
		t.Phases = phases
	}

	t.Settings = preset.Settings
	if err := s.tournamentRepo.Update(ctx, t); err != nil {
		return nil, mapTournamentRepoError(err)
	}
	s.logger.InfoContext(ctx, "format preset applied",
		slog.Int("tournament_id", t.ID), slog.String("preset", preset.Key))
	publish(ctx, s.events, s.logger, events.TopicTournamentUpdated, t.ID, t)
	return t, nil
}
