package archive

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/services"
)

// OverviewLoader - часть TournamentService, нужная архиву.
type OverviewLoader interface {
	GetOverview(ctx context.Context, id int) (*models.Tournament, error)
}

// StandingsLoader - часть PoolService, нужная архиву.
type StandingsLoader interface {
	TournamentStandings(ctx context.Context, tournamentID int) ([]services.PoolStandings, error)
}

// Archiver пишет снимок турнира в Store после его завершения.
type Archiver struct {
	tournaments OverviewLoader
	standings   StandingsLoader
	store       Store
	logger      *slog.Logger
	now         func() time.Time
}

func NewArchiver(tournaments OverviewLoader, standings StandingsLoader, store Store, logger *slog.Logger) *Archiver {
	return &Archiver{
		tournaments: tournaments,
		standings:   standings,
		store:       store,
		logger:      logger,
		now:         time.Now,
	}
}

func (a *Archiver) ArchiveTournament(ctx context.Context, tournamentID int) error {
	t, err := a.tournaments.GetOverview(ctx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to load tournament %d for archive: %w", tournamentID, err)
	}
	if t.Status != models.StatusCompleted {
		a.logger.WarnContext(ctx, "skipping archive of unfinished tournament",
			slog.Int("tournament_id", tournamentID), slog.String("status", string(t.Status)))
		return nil
	}
	tables, err := a.standings.TournamentStandings(ctx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to load standings of tournament %d: %w", tournamentID, err)
	}
	return a.store.Save(ctx, BuildSnapshot(t, tables, a.now()))
}

// Get returns the archived snapshot of a tournament.
func (a *Archiver) Get(ctx context.Context, tournamentID int) (*Snapshot, error) {
	return a.store.Get(ctx, tournamentID)
}
