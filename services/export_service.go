package services

import (
	"context"
	"fmt"
	"io"

	"github.com/Dosada05/volley-tournament/charts"
	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/spreadsheets"
	"go.opentelemetry.io/otel/attribute"
)

type ExportService interface {
	ExportTournament(ctx context.Context, tournamentID int, w io.Writer) error
	PoolChart(ctx context.Context, poolID int) ([]byte, error)
}

type exportService struct {
	tournamentService TournamentService
	poolService       PoolService
}

func NewExportService(tournamentService TournamentService, poolService PoolService) ExportService {
	return &exportService{tournamentService: tournamentService, poolService: poolService}
}

// ExportTournament пишет XLSX с заявками, таблицами всех пулов и матчами.
func (s *exportService) ExportTournament(ctx context.Context, tournamentID int, w io.Writer) (err error) {
	ctx, span := tracer.Start(ctx, "ExportService.ExportTournament")
	span.SetAttributes(attribute.Int("tournament_id", tournamentID))
	defer func() { endSpan(span, err) }()

	t, err := s.tournamentService.GetOverview(ctx, tournamentID)
	if err != nil {
		return err
	}
	tables, err := s.poolService.TournamentStandings(ctx, tournamentID)
	if err != nil {
		return err
	}

	export := spreadsheets.TournamentExport{
		Tournament:    t,
		Registrations: t.Registrations,
		Matches:       t.Matches,
		Names:         make(map[int]string, len(t.Registrations)),
	}
	for i := range t.Registrations {
		export.Names[t.Registrations[i].ID] = t.Registrations[i].DisplayName()
	}
	phaseNames := make(map[int]string, len(t.Phases))
	for _, p := range t.Phases {
		phaseNames[p.ID] = p.Name
	}
	for _, table := range tables {
		export.Tables = append(export.Tables, spreadsheets.Table{
			Title:     tableTitle(table.Pool, phaseNames),
			Standings: table.Standings,
		})
	}
	return spreadsheets.WriteTournament(w, export)
}

func tableTitle(pool models.Pool, phaseNames map[int]string) string {
	if pool.PhaseID != nil {
		return fmt.Sprintf("%s, pool %s", phaseNames[*pool.PhaseID], pool.Name)
	}
	return "Pool " + pool.Name
}

// PoolChart рисует PNG с победами участников пула.
func (s *exportService) PoolChart(ctx context.Context, poolID int) ([]byte, error) {
	table, err := s.poolService.PoolStandings(ctx, poolID)
	if err != nil {
		return nil, err
	}
	png, err := charts.StandingsPNG("Pool "+table.Pool.Name, table.Standings)
	if err != nil {
		return nil, fmt.Errorf("failed to render pool chart: %w", err)
	}
	return png, nil
}
