package spreadsheets

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/Dosada05/volley-tournament/models"
)

const (
	sheetEntries   = "Entries"
	sheetStandings = "Standings"
	sheetMatches   = "Matches"
)

// Table - таблица одного пула или фазы.
type Table struct {
	Title     string
	Standings []models.Standing
}

// TournamentExport - всё, что попадает в выгрузку результатов.
type TournamentExport struct {
	Tournament    *models.Tournament
	Registrations []models.Registration
	Tables        []Table
	Matches       []models.Match
	// Names maps a registration id to its display name.
	Names map[int]string
}

func (e TournamentExport) name(id int) string {
	if n, ok := e.Names[id]; ok {
		return n
	}
	return fmt.Sprintf("#%d", id)
}

func (e TournamentExport) side(ids []int) string {
	if len(ids) == 0 {
		return "TBD"
	}
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = e.name(id)
	}
	return strings.Join(names, " / ")
}

// WriteTournament renders the export as an XLSX workbook with entries,
// standings and matches sheets.
func WriteTournament(w io.Writer, e TournamentExport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), sheetEntries); err != nil {
		return err
	}
	for _, name := range []string{sheetStandings, sheetMatches} {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}

	if err := writeEntries(f, e, bold); err != nil {
		return err
	}
	if err := writeStandings(f, e, bold); err != nil {
		return err
	}
	if err := writeMatches(f, e, bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values ...interface{}) error {
	axis, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, axis, &values)
}

func setHeader(f *excelize.File, sheet string, row, style int, values ...interface{}) error {
	if err := setRow(f, sheet, row, values...); err != nil {
		return err
	}
	first, _ := excelize.CoordinatesToCellName(1, row)
	last, _ := excelize.CoordinatesToCellName(len(values), row)
	return f.SetCellStyle(sheet, first, last, style)
}

func writeEntries(f *excelize.File, e TournamentExport, bold int) error {
	row := 1
	if e.Tournament != nil {
		if err := setRow(f, sheetEntries, row, e.Tournament.Name, string(e.Tournament.Kind), string(e.Tournament.Status)); err != nil {
			return err
		}
		row += 2
	}
	if err := setHeader(f, sheetEntries, row, bold, "ID", "Seed", "Name", "Status"); err != nil {
		return err
	}
	for _, reg := range e.Registrations {
		row++
		var seed interface{}
		if reg.Seed != nil {
			seed = *reg.Seed
		}
		if err := setRow(f, sheetEntries, row, reg.ID, seed, e.name(reg.ID), string(reg.Status)); err != nil {
			return err
		}
	}
	return nil
}

func writeStandings(f *excelize.File, e TournamentExport, bold int) error {
	row := 0
	for _, table := range e.Tables {
		row++
		if err := setHeader(f, sheetStandings, row, bold, table.Title); err != nil {
			return err
		}
		row++
		if err := setHeader(f, sheetStandings, row, bold, "Rank", "Name", "Played", "Wins", "Losses", "Sets", "Set diff", "Points", "Point diff"); err != nil {
			return err
		}
		for _, st := range table.Standings {
			row++
			err := setRow(f, sheetStandings, row,
				st.Rank, e.name(st.EntryID), st.Played, st.Wins, st.Losses,
				fmt.Sprintf("%d:%d", st.SetsWon, st.SetsLost), st.SetDiff(),
				fmt.Sprintf("%d:%d", st.PointsFor, st.PointsAgainst), st.PointDiff(),
			)
			if err != nil {
				return err
			}
		}
		row++
	}
	return nil
}

func writeMatches(f *excelize.File, e TournamentExport, bold int) error {
	if err := setHeader(f, sheetMatches, 1, bold, "ID", "Stage", "Round", "Side A", "Side B", "Score", "Winner", "Status", "Court"); err != nil {
		return err
	}
	for i, m := range e.Matches {
		winner := ""
		if m.WinnerSide != nil {
			winner = e.side(m.Side(*m.WinnerSide))
		}
		err := setRow(f, sheetMatches, i+2,
			m.ID, string(m.Stage), m.Round, e.side(m.SideA), e.side(m.SideB),
			formatSets(m.Sets), winner, string(m.Status), derefString(m.Court),
		)
		if err != nil {
			return err
		}
	}
	return nil
}

func formatSets(sets models.Sets) string {
	parts := make([]string, len(sets))
	for i, s := range sets {
		parts[i] = fmt.Sprintf("%d-%d", s.A, s.B)
	}
	return strings.Join(parts, ", ")
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
