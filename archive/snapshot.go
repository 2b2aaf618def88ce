package archive

import (
	"strconv"
	"strings"
	"time"

	"github.com/Dosada05/volley-tournament/models"
	"github.com/Dosada05/volley-tournament/services"
)

// Snapshot - итог завершённого турнира, хранится документом в Firestore.
type Snapshot struct {
	TournamentID int            `firestore:"tournament_id" json:"tournament_id"`
	Name         string         `firestore:"name" json:"name"`
	Kind         string         `firestore:"kind" json:"kind"`
	Status       string         `firestore:"status" json:"status"`
	Location     string         `firestore:"location,omitempty" json:"location,omitempty"`
	StartDate    time.Time      `firestore:"start_date" json:"start_date"`
	EndDate      time.Time      `firestore:"end_date" json:"end_date"`
	Winner       *Entry         `firestore:"winner,omitempty" json:"winner,omitempty"`
	Entries      []Entry        `firestore:"entries" json:"entries"`
	Tables       []Table        `firestore:"tables" json:"tables"`
	Matches      []Match        `firestore:"matches" json:"matches"`
	ArchivedAt   time.Time      `firestore:"archived_at" json:"archived_at"`
	Phases       []PhaseSummary `firestore:"phases,omitempty" json:"phases,omitempty"`
}

type Entry struct {
	RegistrationID int    `firestore:"registration_id" json:"registration_id"`
	Name           string `firestore:"name" json:"name"`
	Seed           int    `firestore:"seed,omitempty" json:"seed,omitempty"`
}

type Table struct {
	Title string `firestore:"title" json:"title"`
	Rows  []Row  `firestore:"rows" json:"rows"`
}

type Row struct {
	Rank           int    `firestore:"rank" json:"rank"`
	RegistrationID int    `firestore:"registration_id" json:"registration_id"`
	Name           string `firestore:"name" json:"name"`
	Wins           int    `firestore:"wins" json:"wins"`
	Losses         int    `firestore:"losses" json:"losses"`
	SetDiff        int    `firestore:"set_diff" json:"set_diff"`
	PointDiff      int    `firestore:"point_diff" json:"point_diff"`
}

type Match struct {
	ID     int    `firestore:"id" json:"id"`
	Stage  string `firestore:"stage" json:"stage"`
	Round  int    `firestore:"round" json:"round"`
	SideA  []int  `firestore:"side_a" json:"side_a"`
	SideB  []int  `firestore:"side_b" json:"side_b"`
	Score  string `firestore:"score" json:"score"`
	Winner int    `firestore:"winner_side,omitempty" json:"winner_side,omitempty"`
}

type PhaseSummary struct {
	Number   int    `firestore:"number" json:"number"`
	Name     string `firestore:"name" json:"name"`
	TeamSize int    `firestore:"team_size" json:"team_size"`
	Promoted []int  `firestore:"promoted" json:"promoted"`
}

// BuildSnapshot собирает снимок из обзора турнира и таблиц его пулов.
func BuildSnapshot(t *models.Tournament, tables []services.PoolStandings, now time.Time) Snapshot {
	s := Snapshot{
		TournamentID: t.ID,
		Name:         t.Name,
		Kind:         string(t.Kind),
		Status:       string(t.Status),
		StartDate:    t.StartDate,
		EndDate:      t.EndDate,
		ArchivedAt:   now.UTC(),
		Entries:      make([]Entry, 0, len(t.Registrations)),
		Tables:       make([]Table, 0, len(tables)),
		Matches:      make([]Match, 0, len(t.Matches)),
	}
	if t.Location != nil {
		s.Location = *t.Location
	}

	for i := range t.Registrations {
		reg := &t.Registrations[i]
		if reg.Status != models.RegistrationConfirmed {
			continue
		}
		e := Entry{RegistrationID: reg.ID, Name: reg.DisplayName()}
		if reg.Seed != nil {
			e.Seed = *reg.Seed
		}
		s.Entries = append(s.Entries, e)
		if t.WinnerRegistrationID != nil && *t.WinnerRegistrationID == reg.ID {
			winner := e
			s.Winner = &winner
		}
	}

	phaseNames := make(map[int]string, len(t.Phases))
	for _, p := range t.Phases {
		phaseNames[p.ID] = p.Name
		s.Phases = append(s.Phases, PhaseSummary{Number: p.Number, Name: p.Name, TeamSize: p.TeamSize, Promoted: p.Promoted})
	}

	for _, table := range tables {
		title := "Pool " + table.Pool.Name
		if table.Pool.PhaseID != nil {
			title = phaseNames[*table.Pool.PhaseID] + ", pool " + table.Pool.Name
		}
		rows := make([]Row, len(table.Standings))
		for i, st := range table.Standings {
			rows[i] = Row{
				Rank:           st.Rank,
				RegistrationID: st.EntryID,
				Name:           st.Name,
				Wins:           st.Wins,
				Losses:         st.Losses,
				SetDiff:        st.SetDiff(),
				PointDiff:      st.PointDiff(),
			}
		}
		s.Tables = append(s.Tables, Table{Title: title, Rows: rows})
	}

	for _, m := range t.Matches {
		if !m.IsCompleted() {
			continue
		}
		s.Matches = append(s.Matches, Match{
			ID:     m.ID,
			Stage:  string(m.Stage),
			Round:  m.Round,
			SideA:  m.SideA,
			SideB:  m.SideB,
			Score:  score(m.Sets),
			Winner: *m.WinnerSide,
		})
	}
	return s
}

func score(sets models.Sets) string {
	parts := make([]string, len(sets))
	for i, set := range sets {
		parts[i] = strconv.Itoa(set.A) + "-" + strconv.Itoa(set.B)
	}
	return strings.Join(parts, ", ")
}
