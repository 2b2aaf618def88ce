package models

import "time"

type Pool struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	PhaseID      *int      `json:"phase_id,omitempty" db:"phase_id"`
	Name         string    `json:"name" db:"name"`
	Position     int       `json:"position" db:"position"`
	EntryIDs     []int     `json:"entry_ids" db:"entry_ids"` // registration ids, in seeding order
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Standing - строка таблицы пула или фазы. Не хранится в БД, вычисляется.
type Standing struct {
	EntryID       int    `json:"entry_id"`
	Name          string `json:"name,omitempty"`
	Rank          int    `json:"rank"`
	Played        int    `json:"played"`
	Wins          int    `json:"wins"`
	Losses        int    `json:"losses"`
	SetsWon       int    `json:"sets_won"`
	SetsLost      int    `json:"sets_lost"`
	PointsFor     int    `json:"points_for"`
	PointsAgainst int    `json:"points_against"`
}

func (s Standing) SetDiff() int   { return s.SetsWon - s.SetsLost }
func (s Standing) PointDiff() int { return s.PointsFor - s.PointsAgainst }

// WinRate returns wins per played match, zero when nothing was played.
func (s Standing) WinRate() float64 {
	if s.Played == 0 {
		return 0
	}
	return float64(s.Wins) / float64(s.Played)
}

// PointDiffPerMatch normalises point difference for entries with different match counts.
func (s Standing) PointDiffPerMatch() float64 {
	if s.Played == 0 {
		return 0
	}
	return float64(s.PointDiff()) / float64(s.Played)
}
