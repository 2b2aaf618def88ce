package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

type MatchStatus string

const (
	MatchStatusScheduled MatchStatus = "scheduled"
	MatchStatusCompleted MatchStatus = "completed"
	MatchStatusCanceled  MatchStatus = "canceled"
)

type MatchStage string

const (
	StagePool    MatchStage = "pool"
	StageBracket MatchStage = "bracket"
	StageKing    MatchStage = "king"
)

const (
	SideA = 1
	SideB = 2
)

type SetScore struct {
	A int `json:"a"`
	B int `json:"b"`
}

// Sets хранится в колонке sets (JSONB).
type Sets []SetScore

func (s Sets) Value() (driver.Value, error) {
	if s == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(s)
}

func (s *Sets) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into Sets", src)
	}
}

// Match - матч любой стадии. Стороны - списки id регистраций:
// одна команда для pool/bracket и несколько игроков для King.
type Match struct {
	ID               int         `json:"id" db:"id"`
	TournamentID     int         `json:"tournament_id" db:"tournament_id"`
	Stage            MatchStage  `json:"stage" db:"stage"`
	PoolID           *int        `json:"pool_id,omitempty" db:"pool_id"`
	PhaseID          *int        `json:"phase_id,omitempty" db:"phase_id"`
	Round            int         `json:"round" db:"round"`
	OrderInRound     int         `json:"order_in_round" db:"order_in_round"`
	BracketUID       *string     `json:"bracket_uid,omitempty" db:"bracket_uid"`
	SideA            []int       `json:"side_a" db:"side_a"`
	SideB            []int       `json:"side_b" db:"side_b"`
	Sets             Sets        `json:"sets" db:"sets"`
	Status           MatchStatus `json:"status" db:"status"`
	WinnerSide       *int        `json:"winner_side,omitempty" db:"winner_side"`
	NextMatchID      *int        `json:"next_match_id,omitempty" db:"next_match_id"`
	WinnerToSlot     *int        `json:"winner_to_slot,omitempty" db:"winner_to_slot"`
	LoserNextMatchID *int        `json:"loser_next_match_id,omitempty" db:"loser_next_match_id"`
	LoserToSlot      *int        `json:"loser_to_slot,omitempty" db:"loser_to_slot"`
	Court            *string     `json:"court,omitempty" db:"court"`
	ScheduledAt      *time.Time  `json:"scheduled_at,omitempty" db:"scheduled_at"`
	CreatedAt        time.Time   `json:"created_at" db:"created_at"`
}

func (m *Match) IsCompleted() bool {
	return m.Status == MatchStatusCompleted && m.WinnerSide != nil
}

// Side returns the entries playing on side 1 (A) or 2 (B).
func (m *Match) Side(side int) []int {
	if side == SideA {
		return m.SideA
	}
	return m.SideB
}

func (m *Match) Winners() []int {
	if m.WinnerSide == nil {
		return nil
	}
	return m.Side(*m.WinnerSide)
}

func (m *Match) Losers() []int {
	if m.WinnerSide == nil {
		return nil
	}
	return m.Side(3 - *m.WinnerSide)
}
