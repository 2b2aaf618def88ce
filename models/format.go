package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// TieBreak - критерий сравнения в таблице пула.
type TieBreak string

const (
	TieBreakWins       TieBreak = "wins"
	TieBreakSetDiff    TieBreak = "set_diff"
	TieBreakPointDiff  TieBreak = "point_diff"
	TieBreakHeadToHead TieBreak = "head_to_head"
	TieBreakPointsFor  TieBreak = "points_for"
	TieBreakWinRate    TieBreak = "win_rate"
)

// DefaultTieBreakOrder is used when a tournament does not configure its own order.
var DefaultTieBreakOrder = []TieBreak{TieBreakWins, TieBreakSetDiff, TieBreakPointDiff, TieBreakHeadToHead, TieBreakPointsFor}

// RotationTieBreakOrder is the default for king and flexible_king pools, where
// sit-outs leave players with different match counts.
var RotationTieBreakOrder = []TieBreak{TieBreakWinRate, TieBreakWins, TieBreakSetDiff, TieBreakPointDiff, TieBreakHeadToHead, TieBreakPointsFor}

func (t TieBreak) Valid() bool {
	switch t {
	case TieBreakWins, TieBreakSetDiff, TieBreakPointDiff, TieBreakHeadToHead, TieBreakPointsFor, TieBreakWinRate:
		return true
	}
	return false
}

// TournamentSettings хранится в колонке settings (JSONB).
type TournamentSettings struct {
	PoolCount         int        `json:"pool_count,omitempty" yaml:"pool_count"`
	QualifiersPerPool int        `json:"qualifiers_per_pool,omitempty" yaml:"qualifiers_per_pool"`
	DoubleRoundRobin  bool       `json:"double_round_robin,omitempty" yaml:"double_round_robin"`
	ThirdPlaceMatch   bool       `json:"third_place_match,omitempty" yaml:"third_place_match"`
	SetsToWin         int        `json:"sets_to_win,omitempty" yaml:"sets_to_win"`
	TieBreakOrder     []TieBreak `json:"tie_break_order,omitempty" yaml:"tie_break_order"`
}

// TieBreaks returns the configured order or the default one.
// TieBreaks returns the configured order or the default for the tournament kind.
func (s TournamentSettings) TieBreaks(kind TournamentKind) []TieBreak {
	switch {
	case len(s.TieBreakOrder) > 0:
		return s.TieBreakOrder
	case kind.IsIndividual():
		return RotationTieBreakOrder
	}
	return DefaultTieBreakOrder
}

func (s TournamentSettings) Validate() error {
	if s.PoolCount < 0 || s.QualifiersPerPool < 0 || s.SetsToWin < 0 {
		return errors.New("settings values must not be negative")
	}
	for _, tb := range s.TieBreakOrder {
		if !tb.Valid() {
			return fmt.Errorf("unknown tie break %q", tb)
		}
	}
	return nil
}

// Value implements driver.Valuer so settings can be written to a JSONB column.
func (s TournamentSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for the JSONB column.
func (s *TournamentSettings) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*s = TournamentSettings{}
		return nil
	case []byte:
		return json.Unmarshal(v, s)
	case string:
		return json.Unmarshal([]byte(v), s)
	default:
		return fmt.Errorf("cannot scan %T into TournamentSettings", src)
	}
}
