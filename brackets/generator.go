package brackets

import (
	"context"
	"errors"

	"github.com/Dosada05/volley-tournament/models"
)

var (
	ErrNotEnoughEntries    = errors.New("not enough entries to generate matches")
	ErrInvalidTeamSize     = errors.New("invalid team size")
	ErrPoolTooSmallForKing = errors.New("pool has fewer players than two full teams")
)

type GenerateBracketParams struct {
	Tournament *models.Tournament
	// Entries - id регистраций, лучший посев первым.
	Entries []int
	// Label is prepended to generated UIDs so that several pools of one
	// tournament never collide.
	Label string

	// Только для ротации King.
	TeamSize int
	Rounds   int
}

// BracketMatch - матч-заготовка, ещё не сохранённый в БД.
type BracketMatch struct {
	UID          string
	Round        int
	OrderInRound int

	SideA []int
	SideB []int

	// Источники для слотов, которые заполнятся победителем/проигравшим другого матча.
	SourceAUID *string
	SourceBUID *string

	NextMatchUID      *string
	WinnerToSlot      *int
	LoserNextMatchUID *string
	LoserToSlot       *int
}

// IsPlaceholder reports whether at least one side is still waiting for an earlier match.
func (m *BracketMatch) IsPlaceholder() bool {
	return len(m.SideA) == 0 || len(m.SideB) == 0
}

type BracketGenerator interface {
	GenerateBracket(ctx context.Context, params GenerateBracketParams) ([]*BracketMatch, error)

	GetName() string
}

// NewGeneratorForStage picks the generator used for a stage of the given tournament.
func NewGeneratorForStage(kind models.TournamentKind, stage models.MatchStage) (BracketGenerator, error) {
	switch stage {
	case models.StagePool:
		return NewRoundRobinGenerator(), nil
	case models.StageBracket:
		return NewSingleEliminationGenerator(), nil
	case models.StageKing:
		if kind == models.KindTeamKing {
			return NewRoundRobinGenerator(), nil
		}
		return NewKingRotationGenerator(), nil
	}
	return nil, errors.New("unsupported stage " + string(stage))
}

func intPtr(v int) *int { return &v }

func strPtr(v string) *string { return &v }
