package models

import "time"

type PhaseStatus string

const (
	PhaseConfigured PhaseStatus = "configured"
	PhaseInProgress PhaseStatus = "in_progress"
	PhaseCompleted  PhaseStatus = "completed"
)

// Phase - этап King-турнира (например 4x4 -> 3x3 -> 2x2).
type Phase struct {
	ID                int         `json:"id" db:"id"`
	TournamentID      int         `json:"tournament_id" db:"tournament_id"`
	Number            int         `json:"number" db:"number"`
	Name              string      `json:"name" db:"name"`
	TeamSize          int         `json:"team_size" db:"team_size"`
	PoolCount         int         `json:"pool_count" db:"pool_count"`
	QualifiersPerPool int         `json:"qualifiers_per_pool" db:"qualifiers_per_pool"`
	RepechageSlots    int         `json:"repechage_slots" db:"repechage_slots"`
	RoundsPerPool     int         `json:"rounds_per_pool" db:"rounds_per_pool"`
	Status            PhaseStatus `json:"status" db:"status"`
	Promoted          []int       `json:"promoted,omitempty" db:"promoted"` // registration ids in promotion order
	StartedAt         *time.Time  `json:"started_at,omitempty" db:"started_at"`
	CompletedAt       *time.Time  `json:"completed_at,omitempty" db:"completed_at"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`
}

// QualifierCount is the number of entries this phase hands to the next one.
func (p *Phase) QualifierCount() int {
	return p.PoolCount*p.QualifiersPerPool + p.RepechageSlots
}
