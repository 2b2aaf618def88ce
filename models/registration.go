package models

import (
	"fmt"
	"time"
)

type RegistrationStatus string

const (
	RegistrationPending   RegistrationStatus = "pending"
	RegistrationConfirmed RegistrationStatus = "confirmed"
	RegistrationRejected  RegistrationStatus = "rejected"
	RegistrationWithdrawn RegistrationStatus = "withdrawn"
)

func (s RegistrationStatus) Valid() bool {
	switch s {
	case RegistrationPending, RegistrationConfirmed, RegistrationRejected, RegistrationWithdrawn:
		return true
	}
	return false
}

// Registration - заявка команды или игрока на турнир.
// Ровно одно из TeamID / PlayerID заполнено.
type Registration struct {
	ID           int                `json:"id" db:"id"`
	TournamentID int                `json:"tournament_id" db:"tournament_id"`
	TeamID       *int               `json:"team_id,omitempty" db:"team_id"`
	PlayerID     *int               `json:"player_id,omitempty" db:"player_id"`
	Status       RegistrationStatus `json:"status" db:"status"`
	Seed         *int               `json:"seed,omitempty" db:"seed"`
	CreatedAt    time.Time          `json:"created_at" db:"created_at"`

	Team   *Team   `json:"team,omitempty" db:"-"`
	Player *Player `json:"player,omitempty" db:"-"`
}

func (r *Registration) DisplayName() string {
	if r == nil {
		return "N/A"
	}
	if r.Team != nil && r.Team.Name != "" {
		return r.Team.Name
	}
	if r.Player != nil {
		if name := r.Player.FullName(); name != "" {
			return name
		}
	}
	return fmt.Sprintf("Registration %d", r.ID)
}
