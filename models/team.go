package models

import "time"

// Player - игрок (может быть не привязан к учётной записи).
type Player struct {
	ID        int       `json:"id" db:"id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  string    `json:"last_name" db:"last_name"`
	Gender    *string   `json:"gender,omitempty" db:"gender"`
	Level     *string   `json:"level,omitempty" db:"level"`
	UserID    *int      `json:"user_id,omitempty" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

func (p *Player) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

type Team struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CaptainID *int      `json:"captain_id,omitempty" db:"captain_user_id"`
	PlayerIDs []int     `json:"player_ids" db:"player_ids"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	Players []Player `json:"players,omitempty" db:"-"`

	LogoKey *string `json:"-" db:"logo_key"`
	LogoURL *string `json:"logo_url,omitempty" db:"-"`
}

func (t *Team) HasPlayer(playerID int) bool {
	for _, id := range t.PlayerIDs {
		if id == playerID {
			return true
		}
	}
	return false
}
