package models

import "time"

// TournamentStatus представляет статусы турнира, соответствующие ENUM в БД.
type TournamentStatus string

const (
	StatusSoon         TournamentStatus = "soon"
	StatusRegistration TournamentStatus = "registration"
	StatusFull         TournamentStatus = "full"
	StatusActive       TournamentStatus = "active"
	StatusCompleted    TournamentStatus = "completed"
	StatusCanceled     TournamentStatus = "canceled"
)

// IsTerminal reports whether no further status change is possible.
func (s TournamentStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

func (s TournamentStatus) Valid() bool {
	switch s {
	case StatusSoon, StatusRegistration, StatusFull, StatusActive, StatusCompleted, StatusCanceled:
		return true
	}
	return false
}

// TournamentKind - формат проведения турнира.
type TournamentKind string

const (
	KindClassic      TournamentKind = "classic"       // пулы + плей-офф
	KindKing         TournamentKind = "king"          // King of the Beach, индивидуальные игроки
	KindFlexibleKing TournamentKind = "flexible_king" // King с гибким размером команд
	KindTeamKing     TournamentKind = "team_king"     // King с фиксированными командами
)

func (k TournamentKind) Valid() bool {
	switch k {
	case KindClassic, KindKing, KindFlexibleKing, KindTeamKing:
		return true
	}
	return false
}

// IsIndividual reports whether players register on their own and rotate partners.
func (k TournamentKind) IsIndividual() bool {
	return k == KindKing || k == KindFlexibleKing
}

// IsPhased reports whether the tournament is played as a sequence of King phases.
func (k TournamentKind) IsPhased() bool {
	return k == KindKing || k == KindFlexibleKing || k == KindTeamKing
}

// Tournament представляет турнир.
type Tournament struct {
	ID                   int                `json:"id" db:"id"`
	Name                 string             `json:"name" db:"name"`
	Description          *string            `json:"description,omitempty" db:"description"`
	Location             *string            `json:"location,omitempty" db:"location"`
	Kind                 TournamentKind     `json:"kind" db:"kind"`
	OrganizerID          int                `json:"organizer_id" db:"organizer_id"`
	RegDate              time.Time          `json:"reg_date" db:"reg_date"`
	StartDate            time.Time          `json:"start_date" db:"start_date"`
	EndDate              time.Time          `json:"end_date" db:"end_date"`
	MaxEntries           int                `json:"max_entries" db:"max_entries"`
	TeamSize             int                `json:"team_size" db:"team_size"`
	Status               TournamentStatus   `json:"status" db:"status"`
	Settings             TournamentSettings `json:"settings" db:"settings"`
	WinnerRegistrationID *int               `json:"winner_registration_id,omitempty" db:"winner_registration_id"`
	CreatedAt            time.Time          `json:"created_at" db:"created_at"`
	LogoKey              *string            `json:"-" db:"logo_key"`
	LogoURL              *string            `json:"logo_url,omitempty" db:"-"`

	// Опциональные связанные сущности (не мапятся напрямую)
	Organizer     *User          `json:"organizer,omitempty" db:"-"`
	Registrations []Registration `json:"registrations,omitempty" db:"-"`
	Pools         []Pool         `json:"pools,omitempty" db:"-"`
	Matches       []Match        `json:"matches,omitempty" db:"-"`
	Phases        []Phase        `json:"phases,omitempty" db:"-"`
}
