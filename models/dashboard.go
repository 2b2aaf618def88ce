package models

type DashboardStats struct {
	UsersTotal           int `json:"users_total"`
	PlayersTotal         int `json:"players_total"`
	TeamsTotal           int `json:"teams_total"`
	TournamentsTotal     int `json:"tournaments_total"`
	ActiveTournaments    int `json:"active_tournaments"`
	MatchesTotal         int `json:"matches_total"`
	CompletedMatches     int `json:"completed_matches"`
	PendingRegistrations int `json:"pending_registrations"`
}
