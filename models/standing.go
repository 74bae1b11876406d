package models

import "time"

// TournamentStanding is the per-team aggregate maintained by the standings
// consumer from finalized match results.
type TournamentStanding struct {
	ID           int       `json:"id"`
	TournamentID int       `json:"tournament_id"`
	TeamID       int       `json:"team_id"`
	Points       int       `json:"points"`
	GamesPlayed  int       `json:"games_played"`
	Wins         int       `json:"wins"`
	Losses       int       `json:"losses"`
	Rank         *int      `json:"rank,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
}
