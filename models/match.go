package models

import "time"

type MatchStatus string

const (
	MatchStatusScheduled  MatchStatus = "scheduled"
	MatchStatusInProgress MatchStatus = "in_progress"
	MatchStatusCompleted  MatchStatus = "completed"
	MatchStatusCanceled   MatchStatus = "canceled"
)

// Match is the authoritative match record. This core does not own it: the
// only write path into a match is AcceptMatchResult on the match repository,
// invoked from finalization.
type Match struct {
	ID            int           `json:"id"`
	TournamentID  int           `json:"tournament_id"`
	StageID       *int          `json:"stage_id,omitempty"`
	RoundNumber   int           `json:"round_number"`
	MatchNumber   int           `json:"match_number"`
	Team1ID       *int          `json:"team1_id,omitempty"`
	Team2ID       *int          `json:"team2_id,omitempty"`
	WinnerTeamID  *int          `json:"winner_team_id,omitempty"`
	LoserTeamID   *int          `json:"loser_team_id,omitempty"`
	Status        MatchStatus   `json:"status"`
	ResultPayload ResultPayload `json:"result_payload,omitempty"`
	ScheduledAt   *time.Time    `json:"scheduled_at,omitempty"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
}

// HasParticipant reports whether the given team plays in this match.
func (m *Match) HasParticipant(teamID int) bool {
	return (m.Team1ID != nil && *m.Team1ID == teamID) || (m.Team2ID != nil && *m.Team2ID == teamID)
}

// OpponentTeamID returns the other side of the match relative to teamID, or
// nil when the slot is unknown.
func (m *Match) OpponentTeamID(teamID *int) *int {
	if teamID == nil {
		return nil
	}
	if m.Team1ID != nil && *m.Team1ID == *teamID {
		return m.Team2ID
	}
	if m.Team2ID != nil && *m.Team2ID == *teamID {
		return m.Team1ID
	}
	return nil
}
