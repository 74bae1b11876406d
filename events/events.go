package events

const (
	TopicMatchResultConfirmed = "match.result.confirmed"
	TopicMatchResultDisputed  = "match.result.disputed"
	TopicMatchResultVerified  = "match.result.verified"
	TopicMatchResultFinalized = "match.result.finalized"
	TopicDisputeResolved      = "dispute.resolved"
)

type MatchResultConfirmedEvent struct {
	SubmissionID  int  `json:"submission_id"`
	MatchID       int  `json:"match_id"`
	TournamentID  int  `json:"tournament_id"`
	AutoConfirmed bool `json:"auto_confirmed"`
}

type MatchResultDisputedEvent struct {
	DisputeID      int    `json:"dispute_id"`
	SubmissionID   int    `json:"submission_id"`
	MatchID        int    `json:"match_id"`
	TournamentID   int    `json:"tournament_id"`
	OpenedByUserID int    `json:"opened_by_user_id"`
	ReasonCode     string `json:"reason_code"`
}

type MatchResultVerifiedEvent struct {
	SubmissionID  int    `json:"submission_id"`
	MatchID       int    `json:"match_id"`
	IsValid       bool   `json:"is_valid"`
	ErrorsCount   int    `json:"errors_count"`
	WarningsCount int    `json:"warnings_count"`
	GameSlug      string `json:"game_slug"`
}

type MatchResultFinalizedEvent struct {
	SubmissionID     int                    `json:"submission_id"`
	MatchID          int                    `json:"match_id"`
	TournamentID     int                    `json:"tournament_id"`
	WinnerTeamID     int                    `json:"winner_team_id"`
	LoserTeamID      int                    `json:"loser_team_id"`
	ResolvedByUserID int                    `json:"resolved_by_user_id"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

type DisputeResolvedEvent struct {
	DisputeID        int    `json:"dispute_id"`
	SubmissionID     int    `json:"submission_id"`
	TournamentID     int    `json:"tournament_id"`
	Resolution       string `json:"resolution"`
	DisputeStatus    string `json:"dispute_status"`
	SubmissionStatus string `json:"submission_status"`
	ResolvedByUserID int    `json:"resolved_by_user_id"`
}
