package models

// VerificationResultView is the read-only outcome of verifying a submission.
// CalculatedScores carries at least total_score, rule_type and breakdown;
// when a winner could be determined it also carries winner_team_id and
// loser_team_id, which finalization requires.
type VerificationResultView struct {
	SubmissionID     int                    `json:"submission_id"`
	GameSlug         string                 `json:"game_slug"`
	IsValid          bool                   `json:"is_valid"`
	Errors           []string               `json:"errors,omitempty"`
	Warnings         []string               `json:"warnings,omitempty"`
	CalculatedScores map[string]interface{} `json:"calculated_scores,omitempty"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// WinnerTeamID returns the calculated winner, if verification produced one.
func (v *VerificationResultView) WinnerTeamID() (int, bool) {
	return v.scoreInt("winner_team_id")
}

// LoserTeamID returns the calculated loser, if verification produced one.
func (v *VerificationResultView) LoserTeamID() (int, bool) {
	return v.scoreInt("loser_team_id")
}

func (v *VerificationResultView) scoreInt(key string) (int, bool) {
	raw, ok := v.CalculatedScores[key]
	if !ok || raw == nil {
		return 0, false
	}
	switch n := raw.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
