package models

import "time"

type SubmissionStatus string

const (
	SubmissionStatusPending       SubmissionStatus = "pending"
	SubmissionStatusConfirmed     SubmissionStatus = "confirmed"
	SubmissionStatusAutoConfirmed SubmissionStatus = "auto_confirmed"
	SubmissionStatusDisputed      SubmissionStatus = "disputed"
	SubmissionStatusFinalized     SubmissionStatus = "finalized"
)

// AutoConfirmWindow is how long the opposing side has to respond before a
// pending submission is accepted automatically. Dismissing a dispute restarts
// a full window from the moment of dismissal.
const AutoConfirmWindow = 24 * time.Hour

// ResultPayload is the raw key/value result reported by a participant. Its
// interpretation belongs to the scoring engine; everything else treats it as
// opaque.
type ResultPayload map[string]interface{}

type MatchResultSubmission struct {
	ID                  int              `json:"id"`
	MatchID             int              `json:"match_id"`
	SubmittedByUserID   int              `json:"submitted_by_user_id"`
	SubmittedByTeamID   *int             `json:"submitted_by_team_id,omitempty"`
	RawResultPayload    ResultPayload    `json:"raw_result_payload"`
	ProofScreenshotURL  *string          `json:"proof_screenshot_url,omitempty"`
	SubmitterNotes      *string          `json:"submitter_notes,omitempty"`
	Status              SubmissionStatus `json:"status"`
	SubmittedAt         time.Time        `json:"submitted_at"`
	ConfirmedAt         *time.Time       `json:"confirmed_at,omitempty"`
	FinalizedAt         *time.Time       `json:"finalized_at,omitempty"`
	AutoConfirmDeadline time.Time        `json:"auto_confirm_deadline"`
	ConfirmedByUserID   *int             `json:"confirmed_by_user_id,omitempty"`
	OrganizerNotes      *string          `json:"organizer_notes,omitempty"`
}

// CanFinalize reports whether a submission in this status may be committed
// into the match record.
func (s SubmissionStatus) CanFinalize() bool {
	switch s {
	case SubmissionStatusConfirmed, SubmissionStatusAutoConfirmed, SubmissionStatusDisputed:
		return true
	}
	return false
}
