package models

import "time"

type DisputeStatus string

const (
	DisputeStatusOpen                 DisputeStatus = "open"
	DisputeStatusResolvedForSubmitter DisputeStatus = "resolved_for_submitter"
	DisputeStatusResolvedForOpponent  DisputeStatus = "resolved_for_opponent"
	DisputeStatusDismissed            DisputeStatus = "dismissed"
	DisputeStatusEscalated            DisputeStatus = "escalated"
)

// IsTerminal reports whether the dispute can no longer change state.
func (s DisputeStatus) IsTerminal() bool {
	return s != DisputeStatusOpen
}

type Dispute struct {
	ID               int                `json:"id"`
	SubmissionID     int                `json:"submission_id"`
	OpenedByUserID   int                `json:"opened_by_user_id"`
	OpenedByTeamID   *int               `json:"opened_by_team_id,omitempty"`
	ReasonCode       string             `json:"reason_code"`
	Description      *string            `json:"description,omitempty"`
	Status           DisputeStatus      `json:"status"`
	ResolutionNotes  *string            `json:"resolution_notes,omitempty"`
	OpenedAt         time.Time          `json:"opened_at"`
	UpdatedAt        time.Time          `json:"updated_at"`
	ResolvedAt       *time.Time         `json:"resolved_at,omitempty"`
	ResolvedByUserID *int               `json:"resolved_by_user_id,omitempty"`
	EscalatedAt      *time.Time         `json:"escalated_at,omitempty"`
	Evidence         []*DisputeEvidence `json:"evidence,omitempty"`
}

type DisputeEvidence struct {
	ID        int       `json:"id"`
	DisputeID int       `json:"dispute_id"`
	Type      string    `json:"type"`
	URL       string    `json:"url"`
	Notes     *string   `json:"notes,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// VerificationStep is one entry of the per-submission audit trail. Steps are
// append-only.
type VerificationStep struct {
	ID           int                    `json:"id"`
	SubmissionID int                    `json:"submission_id"`
	Step         string                 `json:"step"`
	Status       string                 `json:"status"`
	Details      map[string]interface{} `json:"details,omitempty"`
	PerformedBy  *int                   `json:"performed_by,omitempty"`
	CreatedAt    time.Time              `json:"created_at"`
}

const (
	VerificationStepOpponentConfirm  = "opponent_confirm"
	VerificationStepOpponentDispute  = "opponent_dispute"
	VerificationStepAutoVerification = "auto_verification"
	VerificationStepFinalization     = "finalization"

	VerificationStepStatusSuccess = "success"
	VerificationStepStatusFailure = "failure"
)
