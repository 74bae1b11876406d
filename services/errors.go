package services

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Dosada05/esports-results/models"
)

// Sentinel errors shared across the result pipeline services and the HTTP
// error mapping.
var (
	// Not found
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrDisputeNotFound    = errors.New("dispute not found")
	ErrMatchNotFound      = errors.New("match not found")

	// Invalid state
	ErrInvalidSubmissionState = errors.New("operation not allowed in current submission state")
	ErrDisputeAlreadyResolved = errors.New("dispute has already been resolved")

	// Validation and input
	ErrInvalidOpponentDecision   = errors.New("opponent decision must be confirm or dispute")
	ErrDisputeReasonRequired     = errors.New("a reason code is required to open a dispute")
	ErrResolutionPayloadRequired = errors.New("a result payload is required for this resolution type")
	ErrInvalidResolutionType     = errors.New("unknown dispute resolution type")

	// Authorization conflicts
	ErrSelfResponseForbidden = errors.New("a user cannot respond to their own submission")

	// Conflicts
	ErrSubmissionAlreadyExists = errors.New("match already has an active result submission")
	ErrDisputeAlreadyOpen      = errors.New("submission already has an open dispute")
)

// invalidStateError builds an ErrInvalidSubmissionState that names the
// current state and the states the operation requires.
func invalidStateError(current models.SubmissionStatus, required ...models.SubmissionStatus) error {
	names := make([]string, len(required))
	for i, s := range required {
		names[i] = string(s)
	}
	return fmt.Errorf("%w: submission is %q, requires one of [%s]",
		ErrInvalidSubmissionState, current, strings.Join(names, ", "))
}

// VerificationFailedError reports that finalization was refused because
// verification did not pass. It carries the full error list so an organizer
// can decide between approving a dispute and requesting a resubmission.
type VerificationFailedError struct {
	SubmissionID int
	Errors       []string
}

func (e *VerificationFailedError) Error() string {
	return fmt.Sprintf("verification failed for submission %d: %s",
		e.SubmissionID, strings.Join(e.Errors, "; "))
}
