package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/esports-results/events"
	"github.com/Dosada05/esports-results/models"
	"github.com/Dosada05/esports-results/repositories"
)

type OpponentDecision string

const (
	DecisionConfirm OpponentDecision = "confirm"
	DecisionDispute OpponentDecision = "dispute"
)

type CreateSubmissionInput struct {
	MatchID            int
	SubmittedByUserID  int
	SubmittedByTeamID  *int
	RawResultPayload   models.ResultPayload
	ProofScreenshotURL *string
	SubmitterNotes     *string
}

type EvidenceInput struct {
	Type  string
	URL   string
	Notes *string
}

type OpponentResponseInput struct {
	SubmissionID     int
	RespondingUserID int
	Decision         OpponentDecision
	ReasonCode       string
	Notes            *string
	Evidence         []EvidenceInput
}

type SubmissionService interface {
	CreateSubmission(ctx context.Context, input CreateSubmissionInput) (*models.MatchResultSubmission, error)
	OpponentRespond(ctx context.Context, input OpponentResponseInput) (*models.MatchResultSubmission, error)
	// AutoConfirmExpired moves every pending submission whose deadline lies
	// at or before cutoff to auto_confirmed. It is driven by the background
	// sweeper and is idempotent: submissions that raced into another state
	// are skipped.
	AutoConfirmExpired(ctx context.Context, cutoff time.Time) (int, error)
}

type submissionService struct {
	txRunner       repositories.TxRunner
	submissionRepo repositories.SubmissionRepository
	disputeRepo    repositories.DisputeRepository
	matchRepo      repositories.MatchRepository
	bus            events.Bus
	logger         *slog.Logger
}

func NewSubmissionService(
	txRunner repositories.TxRunner,
	submissionRepo repositories.SubmissionRepository,
	disputeRepo repositories.DisputeRepository,
	matchRepo repositories.MatchRepository,
	bus events.Bus,
	logger *slog.Logger,
) SubmissionService {
	return &submissionService{
		txRunner:       txRunner,
		submissionRepo: submissionRepo,
		disputeRepo:    disputeRepo,
		matchRepo:      matchRepo,
		bus:            bus,
		logger:         logger,
	}
}

func (s *submissionService) CreateSubmission(ctx context.Context, input CreateSubmissionInput) (*models.MatchResultSubmission, error) {
	match, err := s.matchRepo.GetByID(ctx, input.MatchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrMatchNotFound, input.MatchID)
		}
		return nil, err
	}

	if _, err := s.submissionRepo.GetActiveByMatch(ctx, match.ID); err == nil {
		return nil, fmt.Errorf("%w: match %d", ErrSubmissionAlreadyExists, match.ID)
	} else if !errors.Is(err, repositories.ErrSubmissionNotFound) {
		return nil, err
	}

	sub := &models.MatchResultSubmission{
		MatchID:             match.ID,
		SubmittedByUserID:   input.SubmittedByUserID,
		SubmittedByTeamID:   input.SubmittedByTeamID,
		RawResultPayload:    input.RawResultPayload,
		ProofScreenshotURL:  input.ProofScreenshotURL,
		SubmitterNotes:      input.SubmitterNotes,
		Status:              models.SubmissionStatusPending,
		AutoConfirmDeadline: time.Now().Add(models.AutoConfirmWindow),
	}

	if err := s.submissionRepo.Create(ctx, nil, sub); err != nil {
		// The partial unique index closes the race the pre-check above leaves
		// open.
		if errors.Is(err, repositories.ErrSubmissionAlreadyActive) {
			return nil, fmt.Errorf("%w: match %d", ErrSubmissionAlreadyExists, match.ID)
		}
		return nil, err
	}

	s.logger.Info("result submission created",
		slog.Int("submission_id", sub.ID),
		slog.Int("match_id", match.ID),
		slog.Int("submitted_by", sub.SubmittedByUserID))
	return sub, nil
}

func (s *submissionService) OpponentRespond(ctx context.Context, input OpponentResponseInput) (*models.MatchResultSubmission, error) {
	sub, err := s.submissionRepo.GetByID(ctx, input.SubmissionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrSubmissionNotFound, input.SubmissionID)
		}
		return nil, err
	}
	if sub.Status != models.SubmissionStatusPending {
		return nil, invalidStateError(sub.Status, models.SubmissionStatusPending)
	}
	if input.RespondingUserID == sub.SubmittedByUserID {
		return nil, ErrSelfResponseForbidden
	}

	match, err := s.matchRepo.GetByID(ctx, sub.MatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load match %d for response: %w", sub.MatchID, err)
	}

	switch input.Decision {
	case DecisionConfirm:
		return s.confirm(ctx, sub, match, input)
	case DecisionDispute:
		return s.dispute(ctx, sub, match, input)
	default:
		return nil, fmt.Errorf("%w: got %q", ErrInvalidOpponentDecision, input.Decision)
	}
}

func (s *submissionService) confirm(ctx context.Context, sub *models.MatchResultSubmission, match *models.Match, input OpponentResponseInput) (*models.MatchResultSubmission, error) {
	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.submissionRepo.UpdateStatus(ctx, exec, sub.ID,
			models.SubmissionStatusPending, models.SubmissionStatusConfirmed, &input.RespondingUserID); err != nil {
			if errors.Is(err, repositories.ErrSubmissionStateConflict) {
				return invalidStateError(sub.Status, models.SubmissionStatusPending)
			}
			return err
		}
		return s.disputeRepo.LogVerificationStep(ctx, exec, &models.VerificationStep{
			SubmissionID: sub.ID,
			Step:         models.VerificationStepOpponentConfirm,
			Status:       models.VerificationStepStatusSuccess,
			PerformedBy:  &input.RespondingUserID,
		})
	})
	if err != nil {
		return nil, err
	}

	now := time.Now()
	sub.Status = models.SubmissionStatusConfirmed
	sub.ConfirmedByUserID = &input.RespondingUserID
	sub.ConfirmedAt = &now

	s.publish(ctx, events.TopicMatchResultConfirmed, events.MatchResultConfirmedEvent{
		SubmissionID: sub.ID,
		MatchID:      sub.MatchID,
		TournamentID: match.TournamentID,
	})
	return sub, nil
}

func (s *submissionService) dispute(ctx context.Context, sub *models.MatchResultSubmission, match *models.Match, input OpponentResponseInput) (*models.MatchResultSubmission, error) {
	if input.ReasonCode == "" {
		return nil, ErrDisputeReasonRequired
	}

	// The dispute is opened by the opposing side of the match, never by the
	// submitter's team.
	openedByTeam := match.OpponentTeamID(sub.SubmittedByTeamID)

	dispute := &models.Dispute{
		SubmissionID:   sub.ID,
		OpenedByUserID: input.RespondingUserID,
		OpenedByTeamID: openedByTeam,
		ReasonCode:     input.ReasonCode,
		Description:    input.Notes,
		Status:         models.DisputeStatusOpen,
	}

	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.disputeRepo.Create(ctx, exec, dispute); err != nil {
			if errors.Is(err, repositories.ErrDisputeAlreadyOpen) {
				return fmt.Errorf("%w: submission %d", ErrDisputeAlreadyOpen, sub.ID)
			}
			return err
		}
		for _, item := range input.Evidence {
			evidence := &models.DisputeEvidence{
				DisputeID: dispute.ID,
				Type:      item.Type,
				URL:       item.URL,
				Notes:     item.Notes,
			}
			if err := s.disputeRepo.AddEvidence(ctx, exec, evidence); err != nil {
				return err
			}
			dispute.Evidence = append(dispute.Evidence, evidence)
		}
		if err := s.submissionRepo.UpdateStatus(ctx, exec, sub.ID,
			models.SubmissionStatusPending, models.SubmissionStatusDisputed, nil); err != nil {
			if errors.Is(err, repositories.ErrSubmissionStateConflict) {
				return invalidStateError(sub.Status, models.SubmissionStatusPending)
			}
			return err
		}
		return s.disputeRepo.LogVerificationStep(ctx, exec, &models.VerificationStep{
			SubmissionID: sub.ID,
			Step:         models.VerificationStepOpponentDispute,
			Status:       models.VerificationStepStatusSuccess,
			Details:      map[string]interface{}{"reason_code": input.ReasonCode},
			PerformedBy:  &input.RespondingUserID,
		})
	})
	if err != nil {
		return nil, err
	}

	sub.Status = models.SubmissionStatusDisputed

	s.publish(ctx, events.TopicMatchResultDisputed, events.MatchResultDisputedEvent{
		DisputeID:      dispute.ID,
		SubmissionID:   sub.ID,
		MatchID:        sub.MatchID,
		TournamentID:   match.TournamentID,
		OpenedByUserID: input.RespondingUserID,
		ReasonCode:     input.ReasonCode,
	})
	return sub, nil
}

func (s *submissionService) AutoConfirmExpired(ctx context.Context, cutoff time.Time) (int, error) {
	expired, err := s.submissionRepo.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired submissions: %w", err)
	}

	confirmed := 0
	for _, sub := range expired {
		err := s.submissionRepo.UpdateStatus(ctx, nil, sub.ID,
			models.SubmissionStatusPending, models.SubmissionStatusAutoConfirmed, nil)
		if err != nil {
			if errors.Is(err, repositories.ErrSubmissionStateConflict) {
				// Someone responded between the listing and this update.
				continue
			}
			// Batch sweep: log and keep going, one bad row must not stall the
			// rest.
			s.logger.Error("failed to auto-confirm submission",
				slog.Int("submission_id", sub.ID), slog.Any("error", err))
			continue
		}
		confirmed++

		tournamentID := 0
		if match, err := s.matchRepo.GetByID(ctx, sub.MatchID); err == nil {
			tournamentID = match.TournamentID
		}
		s.publish(ctx, events.TopicMatchResultConfirmed, events.MatchResultConfirmedEvent{
			SubmissionID:  sub.ID,
			MatchID:       sub.MatchID,
			TournamentID:  tournamentID,
			AutoConfirmed: true,
		})
	}

	if confirmed > 0 {
		s.logger.Info("auto-confirm sweep finished",
			slog.Int("expired", len(expired)), slog.Int("confirmed", confirmed))
	}
	return confirmed, nil
}

// publish is best-effort: event delivery never fails the state transition
// that produced the event.
func (s *submissionService) publish(ctx context.Context, topic string, event interface{}) {
	if err := s.bus.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", slog.String("topic", topic), slog.Any("error", err))
	}
}
