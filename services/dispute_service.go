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

type ResolutionType string

const (
	// ResolutionApproveOriginal upholds the original submission payload as-is.
	ResolutionApproveOriginal ResolutionType = "approve_original"
	// ResolutionApproveDispute accepts the disputing side's claim: the
	// submission payload is replaced before finalization.
	ResolutionApproveDispute ResolutionType = "approve_dispute"
	// ResolutionCustomResult finalizes with a payload supplied by the
	// organizer.
	ResolutionCustomResult ResolutionType = "custom_result"
	// ResolutionDismissDispute rejects the dispute and returns the
	// submission to pending with a fresh auto-confirm window.
	ResolutionDismissDispute ResolutionType = "dismiss_dispute"
)

type ResolveDisputeInput struct {
	DisputeID        int
	ResolutionType   ResolutionType
	ResolvedByUserID int
	ResolutionNotes  string
	// ResolutionPayload replaces the submission payload for approve_dispute
	// and custom_result; the other types ignore it.
	ResolutionPayload models.ResultPayload
}

type DisputeService interface {
	ResolveDispute(ctx context.Context, input ResolveDisputeInput) (*models.Dispute, error)
	GetDispute(ctx context.Context, id int) (*models.Dispute, error)
}

// disputeService owns the organizer-facing resolution workflow. It never
// touches the match record itself: the three finalizing resolutions delegate
// the score commit and bracket progression to the verification service,
// keeping the match single-writer.
type disputeService struct {
	txRunner       repositories.TxRunner
	disputeRepo    repositories.DisputeRepository
	submissionRepo repositories.SubmissionRepository
	matchRepo      repositories.MatchRepository
	verification   VerificationService
	bus            events.Bus
	logger         *slog.Logger
}

func NewDisputeService(
	txRunner repositories.TxRunner,
	disputeRepo repositories.DisputeRepository,
	submissionRepo repositories.SubmissionRepository,
	matchRepo repositories.MatchRepository,
	verification VerificationService,
	bus events.Bus,
	logger *slog.Logger,
) DisputeService {
	return &disputeService{
		txRunner:       txRunner,
		disputeRepo:    disputeRepo,
		submissionRepo: submissionRepo,
		matchRepo:      matchRepo,
		verification:   verification,
		bus:            bus,
		logger:         logger,
	}
}

func (s *disputeService) GetDispute(ctx context.Context, id int) (*models.Dispute, error) {
	dispute, err := s.disputeRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrDisputeNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrDisputeNotFound, id)
		}
		return nil, err
	}
	evidence, err := s.disputeRepo.ListEvidence(ctx, dispute.ID)
	if err != nil {
		return nil, err
	}
	dispute.Evidence = evidence
	return dispute, nil
}

func (s *disputeService) ResolveDispute(ctx context.Context, input ResolveDisputeInput) (*models.Dispute, error) {
	dispute, err := s.disputeRepo.GetByID(ctx, input.DisputeID)
	if err != nil {
		if errors.Is(err, repositories.ErrDisputeNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrDisputeNotFound, input.DisputeID)
		}
		return nil, err
	}
	if dispute.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: dispute is %q, requires %q",
			ErrDisputeAlreadyResolved, dispute.Status, models.DisputeStatusOpen)
	}

	sub, err := s.submissionRepo.GetByID(ctx, dispute.SubmissionID)
	if err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrSubmissionNotFound, dispute.SubmissionID)
		}
		return nil, err
	}

	switch input.ResolutionType {
	case ResolutionApproveOriginal:
		return s.finalizeWith(ctx, dispute, sub, input, nil)
	case ResolutionApproveDispute:
		if input.ResolutionPayload == nil {
			return nil, fmt.Errorf("%w: approve_dispute", ErrResolutionPayloadRequired)
		}
		return s.finalizeWith(ctx, dispute, sub, input, input.ResolutionPayload)
	case ResolutionCustomResult:
		if input.ResolutionPayload == nil {
			return nil, fmt.Errorf("%w: custom_result", ErrResolutionPayloadRequired)
		}
		return s.finalizeWith(ctx, dispute, sub, input, input.ResolutionPayload)
	case ResolutionDismissDispute:
		return s.dismiss(ctx, dispute, sub, input)
	default:
		return nil, fmt.Errorf("%w: got %q", ErrInvalidResolutionType, input.ResolutionType)
	}
}

// finalizeWith optionally replaces the submission payload and hands the
// commit over to the verification service. The open dispute itself is settled
// inside finalization, according to the verified winner; the organizer's
// decision is recorded on the dispute only once finalization has succeeded,
// so a failed verification never leaves resolver metadata on an open dispute.
func (s *disputeService) finalizeWith(ctx context.Context, dispute *models.Dispute, sub *models.MatchResultSubmission, input ResolveDisputeInput, replacementPayload models.ResultPayload) (*models.Dispute, error) {
	if replacementPayload != nil {
		if err := s.submissionRepo.UpdatePayload(ctx, nil, sub.ID, replacementPayload); err != nil {
			return nil, err
		}
		sub.RawResultPayload = replacementPayload
		s.logger.Info("submission payload replaced by dispute resolution",
			slog.Int("dispute_id", dispute.ID),
			slog.Int("submission_id", sub.ID),
			slog.String("resolution_type", string(input.ResolutionType)))
	}

	if _, err := s.verification.FinalizeSubmission(ctx, sub.ID, input.ResolvedByUserID); err != nil {
		return nil, err
	}

	notes := fmt.Sprintf("[%s] %s", input.ResolutionType, input.ResolutionNotes)
	if err := s.disputeRepo.SetResolutionNotes(ctx, nil, dispute.ID, notes, input.ResolvedByUserID); err != nil {
		return nil, err
	}

	return s.GetDispute(ctx, dispute.ID)
}

// dismiss rejects the dispute and restarts verification from the
// confirmation step: the submission reverts to pending with a brand-new full
// auto-confirm window. Finalize is never invoked on this path.
func (s *disputeService) dismiss(ctx context.Context, dispute *models.Dispute, sub *models.MatchResultSubmission, input ResolveDisputeInput) (*models.Dispute, error) {
	now := time.Now()
	newDeadline := now.Add(models.AutoConfirmWindow)

	err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.disputeRepo.Resolve(ctx, exec, dispute.ID,
			models.DisputeStatusDismissed, input.ResolutionNotes, input.ResolvedByUserID, now); err != nil {
			if errors.Is(err, repositories.ErrDisputeStateConflict) {
				return fmt.Errorf("%w: dispute is no longer open", ErrDisputeAlreadyResolved)
			}
			return err
		}
		if err := s.submissionRepo.UpdateStatus(ctx, exec, sub.ID,
			models.SubmissionStatusDisputed, models.SubmissionStatusPending, nil); err != nil {
			if errors.Is(err, repositories.ErrSubmissionStateConflict) {
				return invalidStateError(sub.Status, models.SubmissionStatusDisputed)
			}
			return err
		}
		return s.submissionRepo.UpdateAutoConfirmDeadline(ctx, exec, sub.ID, newDeadline)
	})
	if err != nil {
		return nil, err
	}

	dispute.Status = models.DisputeStatusDismissed
	dispute.ResolvedByUserID = &input.ResolvedByUserID
	dispute.ResolvedAt = &now

	tournamentID := 0
	if match, err := s.matchRepo.GetByID(ctx, sub.MatchID); err == nil {
		tournamentID = match.TournamentID
	}
	s.publish(ctx, events.TopicDisputeResolved, events.DisputeResolvedEvent{
		DisputeID:        dispute.ID,
		SubmissionID:     sub.ID,
		TournamentID:     tournamentID,
		Resolution:       string(ResolutionDismissDispute),
		DisputeStatus:    string(models.DisputeStatusDismissed),
		SubmissionStatus: string(models.SubmissionStatusPending),
		ResolvedByUserID: input.ResolvedByUserID,
	})

	s.logger.Info("dispute dismissed",
		slog.Int("dispute_id", dispute.ID),
		slog.Int("submission_id", sub.ID),
		slog.Time("new_deadline", newDeadline))
	return dispute, nil
}

func (s *disputeService) publish(ctx context.Context, topic string, event interface{}) {
	if err := s.bus.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", slog.String("topic", topic), slog.Any("error", err))
	}
}
