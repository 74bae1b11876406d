package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/esports-results/brackets"
	"github.com/Dosada05/esports-results/events"
	"github.com/Dosada05/esports-results/models"
	"github.com/Dosada05/esports-results/repositories"
	"github.com/Dosada05/esports-results/scoring"
)

// Fixed resolution notes recorded when finalization settles an open dispute.
const (
	disputeResolvedForSubmitterNotes = "Resolved automatically at finalization: the verified result favours the submitting team."
	disputeResolvedForOpponentNotes  = "Resolved automatically at finalization: the verified result favours the opposing team."
)

type VerificationService interface {
	// VerifySubmission validates and scores a submission without mutating
	// it. The outcome is written to the audit trail and published on the bus.
	VerifySubmission(ctx context.Context, submissionID int) (*models.VerificationResultView, error)
	// DryRunVerification performs the same computation as VerifySubmission
	// but neither logs an audit step nor publishes; it exists for previews.
	DryRunVerification(ctx context.Context, submissionID int) (*models.VerificationResultView, error)
	// FinalizeSubmission commits a verified result into the match record,
	// advances the bracket, resolves any open dispute and marks the
	// submission finalized, all in one transaction.
	FinalizeSubmission(ctx context.Context, submissionID, resolvedByUserID int) (*models.MatchResultSubmission, error)
}

type verificationService struct {
	txRunner       repositories.TxRunner
	submissionRepo repositories.SubmissionRepository
	disputeRepo    repositories.DisputeRepository
	matchRepo      repositories.MatchRepository
	engine         scoring.Engine
	progressor     brackets.Progressor
	bus            events.Bus
	logger         *slog.Logger
}

func NewVerificationService(
	txRunner repositories.TxRunner,
	submissionRepo repositories.SubmissionRepository,
	disputeRepo repositories.DisputeRepository,
	matchRepo repositories.MatchRepository,
	engine scoring.Engine,
	progressor brackets.Progressor,
	bus events.Bus,
	logger *slog.Logger,
) VerificationService {
	return &verificationService{
		txRunner:       txRunner,
		submissionRepo: submissionRepo,
		disputeRepo:    disputeRepo,
		matchRepo:      matchRepo,
		engine:         engine,
		progressor:     progressor,
		bus:            bus,
		logger:         logger,
	}
}

func (s *verificationService) VerifySubmission(ctx context.Context, submissionID int) (*models.VerificationResultView, error) {
	sub, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	view, _, err := s.runVerification(ctx, sub)
	if err != nil {
		return nil, err
	}

	stepStatus := models.VerificationStepStatusSuccess
	if !view.IsValid {
		stepStatus = models.VerificationStepStatusFailure
	}
	logErr := s.disputeRepo.LogVerificationStep(ctx, nil, &models.VerificationStep{
		SubmissionID: sub.ID,
		Step:         models.VerificationStepAutoVerification,
		Status:       stepStatus,
		Details: map[string]interface{}{
			"errors_count":   len(view.Errors),
			"warnings_count": len(view.Warnings),
		},
	})
	if logErr != nil {
		return nil, logErr
	}

	s.publish(ctx, events.TopicMatchResultVerified, events.MatchResultVerifiedEvent{
		SubmissionID:  sub.ID,
		MatchID:       sub.MatchID,
		IsValid:       view.IsValid,
		ErrorsCount:   len(view.Errors),
		WarningsCount: len(view.Warnings),
		GameSlug:      view.GameSlug,
	})
	return view, nil
}

func (s *verificationService) DryRunVerification(ctx context.Context, submissionID int) (*models.VerificationResultView, error) {
	sub, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	view, _, err := s.runVerification(ctx, sub)
	return view, err
}

func (s *verificationService) FinalizeSubmission(ctx context.Context, submissionID, resolvedByUserID int) (*models.MatchResultSubmission, error) {
	sub, err := s.getSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !sub.Status.CanFinalize() {
		return nil, invalidStateError(sub.Status,
			models.SubmissionStatusConfirmed,
			models.SubmissionStatusAutoConfirmed,
			models.SubmissionStatusDisputed)
	}

	view, err := s.VerifySubmission(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if !view.IsValid {
		return nil, &VerificationFailedError{SubmissionID: sub.ID, Errors: view.Errors}
	}
	winnerTeamID, okWinner := view.WinnerTeamID()
	loserTeamID, okLoser := view.LoserTeamID()
	if !okWinner || !okLoser {
		// Treated as a verification failure, not a separate code path.
		return nil, &VerificationFailedError{
			SubmissionID: sub.ID,
			Errors:       []string{"calculated scores must include winner_team_id and loser_team_id"},
		}
	}

	match, err := s.matchRepo.GetByID(ctx, sub.MatchID)
	if err != nil {
		return nil, fmt.Errorf("failed to load match %d for finalization: %w", sub.MatchID, err)
	}

	openDispute, err := s.disputeRepo.GetOpenBySubmission(ctx, sub.ID)
	if err != nil && !errors.Is(err, repositories.ErrDisputeNotFound) {
		return nil, err
	}

	now := time.Now()
	var disputeResolution models.DisputeStatus
	err = s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		metadata := map[string]interface{}{
			"submission_id":  sub.ID,
			"warnings_count": len(view.Warnings),
		}
		if err := s.matchRepo.AcceptMatchResult(ctx, exec, sub.MatchID,
			winnerTeamID, loserTeamID, sub.RawResultPayload, metadata); err != nil {
			return err
		}
		if err := s.progressor.AdvanceWinner(ctx, exec, sub.MatchID, winnerTeamID); err != nil {
			return err
		}
		if err := s.submissionRepo.MarkFinalized(ctx, exec, sub.ID, now); err != nil {
			return err
		}
		if openDispute != nil {
			disputeResolution, err = s.resolveOpenDispute(ctx, exec, openDispute, sub, winnerTeamID, resolvedByUserID, now)
			if err != nil {
				return err
			}
		}
		return s.disputeRepo.LogVerificationStep(ctx, exec, &models.VerificationStep{
			SubmissionID: sub.ID,
			Step:         models.VerificationStepFinalization,
			Status:       models.VerificationStepStatusSuccess,
			Details: map[string]interface{}{
				"winner_team_id": winnerTeamID,
				"loser_team_id":  loserTeamID,
			},
			PerformedBy: &resolvedByUserID,
		})
	})
	if err != nil {
		return nil, err
	}

	sub.Status = models.SubmissionStatusFinalized
	sub.FinalizedAt = &now

	s.publish(ctx, events.TopicMatchResultFinalized, events.MatchResultFinalizedEvent{
		SubmissionID:     sub.ID,
		MatchID:          sub.MatchID,
		TournamentID:     match.TournamentID,
		WinnerTeamID:     winnerTeamID,
		LoserTeamID:      loserTeamID,
		ResolvedByUserID: resolvedByUserID,
		Metadata: map[string]interface{}{
			"calculated_scores":           view.CalculatedScores,
			"verification_warnings_count": len(view.Warnings),
		},
	})
	if openDispute != nil {
		s.publish(ctx, events.TopicDisputeResolved, events.DisputeResolvedEvent{
			DisputeID:        openDispute.ID,
			SubmissionID:     sub.ID,
			TournamentID:     match.TournamentID,
			Resolution:       string(disputeResolution),
			DisputeStatus:    string(disputeResolution),
			SubmissionStatus: string(models.SubmissionStatusFinalized),
			ResolvedByUserID: resolvedByUserID,
		})
	}

	s.logger.Info("submission finalized",
		slog.Int("submission_id", sub.ID),
		slog.Int("match_id", sub.MatchID),
		slog.Int("winner_team_id", winnerTeamID),
		slog.Int("loser_team_id", loserTeamID))
	return sub, nil
}

// resolveOpenDispute settles the open dispute according to who the verified
// winner turned out to be.
func (s *verificationService) resolveOpenDispute(ctx context.Context, exec repositories.SQLExecutor, dispute *models.Dispute, sub *models.MatchResultSubmission, winnerTeamID, resolvedByUserID int, now time.Time) (models.DisputeStatus, error) {
	status := models.DisputeStatusResolvedForOpponent
	notes := disputeResolvedForOpponentNotes
	if sub.SubmittedByTeamID != nil && *sub.SubmittedByTeamID == winnerTeamID {
		status = models.DisputeStatusResolvedForSubmitter
		notes = disputeResolvedForSubmitterNotes
	}
	if err := s.disputeRepo.Resolve(ctx, exec, dispute.ID, status, notes, resolvedByUserID, now); err != nil {
		return "", err
	}
	return status, nil
}

// runVerification is the computation shared by verify, dry run and finalize:
// schema validation, scoring and winner determination, with no side effects.
func (s *verificationService) runVerification(ctx context.Context, sub *models.MatchResultSubmission) (*models.VerificationResultView, *models.Match, error) {
	gameSlug, err := s.matchRepo.GetGameSlugForMatch(ctx, sub.MatchID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve game for submission %d: %w", sub.ID, err)
	}
	match, err := s.matchRepo.GetByID(ctx, sub.MatchID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load match %d: %w", sub.MatchID, err)
	}

	validation, err := s.engine.ValidateResultSchema(ctx, gameSlug, sub.RawResultPayload)
	if err != nil {
		return nil, nil, err
	}
	score, err := s.engine.ScoreMatch(ctx, gameSlug, sub.RawResultPayload)
	if err != nil {
		return nil, nil, err
	}
	winner, err := s.engine.DetermineWinner(ctx, gameSlug, sub.RawResultPayload)
	if err != nil {
		return nil, nil, err
	}

	view := &models.VerificationResultView{
		SubmissionID: sub.ID,
		GameSlug:     gameSlug,
		IsValid:      validation.IsValid,
		Errors:       validation.Errors,
		CalculatedScores: map[string]interface{}{
			"total_score": score.TotalScore,
			"rule_type":   string(score.RuleType),
		},
		Metadata: map[string]interface{}{
			"match_id":      match.ID,
			"tournament_id": match.TournamentID,
		},
	}
	if len(score.Breakdown) > 0 {
		view.CalculatedScores["breakdown"] = score.Breakdown
	}

	if winner == nil {
		view.Warnings = append(view.Warnings, "no winner could be determined from the payload (possible draw)")
		return view, match, nil
	}

	view.CalculatedScores["winner_team_id"] = *winner
	if loser := match.OpponentTeamID(winner); loser != nil {
		view.CalculatedScores["loser_team_id"] = *loser
	} else {
		view.Warnings = append(view.Warnings, "winner is not a participant of the match; loser cannot be derived")
	}
	return view, match, nil
}

func (s *verificationService) getSubmission(ctx context.Context, id int) (*models.MatchResultSubmission, error) {
	sub, err := s.submissionRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrSubmissionNotFound) {
			return nil, fmt.Errorf("%w: id %d", ErrSubmissionNotFound, id)
		}
		return nil, err
	}
	return sub, nil
}

func (s *verificationService) publish(ctx context.Context, topic string, event interface{}) {
	if err := s.bus.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", slog.String("topic", topic), slog.Any("error", err))
	}
}
