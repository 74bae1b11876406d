package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dosada05/esports-results/events"
	"github.com/Dosada05/esports-results/models"
	"github.com/Dosada05/esports-results/scoring"
)

type verificationFixture struct {
	service        VerificationService
	submissionRepo *fakeSubmissionRepo
	disputeRepo    *fakeDisputeRepo
	matchRepo      *fakeMatchRepo
	configRepo     *fakeGameConfigRepo
	progressor     *fakeProgressor
	bus            *fakeBus
}

func newVerificationFixture() *verificationFixture {
	f := &verificationFixture{
		submissionRepo: newFakeSubmissionRepo(),
		disputeRepo:    newFakeDisputeRepo(),
		matchRepo:      newFakeMatchRepo(),
		configRepo:     newFakeGameConfigRepo(),
		progressor:     &fakeProgressor{},
		bus:            newFakeBus(),
	}
	f.configRepo.setRule("testgame", models.WinLossConfig{})
	f.service = NewVerificationService(
		fakeTxRunner{},
		f.submissionRepo,
		f.disputeRepo,
		f.matchRepo,
		scoring.NewEngine(f.configRepo),
		f.progressor,
		f.bus,
		testLogger(),
	)
	return f
}

func (f *verificationFixture) seedMatch() *models.Match {
	return f.matchRepo.add(&models.Match{
		ID:           10,
		TournamentID: 1,
		Team1ID:      intPtr(5),
		Team2ID:      intPtr(6),
		Status:       models.MatchStatusInProgress,
	}, "testgame")
}

func (f *verificationFixture) seedSubmission(status models.SubmissionStatus, payload models.ResultPayload) *models.MatchResultSubmission {
	return f.submissionRepo.add(&models.MatchResultSubmission{
		MatchID:           10,
		SubmittedByUserID: 100,
		SubmittedByTeamID: intPtr(5),
		RawResultPayload:  payload,
		Status:            status,
	})
}

func TestVerifySubmission(t *testing.T) {
	f := newVerificationFixture()
	f.seedMatch()
	sub := f.seedSubmission(models.SubmissionStatusConfirmed, models.ResultPayload{
		"winner_team_id": float64(5),
		"is_win":         true,
	})

	view, err := f.service.VerifySubmission(context.Background(), sub.ID)
	require.NoError(t, err)

	assert.True(t, view.IsValid)
	assert.Equal(t, "testgame", view.GameSlug)
	winner, ok := view.WinnerTeamID()
	require.True(t, ok)
	assert.Equal(t, 5, winner)
	loser, ok := view.LoserTeamID()
	require.True(t, ok)
	assert.Equal(t, 6, loser)

	steps := f.disputeRepo.stepsFor(sub.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, models.VerificationStepAutoVerification, steps[0].Step)
	assert.Equal(t, models.VerificationStepStatusSuccess, steps[0].Status)

	assert.Len(t, f.bus.eventsOn(events.TopicMatchResultVerified), 1)
}

func TestVerifySubmissionDrawWarning(t *testing.T) {
	f := newVerificationFixture()
	f.seedMatch()
	sub := f.seedSubmission(models.SubmissionStatusConfirmed, models.ResultPayload{
		"team_a_id":    float64(5),
		"team_b_id":    float64(6),
		"team_a_score": float64(2),
		"team_b_score": float64(2),
	})

	view, err := f.service.VerifySubmission(context.Background(), sub.ID)
	require.NoError(t, err)

	assert.True(t, view.IsValid)
	_, ok := view.WinnerTeamID()
	assert.False(t, ok)
	assert.NotEmpty(t, view.Warnings)
}

func TestDryRunVerificationHasNoSideEffects(t *testing.T) {
	f := newVerificationFixture()
	f.seedMatch()
	sub := f.seedSubmission(models.SubmissionStatusPending, models.ResultPayload{
		"winner_team_id": float64(5),
	})

	view, err := f.service.DryRunVerification(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.True(t, view.IsValid)

	assert.Empty(t, f.disputeRepo.stepsFor(sub.ID))
	assert.Empty(t, f.bus.published)

	stored, err := f.submissionRepo.GetByID(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusPending, stored.Status)
}

func TestFinalizeSubmission(t *testing.T) {
	f := newVerificationFixture()
	f.seedMatch()
	sub := f.seedSubmission(models.SubmissionStatusConfirmed, models.ResultPayload{
		"winner_team_id": float64(5),
	})

	finalized, err := f.service.FinalizeSubmission(context.Background(), sub.ID, 900)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusFinalized, finalized.Status)
	require.NotNil(t, finalized.FinalizedAt)

	// The match carries the committed result exactly once.
	require.Len(t, f.matchRepo.accepted, 1)
	accepted := f.matchRepo.accepted[0]
	assert.Equal(t, 10, accepted.MatchID)
	assert.Equal(t, 5, accepted.WinnerTeamID)
	assert.Equal(t, 6, accepted.LoserTeamID)

	require.Len(t, f.progressor.calls, 1)
	assert.Equal(t, 5, f.progressor.calls[0].WinnerID)

	steps := f.disputeRepo.stepsFor(sub.ID)
	require.Len(t, steps, 2)
	assert.Equal(t, models.VerificationStepAutoVerification, steps[0].Step)
	assert.Equal(t, models.VerificationStepFinalization, steps[1].Step)

	published := f.bus.eventsOn(events.TopicMatchResultFinalized)
	require.Len(t, published, 1)
	event := published[0].(events.MatchResultFinalizedEvent)
	assert.Equal(t, 5, event.WinnerTeamID)
	assert.Equal(t, 6, event.LoserTeamID)
	assert.Equal(t, 900, event.ResolvedByUserID)
}

func TestFinalizeSubmissionAfterAutoConfirm(t *testing.T) {
	f := newVerificationFixture()
	f.seedMatch()
	sub := f.submissionRepo.add(&models.MatchResultSubmission{
		MatchID:             10,
		SubmittedByUserID:   100,
		SubmittedByTeamID:   intPtr(5),
		RawResultPayload:    models.ResultPayload{"winner_team_id": float64(5)},
		Status:              models.SubmissionStatusPending,
		AutoConfirmDeadline: time.Now().Add(-time.Hour),
	})

	submissionService := NewSubmissionService(fakeTxRunner{}, f.submissionRepo, f.disputeRepo, f.matchRepo, f.bus, testLogger())
	count, err := submissionService.AutoConfirmExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, count)

	// An auto-confirmed submission finalizes without any opponent response.
	finalized, err := f.service.FinalizeSubmission(context.Background(), sub.ID, 900)
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionStatusFinalized, finalized.Status)
	require.Len(t, f.matchRepo.accepted, 1)
}

func TestFinalizeSubmissionRejectsPending(t *testing.T) {
	f := newVerificationFixture()
	f.seedMatch()
	sub := f.seedSubmission(models.SubmissionStatusPending, models.ResultPayload{
		"winner_team_id": float64(5),
	})

	_, err := f.service.FinalizeSubmission(context.Background(), sub.ID, 900)
	assert.ErrorIs(t, err, ErrInvalidSubmissionState)
	assert.Empty(t, f.matchRepo.accepted)
}

func TestFinalizeSubmissionRejectsDraw(t *testing.T) {
	f := newVerificationFixture()
	f.seedMatch()
	sub := f.seedSubmission(models.SubmissionStatusConfirmed, models.ResultPayload{
		"team_a_id":    float64(5),
		"team_b_id":    float64(6),
		"team_a_score": float64(1),
		"team_b_score": float64(1),
	})

	_, err := f.service.FinalizeSubmission(context.Background(), sub.ID, 900)
	var verr *VerificationFailedError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, sub.ID, verr.SubmissionID)
	assert.Empty(t, f.matchRepo.accepted)
}

func TestFinalizeSubmissionRejectsInvalidPayload(t *testing.T) {
	f := newVerificationFixture()
	f.configRepo.schemas["testgame"] = []*models.ResultSchemaField{
		{FieldName: "winner_team_id", FieldType: models.SchemaFieldInteger, Required: true},
		{FieldName: "map_name", FieldType: models.SchemaFieldString, Required: true},
	}
	f.seedMatch()
	sub := f.seedSubmission(models.SubmissionStatusConfirmed, models.ResultPayload{
		"winner_team_id": float64(5),
	})

	_, err := f.service.FinalizeSubmission(context.Background(), sub.ID, 900)
	var verr *VerificationFailedError
	require.ErrorAs(t, err, &verr)
	assert.NotEmpty(t, verr.Errors)
	assert.Empty(t, f.matchRepo.accepted)

	// The failed attempt still leaves a verification step behind.
	steps := f.disputeRepo.stepsFor(sub.ID)
	require.Len(t, steps, 1)
	assert.Equal(t, models.VerificationStepStatusFailure, steps[0].Status)
}

func TestFinalizeSubmissionResolvesOpenDispute(t *testing.T) {
	f := newVerificationFixture()
	f.seedMatch()
	sub := f.seedSubmission(models.SubmissionStatusDisputed, models.ResultPayload{
		"winner_team_id": float64(5),
	})
	dispute := f.disputeRepo.add(&models.Dispute{
		SubmissionID:   sub.ID,
		OpenedByUserID: 200,
		OpenedByTeamID: intPtr(6),
		ReasonCode:     "score_mismatch",
		Status:         models.DisputeStatusOpen,
	})

	_, err := f.service.FinalizeSubmission(context.Background(), sub.ID, 900)
	require.NoError(t, err)

	// The submitting team won, so the dispute resolves in their favour.
	resolved, err := f.disputeRepo.GetByID(context.Background(), dispute.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolvedForSubmitter, resolved.Status)
	require.NotNil(t, resolved.ResolvedByUserID)
	assert.Equal(t, 900, *resolved.ResolvedByUserID)

	published := f.bus.eventsOn(events.TopicDisputeResolved)
	require.Len(t, published, 1)
	event := published[0].(events.DisputeResolvedEvent)
	assert.Equal(t, string(models.DisputeStatusResolvedForSubmitter), event.DisputeStatus)
	assert.Equal(t, string(models.SubmissionStatusFinalized), event.SubmissionStatus)
}
