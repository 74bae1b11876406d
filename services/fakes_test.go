package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/Dosada05/esports-results/models"
	"github.com/Dosada05/esports-results/repositories"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func intPtr(v int) *int       { return &v }
func strPtr(v string) *string { return &v }

// fakeTxRunner runs the closure directly; the in-memory fakes need no real
// transaction.
type fakeTxRunner struct{}

func (fakeTxRunner) RunInTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

// fakeBus records every published event. A test can preload subscription
// channels for consumer tests.
type fakeBus struct {
	mu            sync.Mutex
	published     []publishedEvent
	subscriptions map[string]chan *message.Message
}

type publishedEvent struct {
	Topic string
	Event interface{}
}

func newFakeBus() *fakeBus {
	return &fakeBus{subscriptions: make(map[string]chan *message.Message)}
}

func (b *fakeBus) Publish(ctx context.Context, topic string, event interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = append(b.published, publishedEvent{Topic: topic, Event: event})
	if ch, ok := b.subscriptions[topic]; ok {
		payload, err := json.Marshal(event)
		if err != nil {
			return err
		}
		ch <- message.NewMessage(uuid.New().String(), payload)
	}
	return nil
}

func (b *fakeBus) Subscribe(ctx context.Context, topic string) (<-chan *message.Message, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch, ok := b.subscriptions[topic]
	if !ok {
		ch = make(chan *message.Message, 16)
		b.subscriptions[topic] = ch
	}
	return ch, nil
}

func (b *fakeBus) Close() error { return nil }

func (b *fakeBus) eventsOn(topic string) []interface{} {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []interface{}
	for _, p := range b.published {
		if p.Topic == topic {
			out = append(out, p.Event)
		}
	}
	return out
}

// fakeSubmissionRepo is an in-memory SubmissionRepository enforcing the same
// guards as the postgres one: the status-guarded update and the single active
// submission per match.
type fakeSubmissionRepo struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*models.MatchResultSubmission
}

func newFakeSubmissionRepo() *fakeSubmissionRepo {
	return &fakeSubmissionRepo{nextID: 1, subs: make(map[int]*models.MatchResultSubmission)}
}

func (r *fakeSubmissionRepo) add(sub *models.MatchResultSubmission) *models.MatchResultSubmission {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub.ID == 0 {
		sub.ID = r.nextID
		r.nextID++
	} else if sub.ID >= r.nextID {
		r.nextID = sub.ID + 1
	}
	r.subs[sub.ID] = sub
	return sub
}

func (r *fakeSubmissionRepo) Create(ctx context.Context, exec repositories.SQLExecutor, sub *models.MatchResultSubmission) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.subs {
		if existing.MatchID == sub.MatchID && existing.Status != models.SubmissionStatusFinalized {
			return repositories.ErrSubmissionAlreadyActive
		}
	}
	sub.ID = r.nextID
	r.nextID++
	sub.SubmittedAt = time.Now()
	r.subs[sub.ID] = sub
	return nil
}

func (r *fakeSubmissionRepo) GetByID(ctx context.Context, id int) (*models.MatchResultSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, repositories.ErrSubmissionNotFound
	}
	copied := *sub
	return &copied, nil
}

func (r *fakeSubmissionRepo) GetActiveByMatch(ctx context.Context, matchID int) (*models.MatchResultSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sub := range r.subs {
		if sub.MatchID == matchID && sub.Status != models.SubmissionStatusFinalized {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, repositories.ErrSubmissionNotFound
}

func (r *fakeSubmissionRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, from, to models.SubmissionStatus, confirmedBy *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok || sub.Status != from {
		return repositories.ErrSubmissionStateConflict
	}
	sub.Status = to
	if confirmedBy != nil {
		now := time.Now()
		sub.ConfirmedByUserID = confirmedBy
		sub.ConfirmedAt = &now
	}
	return nil
}

func (r *fakeSubmissionRepo) UpdatePayload(ctx context.Context, exec repositories.SQLExecutor, id int, payload models.ResultPayload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return repositories.ErrSubmissionNotFound
	}
	sub.RawResultPayload = payload
	return nil
}

func (r *fakeSubmissionRepo) UpdateAutoConfirmDeadline(ctx context.Context, exec repositories.SQLExecutor, id int, deadline time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return repositories.ErrSubmissionNotFound
	}
	sub.AutoConfirmDeadline = deadline
	return nil
}

func (r *fakeSubmissionRepo) MarkFinalized(ctx context.Context, exec repositories.SQLExecutor, id int, finalizedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok || sub.Status == models.SubmissionStatusFinalized {
		return repositories.ErrSubmissionStateConflict
	}
	sub.Status = models.SubmissionStatusFinalized
	sub.FinalizedAt = &finalizedAt
	return nil
}

func (r *fakeSubmissionRepo) ListPendingBefore(ctx context.Context, deadline time.Time) ([]*models.MatchResultSubmission, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.MatchResultSubmission
	for _, sub := range r.subs {
		if sub.Status == models.SubmissionStatusPending && !sub.AutoConfirmDeadline.After(deadline) {
			copied := *sub
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// fakeDisputeRepo stores disputes, evidence and the verification audit trail
// in memory.
type fakeDisputeRepo struct {
	mu       sync.Mutex
	nextID   int
	disputes map[int]*models.Dispute
	evidence map[int][]*models.DisputeEvidence
	steps    []*models.VerificationStep
}

func newFakeDisputeRepo() *fakeDisputeRepo {
	return &fakeDisputeRepo{
		nextID:   1,
		disputes: make(map[int]*models.Dispute),
		evidence: make(map[int][]*models.DisputeEvidence),
	}
}

func (r *fakeDisputeRepo) add(d *models.Dispute) *models.Dispute {
	r.mu.Lock()
	defer r.mu.Unlock()
	if d.ID == 0 {
		d.ID = r.nextID
		r.nextID++
	} else if d.ID >= r.nextID {
		r.nextID = d.ID + 1
	}
	r.disputes[d.ID] = d
	return d
}

func (r *fakeDisputeRepo) Create(ctx context.Context, exec repositories.SQLExecutor, dispute *models.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.disputes {
		if existing.SubmissionID == dispute.SubmissionID && existing.Status == models.DisputeStatusOpen {
			return repositories.ErrDisputeAlreadyOpen
		}
	}
	dispute.ID = r.nextID
	r.nextID++
	dispute.OpenedAt = time.Now()
	dispute.UpdatedAt = dispute.OpenedAt
	r.disputes[dispute.ID] = dispute
	return nil
}

func (r *fakeDisputeRepo) GetByID(ctx context.Context, id int) (*models.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[id]
	if !ok {
		return nil, repositories.ErrDisputeNotFound
	}
	copied := *d
	return &copied, nil
}

func (r *fakeDisputeRepo) GetOpenBySubmission(ctx context.Context, submissionID int) (*models.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, d := range r.disputes {
		if d.SubmissionID == submissionID && d.Status == models.DisputeStatusOpen {
			copied := *d
			return &copied, nil
		}
	}
	return nil, repositories.ErrDisputeNotFound
}

func (r *fakeDisputeRepo) Resolve(ctx context.Context, exec repositories.SQLExecutor, id int, status models.DisputeStatus, notes string, resolvedBy int, resolvedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[id]
	if !ok || d.Status != models.DisputeStatusOpen {
		return repositories.ErrDisputeStateConflict
	}
	d.Status = status
	d.ResolutionNotes = &notes
	d.ResolvedByUserID = &resolvedBy
	d.ResolvedAt = &resolvedAt
	d.UpdatedAt = time.Now()
	return nil
}

func (r *fakeDisputeRepo) SetResolutionNotes(ctx context.Context, exec repositories.SQLExecutor, id int, notes string, resolvedBy int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[id]
	if !ok {
		return repositories.ErrDisputeNotFound
	}
	d.ResolutionNotes = &notes
	d.ResolvedByUserID = &resolvedBy
	d.UpdatedAt = time.Now()
	return nil
}

func (r *fakeDisputeRepo) AddEvidence(ctx context.Context, exec repositories.SQLExecutor, evidence *models.DisputeEvidence) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.disputes[evidence.DisputeID]; !ok {
		return repositories.ErrDisputeNotFound
	}
	evidence.ID = len(r.evidence[evidence.DisputeID]) + 1
	evidence.CreatedAt = time.Now()
	r.evidence[evidence.DisputeID] = append(r.evidence[evidence.DisputeID], evidence)
	return nil
}

func (r *fakeDisputeRepo) ListEvidence(ctx context.Context, disputeID int) ([]*models.DisputeEvidence, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*models.DisputeEvidence(nil), r.evidence[disputeID]...), nil
}

func (r *fakeDisputeRepo) LogVerificationStep(ctx context.Context, exec repositories.SQLExecutor, step *models.VerificationStep) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	step.ID = len(r.steps) + 1
	step.CreatedAt = time.Now()
	r.steps = append(r.steps, step)
	return nil
}

func (r *fakeDisputeRepo) ListVerificationSteps(ctx context.Context, submissionID int) ([]*models.VerificationStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.VerificationStep
	for _, step := range r.steps {
		if step.SubmissionID == submissionID {
			out = append(out, step)
		}
	}
	return out, nil
}

func (r *fakeDisputeRepo) stepsFor(submissionID int) []*models.VerificationStep {
	steps, _ := r.ListVerificationSteps(context.Background(), submissionID)
	return steps
}

// acceptedResult records one AcceptMatchResult call on the fake match repo.
type acceptedResult struct {
	MatchID      int
	WinnerTeamID int
	LoserTeamID  int
	Payload      models.ResultPayload
	Metadata     map[string]interface{}
}

type fakeMatchRepo struct {
	mu       sync.Mutex
	matches  map[int]*models.Match
	slugs    map[int]string
	accepted []acceptedResult
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{matches: make(map[int]*models.Match), slugs: make(map[int]string)}
}

func (r *fakeMatchRepo) add(match *models.Match, gameSlug string) *models.Match {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.matches[match.ID] = match
	r.slugs[match.ID] = gameSlug
	return match
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	copied := *match
	return &copied, nil
}

func (r *fakeMatchRepo) AcceptMatchResult(ctx context.Context, exec repositories.SQLExecutor, matchID, winnerTeamID, loserTeamID int, payload models.ResultPayload, metadata map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	match, ok := r.matches[matchID]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	if match.Status == models.MatchStatusCompleted {
		return repositories.ErrMatchAlreadyCompleted
	}
	now := time.Now()
	match.WinnerTeamID = &winnerTeamID
	match.LoserTeamID = &loserTeamID
	match.ResultPayload = payload
	match.Status = models.MatchStatusCompleted
	match.CompletedAt = &now
	r.accepted = append(r.accepted, acceptedResult{
		MatchID:      matchID,
		WinnerTeamID: winnerTeamID,
		LoserTeamID:  loserTeamID,
		Payload:      payload,
		Metadata:     metadata,
	})
	return nil
}

func (r *fakeMatchRepo) GetGameSlugForMatch(ctx context.Context, matchID int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	slug, ok := r.slugs[matchID]
	if !ok {
		return "", repositories.ErrMatchNotFound
	}
	return slug, nil
}

func (r *fakeMatchRepo) ListCompletedByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.Match
	for _, match := range r.matches {
		if match.TournamentID == tournamentID && match.Status == models.MatchStatusCompleted {
			copied := *match
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type fakeStandingRepo struct {
	mu        sync.Mutex
	nextID    int
	standings map[string]*models.TournamentStanding
}

func newFakeStandingRepo() *fakeStandingRepo {
	return &fakeStandingRepo{nextID: 1, standings: make(map[string]*models.TournamentStanding)}
}

func standingKey(tournamentID, teamID int) string {
	return fmt.Sprintf("%d:%d", tournamentID, teamID)
}

func (r *fakeStandingRepo) GetOrCreate(ctx context.Context, exec repositories.SQLExecutor, tournamentID, teamID int) (*models.TournamentStanding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := standingKey(tournamentID, teamID)
	if s, ok := r.standings[key]; ok {
		copied := *s
		return &copied, nil
	}
	s := &models.TournamentStanding{
		ID:           r.nextID,
		TournamentID: tournamentID,
		TeamID:       teamID,
		UpdatedAt:    time.Now(),
	}
	r.nextID++
	r.standings[key] = s
	copied := *s
	return &copied, nil
}

func (r *fakeStandingRepo) Update(ctx context.Context, exec repositories.SQLExecutor, standing *models.TournamentStanding) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, s := range r.standings {
		if s.ID == standing.ID {
			copied := *standing
			r.standings[key] = &copied
			return nil
		}
	}
	return repositories.ErrStandingNotFound
}

func (r *fakeStandingRepo) ListByTournament(ctx context.Context, tournamentID int) ([]*models.TournamentStanding, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*models.TournamentStanding
	for _, s := range r.standings {
		if s.TournamentID == tournamentID {
			copied := *s
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		if out[i].Wins != out[j].Wins {
			return out[i].Wins > out[j].Wins
		}
		return out[i].TeamID < out[j].TeamID
	})
	return out, nil
}

func (r *fakeStandingRepo) UpdateRanks(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	list, err := r.ListByTournament(ctx, tournamentID)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, s := range list {
		rank := i + 1
		stored := r.standings[standingKey(tournamentID, s.TeamID)]
		stored.Rank = &rank
	}
	return nil
}

func (r *fakeStandingRepo) ResetByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.standings {
		if s.TournamentID == tournamentID {
			s.Points = 0
			s.GamesPlayed = 0
			s.Wins = 0
			s.Losses = 0
			s.Rank = nil
		}
	}
	return nil
}

func (r *fakeStandingRepo) get(tournamentID, teamID int) *models.TournamentStanding {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.standings[standingKey(tournamentID, teamID)]
	if !ok {
		return nil
	}
	copied := *s
	return &copied
}

// fakeProgressor records bracket advancements.
type fakeProgressor struct {
	mu    sync.Mutex
	calls []struct{ MatchID, WinnerID int }
	err   error
}

func (p *fakeProgressor) AdvanceWinner(ctx context.Context, exec repositories.SQLExecutor, matchID, winnerID int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.calls = append(p.calls, struct{ MatchID, WinnerID int }{matchID, winnerID})
	return nil
}

// fakeGameConfigRepo returns a fixed scoring rule and schema per game slug.
type fakeGameConfigRepo struct {
	rules   map[string]*models.GameScoringRule
	schemas map[string][]*models.ResultSchemaField
}

func newFakeGameConfigRepo() *fakeGameConfigRepo {
	return &fakeGameConfigRepo{
		rules:   make(map[string]*models.GameScoringRule),
		schemas: make(map[string][]*models.ResultSchemaField),
	}
}

func (r *fakeGameConfigRepo) setRule(gameSlug string, config models.RuleConfig) {
	r.rules[gameSlug] = &models.GameScoringRule{
		ID:       len(r.rules) + 1,
		GameSlug: gameSlug,
		RuleType: config.RuleType(),
		IsActive: true,
		Config:   config,
	}
}

func (r *fakeGameConfigRepo) GetActiveScoringRule(ctx context.Context, gameSlug string) (*models.GameScoringRule, error) {
	rule, ok := r.rules[gameSlug]
	if !ok {
		return nil, repositories.ErrScoringRuleNotFound
	}
	return rule, nil
}

func (r *fakeGameConfigRepo) GetResultSchema(ctx context.Context, gameSlug string) ([]*models.ResultSchemaField, error) {
	return r.schemas[gameSlug], nil
}
