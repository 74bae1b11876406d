package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/Dosada05/esports-results/events"
	"github.com/Dosada05/esports-results/models"
	"github.com/Dosada05/esports-results/repositories"
)

const winPoints = 3

type StandingService interface {
	// ApplyFinalizedResult folds one finalized match into the winner's and
	// loser's standings and refreshes the ranks.
	ApplyFinalizedResult(ctx context.Context, tournamentID, winnerTeamID, loserTeamID int) error
	// RecomputeForTournament rebuilds the standings from all completed
	// matches. Individual match failures are logged and skipped; a batch
	// fan-out never stops at the first bad row.
	RecomputeForTournament(ctx context.Context, tournamentID int) error
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.TournamentStanding, error)
	// ConsumeFinalized subscribes to finalized-result events and applies
	// them until ctx is done.
	ConsumeFinalized(ctx context.Context) error
}

type standingService struct {
	txRunner     repositories.TxRunner
	standingRepo repositories.StandingRepository
	matchRepo    repositories.MatchRepository
	bus          events.Bus
	logger       *slog.Logger
}

func NewStandingService(
	txRunner repositories.TxRunner,
	standingRepo repositories.StandingRepository,
	matchRepo repositories.MatchRepository,
	bus events.Bus,
	logger *slog.Logger,
) StandingService {
	return &standingService{
		txRunner:     txRunner,
		standingRepo: standingRepo,
		matchRepo:    matchRepo,
		bus:          bus,
		logger:       logger,
	}
}

func (s *standingService) ApplyFinalizedResult(ctx context.Context, tournamentID, winnerTeamID, loserTeamID int) error {
	return s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		if err := s.applyResult(ctx, exec, tournamentID, winnerTeamID, loserTeamID); err != nil {
			return err
		}
		return s.standingRepo.UpdateRanks(ctx, exec, tournamentID)
	})
}

func (s *standingService) applyResult(ctx context.Context, exec repositories.SQLExecutor, tournamentID, winnerTeamID, loserTeamID int) error {
	winner, err := s.standingRepo.GetOrCreate(ctx, exec, tournamentID, winnerTeamID)
	if err != nil {
		return err
	}
	loser, err := s.standingRepo.GetOrCreate(ctx, exec, tournamentID, loserTeamID)
	if err != nil {
		return err
	}

	winner.Points += winPoints
	winner.GamesPlayed++
	winner.Wins++
	loser.GamesPlayed++
	loser.Losses++

	if err := s.standingRepo.Update(ctx, exec, winner); err != nil {
		return err
	}
	return s.standingRepo.Update(ctx, exec, loser)
}

func (s *standingService) RecomputeForTournament(ctx context.Context, tournamentID int) error {
	matches, err := s.matchRepo.ListCompletedByTournament(ctx, tournamentID)
	if err != nil {
		return fmt.Errorf("failed to load completed matches for recompute: %w", err)
	}

	if err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.standingRepo.ResetByTournament(ctx, exec, tournamentID)
	}); err != nil {
		return err
	}

	// Each match applies in its own transaction; a failed match is logged
	// and skipped so the rest of the batch still lands.
	var failed []int
	for _, match := range matches {
		if match.WinnerTeamID == nil || match.LoserTeamID == nil {
			continue
		}
		err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
			return s.applyResult(ctx, exec, tournamentID, *match.WinnerTeamID, *match.LoserTeamID)
		})
		if err != nil {
			s.logger.Error("failed to apply match during standings recompute",
				slog.Int("match_id", match.ID), slog.Any("error", err))
			failed = append(failed, match.ID)
		}
	}

	if err := s.txRunner.RunInTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.standingRepo.UpdateRanks(ctx, exec, tournamentID)
	}); err != nil {
		return err
	}

	if len(failed) > 0 {
		s.logger.Warn("standings recompute finished with skipped matches",
			slog.Int("tournament_id", tournamentID), slog.Any("match_ids", failed))
	}
	return nil
}

func (s *standingService) ListByTournament(ctx context.Context, tournamentID int) ([]*models.TournamentStanding, error) {
	return s.standingRepo.ListByTournament(ctx, tournamentID)
}

func (s *standingService) ConsumeFinalized(ctx context.Context) error {
	messages, err := s.bus.Subscribe(ctx, events.TopicMatchResultFinalized)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case msg, ok := <-messages:
				if !ok {
					return nil
				}
				var event events.MatchResultFinalizedEvent
				if err := json.Unmarshal(msg.Payload, &event); err != nil {
					s.logger.Error("failed to decode finalized event",
						slog.String("message_id", msg.UUID), slog.Any("error", err))
					msg.Ack()
					continue
				}
				if err := s.ApplyFinalizedResult(ctx, event.TournamentID, event.WinnerTeamID, event.LoserTeamID); err != nil {
					s.logger.Error("failed to apply finalized result to standings",
						slog.Int("match_id", event.MatchID), slog.Any("error", err))
				}
				msg.Ack()
			}
		}
	})
	return g.Wait()
}
