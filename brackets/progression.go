// Package brackets advances winners through the tournament's elimination
// tree. The tree itself is generated when the bracket is created; this
// package only mutates participant and winner fields, one level per
// completed match.
package brackets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Dosada05/esports-results/models"
	"github.com/Dosada05/esports-results/repositories"
)

// Progressor is invoked from the finalize transaction after a match result
// has been accepted; it runs on the same SQLExecutor so bracket advancement
// commits or rolls back together with the result.
type Progressor interface {
	AdvanceWinner(ctx context.Context, exec repositories.SQLExecutor, matchID, winnerID int) error
}

type progressor struct {
	bracketRepo repositories.BracketRepository
	logger      *slog.Logger
}

func NewProgressor(bracketRepo repositories.BracketRepository, logger *slog.Logger) Progressor {
	return &progressor{bracketRepo: bracketRepo, logger: logger}
}

func (p *progressor) AdvanceWinner(ctx context.Context, exec repositories.SQLExecutor, matchID, winnerID int) error {
	node, err := p.bracketRepo.GetNodeByMatch(ctx, exec, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrBracketNodeNotFound) {
			// Not every match lives in a bracket (group stages, friendlies).
			return nil
		}
		return fmt.Errorf("failed to load bracket node for match %d: %w", matchID, err)
	}

	if err := p.bracketRepo.UpdateWinner(ctx, exec, node.ID, winnerID); err != nil {
		return err
	}

	winnerName := node.ParticipantName(winnerID)
	return p.propagate(ctx, exec, node, winnerID, winnerName)
}

// propagate writes the winner into the parent's open slot and walks upward
// through any bye nodes, which advance their single participant without a
// match being played.
func (p *progressor) propagate(ctx context.Context, exec repositories.SQLExecutor, node *models.BracketNode, winnerID int, winnerName *string) error {
	for node.ParentNodeID != nil {
		if node.ParentSlot == nil || (*node.ParentSlot != 1 && *node.ParentSlot != 2) {
			return fmt.Errorf("bracket node %d: %w", node.ID, repositories.ErrBracketSlotInvalid)
		}

		if err := p.bracketRepo.SetParticipant(ctx, exec, *node.ParentNodeID, *node.ParentSlot, winnerID, winnerName); err != nil {
			return err
		}

		parent, err := p.bracketRepo.GetNodeByID(ctx, exec, *node.ParentNodeID)
		if err != nil {
			return fmt.Errorf("failed to load parent bracket node %d: %w", *node.ParentNodeID, err)
		}

		if !parent.IsBye {
			p.logger.Debug("winner advanced into bracket node",
				slog.Int("node_id", parent.ID),
				slog.Int("slot", *node.ParentSlot),
				slog.Int("winner_id", winnerID))
			return nil
		}

		// A bye node forwards its lone participant immediately.
		if err := p.bracketRepo.UpdateWinner(ctx, exec, parent.ID, winnerID); err != nil {
			return err
		}
		node = parent
	}

	// Root node: the bracket is decided.
	p.logger.Info("bracket completed",
		slog.Int("bracket_id", node.BracketID),
		slog.Int("winner_id", winnerID))
	return nil
}
