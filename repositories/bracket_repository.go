package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/esports-results/models"
)

var (
	ErrBracketNodeNotFound = errors.New("bracket node not found")
	ErrBracketSlotInvalid  = errors.New("bracket parent slot must be 1 or 2")
)

type BracketRepository interface {
	GetNodeByID(ctx context.Context, exec SQLExecutor, id int) (*models.BracketNode, error)
	// GetNodeByMatch returns the node holding the given match, or
	// ErrBracketNodeNotFound for matches outside any bracket.
	GetNodeByMatch(ctx context.Context, exec SQLExecutor, matchID int) (*models.BracketNode, error)
	UpdateWinner(ctx context.Context, exec SQLExecutor, nodeID, winnerID int) error
	// SetParticipant writes a participant into slot 1 or 2 of a node.
	SetParticipant(ctx context.Context, exec SQLExecutor, nodeID, slot, participantID int, participantName *string) error
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.BracketNode, error)
}

type postgresBracketRepository struct {
	db *sql.DB
}

func NewPostgresBracketRepository(db *sql.DB) BracketRepository {
	return &postgresBracketRepository{db: db}
}

func (r *postgresBracketRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const bracketNodeColumns = `
	id, bracket_id, position, round_number, match_number_in_round,
	participant1_id, participant1_name, participant2_id, participant2_name,
	winner_id, is_bye, bracket_type, parent_node_id, parent_slot,
	child1_node_id, child2_node_id, match_id`

func (r *postgresBracketRepository) GetNodeByID(ctx context.Context, exec SQLExecutor, id int) (*models.BracketNode, error) {
	query := `SELECT` + bracketNodeColumns + ` FROM bracket_nodes WHERE id = $1`

	node, err := scanBracketNode(r.getExecutor(exec).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNodeNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket node %d: %w", id, err)
	}
	return node, nil
}

func (r *postgresBracketRepository) GetNodeByMatch(ctx context.Context, exec SQLExecutor, matchID int) (*models.BracketNode, error) {
	query := `SELECT` + bracketNodeColumns + ` FROM bracket_nodes WHERE match_id = $1`

	node, err := scanBracketNode(r.getExecutor(exec).QueryRowContext(ctx, query, matchID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBracketNodeNotFound
		}
		return nil, fmt.Errorf("failed to scan bracket node for match %d: %w", matchID, err)
	}
	return node, nil
}

func (r *postgresBracketRepository) UpdateWinner(ctx context.Context, exec SQLExecutor, nodeID, winnerID int) error {
	query := `UPDATE bracket_nodes SET winner_id = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, winnerID, nodeID)
	if err != nil {
		return fmt.Errorf("failed to set winner on bracket node %d: %w", nodeID, err)
	}
	return checkAffectedRows(result, ErrBracketNodeNotFound)
}

func (r *postgresBracketRepository) SetParticipant(ctx context.Context, exec SQLExecutor, nodeID, slot, participantID int, participantName *string) error {
	var query string
	switch slot {
	case 1:
		query = `UPDATE bracket_nodes SET participant1_id = $1, participant1_name = $2 WHERE id = $3`
	case 2:
		query = `UPDATE bracket_nodes SET participant2_id = $1, participant2_name = $2 WHERE id = $3`
	default:
		return fmt.Errorf("%w: got %d", ErrBracketSlotInvalid, slot)
	}

	result, err := r.getExecutor(exec).ExecContext(ctx, query, participantID, participantName, nodeID)
	if err != nil {
		return fmt.Errorf("failed to set participant on bracket node %d slot %d: %w", nodeID, slot, err)
	}
	return checkAffectedRows(result, ErrBracketNodeNotFound)
}

func (r *postgresBracketRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.BracketNode, error) {
	query := `SELECT` + bracketNodeColumns + `
		FROM bracket_nodes
		WHERE bracket_id = (SELECT id FROM brackets WHERE tournament_id = $1)
		ORDER BY round_number ASC, match_number_in_round ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list bracket nodes for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	var nodes []*models.BracketNode
	for rows.Next() {
		node, err := scanBracketNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bracket node: %w", err)
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

func scanBracketNode(row rowScanner) (*models.BracketNode, error) {
	node := &models.BracketNode{}
	err := row.Scan(
		&node.ID,
		&node.BracketID,
		&node.Position,
		&node.RoundNumber,
		&node.MatchNumberInRound,
		&node.Participant1ID,
		&node.Participant1Name,
		&node.Participant2ID,
		&node.Participant2Name,
		&node.WinnerID,
		&node.IsBye,
		&node.BracketType,
		&node.ParentNodeID,
		&node.ParentSlot,
		&node.Child1NodeID,
		&node.Child2NodeID,
		&node.MatchID,
	)
	if err != nil {
		return nil, err
	}
	return node, nil
}
