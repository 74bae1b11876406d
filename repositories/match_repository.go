package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/esports-results/models"
)

var (
	ErrMatchNotFound = errors.New("match not found")
	// ErrMatchAlreadyCompleted is returned when AcceptMatchResult targets a
	// match that already carries a committed result.
	ErrMatchAlreadyCompleted = errors.New("match result already accepted")
)

// MatchRepository is the narrow write path into the match domain. The only
// mutation this core is allowed to perform against a match is
// AcceptMatchResult, the single commit point of finalization.
type MatchRepository interface {
	GetByID(ctx context.Context, id int) (*models.Match, error)
	AcceptMatchResult(ctx context.Context, exec SQLExecutor, matchID, winnerTeamID, loserTeamID int, payload models.ResultPayload, metadata map[string]interface{}) error
	GetGameSlugForMatch(ctx context.Context, matchID int) (string, error)
	ListCompletedByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, stage_id, round_number, match_number, team1_id, team2_id,
	winner_team_id, loser_team_id, status, result_payload, scheduled_at, completed_at`

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`

	match, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return match, nil
}

func (r *postgresMatchRepository) AcceptMatchResult(ctx context.Context, exec SQLExecutor, matchID, winnerTeamID, loserTeamID int, payload models.ResultPayload, metadata map[string]interface{}) error {
	data, err := marshalJSONMap(payload)
	if err != nil {
		return err
	}
	meta, err := marshalJSONMap(metadata)
	if err != nil {
		return err
	}
	query := `
		UPDATE matches
		SET winner_team_id = $1, loser_team_id = $2, result_payload = $3,
		    result_metadata = $4, status = $5, completed_at = now()
		WHERE id = $6 AND status <> $5`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		winnerTeamID, loserTeamID, data, meta, models.MatchStatusCompleted, matchID)
	if err != nil {
		return fmt.Errorf("failed to accept result for match %d: %w", matchID, err)
	}
	return checkAffectedRows(result, ErrMatchAlreadyCompleted)
}

func (r *postgresMatchRepository) GetGameSlugForMatch(ctx context.Context, matchID int) (string, error) {
	query := `
		SELECT g.slug
		FROM matches m
		JOIN tournaments t ON t.id = m.tournament_id
		JOIN games g ON g.id = t.game_id
		WHERE m.id = $1`

	var slug string
	err := r.db.QueryRowContext(ctx, query, matchID).Scan(&slug)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrMatchNotFound
		}
		return "", fmt.Errorf("failed to resolve game slug for match %d: %w", matchID, err)
	}
	return slug, nil
}

func (r *postgresMatchRepository) ListCompletedByTournament(ctx context.Context, tournamentID int) ([]*models.Match, error) {
	query := `SELECT` + matchColumns + `
		FROM matches
		WHERE tournament_id = $1 AND status = $2
		ORDER BY round_number ASC, match_number ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID, models.MatchStatusCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list completed matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		match, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan completed match: %w", err)
		}
		matches = append(matches, match)
	}
	return matches, rows.Err()
}

func scanMatch(row rowScanner) (*models.Match, error) {
	match := &models.Match{}
	var rawPayload []byte
	err := row.Scan(
		&match.ID,
		&match.TournamentID,
		&match.StageID,
		&match.RoundNumber,
		&match.MatchNumber,
		&match.Team1ID,
		&match.Team2ID,
		&match.WinnerTeamID,
		&match.LoserTeamID,
		&match.Status,
		&rawPayload,
		&match.ScheduledAt,
		&match.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	payload, err := unmarshalJSONMap(rawPayload)
	if err != nil {
		return nil, err
	}
	match.ResultPayload = payload
	return match, nil
}
