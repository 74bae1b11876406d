package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Dosada05/esports-results/models"
)

var ErrStandingNotFound = errors.New("tournament standing not found")

type StandingRepository interface {
	GetOrCreate(ctx context.Context, exec SQLExecutor, tournamentID, teamID int) (*models.TournamentStanding, error)
	Update(ctx context.Context, exec SQLExecutor, standing *models.TournamentStanding) error
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.TournamentStanding, error)
	// UpdateRanks recomputes the rank column for a tournament from points,
	// wins and team id, in that order.
	UpdateRanks(ctx context.Context, exec SQLExecutor, tournamentID int) error
	ResetByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
}

type postgresStandingRepository struct {
	db *sql.DB
}

func NewPostgresStandingRepository(db *sql.DB) StandingRepository {
	return &postgresStandingRepository{db: db}
}

func (r *postgresStandingRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresStandingRepository) GetOrCreate(ctx context.Context, exec SQLExecutor, tournamentID, teamID int) (*models.TournamentStanding, error) {
	query := `
		INSERT INTO tournament_standings (tournament_id, team_id)
		VALUES ($1, $2)
		ON CONFLICT (tournament_id, team_id) DO UPDATE SET updated_at = tournament_standings.updated_at
		RETURNING id, tournament_id, team_id, points, games_played, wins, losses, rank, updated_at`

	standing := &models.TournamentStanding{}
	err := r.getExecutor(exec).QueryRowContext(ctx, query, tournamentID, teamID).Scan(
		&standing.ID,
		&standing.TournamentID,
		&standing.TeamID,
		&standing.Points,
		&standing.GamesPlayed,
		&standing.Wins,
		&standing.Losses,
		&standing.Rank,
		&standing.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get or create standing (tournament %d, team %d): %w", tournamentID, teamID, err)
	}
	return standing, nil
}

func (r *postgresStandingRepository) Update(ctx context.Context, exec SQLExecutor, standing *models.TournamentStanding) error {
	query := `
		UPDATE tournament_standings
		SET points = $1, games_played = $2, wins = $3, losses = $4, updated_at = now()
		WHERE id = $5`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		standing.Points,
		standing.GamesPlayed,
		standing.Wins,
		standing.Losses,
		standing.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update standing %d: %w", standing.ID, err)
	}
	return checkAffectedRows(result, ErrStandingNotFound)
}

func (r *postgresStandingRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.TournamentStanding, error) {
	query := `
		SELECT id, tournament_id, team_id, points, games_played, wins, losses, rank, updated_at
		FROM tournament_standings
		WHERE tournament_id = $1
		ORDER BY rank ASC NULLS LAST, points DESC, wins DESC, team_id ASC`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list standings for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	var standings []*models.TournamentStanding
	for rows.Next() {
		s := &models.TournamentStanding{}
		if err := rows.Scan(&s.ID, &s.TournamentID, &s.TeamID, &s.Points, &s.GamesPlayed, &s.Wins, &s.Losses, &s.Rank, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		standings = append(standings, s)
	}
	return standings, rows.Err()
}

func (r *postgresStandingRepository) UpdateRanks(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	query := `
		UPDATE tournament_standings ts
		SET rank = ranked.new_rank
		FROM (
			SELECT id, RANK() OVER (ORDER BY points DESC, wins DESC, team_id ASC) AS new_rank
			FROM tournament_standings
			WHERE tournament_id = $1
		) ranked
		WHERE ts.id = ranked.id`

	if _, err := r.getExecutor(exec).ExecContext(ctx, query, tournamentID); err != nil {
		return fmt.Errorf("failed to update ranks for tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresStandingRepository) ResetByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	query := `
		UPDATE tournament_standings
		SET points = 0, games_played = 0, wins = 0, losses = 0, rank = NULL, updated_at = now()
		WHERE tournament_id = $1`

	if _, err := r.getExecutor(exec).ExecContext(ctx, query, tournamentID); err != nil {
		return fmt.Errorf("failed to reset standings for tournament %d: %w", tournamentID, err)
	}
	return nil
}
