package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Dosada05/esports-results/models"
)

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrSubmissionAlreadyActive surfaces the partial unique index that allows
	// only one non-finalized submission per match.
	ErrSubmissionAlreadyActive = errors.New("match already has an active submission")
	// ErrSubmissionStateConflict is returned when a status-guarded update
	// matched no row: another caller moved the submission first.
	ErrSubmissionStateConflict = errors.New("submission status changed concurrently")
	ErrSubmissionMatchInvalid  = errors.New("submission references an unknown match")
)

type SubmissionRepository interface {
	Create(ctx context.Context, exec SQLExecutor, sub *models.MatchResultSubmission) error
	GetByID(ctx context.Context, id int) (*models.MatchResultSubmission, error)
	// GetActiveByMatch returns the one non-finalized submission of a match,
	// or ErrSubmissionNotFound when none exists.
	GetActiveByMatch(ctx context.Context, matchID int) (*models.MatchResultSubmission, error)
	// UpdateStatus transitions id from one status to another. The WHERE guard
	// on the previous status serializes concurrent transitions: the loser
	// observes ErrSubmissionStateConflict.
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.SubmissionStatus, confirmedBy *int) error
	UpdatePayload(ctx context.Context, exec SQLExecutor, id int, payload models.ResultPayload) error
	UpdateAutoConfirmDeadline(ctx context.Context, exec SQLExecutor, id int, deadline time.Time) error
	MarkFinalized(ctx context.Context, exec SQLExecutor, id int, finalizedAt time.Time) error
	ListPendingBefore(ctx context.Context, deadline time.Time) ([]*models.MatchResultSubmission, error)
}

type postgresSubmissionRepository struct {
	db *sql.DB
}

func NewPostgresSubmissionRepository(db *sql.DB) SubmissionRepository {
	return &postgresSubmissionRepository{db: db}
}

func (r *postgresSubmissionRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const submissionColumns = `
	id, match_id, submitted_by_user_id, submitted_by_team_id, raw_result_payload,
	proof_screenshot_url, submitter_notes, status, submitted_at, confirmed_at,
	finalized_at, auto_confirm_deadline, confirmed_by_user_id, organizer_notes`

func (r *postgresSubmissionRepository) Create(ctx context.Context, exec SQLExecutor, sub *models.MatchResultSubmission) error {
	payload, err := marshalJSONMap(sub.RawResultPayload)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO match_result_submissions
			(match_id, submitted_by_user_id, submitted_by_team_id, raw_result_payload,
			 proof_screenshot_url, submitter_notes, status, auto_confirm_deadline)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, submitted_at`

	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		sub.MatchID,
		sub.SubmittedByUserID,
		sub.SubmittedByTeamID,
		payload,
		sub.ProofScreenshotURL,
		sub.SubmitterNotes,
		sub.Status,
		sub.AutoConfirmDeadline,
	).Scan(&sub.ID, &sub.SubmittedAt)

	return r.handleSubmissionError(err)
}

func (r *postgresSubmissionRepository) GetByID(ctx context.Context, id int) (*models.MatchResultSubmission, error) {
	query := `SELECT` + submissionColumns + `
		FROM match_result_submissions
		WHERE id = $1`

	sub, err := r.scanSubmission(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to scan submission %d: %w", id, err)
	}
	return sub, nil
}

func (r *postgresSubmissionRepository) GetActiveByMatch(ctx context.Context, matchID int) (*models.MatchResultSubmission, error) {
	query := `SELECT` + submissionColumns + `
		FROM match_result_submissions
		WHERE match_id = $1 AND status <> $2
		ORDER BY submitted_at DESC
		LIMIT 1`

	sub, err := r.scanSubmission(r.db.QueryRowContext(ctx, query, matchID, models.SubmissionStatusFinalized))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSubmissionNotFound
		}
		return nil, fmt.Errorf("failed to scan active submission for match %d: %w", matchID, err)
	}
	return sub, nil
}

func (r *postgresSubmissionRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, from, to models.SubmissionStatus, confirmedBy *int) error {
	query := `
		UPDATE match_result_submissions
		SET status = $1,
		    confirmed_by_user_id = COALESCE($2, confirmed_by_user_id),
		    confirmed_at = CASE WHEN $2 IS NOT NULL THEN now() ELSE confirmed_at END
		WHERE id = $3 AND status = $4`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, to, confirmedBy, id, from)
	if err != nil {
		return fmt.Errorf("failed to update submission %d status: %w", id, err)
	}
	return checkAffectedRows(result, ErrSubmissionStateConflict)
}

func (r *postgresSubmissionRepository) UpdatePayload(ctx context.Context, exec SQLExecutor, id int, payload models.ResultPayload) error {
	data, err := marshalJSONMap(payload)
	if err != nil {
		return err
	}
	query := `UPDATE match_result_submissions SET raw_result_payload = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, data, id)
	if err != nil {
		return fmt.Errorf("failed to update submission %d payload: %w", id, err)
	}
	return checkAffectedRows(result, ErrSubmissionNotFound)
}

func (r *postgresSubmissionRepository) UpdateAutoConfirmDeadline(ctx context.Context, exec SQLExecutor, id int, deadline time.Time) error {
	query := `UPDATE match_result_submissions SET auto_confirm_deadline = $1 WHERE id = $2`
	result, err := r.getExecutor(exec).ExecContext(ctx, query, deadline, id)
	if err != nil {
		return fmt.Errorf("failed to update submission %d deadline: %w", id, err)
	}
	return checkAffectedRows(result, ErrSubmissionNotFound)
}

func (r *postgresSubmissionRepository) MarkFinalized(ctx context.Context, exec SQLExecutor, id int, finalizedAt time.Time) error {
	query := `
		UPDATE match_result_submissions
		SET status = $1, finalized_at = $2
		WHERE id = $3 AND status <> $1`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, models.SubmissionStatusFinalized, finalizedAt, id)
	if err != nil {
		return fmt.Errorf("failed to finalize submission %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrSubmissionStateConflict)
}

func (r *postgresSubmissionRepository) ListPendingBefore(ctx context.Context, deadline time.Time) ([]*models.MatchResultSubmission, error) {
	query := `SELECT` + submissionColumns + `
		FROM match_result_submissions
		WHERE status = $1 AND auto_confirm_deadline <= $2
		ORDER BY auto_confirm_deadline ASC`

	rows, err := r.db.QueryContext(ctx, query, models.SubmissionStatusPending, deadline)
	if err != nil {
		return nil, fmt.Errorf("failed to list expired pending submissions: %w", err)
	}
	defer rows.Close()

	var subs []*models.MatchResultSubmission
	for rows.Next() {
		sub, err := r.scanSubmission(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan expired pending submission: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating expired pending submissions: %w", err)
	}
	return subs, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func (r *postgresSubmissionRepository) scanSubmission(row rowScanner) (*models.MatchResultSubmission, error) {
	sub := &models.MatchResultSubmission{}
	var rawPayload []byte
	err := row.Scan(
		&sub.ID,
		&sub.MatchID,
		&sub.SubmittedByUserID,
		&sub.SubmittedByTeamID,
		&rawPayload,
		&sub.ProofScreenshotURL,
		&sub.SubmitterNotes,
		&sub.Status,
		&sub.SubmittedAt,
		&sub.ConfirmedAt,
		&sub.FinalizedAt,
		&sub.AutoConfirmDeadline,
		&sub.ConfirmedByUserID,
		&sub.OrganizerNotes,
	)
	if err != nil {
		return nil, err
	}
	payload, err := unmarshalJSONMap(rawPayload)
	if err != nil {
		return nil, err
	}
	sub.RawResultPayload = payload
	return sub, nil
}

func (r *postgresSubmissionRepository) handleSubmissionError(err error) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err, "uniq_active_submission_per_match") {
		return ErrSubmissionAlreadyActive
	}
	if isForeignKeyViolation(err) {
		return ErrSubmissionMatchInvalid
	}
	return fmt.Errorf("submission repository error: %w", err)
}
