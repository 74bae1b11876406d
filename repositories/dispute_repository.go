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
	ErrDisputeNotFound = errors.New("dispute not found")
	// ErrDisputeAlreadyOpen surfaces the partial unique index on open
	// disputes: at most one open dispute per submission, enforced by the
	// database so two concurrent openings cannot both succeed.
	ErrDisputeAlreadyOpen = errors.New("submission already has an open dispute")
	// ErrDisputeStateConflict is returned when a resolution raced with
	// another and lost: the dispute is no longer open.
	ErrDisputeStateConflict     = errors.New("dispute status changed concurrently")
	ErrDisputeSubmissionInvalid = errors.New("dispute references an unknown submission")
)

type DisputeRepository interface {
	Create(ctx context.Context, exec SQLExecutor, dispute *models.Dispute) error
	GetByID(ctx context.Context, id int) (*models.Dispute, error)
	// GetOpenBySubmission returns the open dispute for a submission, or
	// ErrDisputeNotFound when there is none.
	GetOpenBySubmission(ctx context.Context, submissionID int) (*models.Dispute, error)
	// Resolve moves an open dispute to a terminal status. The WHERE guard on
	// the open status makes resolved disputes immutable.
	Resolve(ctx context.Context, exec SQLExecutor, id int, status models.DisputeStatus, notes string, resolvedBy int, resolvedAt time.Time) error
	// SetResolutionNotes records the organizer's decision without changing
	// the dispute status; the status itself is settled by finalization.
	SetResolutionNotes(ctx context.Context, exec SQLExecutor, id int, notes string, resolvedBy int) error
	AddEvidence(ctx context.Context, exec SQLExecutor, evidence *models.DisputeEvidence) error
	ListEvidence(ctx context.Context, disputeID int) ([]*models.DisputeEvidence, error)
	LogVerificationStep(ctx context.Context, exec SQLExecutor, step *models.VerificationStep) error
	ListVerificationSteps(ctx context.Context, submissionID int) ([]*models.VerificationStep, error)
}

type postgresDisputeRepository struct {
	db *sql.DB
}

func NewPostgresDisputeRepository(db *sql.DB) DisputeRepository {
	return &postgresDisputeRepository{db: db}
}

func (r *postgresDisputeRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const disputeColumns = `
	id, submission_id, opened_by_user_id, opened_by_team_id, reason_code, description,
	status, resolution_notes, opened_at, updated_at, resolved_at, resolved_by_user_id, escalated_at`

func (r *postgresDisputeRepository) Create(ctx context.Context, exec SQLExecutor, dispute *models.Dispute) error {
	query := `
		INSERT INTO disputes
			(submission_id, opened_by_user_id, opened_by_team_id, reason_code, description, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, opened_at, updated_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		dispute.SubmissionID,
		dispute.OpenedByUserID,
		dispute.OpenedByTeamID,
		dispute.ReasonCode,
		dispute.Description,
		dispute.Status,
	).Scan(&dispute.ID, &dispute.OpenedAt, &dispute.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err, "uniq_open_dispute_per_submission") {
			return ErrDisputeAlreadyOpen
		}
		if isForeignKeyViolation(err) {
			return ErrDisputeSubmissionInvalid
		}
		return fmt.Errorf("failed to create dispute: %w", err)
	}
	return nil
}

func (r *postgresDisputeRepository) GetByID(ctx context.Context, id int) (*models.Dispute, error) {
	query := `SELECT` + disputeColumns + ` FROM disputes WHERE id = $1`

	dispute, err := scanDispute(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to scan dispute %d: %w", id, err)
	}
	return dispute, nil
}

func (r *postgresDisputeRepository) GetOpenBySubmission(ctx context.Context, submissionID int) (*models.Dispute, error) {
	query := `SELECT` + disputeColumns + `
		FROM disputes
		WHERE submission_id = $1 AND status = $2`

	dispute, err := scanDispute(r.db.QueryRowContext(ctx, query, submissionID, models.DisputeStatusOpen))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDisputeNotFound
		}
		return nil, fmt.Errorf("failed to scan open dispute for submission %d: %w", submissionID, err)
	}
	return dispute, nil
}

func (r *postgresDisputeRepository) Resolve(ctx context.Context, exec SQLExecutor, id int, status models.DisputeStatus, notes string, resolvedBy int, resolvedAt time.Time) error {
	query := `
		UPDATE disputes
		SET status = $1, resolution_notes = $2, resolved_by_user_id = $3,
		    resolved_at = $4, updated_at = now()
		WHERE id = $5 AND status = $6`

	result, err := r.getExecutor(exec).ExecContext(ctx, query,
		status, notes, resolvedBy, resolvedAt, id, models.DisputeStatusOpen)
	if err != nil {
		return fmt.Errorf("failed to resolve dispute %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrDisputeStateConflict)
}

func (r *postgresDisputeRepository) SetResolutionNotes(ctx context.Context, exec SQLExecutor, id int, notes string, resolvedBy int) error {
	query := `
		UPDATE disputes
		SET resolution_notes = $1, resolved_by_user_id = $2, updated_at = now()
		WHERE id = $3`

	result, err := r.getExecutor(exec).ExecContext(ctx, query, notes, resolvedBy, id)
	if err != nil {
		return fmt.Errorf("failed to set resolution notes on dispute %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrDisputeNotFound)
}

func (r *postgresDisputeRepository) AddEvidence(ctx context.Context, exec SQLExecutor, evidence *models.DisputeEvidence) error {
	query := `
		INSERT INTO dispute_evidence (dispute_id, type, url, notes)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := r.getExecutor(exec).QueryRowContext(ctx, query,
		evidence.DisputeID,
		evidence.Type,
		evidence.URL,
		evidence.Notes,
	).Scan(&evidence.ID, &evidence.CreatedAt)

	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrDisputeNotFound
		}
		return fmt.Errorf("failed to add dispute evidence: %w", err)
	}
	return nil
}

func (r *postgresDisputeRepository) ListEvidence(ctx context.Context, disputeID int) ([]*models.DisputeEvidence, error) {
	query := `
		SELECT id, dispute_id, type, url, notes, created_at
		FROM dispute_evidence
		WHERE dispute_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, disputeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list evidence for dispute %d: %w", disputeID, err)
	}
	defer rows.Close()

	var items []*models.DisputeEvidence
	for rows.Next() {
		e := &models.DisputeEvidence{}
		if err := rows.Scan(&e.ID, &e.DisputeID, &e.Type, &e.URL, &e.Notes, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dispute evidence: %w", err)
		}
		items = append(items, e)
	}
	return items, rows.Err()
}

func (r *postgresDisputeRepository) LogVerificationStep(ctx context.Context, exec SQLExecutor, step *models.VerificationStep) error {
	details, err := marshalJSONMap(step.Details)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO verification_steps (submission_id, step, status, details, performed_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err = r.getExecutor(exec).QueryRowContext(ctx, query,
		step.SubmissionID,
		step.Step,
		step.Status,
		details,
		step.PerformedBy,
	).Scan(&step.ID, &step.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to log verification step %q: %w", step.Step, err)
	}
	return nil
}

func (r *postgresDisputeRepository) ListVerificationSteps(ctx context.Context, submissionID int) ([]*models.VerificationStep, error) {
	query := `
		SELECT id, submission_id, step, status, details, performed_by, created_at
		FROM verification_steps
		WHERE submission_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, query, submissionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list verification steps for submission %d: %w", submissionID, err)
	}
	defer rows.Close()

	var steps []*models.VerificationStep
	for rows.Next() {
		step := &models.VerificationStep{}
		var rawDetails []byte
		if err := rows.Scan(&step.ID, &step.SubmissionID, &step.Step, &step.Status, &rawDetails, &step.PerformedBy, &step.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan verification step: %w", err)
		}
		details, err := unmarshalJSONMap(rawDetails)
		if err != nil {
			return nil, err
		}
		step.Details = details
		steps = append(steps, step)
	}
	return steps, rows.Err()
}

func scanDispute(row rowScanner) (*models.Dispute, error) {
	dispute := &models.Dispute{}
	err := row.Scan(
		&dispute.ID,
		&dispute.SubmissionID,
		&dispute.OpenedByUserID,
		&dispute.OpenedByTeamID,
		&dispute.ReasonCode,
		&dispute.Description,
		&dispute.Status,
		&dispute.ResolutionNotes,
		&dispute.OpenedAt,
		&dispute.UpdatedAt,
		&dispute.ResolvedAt,
		&dispute.ResolvedByUserID,
		&dispute.EscalatedAt,
	)
	if err != nil {
		return nil, err
	}
	return dispute, nil
}
