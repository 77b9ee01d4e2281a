package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inboxpilot/internal/models"

	"github.com/google/uuid"
)

// enrollmentColumns selects an enrollment joined with its sequence as e and s
const enrollmentColumns = `
	e.id, e.sequence_id, e.contact_id, s.workspace_id, e.status,
	e.last_step_sent, e.last_sent_at, e.next_scheduled_at, e.created_at
`

type enrollmentRepository struct {
	db *sql.DB
}

// NewEnrollmentRepository creates a new enrollment repository
func NewEnrollmentRepository(db *sql.DB) EnrollmentRepository {
	return &enrollmentRepository{db: db}
}

// Create inserts a new enrollment. A second enrollment for the same
// sequence and contact returns ErrConflict.
func (r *enrollmentRepository) Create(ctx context.Context, enrollment *models.SequenceEnrollment) error {
	if enrollment.ID == uuid.Nil {
		enrollment.ID = uuid.New()
	}
	if enrollment.Status == "" {
		enrollment.Status = models.EnrollmentStatusActive
	}

	query := `
		INSERT INTO sequence_enrollments (id, sequence_id, contact_id, status, next_scheduled_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		enrollment.ID,
		enrollment.SequenceID,
		enrollment.ContactID,
		enrollment.Status,
		enrollment.NextScheduledAt,
	).Scan(&enrollment.CreatedAt)

	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create enrollment: %w", err)
	}

	return nil
}

// GetByID retrieves an enrollment by ID regardless of workspace
func (r *enrollmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SequenceEnrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM sequence_enrollments e
		JOIN sequences s ON s.id = e.sequence_id
		WHERE e.id = $1
	`

	return r.getOne(ctx, query, id)
}

// GetInSequence retrieves an enrollment only if it belongs to the given
// sequence in the given workspace
func (r *enrollmentRepository) GetInSequence(ctx context.Context, workspaceID, sequenceID, id uuid.UUID) (*models.SequenceEnrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM sequence_enrollments e
		JOIN sequences s ON s.id = e.sequence_id
		WHERE e.id = $1 AND e.sequence_id = $2 AND s.workspace_id = $3
	`

	return r.getOne(ctx, query, id, sequenceID, workspaceID)
}

// ListBySequence returns a sequence's enrollments, newest first
func (r *enrollmentRepository) ListBySequence(ctx context.Context, workspaceID, sequenceID uuid.UUID) ([]*models.SequenceEnrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM sequence_enrollments e
		JOIN sequences s ON s.id = e.sequence_id
		WHERE e.sequence_id = $1 AND s.workspace_id = $2
		ORDER BY e.created_at DESC
	`

	return r.getMany(ctx, query, sequenceID, workspaceID)
}

// DueEnrollments returns active enrollments scheduled at or before now that
// hold no unexpired claim, oldest schedule first
func (r *enrollmentRepository) DueEnrollments(ctx context.Context, now time.Time, limit int) ([]*models.SequenceEnrollment, error) {
	query := `
		SELECT ` + enrollmentColumns + `
		FROM sequence_enrollments e
		JOIN sequences s ON s.id = e.sequence_id
		WHERE e.status = 'active'
			AND e.next_scheduled_at IS NOT NULL
			AND e.next_scheduled_at <= $1
			AND (e.claimed_until IS NULL OR e.claimed_until < $1)
		ORDER BY e.next_scheduled_at ASC
		LIMIT $2
	`

	return r.getMany(ctx, query, now, limit)
}

// Claim takes a lease on a due enrollment with a conditional update. The
// update only matches while the row is still due and unclaimed, so exactly
// one concurrent caller wins; the others get ErrAlreadyClaimed.
func (r *enrollmentRepository) Claim(ctx context.Context, id uuid.UUID, now time.Time, lease time.Duration) (*models.SequenceEnrollment, string, error) {
	token := uuid.New()

	query := `
		UPDATE sequence_enrollments e
		SET claimed_until = $2, claim_token = $3
		FROM sequences s
		WHERE s.id = e.sequence_id
			AND e.id = $1
			AND e.status = 'active'
			AND e.next_scheduled_at IS NOT NULL
			AND e.next_scheduled_at <= $4
			AND (e.claimed_until IS NULL OR e.claimed_until < $4)
		RETURNING ` + enrollmentColumns

	enrollment, err := scanEnrollment(r.db.QueryRowContext(ctx, query, id, now.Add(lease), token, now))
	if err == sql.ErrNoRows {
		return nil, "", ErrAlreadyClaimed
	}
	if err != nil {
		return nil, "", fmt.Errorf("failed to claim enrollment: %w", err)
	}

	return enrollment, token.String(), nil
}

// Release drops a lease, but only if it is still held under token
func (r *enrollmentRepository) Release(ctx context.Context, id uuid.UUID, token string) error {
	query := `
		UPDATE sequence_enrollments
		SET claimed_until = NULL, claim_token = NULL
		WHERE id = $1 AND claim_token = $2
	`

	if _, err := r.db.ExecContext(ctx, query, id, token); err != nil {
		return fmt.Errorf("failed to release enrollment claim: %w", err)
	}

	return nil
}

// Advance records a delivery attempt for sentStepOrder. A nil
// nextScheduledAt completes the enrollment. If the enrollment was stopped
// while the attempt ran, the stop is kept and only the attempt is recorded.
func (r *enrollmentRepository) Advance(ctx context.Context, id uuid.UUID, sentStepOrder int, sentAt time.Time, nextScheduledAt *time.Time) error {
	query := `
		UPDATE sequence_enrollments
		SET last_step_sent = $2,
			last_sent_at = $3,
			status = CASE
				WHEN status = 'active' AND $4::timestamptz IS NULL THEN 'completed'
				ELSE status
			END,
			next_scheduled_at = CASE
				WHEN status = 'active' THEN $4::timestamptz
				ELSE NULL
			END
		WHERE id = $1
			AND (last_step_sent IS NULL OR last_step_sent < $2)
	`

	result, err := r.db.ExecContext(ctx, query, id, sentStepOrder, sentAt, nextScheduledAt)
	if err != nil {
		return fmt.Errorf("failed to advance enrollment: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return ErrStaleAdvance
	}

	return nil
}

// Complete marks an active enrollment completed with nothing scheduled
func (r *enrollmentRepository) Complete(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE sequence_enrollments
		SET status = 'completed', next_scheduled_at = NULL
		WHERE id = $1 AND status = 'active'
	`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to complete enrollment: %w", err)
	}

	return nil
}

// Stop marks an enrollment stopped and clears its schedule. Stopping an
// already stopped enrollment returns it unchanged.
func (r *enrollmentRepository) Stop(ctx context.Context, id uuid.UUID) (*models.SequenceEnrollment, error) {
	query := `
		UPDATE sequence_enrollments e
		SET status = 'stopped', next_scheduled_at = NULL
		FROM sequences s
		WHERE s.id = e.sequence_id AND e.id = $1
		RETURNING ` + enrollmentColumns

	enrollment, err := scanEnrollment(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stop enrollment: %w", err)
	}

	return enrollment, nil
}

func (r *enrollmentRepository) getOne(ctx context.Context, query string, args ...interface{}) (*models.SequenceEnrollment, error) {
	enrollment, err := scanEnrollment(r.db.QueryRowContext(ctx, query, args...))
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get enrollment: %w", err)
	}
	return enrollment, nil
}

func (r *enrollmentRepository) getMany(ctx context.Context, query string, args ...interface{}) ([]*models.SequenceEnrollment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	defer rows.Close()

	enrollments := []*models.SequenceEnrollment{}
	for rows.Next() {
		enrollment, err := scanEnrollment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, enrollment)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate enrollments: %w", err)
	}

	return enrollments, nil
}

func scanEnrollment(row rowScanner) (*models.SequenceEnrollment, error) {
	e := &models.SequenceEnrollment{}
	err := row.Scan(
		&e.ID,
		&e.SequenceID,
		&e.ContactID,
		&e.WorkspaceID,
		&e.Status,
		&e.LastStepSent,
		&e.LastSentAt,
		&e.NextScheduledAt,
		&e.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return e, nil
}
