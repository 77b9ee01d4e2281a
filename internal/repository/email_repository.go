package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"inboxpilot/internal/models"

	"github.com/google/uuid"
)

type emailRepository struct {
	db *sql.DB
}

// NewEmailRepository creates a new outbound email repository
func NewEmailRepository(db *sql.DB) EmailRepository {
	return &emailRepository{db: db}
}

// CreateQueued records a new delivery attempt in the queued state
func (r *emailRepository) CreateQueued(ctx context.Context, email *models.OutboundEmail) error {
	if email.ID == uuid.Nil {
		email.ID = uuid.New()
	}
	email.Status = models.EmailStatusQueued

	query := `
		INSERT INTO outbound_emails (
			id, workspace_id, contact_id, sequence_id, step_id, enrollment_id,
			step_order, subject, body, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		email.ID,
		email.WorkspaceID,
		email.ContactID,
		email.SequenceID,
		email.StepID,
		email.EnrollmentID,
		email.StepOrder,
		email.Subject,
		email.Body,
		email.Status,
	).Scan(&email.CreatedAt)

	if err != nil {
		return fmt.Errorf("failed to create outbound email: %w", err)
	}

	return nil
}

// MarkSent moves a queued email to sent
func (r *emailRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	query := `
		UPDATE outbound_emails
		SET status = 'sent', sent_at = $2
		WHERE id = $1 AND status = 'queued'
	`

	return r.finish(ctx, query, id, sentAt)
}

// MarkFailed moves a queued email to failed with the transport's reason
func (r *emailRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	query := `
		UPDATE outbound_emails
		SET status = 'failed', error_message = $2
		WHERE id = $1 AND status = 'queued'
	`

	return r.finish(ctx, query, id, reason)
}

// finish applies a queued-only status transition. Rows that already left the
// queued state are reported as not found.
func (r *emailRepository) finish(ctx context.Context, query string, id uuid.UUID, arg interface{}) error {
	result, err := r.db.ExecContext(ctx, query, id, arg)
	if err != nil {
		return fmt.Errorf("failed to update outbound email status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rows == 0 {
		return ErrNotFound
	}

	return nil
}

// ListByEnrollment returns every delivery attempt for an enrollment in
// creation order
func (r *emailRepository) ListByEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]*models.OutboundEmail, error) {
	query := `
		SELECT id, workspace_id, contact_id, sequence_id, step_id, enrollment_id,
			step_order, subject, body, status, sent_at, error_message, created_at
		FROM outbound_emails
		WHERE enrollment_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outbound emails: %w", err)
	}
	defer rows.Close()

	emails := []*models.OutboundEmail{}
	for rows.Next() {
		email := &models.OutboundEmail{}
		err := rows.Scan(
			&email.ID,
			&email.WorkspaceID,
			&email.ContactID,
			&email.SequenceID,
			&email.StepID,
			&email.EnrollmentID,
			&email.StepOrder,
			&email.Subject,
			&email.Body,
			&email.Status,
			&email.SentAt,
			&email.ErrorMessage,
			&email.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan outbound email: %w", err)
		}
		emails = append(emails, email)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate outbound emails: %w", err)
	}

	return emails, nil
}
