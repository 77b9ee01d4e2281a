package repository

import (
	"context"
	"database/sql"
	"fmt"

	"inboxpilot/internal/models"

	"github.com/google/uuid"
)

type sequenceRepository struct {
	db *sql.DB
}

// NewSequenceRepository creates a new sequence repository
func NewSequenceRepository(db *sql.DB) SequenceRepository {
	return &sequenceRepository{db: db}
}

// GetByID retrieves a sequence by ID within a workspace
func (r *sequenceRepository) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*models.Sequence, error) {
	query := `
		SELECT id, workspace_id, name, description, is_active, created_at
		FROM sequences
		WHERE id = $1 AND workspace_id = $2
	`

	seq := &models.Sequence{}
	err := r.db.QueryRowContext(ctx, query, id, workspaceID).Scan(
		&seq.ID,
		&seq.WorkspaceID,
		&seq.Name,
		&seq.Description,
		&seq.IsActive,
		&seq.CreatedAt,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sequence: %w", err)
	}

	return seq, nil
}

// ListSteps returns the steps of a sequence ordered by step_order
func (r *sequenceRepository) ListSteps(ctx context.Context, sequenceID uuid.UUID) ([]*models.SequenceStep, error) {
	query := `
		SELECT id, sequence_id, step_order, subject_template, body_template, delay_days
		FROM sequence_steps
		WHERE sequence_id = $1
		ORDER BY step_order ASC
	`

	rows, err := r.db.QueryContext(ctx, query, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sequence steps: %w", err)
	}
	defer rows.Close()

	steps := []*models.SequenceStep{}
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		steps = append(steps, step)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sequence steps: %w", err)
	}

	return steps, nil
}

// FirstStep returns the lowest-ordered step, or nil when the sequence has none
func (r *sequenceRepository) FirstStep(ctx context.Context, sequenceID uuid.UUID) (*models.SequenceStep, error) {
	query := `
		SELECT id, sequence_id, step_order, subject_template, body_template, delay_days
		FROM sequence_steps
		WHERE sequence_id = $1
		ORDER BY step_order ASC
		LIMIT 1
	`

	step, err := scanStep(r.db.QueryRowContext(ctx, query, sequenceID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return step, nil
}

func scanStep(row rowScanner) (*models.SequenceStep, error) {
	step := &models.SequenceStep{}
	err := row.Scan(
		&step.ID,
		&step.SequenceID,
		&step.StepOrder,
		&step.SubjectTemplate,
		&step.BodyTemplate,
		&step.DelayDays,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sequence step: %w", err)
	}
	return step, nil
}
