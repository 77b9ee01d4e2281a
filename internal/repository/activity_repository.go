package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"inboxpilot/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const defaultActivityLimit = 50

type activityRepository struct {
	db *sql.DB
}

// NewActivityRepository creates a new activity log repository
func NewActivityRepository(db *sql.DB) ActivityRepository {
	return &activityRepository{db: db}
}

// Create inserts an audit event
func (r *activityRepository) Create(ctx context.Context, event *models.ActivityEvent) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	payload := event.Payload
	if payload == nil {
		payload = map[string]interface{}{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode activity payload: %w", err)
	}

	query := `
		INSERT INTO activity_log (id, workspace_id, user_id, type, payload)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`

	err = r.db.QueryRowContext(
		ctx,
		query,
		event.ID,
		event.WorkspaceID,
		event.ActorID,
		event.Type,
		raw,
	).Scan(&event.CreatedAt)

	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to create activity event: %w", err)
	}

	return nil
}

// ListByWorkspace returns a workspace's activity, newest first
func (r *activityRepository) ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, filters ActivityFilters) ([]*models.ActivityEvent, error) {
	if filters.Limit <= 0 {
		filters.Limit = defaultActivityLimit
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}

	query := `
		SELECT id, workspace_id, user_id, type, payload, created_at
		FROM activity_log
		WHERE workspace_id = $1
			AND (cardinality($2::text[]) = 0 OR type = ANY($2::text[]))
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	types := filters.Types
	if types == nil {
		types = []string{}
	}

	rows, err := r.db.QueryContext(ctx, query, workspaceID, pq.Array(types), filters.Limit, filters.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	defer rows.Close()

	events := []*models.ActivityEvent{}
	for rows.Next() {
		event := &models.ActivityEvent{}
		var raw []byte
		err := rows.Scan(
			&event.ID,
			&event.WorkspaceID,
			&event.ActorID,
			&event.Type,
			&raw,
			&event.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity event: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &event.Payload); err != nil {
				return nil, fmt.Errorf("failed to decode activity payload: %w", err)
			}
		}
		events = append(events, event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate activity: %w", err)
	}

	return events, nil
}
