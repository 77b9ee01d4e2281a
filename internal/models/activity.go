package models

import (
	"time"

	"github.com/google/uuid"
)

// Activity event types
const (
	EventContactEnrolled     = "contact.enrolled"
	EventEnrollmentStopped   = "enrollment.stopped"
	EventEnrollmentCompleted = "enrollment.completed"
	EventEmailSent           = "email.sent"
	EventEmailFailed         = "email.failed"
)

// ActivityEvent is an audit record for something that happened in a workspace
type ActivityEvent struct {
	ID          uuid.UUID              `json:"id" db:"id"`
	WorkspaceID uuid.UUID              `json:"workspace_id" db:"workspace_id"`
	ActorID     *uuid.UUID             `json:"actor_id,omitempty" db:"user_id"`
	Type        string                 `json:"type" db:"type"`
	Payload     map[string]interface{} `json:"payload" db:"payload"`
	CreatedAt   time.Time              `json:"created_at" db:"created_at"`
}
