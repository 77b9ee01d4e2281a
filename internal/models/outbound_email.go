package models

import (
	"time"

	"github.com/google/uuid"
)

// EmailStatus represents valid outbound email statuses
type EmailStatus string

const (
	EmailStatusQueued EmailStatus = "queued"
	EmailStatusSent   EmailStatus = "sent"
	EmailStatusFailed EmailStatus = "failed"
)

// OutboundEmail is the record of a single delivery attempt. A retried step
// gets a new row; rows only move from queued to sent or failed.
type OutboundEmail struct {
	ID           uuid.UUID   `json:"id" db:"id"`
	WorkspaceID  uuid.UUID   `json:"workspace_id" db:"workspace_id"`
	ContactID    uuid.UUID   `json:"contact_id" db:"contact_id"`
	SequenceID   *uuid.UUID  `json:"sequence_id,omitempty" db:"sequence_id"`
	StepID       *uuid.UUID  `json:"step_id,omitempty" db:"step_id"`
	EnrollmentID *uuid.UUID  `json:"enrollment_id,omitempty" db:"enrollment_id"`
	StepOrder    *int        `json:"step_order,omitempty" db:"step_order"`
	Subject      string      `json:"subject" db:"subject"`
	Body         string      `json:"body" db:"body"`
	Status       EmailStatus `json:"status" db:"status"`
	SentAt       *time.Time  `json:"sent_at,omitempty" db:"sent_at"`
	ErrorMessage *string     `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
}

// IsFinal reports whether the attempt has left the queued state
func (m *OutboundEmail) IsFinal() bool {
	return m.Status == EmailStatusSent || m.Status == EmailStatusFailed
}
