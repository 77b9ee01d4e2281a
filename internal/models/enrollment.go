package models

import (
	"time"

	"github.com/google/uuid"
)

// EnrollmentStatus represents valid enrollment statuses
type EnrollmentStatus string

const (
	EnrollmentStatusActive    EnrollmentStatus = "active"
	EnrollmentStatusCompleted EnrollmentStatus = "completed"
	EnrollmentStatusStopped   EnrollmentStatus = "stopped"
)

// SequenceEnrollment tracks one contact's progress through one sequence.
// WorkspaceID is read from the owning sequence and is not a column of its own.
type SequenceEnrollment struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	SequenceID      uuid.UUID        `json:"sequence_id" db:"sequence_id"`
	ContactID       uuid.UUID        `json:"contact_id" db:"contact_id"`
	WorkspaceID     uuid.UUID        `json:"workspace_id" db:"workspace_id"`
	Status          EnrollmentStatus `json:"status" db:"status"`
	LastStepSent    *int             `json:"last_step_sent" db:"last_step_sent"`
	LastSentAt      *time.Time       `json:"last_sent_at" db:"last_sent_at"`
	NextScheduledAt *time.Time       `json:"next_scheduled_at" db:"next_scheduled_at"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
}

// IsDue reports whether the enrollment has a pending step at or before now
func (e *SequenceEnrollment) IsDue(now time.Time) bool {
	return e.Status == EnrollmentStatusActive &&
		e.NextScheduledAt != nil &&
		!e.NextScheduledAt.After(now)
}

// IsTerminal reports whether the enrollment can never become due again
func (e *SequenceEnrollment) IsTerminal() bool {
	return e.Status == EnrollmentStatusCompleted || e.Status == EnrollmentStatusStopped
}
