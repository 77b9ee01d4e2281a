package models

import (
	"time"

	"github.com/google/uuid"
)

// Sequence is an ordered list of email steps owned by a workspace
type Sequence struct {
	ID          uuid.UUID `json:"id" db:"id"`
	WorkspaceID uuid.UUID `json:"workspace_id" db:"workspace_id"`
	Name        string    `json:"name" db:"name"`
	Description *string   `json:"description,omitempty" db:"description"`
	IsActive    bool      `json:"is_active" db:"is_active"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// SequenceStep is one templated message at a fixed position in a sequence.
// DelayDays is measured from the previous step's send, or from enrollment for
// the first step.
type SequenceStep struct {
	ID              uuid.UUID `json:"id" db:"id"`
	SequenceID      uuid.UUID `json:"sequence_id" db:"sequence_id"`
	StepOrder       int       `json:"step_order" db:"step_order"`
	SubjectTemplate string    `json:"subject_template" db:"subject_template"`
	BodyTemplate    string    `json:"body_template" db:"body_template"`
	DelayDays       int       `json:"delay_days" db:"delay_days"`
}

// Delay returns the step delay as a duration
func (s *SequenceStep) Delay() time.Duration {
	return time.Duration(s.DelayDays) * 24 * time.Hour
}

// ScheduleAfter returns when this step becomes due, counted from base
func (s *SequenceStep) ScheduleAfter(base time.Time) time.Time {
	return base.Add(s.Delay())
}

// NextStepAfter returns the lowest-ordered step strictly after lastSent, or
// the first step when lastSent is nil. steps must be sorted by StepOrder.
func NextStepAfter(steps []*SequenceStep, lastSent *int) *SequenceStep {
	for _, step := range steps {
		if lastSent == nil || step.StepOrder > *lastSent {
			return step
		}
	}
	return nil
}
