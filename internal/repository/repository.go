package repository

import (
	"context"
	"errors"
	"time"

	"inboxpilot/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

var (
	// ErrNotFound is returned when a row does not exist or is outside the
	// caller's workspace
	ErrNotFound = errors.New("record not found")

	// ErrConflict is returned when an insert violates a unique constraint
	ErrConflict = errors.New("record already exists")

	// ErrAlreadyClaimed is returned when another worker holds the enrollment
	// or it is no longer due
	ErrAlreadyClaimed = errors.New("enrollment already claimed or not due")

	// ErrStaleAdvance is returned when an enrollment has already progressed
	// to or past the step being recorded
	ErrStaleAdvance = errors.New("enrollment already advanced past step")
)

// ContactRepository defines contact data access operations
type ContactRepository interface {
	Create(ctx context.Context, contact *models.Contact) error
	GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*models.Contact, error)
	GetByEmail(ctx context.Context, workspaceID uuid.UUID, email string) (*models.Contact, error)
}

// SequenceRepository defines sequence and step data access operations
type SequenceRepository interface {
	GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*models.Sequence, error)
	ListSteps(ctx context.Context, sequenceID uuid.UUID) ([]*models.SequenceStep, error)
	FirstStep(ctx context.Context, sequenceID uuid.UUID) (*models.SequenceStep, error)
}

// EnrollmentRepository defines enrollment data access operations, including
// the lease columns the scheduler claims rows with
type EnrollmentRepository interface {
	Create(ctx context.Context, enrollment *models.SequenceEnrollment) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.SequenceEnrollment, error)
	GetInSequence(ctx context.Context, workspaceID, sequenceID, id uuid.UUID) (*models.SequenceEnrollment, error)
	ListBySequence(ctx context.Context, workspaceID, sequenceID uuid.UUID) ([]*models.SequenceEnrollment, error)
	DueEnrollments(ctx context.Context, now time.Time, limit int) ([]*models.SequenceEnrollment, error)
	Claim(ctx context.Context, id uuid.UUID, now time.Time, lease time.Duration) (*models.SequenceEnrollment, string, error)
	Release(ctx context.Context, id uuid.UUID, token string) error
	Advance(ctx context.Context, id uuid.UUID, sentStepOrder int, sentAt time.Time, nextScheduledAt *time.Time) error
	Complete(ctx context.Context, id uuid.UUID) error
	Stop(ctx context.Context, id uuid.UUID) (*models.SequenceEnrollment, error)
}

// EmailRepository defines outbound email data access operations
type EmailRepository interface {
	CreateQueued(ctx context.Context, email *models.OutboundEmail) error
	MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	ListByEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]*models.OutboundEmail, error)
}

// ActivityRepository defines audit log data access operations
type ActivityRepository interface {
	Create(ctx context.Context, event *models.ActivityEvent) error
	ListByWorkspace(ctx context.Context, workspaceID uuid.UUID, filters ActivityFilters) ([]*models.ActivityEvent, error)
}

// ActivityFilters defines filters for listing activity
type ActivityFilters struct {
	Limit  int
	Offset int
	Types  []string
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
