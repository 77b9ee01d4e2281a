package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"inboxpilot/internal/models"
	"inboxpilot/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type enrollmentFixture struct {
	sequences   *MockSequenceRepository
	contacts    *MockContactRepository
	enrollments *MockEnrollmentRepository
	emails      *MockEmailRepository
	sink        *recordingSink
	svc         *EnrollmentService
	actor       models.Actor
	now         time.Time
}

func newEnrollmentFixture() *enrollmentFixture {
	userID := uuid.New()
	f := &enrollmentFixture{
		sequences:   NewMockSequenceRepository(),
		contacts:    NewMockContactRepository(),
		enrollments: NewMockEnrollmentRepository(),
		emails:      NewMockEmailRepository(),
		sink:        &recordingSink{},
		actor:       models.Actor{WorkspaceID: uuid.New(), UserID: &userID},
		now:         time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewEnrollmentService(f.sequences, f.contacts, f.enrollments, f.emails, f.sink, quietLogger())
	f.svc.now = func() time.Time { return f.now }
	return f
}

func TestEnroll_SchedulesFirstStepFromNow(t *testing.T) {
	f := newEnrollmentFixture()
	f.sequences.FirstStepFunc = func(ctx context.Context, sequenceID uuid.UUID) (*models.SequenceStep, error) {
		return &models.SequenceStep{StepOrder: 1, DelayDays: 3}, nil
	}

	sequenceID, contactID := uuid.New(), uuid.New()
	enrollment, err := f.svc.Enroll(context.Background(), f.actor, sequenceID, contactID)
	require.NoError(t, err)

	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Nil(t, enrollment.LastStepSent)
	require.NotNil(t, enrollment.NextScheduledAt)
	assert.Equal(t, f.now.Add(3*24*time.Hour), *enrollment.NextScheduledAt)
	assert.Equal(t, f.actor.WorkspaceID, enrollment.WorkspaceID)

	require.Len(t, f.sink.Events, 1)
	event := f.sink.Events[0]
	assert.Equal(t, models.EventContactEnrolled, event.Type)
	assert.Equal(t, f.actor.UserID, event.ActorID)
	assert.Equal(t, "ana@example.com", event.Payload["contact_email"])
	assert.Equal(t, "Onboarding", event.Payload["sequence_name"])
}

func TestEnroll_SequenceWithoutStepsIsInert(t *testing.T) {
	f := newEnrollmentFixture()

	enrollment, err := f.svc.Enroll(context.Background(), f.actor, uuid.New(), uuid.New())
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusActive, enrollment.Status)
	assert.Nil(t, enrollment.NextScheduledAt)
}

func TestEnroll_Duplicate(t *testing.T) {
	f := newEnrollmentFixture()
	f.enrollments.CreateFunc = func(ctx context.Context, enrollment *models.SequenceEnrollment) error {
		return repository.ErrConflict
	}

	_, err := f.svc.Enroll(context.Background(), f.actor, uuid.New(), uuid.New())
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "enrollment", conflict.Resource)
	assert.Empty(t, f.sink.Events)
}

func TestEnroll_NotFoundInWorkspace(t *testing.T) {
	t.Run("sequence", func(t *testing.T) {
		f := newEnrollmentFixture()
		f.sequences.GetByIDFunc = func(ctx context.Context, workspaceID, id uuid.UUID) (*models.Sequence, error) {
			return nil, repository.ErrNotFound
		}

		sequenceID := uuid.New()
		_, err := f.svc.Enroll(context.Background(), f.actor, sequenceID, uuid.New())
		var notFound *NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "sequence", notFound.Resource)
		assert.Equal(t, sequenceID, notFound.ID)
		assert.Equal(t, 0, f.enrollments.Calls["Create"])
	})

	t.Run("contact", func(t *testing.T) {
		f := newEnrollmentFixture()
		f.contacts.GetByIDFunc = func(ctx context.Context, workspaceID, id uuid.UUID) (*models.Contact, error) {
			return nil, repository.ErrNotFound
		}

		_, err := f.svc.Enroll(context.Background(), f.actor, uuid.New(), uuid.New())
		var notFound *NotFoundError
		require.ErrorAs(t, err, &notFound)
		assert.Equal(t, "contact", notFound.Resource)
		assert.Equal(t, 0, f.enrollments.Calls["Create"])
	})
}

func TestEnroll_InactiveSequence(t *testing.T) {
	f := newEnrollmentFixture()
	f.sequences.GetByIDFunc = func(ctx context.Context, workspaceID, id uuid.UUID) (*models.Sequence, error) {
		return &models.Sequence{ID: id, WorkspaceID: workspaceID, IsActive: false}, nil
	}

	_, err := f.svc.Enroll(context.Background(), f.actor, uuid.New(), uuid.New())
	var businessErr *BusinessLogicError
	assert.ErrorAs(t, err, &businessErr)
	assert.Equal(t, 0, f.contacts.Calls["GetByID"])
}

func TestEnroll_StorageErrorIsWrapped(t *testing.T) {
	f := newEnrollmentFixture()
	f.sequences.GetByIDFunc = func(ctx context.Context, workspaceID, id uuid.UUID) (*models.Sequence, error) {
		return nil, errors.New("connection refused")
	}

	_, err := f.svc.Enroll(context.Background(), f.actor, uuid.New(), uuid.New())
	require.Error(t, err)
	var notFound *NotFoundError
	assert.False(t, errors.As(err, &notFound))
}

func TestStop_IsIdempotent(t *testing.T) {
	f := newEnrollmentFixture()
	sequenceID, enrollmentID := uuid.New(), uuid.New()
	current := &models.SequenceEnrollment{
		ID:         enrollmentID,
		SequenceID: sequenceID,
		Status:     models.EnrollmentStatusActive,
	}
	f.enrollments.GetInSequenceFunc = func(ctx context.Context, workspaceID, seqID, id uuid.UUID) (*models.SequenceEnrollment, error) {
		copied := *current
		return &copied, nil
	}
	f.enrollments.StopFunc = func(ctx context.Context, id uuid.UUID) (*models.SequenceEnrollment, error) {
		current.Status = models.EnrollmentStatusStopped
		current.NextScheduledAt = nil
		copied := *current
		return &copied, nil
	}

	first, err := f.svc.Stop(context.Background(), f.actor, sequenceID, enrollmentID)
	require.NoError(t, err)
	assert.Equal(t, models.EnrollmentStatusStopped, first.Status)
	assert.Nil(t, first.NextScheduledAt)

	second, err := f.svc.Stop(context.Background(), f.actor, sequenceID, enrollmentID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	assert.Equal(t, 1, f.enrollments.Calls["Stop"])
	assert.Equal(t, []string{models.EventEnrollmentStopped}, f.sink.Types())
}

func TestStop_NotFound(t *testing.T) {
	f := newEnrollmentFixture()

	_, err := f.svc.Stop(context.Background(), f.actor, uuid.New(), uuid.New())
	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "enrollment", notFound.Resource)
}

func TestList_RequiresSequenceInWorkspace(t *testing.T) {
	f := newEnrollmentFixture()
	f.sequences.GetByIDFunc = func(ctx context.Context, workspaceID, id uuid.UUID) (*models.Sequence, error) {
		return nil, repository.ErrNotFound
	}

	_, err := f.svc.List(context.Background(), f.actor, uuid.New())
	var notFound *NotFoundError
	assert.ErrorAs(t, err, &notFound)
	assert.Equal(t, 0, f.enrollments.Calls["ListBySequence"])
}

func TestListEmails(t *testing.T) {
	f := newEnrollmentFixture()
	enrollmentID := uuid.New()
	f.enrollments.GetInSequenceFunc = func(ctx context.Context, workspaceID, seqID, id uuid.UUID) (*models.SequenceEnrollment, error) {
		return &models.SequenceEnrollment{ID: id, SequenceID: seqID}, nil
	}
	require.NoError(t, f.emails.CreateQueued(context.Background(), &models.OutboundEmail{EnrollmentID: &enrollmentID, Subject: "s1"}))
	other := uuid.New()
	require.NoError(t, f.emails.CreateQueued(context.Background(), &models.OutboundEmail{EnrollmentID: &other, Subject: "s2"}))

	emails, err := f.svc.ListEmails(context.Background(), f.actor, uuid.New(), enrollmentID)
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, "s1", emails[0].Subject)
}
