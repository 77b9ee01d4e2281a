package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"inboxpilot/internal/audit"
	"inboxpilot/internal/models"
	"inboxpilot/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// EnrollmentService handles the administrative enrollment operations
type EnrollmentService struct {
	sequenceRepo   repository.SequenceRepository
	contactRepo    repository.ContactRepository
	enrollmentRepo repository.EnrollmentRepository
	emailRepo      repository.EmailRepository
	audit          audit.Sink
	log            logrus.FieldLogger
	now            func() time.Time
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(
	sequenceRepo repository.SequenceRepository,
	contactRepo repository.ContactRepository,
	enrollmentRepo repository.EnrollmentRepository,
	emailRepo repository.EmailRepository,
	sink audit.Sink,
	log logrus.FieldLogger,
) *EnrollmentService {
	return &EnrollmentService{
		sequenceRepo:   sequenceRepo,
		contactRepo:    contactRepo,
		enrollmentRepo: enrollmentRepo,
		emailRepo:      emailRepo,
		audit:          sink,
		log:            log,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Enroll puts a contact into an active sequence. The first step is scheduled
// its delay after now; a sequence without steps gives an active enrollment
// with nothing scheduled.
func (s *EnrollmentService) Enroll(ctx context.Context, actor models.Actor, sequenceID, contactID uuid.UUID) (*models.SequenceEnrollment, error) {
	seq, err := s.sequenceRepo.GetByID(ctx, actor.WorkspaceID, sequenceID)
	if err != nil {
		return nil, notFoundOr(err, "sequence", sequenceID)
	}
	if !seq.IsActive {
		return nil, &BusinessLogicError{Message: "cannot enroll contacts in an inactive sequence"}
	}

	contact, err := s.contactRepo.GetByID(ctx, actor.WorkspaceID, contactID)
	if err != nil {
		return nil, notFoundOr(err, "contact", contactID)
	}

	first, err := s.sequenceRepo.FirstStep(ctx, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load first step: %w", err)
	}

	enrollment := &models.SequenceEnrollment{
		SequenceID:  sequenceID,
		ContactID:   contactID,
		WorkspaceID: actor.WorkspaceID,
		Status:      models.EnrollmentStatusActive,
	}
	if first != nil {
		next := first.ScheduleAfter(s.now())
		enrollment.NextScheduledAt = &next
	}

	if err := s.enrollmentRepo.Create(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, &ConflictError{Resource: "enrollment", Message: "contact is already enrolled in this sequence"}
		}
		return nil, fmt.Errorf("failed to create enrollment: %w", err)
	}

	s.audit.Record(ctx, actor.WorkspaceID, actor.UserID, models.EventContactEnrolled, map[string]interface{}{
		"enrollment_id": enrollment.ID.String(),
		"sequence_id":   sequenceID.String(),
		"sequence_name": seq.Name,
		"contact_id":    contact.ID.String(),
		"contact_email": contact.Email,
	})

	s.log.WithFields(logrus.Fields{
		"enrollment_id": enrollment.ID,
		"sequence_id":   sequenceID,
	}).Info("contact enrolled")

	return enrollment, nil
}

// List returns a sequence's enrollments, newest first
func (s *EnrollmentService) List(ctx context.Context, actor models.Actor, sequenceID uuid.UUID) ([]*models.SequenceEnrollment, error) {
	if _, err := s.sequenceRepo.GetByID(ctx, actor.WorkspaceID, sequenceID); err != nil {
		return nil, notFoundOr(err, "sequence", sequenceID)
	}

	enrollments, err := s.enrollmentRepo.ListBySequence(ctx, actor.WorkspaceID, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments: %w", err)
	}
	return enrollments, nil
}

// Stop halts an enrollment so it never becomes due again. Emails already
// dispatched are unaffected. Stopping a stopped enrollment returns it as is.
func (s *EnrollmentService) Stop(ctx context.Context, actor models.Actor, sequenceID, enrollmentID uuid.UUID) (*models.SequenceEnrollment, error) {
	enrollment, err := s.enrollmentRepo.GetInSequence(ctx, actor.WorkspaceID, sequenceID, enrollmentID)
	if err != nil {
		return nil, notFoundOr(err, "enrollment", enrollmentID)
	}
	if enrollment.Status == models.EnrollmentStatusStopped {
		return enrollment, nil
	}

	stopped, err := s.enrollmentRepo.Stop(ctx, enrollmentID)
	if err != nil {
		return nil, notFoundOr(err, "enrollment", enrollmentID)
	}

	s.audit.Record(ctx, actor.WorkspaceID, actor.UserID, models.EventEnrollmentStopped, map[string]interface{}{
		"enrollment_id":   enrollmentID.String(),
		"sequence_id":     sequenceID.String(),
		"contact_id":      stopped.ContactID.String(),
		"previous_status": string(enrollment.Status),
		"reason":          "manual",
	})

	return stopped, nil
}

// ListEmails returns every delivery attempt made for an enrollment
func (s *EnrollmentService) ListEmails(ctx context.Context, actor models.Actor, sequenceID, enrollmentID uuid.UUID) ([]*models.OutboundEmail, error) {
	if _, err := s.enrollmentRepo.GetInSequence(ctx, actor.WorkspaceID, sequenceID, enrollmentID); err != nil {
		return nil, notFoundOr(err, "enrollment", enrollmentID)
	}

	emails, err := s.emailRepo.ListByEnrollment(ctx, enrollmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list emails: %w", err)
	}
	return emails, nil
}
