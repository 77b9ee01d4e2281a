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

// DeliveryResult is the kind of outcome of one delivery pass
type DeliveryResult string

const (
	DeliverySent      DeliveryResult = "sent"
	DeliveryFailed    DeliveryResult = "failed"
	DeliveryNoStepDue DeliveryResult = "no_step_due"
	DeliverySkipped   DeliveryResult = "skipped"
)

// ErrSendTimeout is recorded when the transport does not answer in time
var ErrSendTimeout = errors.New("send timed out")

// DeliveryOutcome describes what Deliver did with an enrollment
type DeliveryOutcome struct {
	Result    DeliveryResult
	EmailID   *uuid.UUID
	StepOrder *int
	Reason    string
}

// DeliveryService sends the next step of a due enrollment and moves the
// enrollment forward
type DeliveryService struct {
	sequenceRepo   repository.SequenceRepository
	contactRepo    repository.ContactRepository
	enrollmentRepo repository.EnrollmentRepository
	emailRepo      repository.EmailRepository
	templates      *TemplateService
	transport      Transport
	audit          audit.Sink
	sendTimeout    time.Duration
	log            logrus.FieldLogger
	now            func() time.Time
}

// NewDeliveryService creates a new delivery service
func NewDeliveryService(
	sequenceRepo repository.SequenceRepository,
	contactRepo repository.ContactRepository,
	enrollmentRepo repository.EnrollmentRepository,
	emailRepo repository.EmailRepository,
	templates *TemplateService,
	transport Transport,
	sink audit.Sink,
	sendTimeout time.Duration,
	log logrus.FieldLogger,
) *DeliveryService {
	return &DeliveryService{
		sequenceRepo:   sequenceRepo,
		contactRepo:    contactRepo,
		enrollmentRepo: enrollmentRepo,
		emailRepo:      emailRepo,
		templates:      templates,
		transport:      transport,
		audit:          sink,
		sendTimeout:    sendTimeout,
		log:            log,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// Deliver processes one claimed enrollment. A failed send is recorded and
// the enrollment still advances past the step, so no step is attempted
// twice. Returned errors are storage failures; transport failures are
// reported through the outcome.
func (s *DeliveryService) Deliver(ctx context.Context, enrollment *models.SequenceEnrollment) (*DeliveryOutcome, error) {
	log := s.log.WithFields(logrus.Fields{
		"enrollment_id": enrollment.ID,
		"sequence_id":   enrollment.SequenceID,
	})

	steps, err := s.sequenceRepo.ListSteps(ctx, enrollment.SequenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}

	step := models.NextStepAfter(steps, enrollment.LastStepSent)
	if step == nil {
		if err := s.enrollmentRepo.Complete(ctx, enrollment.ID); err != nil {
			return nil, fmt.Errorf("failed to complete enrollment: %w", err)
		}
		s.recordCompleted(ctx, enrollment)
		log.Info("no step left, enrollment completed")
		return &DeliveryOutcome{Result: DeliveryNoStepDue}, nil
	}
	log = log.WithField("step_order", step.StepOrder)

	contact, err := s.contactRepo.GetByID(ctx, enrollment.WorkspaceID, enrollment.ContactID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to load contact: %w", err)
	}
	if contact == nil || !contact.CanReceive() {
		reason := "contact not found"
		if contact != nil {
			reason = "contact " + string(contact.Status)
		}
		return s.skip(ctx, enrollment, step, reason, log)
	}

	subject := s.templates.Render(step.SubjectTemplate, contact)
	body := s.templates.Render(step.BodyTemplate, contact)
	if _, unknown := s.templates.Placeholders(step.SubjectTemplate + "\n" + step.BodyTemplate); len(unknown) > 0 {
		log.WithField("placeholders", unknown).Warn("template has unknown placeholders")
	}

	stepOrder := step.StepOrder
	stepID := step.ID
	sequenceID := enrollment.SequenceID
	enrollmentID := enrollment.ID
	email := &models.OutboundEmail{
		WorkspaceID:  enrollment.WorkspaceID,
		ContactID:    contact.ID,
		SequenceID:   &sequenceID,
		StepID:       &stepID,
		EnrollmentID: &enrollmentID,
		StepOrder:    &stepOrder,
		Subject:      subject,
		Body:         body,
	}
	// Nothing has been sent yet. A shutdown here leaves the step due.
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("delivery abandoned before send: %w", err)
	}
	if err := s.emailRepo.CreateQueued(ctx, email); err != nil {
		return nil, fmt.Errorf("failed to record queued email: %w", err)
	}

	// From here on the attempt runs to completion; only the send timeout
	// bounds it.
	ctx = context.WithoutCancel(ctx)

	sendErr := sendWithTimeout(ctx, s.transport, s.sendTimeout, contact.Email, subject, body)
	sentAt := s.now()

	outcome := &DeliveryOutcome{Result: DeliverySent, EmailID: &email.ID, StepOrder: &stepOrder}
	if sendErr != nil {
		outcome.Result = DeliveryFailed
		outcome.Reason = sendErr.Error()
		if err := s.emailRepo.MarkFailed(ctx, email.ID, sendErr.Error()); err != nil {
			log.WithError(err).Error("failed to mark email failed")
		}
	} else {
		if err := s.emailRepo.MarkSent(ctx, email.ID, sentAt); err != nil {
			log.WithError(err).Error("failed to mark email sent")
		}
	}

	var nextScheduledAt *time.Time
	if following := models.NextStepAfter(steps, &stepOrder); following != nil {
		next := following.ScheduleAfter(sentAt)
		nextScheduledAt = &next
	}

	advanceErr := s.enrollmentRepo.Advance(ctx, enrollment.ID, stepOrder, sentAt, nextScheduledAt)
	switch {
	case errors.Is(advanceErr, repository.ErrStaleAdvance):
		log.Warn("enrollment already advanced past this step")
	case advanceErr != nil:
		return outcome, fmt.Errorf("failed to advance enrollment: %w", advanceErr)
	}

	s.recordAttempt(ctx, enrollment, email, outcome)
	if advanceErr == nil && nextScheduledAt == nil {
		s.recordCompleted(ctx, enrollment)
	}

	entry := log.WithFields(logrus.Fields{"email_id": email.ID, "outcome": outcome.Result})
	if sendErr != nil {
		entry.WithError(sendErr).Warn("step delivery failed")
	} else {
		entry.Info("step delivered")
	}

	return outcome, nil
}

// skip stops an enrollment whose contact can no longer be mailed
func (s *DeliveryService) skip(ctx context.Context, enrollment *models.SequenceEnrollment, step *models.SequenceStep, reason string, log logrus.FieldLogger) (*DeliveryOutcome, error) {
	if _, err := s.enrollmentRepo.Stop(ctx, enrollment.ID); err != nil {
		return nil, fmt.Errorf("failed to stop enrollment: %w", err)
	}

	s.audit.Record(ctx, enrollment.WorkspaceID, nil, models.EventEnrollmentStopped, map[string]interface{}{
		"enrollment_id": enrollment.ID.String(),
		"sequence_id":   enrollment.SequenceID.String(),
		"contact_id":    enrollment.ContactID.String(),
		"step_order":    step.StepOrder,
		"reason":        reason,
	})

	log.WithField("reason", reason).Info("enrollment stopped, contact cannot receive mail")
	return &DeliveryOutcome{Result: DeliverySkipped, Reason: reason}, nil
}

func (s *DeliveryService) recordAttempt(ctx context.Context, enrollment *models.SequenceEnrollment, email *models.OutboundEmail, outcome *DeliveryOutcome) {
	eventType := models.EventEmailSent
	payload := map[string]interface{}{
		"email_id":      email.ID.String(),
		"enrollment_id": enrollment.ID.String(),
		"sequence_id":   enrollment.SequenceID.String(),
		"contact_id":    enrollment.ContactID.String(),
		"step_order":    *outcome.StepOrder,
		"subject":       email.Subject,
	}
	if outcome.Result == DeliveryFailed {
		eventType = models.EventEmailFailed
		payload["error"] = outcome.Reason
	}

	s.audit.Record(ctx, enrollment.WorkspaceID, nil, eventType, payload)
}

func (s *DeliveryService) recordCompleted(ctx context.Context, enrollment *models.SequenceEnrollment) {
	s.audit.Record(ctx, enrollment.WorkspaceID, nil, models.EventEnrollmentCompleted, map[string]interface{}{
		"enrollment_id": enrollment.ID.String(),
		"sequence_id":   enrollment.SequenceID.String(),
		"contact_id":    enrollment.ContactID.String(),
	})
}
