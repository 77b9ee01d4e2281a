package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"inboxpilot/internal/audit"
	"inboxpilot/internal/models"
	"inboxpilot/internal/repository"

	"github.com/sirupsen/logrus"
)

// SendTestRequest is an ad-hoc message outside any sequence
type SendTestRequest struct {
	ContactEmail string
	Subject      string
	Body         string
}

// EmailService sends one-off emails through the same transport and email
// log the sequences use
type EmailService struct {
	contactRepo repository.ContactRepository
	emailRepo   repository.EmailRepository
	transport   Transport
	audit       audit.Sink
	sendTimeout time.Duration
	log         logrus.FieldLogger
	now         func() time.Time
}

// NewEmailService creates a new email service
func NewEmailService(
	contactRepo repository.ContactRepository,
	emailRepo repository.EmailRepository,
	transport Transport,
	sink audit.Sink,
	sendTimeout time.Duration,
	log logrus.FieldLogger,
) *EmailService {
	return &EmailService{
		contactRepo: contactRepo,
		emailRepo:   emailRepo,
		transport:   transport,
		audit:       sink,
		sendTimeout: sendTimeout,
		log:         log,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// SendTest sends a message to an address in the actor's workspace, creating
// the contact if it does not exist yet. The returned row is sent or failed;
// a transport failure is not an error.
func (s *EmailService) SendTest(ctx context.Context, actor models.Actor, req *SendTestRequest) (*models.OutboundEmail, error) {
	address := strings.TrimSpace(req.ContactEmail)
	if address == "" {
		return nil, &ValidationError{Message: "contact email is required"}
	}

	contact, err := s.findOrCreateContact(ctx, actor, address)
	if err != nil {
		return nil, err
	}
	if !contact.CanReceive() {
		return nil, &BusinessLogicError{Message: "contact is " + string(contact.Status)}
	}

	email := &models.OutboundEmail{
		WorkspaceID: actor.WorkspaceID,
		ContactID:   contact.ID,
		Subject:     req.Subject,
		Body:        req.Body,
	}
	if err := s.emailRepo.CreateQueued(ctx, email); err != nil {
		return nil, fmt.Errorf("failed to record queued email: %w", err)
	}

	ctx = context.WithoutCancel(ctx)
	sendErr := sendWithTimeout(ctx, s.transport, s.sendTimeout, contact.Email, req.Subject, req.Body)

	log := s.log.WithFields(logrus.Fields{"email_id": email.ID, "contact_id": contact.ID})
	payload := map[string]interface{}{
		"email_id":      email.ID.String(),
		"contact_email": contact.Email,
		"subject":       req.Subject,
	}
	eventType := models.EventEmailSent

	if sendErr != nil {
		reason := sendErr.Error()
		if err := s.emailRepo.MarkFailed(ctx, email.ID, reason); err != nil {
			return nil, fmt.Errorf("failed to mark email failed: %w", err)
		}
		email.Status = models.EmailStatusFailed
		email.ErrorMessage = &reason
		eventType = models.EventEmailFailed
		payload["error"] = reason
		log.WithError(sendErr).Warn("test email failed")
	} else {
		sentAt := s.now()
		if err := s.emailRepo.MarkSent(ctx, email.ID, sentAt); err != nil {
			return nil, fmt.Errorf("failed to mark email sent: %w", err)
		}
		email.Status = models.EmailStatusSent
		email.SentAt = &sentAt
		log.Info("test email sent")
	}

	s.audit.Record(ctx, actor.WorkspaceID, actor.UserID, eventType, payload)
	return email, nil
}

func (s *EmailService) findOrCreateContact(ctx context.Context, actor models.Actor, address string) (*models.Contact, error) {
	contact, err := s.contactRepo.GetByEmail(ctx, actor.WorkspaceID, address)
	if err == nil {
		return contact, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up contact: %w", err)
	}

	contact = &models.Contact{WorkspaceID: actor.WorkspaceID, Email: address}
	err = s.contactRepo.Create(ctx, contact)
	if errors.Is(err, repository.ErrConflict) {
		// created concurrently
		if contact, err = s.contactRepo.GetByEmail(ctx, actor.WorkspaceID, address); err != nil {
			return nil, fmt.Errorf("failed to look up contact: %w", err)
		}
		return contact, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}
	return contact, nil
}
