package handler

import (
	"context"
	"net/http"

	"inboxpilot/internal/middleware"
	"inboxpilot/internal/models"
	"inboxpilot/internal/service"

	"github.com/sirupsen/logrus"
)

// EmailSender sends ad-hoc emails
type EmailSender interface {
	SendTest(ctx context.Context, actor models.Actor, req *service.SendTestRequest) (*models.OutboundEmail, error)
}

// EmailHandler handles HTTP requests for one-off emails
type EmailHandler struct {
	emails EmailSender
	log    logrus.FieldLogger
}

// NewEmailHandler creates a new EmailHandler instance
func NewEmailHandler(emails EmailSender, log logrus.FieldLogger) *EmailHandler {
	return &EmailHandler{emails: emails, log: log}
}

// SendTestRequest is the body of POST /emails/send-test
type SendTestRequest struct {
	ContactEmail string `json:"contact_email" validate:"required,email,max=320"`
	Subject      string `json:"subject" validate:"required,max=998"`
	Body         string `json:"body" validate:"required"`
}

// SendTest handles POST /emails/send-test. The email row is returned with
// 201 whether the transport accepted it or not.
func (h *EmailHandler) SendTest(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		WriteValidationError(w, "workspace is required")
		return
	}

	var req SendTestRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	email, err := h.emails.SendTest(r.Context(), actor, &service.SendTestRequest{
		ContactEmail: req.ContactEmail,
		Subject:      req.Subject,
		Body:         req.Body,
	})
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}

	WriteCreated(w, email)
}
