package handler

import (
	"context"
	"net/http"

	"inboxpilot/internal/middleware"
	"inboxpilot/internal/models"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// EnrollmentManager is the enrollment administration surface
type EnrollmentManager interface {
	Enroll(ctx context.Context, actor models.Actor, sequenceID, contactID uuid.UUID) (*models.SequenceEnrollment, error)
	List(ctx context.Context, actor models.Actor, sequenceID uuid.UUID) ([]*models.SequenceEnrollment, error)
	Stop(ctx context.Context, actor models.Actor, sequenceID, enrollmentID uuid.UUID) (*models.SequenceEnrollment, error)
	ListEmails(ctx context.Context, actor models.Actor, sequenceID, enrollmentID uuid.UUID) ([]*models.OutboundEmail, error)
}

// EnrollmentHandler handles HTTP requests for sequence enrollments
type EnrollmentHandler struct {
	enrollments EnrollmentManager
	log         logrus.FieldLogger
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(enrollments EnrollmentManager, log logrus.FieldLogger) *EnrollmentHandler {
	return &EnrollmentHandler{enrollments: enrollments, log: log}
}

// EnrollRequest is the body of POST /sequences/{id}/enroll
type EnrollRequest struct {
	ContactID string `json:"contact_id" validate:"required,uuid"`
}

// Enroll handles POST /sequences/{id}/enroll
func (h *EnrollmentHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	actor, sequenceID, ok := scope(w, r)
	if !ok {
		return
	}

	var req EnrollRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	contactID, ok := bodyUUID(w, "contact_id", req.ContactID)
	if !ok {
		return
	}

	enrollment, err := h.enrollments.Enroll(r.Context(), actor, sequenceID, contactID)
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}

	WriteCreated(w, enrollment)
}

// List handles GET /sequences/{id}/enrollments
func (h *EnrollmentHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, sequenceID, ok := scope(w, r)
	if !ok {
		return
	}

	enrollments, err := h.enrollments.List(r.Context(), actor, sequenceID)
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}
	if enrollments == nil {
		enrollments = []*models.SequenceEnrollment{}
	}

	WriteOK(w, map[string]interface{}{"enrollments": enrollments})
}

// Stop handles POST /sequences/{id}/enrollments/{enrollment_id}/stop
func (h *EnrollmentHandler) Stop(w http.ResponseWriter, r *http.Request) {
	actor, sequenceID, ok := scope(w, r)
	if !ok {
		return
	}
	enrollmentID, ok := pathUUID(w, r, "enrollment_id")
	if !ok {
		return
	}

	enrollment, err := h.enrollments.Stop(r.Context(), actor, sequenceID, enrollmentID)
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}

	WriteOK(w, enrollment)
}

// ListEmails handles GET /sequences/{id}/enrollments/{enrollment_id}/emails
func (h *EnrollmentHandler) ListEmails(w http.ResponseWriter, r *http.Request) {
	actor, sequenceID, ok := scope(w, r)
	if !ok {
		return
	}
	enrollmentID, ok := pathUUID(w, r, "enrollment_id")
	if !ok {
		return
	}

	emails, err := h.enrollments.ListEmails(r.Context(), actor, sequenceID, enrollmentID)
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}
	if emails == nil {
		emails = []*models.OutboundEmail{}
	}

	WriteOK(w, map[string]interface{}{"emails": emails})
}

// scope returns the request's actor and the sequence id from the path
func scope(w http.ResponseWriter, r *http.Request) (models.Actor, uuid.UUID, bool) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		WriteValidationError(w, "workspace is required")
		return models.Actor{}, uuid.Nil, false
	}

	sequenceID, ok := pathUUID(w, r, "id")
	return actor, sequenceID, ok
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		WriteValidationError(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}
