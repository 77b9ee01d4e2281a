package handler

import (
	"context"
	"net/http"
	"strconv"

	"inboxpilot/internal/models"
	"inboxpilot/internal/service"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Previewer renders a sequence step for a contact
type Previewer interface {
	Preview(ctx context.Context, actor models.Actor, req *service.PreviewRequest) (*service.PreviewResult, error)
}

// PreviewHandler handles HTTP requests for step previews
type PreviewHandler struct {
	previews Previewer
	log      logrus.FieldLogger
}

// NewPreviewHandler creates a new PreviewHandler instance
func NewPreviewHandler(previews Previewer, log logrus.FieldLogger) *PreviewHandler {
	return &PreviewHandler{previews: previews, log: log}
}

// PreviewRequest represents the request body for a step preview
type PreviewRequest struct {
	ContactID       string  `json:"contact_id" validate:"required,uuid"`
	SubjectTemplate *string `json:"subject_template,omitempty"`
	BodyTemplate    *string `json:"body_template,omitempty"`
}

// Preview handles POST /sequences/{id}/steps/{step_order}/preview
func (h *PreviewHandler) Preview(w http.ResponseWriter, r *http.Request) {
	actor, sequenceID, ok := scope(w, r)
	if !ok {
		return
	}

	stepOrder, err := strconv.Atoi(mux.Vars(r)["step_order"])
	if err != nil || stepOrder <= 0 {
		WriteValidationError(w, "step order must be a positive integer")
		return
	}

	var req PreviewRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	contactID, ok := bodyUUID(w, "contact_id", req.ContactID)
	if !ok {
		return
	}

	result, err := h.previews.Preview(r.Context(), actor, &service.PreviewRequest{
		SequenceID:      sequenceID,
		StepOrder:       stepOrder,
		ContactID:       contactID,
		SubjectOverride: req.SubjectTemplate,
		BodyOverride:    req.BodyTemplate,
	})
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}

	WriteOK(w, result)
}
