package service

import (
	"context"
	"fmt"

	"inboxpilot/internal/models"
	"inboxpilot/internal/repository"

	"github.com/google/uuid"
)

// PreviewRequest asks how a sequence step renders for one contact. The
// overrides replace the stored templates for drafting.
type PreviewRequest struct {
	SequenceID      uuid.UUID
	StepOrder       int
	ContactID       uuid.UUID
	SubjectOverride *string
	BodyOverride    *string
}

// PreviewResult is a rendered step
type PreviewResult struct {
	Subject             string   `json:"subject"`
	Body                string   `json:"body"`
	UnknownPlaceholders []string `json:"unknown_placeholders"`
	Contact             struct {
		ID    uuid.UUID `json:"id"`
		Email string    `json:"email"`
		Name  string    `json:"name"`
	} `json:"contact"`
}

// PreviewService renders steps without sending them
type PreviewService struct {
	sequenceRepo repository.SequenceRepository
	contactRepo  repository.ContactRepository
	templates    *TemplateService
}

func NewPreviewService(sequenceRepo repository.SequenceRepository, contactRepo repository.ContactRepository, templates *TemplateService) *PreviewService {
	return &PreviewService{
		sequenceRepo: sequenceRepo,
		contactRepo:  contactRepo,
		templates:    templates,
	}
}

// Preview renders the step with the given order for a contact in the
// actor's workspace
func (s *PreviewService) Preview(ctx context.Context, actor models.Actor, req *PreviewRequest) (*PreviewResult, error) {
	if req.StepOrder < 1 {
		return nil, &ValidationError{Message: "step order must be positive"}
	}

	if _, err := s.sequenceRepo.GetByID(ctx, actor.WorkspaceID, req.SequenceID); err != nil {
		return nil, notFoundOr(err, "sequence", req.SequenceID)
	}

	steps, err := s.sequenceRepo.ListSteps(ctx, req.SequenceID)
	if err != nil {
		return nil, fmt.Errorf("failed to load steps: %w", err)
	}

	var step *models.SequenceStep
	for _, candidate := range steps {
		if candidate.StepOrder == req.StepOrder {
			step = candidate
			break
		}
	}
	if step == nil {
		return nil, &ValidationError{Message: fmt.Sprintf("sequence has no step %d", req.StepOrder)}
	}

	contact, err := s.contactRepo.GetByID(ctx, actor.WorkspaceID, req.ContactID)
	if err != nil {
		return nil, notFoundOr(err, "contact", req.ContactID)
	}

	subjectTemplate, bodyTemplate := step.SubjectTemplate, step.BodyTemplate
	if req.SubjectOverride != nil {
		subjectTemplate = *req.SubjectOverride
	}
	if req.BodyOverride != nil {
		bodyTemplate = *req.BodyOverride
	}

	result := &PreviewResult{
		Subject: s.templates.Render(subjectTemplate, contact),
		Body:    s.templates.Render(bodyTemplate, contact),
	}
	_, result.UnknownPlaceholders = s.templates.Placeholders(subjectTemplate + "\n" + bodyTemplate)
	if result.UnknownPlaceholders == nil {
		result.UnknownPlaceholders = []string{}
	}
	result.Contact.ID = contact.ID
	result.Contact.Email = contact.Email
	result.Contact.Name = contact.FullName()

	return result, nil
}
