package service

import (
	"context"
	"fmt"

	"inboxpilot/internal/models"
	"inboxpilot/internal/repository"
)

const maxActivityLimit = 200

// ActivityService reads the workspace activity log
type ActivityService struct {
	activityRepo repository.ActivityRepository
}

// NewActivityService creates a new activity service
func NewActivityService(activityRepo repository.ActivityRepository) *ActivityService {
	return &ActivityService{activityRepo: activityRepo}
}

// List returns the actor's workspace activity, newest first
func (s *ActivityService) List(ctx context.Context, actor models.Actor, filters repository.ActivityFilters) ([]*models.ActivityEvent, error) {
	if filters.Limit < 0 || filters.Offset < 0 {
		return nil, &ValidationError{Message: "limit and offset must not be negative"}
	}
	if filters.Limit > maxActivityLimit {
		return nil, &ValidationError{Message: fmt.Sprintf("limit must not exceed %d", maxActivityLimit)}
	}

	events, err := s.activityRepo.ListByWorkspace(ctx, actor.WorkspaceID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to list activity: %w", err)
	}
	return events, nil
}
