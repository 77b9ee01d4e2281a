package handler

import (
	"context"
	"net/http"
	"strconv"

	"inboxpilot/internal/middleware"
	"inboxpilot/internal/models"
	"inboxpilot/internal/repository"

	"github.com/sirupsen/logrus"
)

// ActivityLister reads the workspace activity log
type ActivityLister interface {
	List(ctx context.Context, actor models.Actor, filters repository.ActivityFilters) ([]*models.ActivityEvent, error)
}

// ActivityHandler handles HTTP requests for the activity log
type ActivityHandler struct {
	activity ActivityLister
	log      logrus.FieldLogger
}

// NewActivityHandler creates a new activity handler
func NewActivityHandler(activity ActivityLister, log logrus.FieldLogger) *ActivityHandler {
	return &ActivityHandler{activity: activity, log: log}
}

// List handles GET /activity?limit=&offset=&type=
func (h *ActivityHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := middleware.ActorFrom(r.Context())
	if !ok {
		WriteValidationError(w, "workspace is required")
		return
	}

	query := r.URL.Query()
	filters := repository.ActivityFilters{Types: query["type"]}

	var err error
	if filters.Limit, err = intParam(query.Get("limit")); err != nil {
		WriteValidationError(w, "limit must be an integer")
		return
	}
	if filters.Offset, err = intParam(query.Get("offset")); err != nil {
		WriteValidationError(w, "offset must be an integer")
		return
	}

	events, err := h.activity.List(r.Context(), actor, filters)
	if err != nil {
		HandleServiceError(w, h.log, err)
		return
	}
	if events == nil {
		events = []*models.ActivityEvent{}
	}

	WriteOK(w, map[string]interface{}{"activity": events})
}

func intParam(raw string) (int, error) {
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}
