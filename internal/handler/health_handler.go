package handler

import (
	"context"
	"net/http"

	"inboxpilot/internal/service"
)

// HealthReporter checks the backing services
type HealthReporter interface {
	CheckHealth(ctx context.Context) *service.HealthStatus
}

// HealthHandler handles health check requests
type HealthHandler struct {
	health HealthReporter
}

// NewHealthHandler creates a new HealthHandler instance
func NewHealthHandler(health HealthReporter) *HealthHandler {
	return &HealthHandler{health: health}
}

// HandleHealth handles GET /health. Anything short of healthy is a 503.
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := h.health.CheckHealth(r.Context())

	code := http.StatusOK
	if status.Status != service.StatusHealthy {
		code = http.StatusServiceUnavailable
	}

	WriteJSON(w, code, status)
}
