package service

import (
	"context"
	"database/sql"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
)

// Health status constants
const (
	StatusHealthy      = "healthy"
	StatusDegraded     = "degraded"
	StatusUnhealthy    = "unhealthy"
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
)

// HealthStatus represents the overall health status of the application
type HealthStatus struct {
	Status    string            `json:"status"`
	Services  map[string]string `json:"services"`
	Timestamp time.Time         `json:"timestamp"`
	Version   string            `json:"version,omitempty"`
}

// HealthChecker checks the backing services. The queue and redis checks are
// skipped when not configured.
type HealthChecker struct {
	db       *sql.DB
	queueURL string
	redis    *redis.Client
	version  string
	timeout  time.Duration
}

// NewHealthService creates a new HealthChecker instance
func NewHealthService(db *sql.DB, queueURL string, redisClient *redis.Client, version string) *HealthChecker {
	return &HealthChecker{
		db:       db,
		queueURL: queueURL,
		redis:    redisClient,
		version:  version,
		timeout:  2 * time.Second,
	}
}

func (h *HealthChecker) checkDatabase(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		return StatusDisconnected
	}
	return StatusConnected
}

func (h *HealthChecker) checkQueue() string {
	conn, err := amqp.DialConfig(h.queueURL, amqp.Config{Dial: amqp.DefaultDial(h.timeout)})
	if err != nil {
		return StatusDisconnected
	}
	defer conn.Close()

	return StatusConnected
}

func (h *HealthChecker) checkRedis(ctx context.Context) string {
	ctx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	if err := h.redis.Ping(ctx).Err(); err != nil {
		return StatusDisconnected
	}
	return StatusConnected
}

// determineOverallStatus: no database means unhealthy, any other missing
// service means degraded
func determineOverallStatus(services map[string]string) string {
	if services["database"] == StatusDisconnected {
		return StatusUnhealthy
	}

	for _, status := range services {
		if status == StatusDisconnected {
			return StatusDegraded
		}
	}

	return StatusHealthy
}

// CheckHealth performs health checks on all dependencies and returns the overall status
func (h *HealthChecker) CheckHealth(ctx context.Context) *HealthStatus {
	services := map[string]string{
		"database": h.checkDatabase(ctx),
	}
	if h.queueURL != "" {
		services["queue"] = h.checkQueue()
	}
	if h.redis != nil {
		services["redis"] = h.checkRedis(ctx)
	}

	return &HealthStatus{
		Status:    determineOverallStatus(services),
		Services:  services,
		Timestamp: time.Now().UTC(),
		Version:   h.version,
	}
}
