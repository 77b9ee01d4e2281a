package audit

import (
	"database/sql"
	"fmt"

	"inboxpilot/internal/config"
	"inboxpilot/internal/queue"
	"inboxpilot/internal/repository"

	"github.com/sirupsen/logrus"
)

// NewFromConfig builds the sink selected by AUDIT_BACKEND. The returned
// close func releases the broker connection, if one was opened.
func NewFromConfig(cfg *config.Config, db *sql.DB, log logrus.FieldLogger) (Sink, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Audit.Backend {
	case config.AuditBackendQueue:
		conn, err := queue.NewConnection(cfg.GetRabbitMQURL(), log)
		if err != nil {
			return nil, noop, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		publisher, err := queue.NewPublisher(conn, cfg.Audit.Queue)
		if err != nil {
			conn.Close()
			return nil, noop, fmt.Errorf("failed to create publisher: %w", err)
		}
		return NewQueueSink(publisher, log), conn.Close, nil

	case config.AuditBackendDatabase:
		return NewStoreSink(repository.NewActivityRepository(db), log), noop, nil

	case config.AuditBackendLog:
		return NewLogSink(log), noop, nil
	}

	return nil, noop, fmt.Errorf("unknown audit backend %q", cfg.Audit.Backend)
}
