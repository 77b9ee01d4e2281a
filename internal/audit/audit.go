// Package audit records workspace activity events. Recording is
// fire-and-forget: sinks log their own failures and never return them.
package audit

import (
	"context"
	"errors"
	"time"

	"inboxpilot/internal/models"
	"inboxpilot/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Sink receives activity events
type Sink interface {
	Record(ctx context.Context, workspaceID uuid.UUID, actorID *uuid.UUID, eventType string, payload map[string]interface{})
}

// EventPublisher publishes events to a broker
type EventPublisher interface {
	PublishEvent(ctx context.Context, event *models.ActivityEvent) error
}

func newEvent(workspaceID uuid.UUID, actorID *uuid.UUID, eventType string, payload map[string]interface{}) *models.ActivityEvent {
	if payload == nil {
		payload = map[string]interface{}{}
	}
	return &models.ActivityEvent{
		ID:          uuid.New(),
		WorkspaceID: workspaceID,
		ActorID:     actorID,
		Type:        eventType,
		Payload:     payload,
		CreatedAt:   time.Now().UTC(),
	}
}

func eventFields(event *models.ActivityEvent) logrus.Fields {
	return logrus.Fields{
		"event_id":     event.ID,
		"event_type":   event.Type,
		"workspace_id": event.WorkspaceID,
	}
}

// QueueSink publishes events for the worker to persist
type QueueSink struct {
	publisher EventPublisher
	log       logrus.FieldLogger
}

// NewQueueSink creates a queue-backed sink
func NewQueueSink(publisher EventPublisher, log logrus.FieldLogger) *QueueSink {
	return &QueueSink{publisher: publisher, log: log}
}

// Record publishes the event
func (s *QueueSink) Record(ctx context.Context, workspaceID uuid.UUID, actorID *uuid.UUID, eventType string, payload map[string]interface{}) {
	event := newEvent(workspaceID, actorID, eventType, payload)
	if err := s.publisher.PublishEvent(context.WithoutCancel(ctx), event); err != nil {
		s.log.WithFields(eventFields(event)).WithError(err).Error("failed to publish activity event")
	}
}

// StoreSink writes events straight to the activity log table
type StoreSink struct {
	repo repository.ActivityRepository
	log  logrus.FieldLogger
}

// NewStoreSink creates a database-backed sink
func NewStoreSink(repo repository.ActivityRepository, log logrus.FieldLogger) *StoreSink {
	return &StoreSink{repo: repo, log: log}
}

// Record inserts the event
func (s *StoreSink) Record(ctx context.Context, workspaceID uuid.UUID, actorID *uuid.UUID, eventType string, payload map[string]interface{}) {
	event := newEvent(workspaceID, actorID, eventType, payload)
	if err := s.Store(context.WithoutCancel(ctx), event); err != nil {
		s.log.WithFields(eventFields(event)).WithError(err).Error("failed to store activity event")
	}
}

// Store persists an already built event. Redelivered events that were
// stored before are accepted silently.
func (s *StoreSink) Store(ctx context.Context, event *models.ActivityEvent) error {
	err := s.repo.Create(ctx, event)
	if errors.Is(err, repository.ErrConflict) {
		s.log.WithFields(eventFields(event)).Debug("activity event already stored")
		return nil
	}
	return err
}

// LogSink only logs events
type LogSink struct {
	log logrus.FieldLogger
}

// NewLogSink creates a sink that writes events to the logger
func NewLogSink(log logrus.FieldLogger) *LogSink {
	return &LogSink{log: log}
}

// Record logs the event at info level
func (s *LogSink) Record(ctx context.Context, workspaceID uuid.UUID, actorID *uuid.UUID, eventType string, payload map[string]interface{}) {
	event := newEvent(workspaceID, actorID, eventType, payload)
	entry := s.log.WithFields(eventFields(event))
	if actorID != nil {
		entry = entry.WithField("actor_id", *actorID)
	}
	entry.WithField("payload", payload).Info("activity")
}
