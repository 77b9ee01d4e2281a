package service

import (
	"context"
	"io"
	"sync"
	"time"

	"inboxpilot/internal/models"
	"inboxpilot/internal/repository"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

func strPtr(s string) *string { return &s }

func intPtr(v int) *int { return &v }

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// MockSequenceRepository mocks SequenceRepository
type MockSequenceRepository struct {
	GetByIDFunc   func(ctx context.Context, workspaceID, id uuid.UUID) (*models.Sequence, error)
	ListStepsFunc func(ctx context.Context, sequenceID uuid.UUID) ([]*models.SequenceStep, error)
	FirstStepFunc func(ctx context.Context, sequenceID uuid.UUID) (*models.SequenceStep, error)

	Calls map[string]int
}

func NewMockSequenceRepository() *MockSequenceRepository {
	return &MockSequenceRepository{Calls: make(map[string]int)}
}

func (m *MockSequenceRepository) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*models.Sequence, error) {
	m.Calls["GetByID"]++
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, workspaceID, id)
	}
	return &models.Sequence{ID: id, WorkspaceID: workspaceID, Name: "Onboarding", IsActive: true}, nil
}

func (m *MockSequenceRepository) ListSteps(ctx context.Context, sequenceID uuid.UUID) ([]*models.SequenceStep, error) {
	m.Calls["ListSteps"]++
	if m.ListStepsFunc != nil {
		return m.ListStepsFunc(ctx, sequenceID)
	}
	return []*models.SequenceStep{}, nil
}

func (m *MockSequenceRepository) FirstStep(ctx context.Context, sequenceID uuid.UUID) (*models.SequenceStep, error) {
	m.Calls["FirstStep"]++
	if m.FirstStepFunc != nil {
		return m.FirstStepFunc(ctx, sequenceID)
	}
	return nil, nil
}

// MockContactRepository mocks ContactRepository
type MockContactRepository struct {
	CreateFunc  func(ctx context.Context, contact *models.Contact) error
	GetByIDFunc    func(ctx context.Context, workspaceID, id uuid.UUID) (*models.Contact, error)
	GetByEmailFunc func(ctx context.Context, workspaceID uuid.UUID, email string) (*models.Contact, error)

	Calls map[string]int
}

func NewMockContactRepository() *MockContactRepository {
	return &MockContactRepository{Calls: make(map[string]int)}
}

func (m *MockContactRepository) Create(ctx context.Context, contact *models.Contact) error {
	m.Calls["Create"]++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, contact)
	}
	return nil
}

func (m *MockContactRepository) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*models.Contact, error) {
	m.Calls["GetByID"]++
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, workspaceID, id)
	}
	return &models.Contact{
		ID:          id,
		WorkspaceID: workspaceID,
		Email:       "ana@example.com",
		FirstName:   strPtr("Ana"),
		Status:      models.ContactStatusActive,
	}, nil
}

func (m *MockContactRepository) GetByEmail(ctx context.Context, workspaceID uuid.UUID, email string) (*models.Contact, error) {
	m.Calls["GetByEmail"]++
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, workspaceID, email)
	}
	return nil, repository.ErrNotFound
}

// AdvanceCall records the arguments of one Advance call
type AdvanceCall struct {
	ID              uuid.UUID
	SentStepOrder   int
	SentAt          time.Time
	NextScheduledAt *time.Time
}

// MockEnrollmentRepository mocks EnrollmentRepository
type MockEnrollmentRepository struct {
	CreateFunc         func(ctx context.Context, enrollment *models.SequenceEnrollment) error
	GetByIDFunc        func(ctx context.Context, id uuid.UUID) (*models.SequenceEnrollment, error)
	GetInSequenceFunc  func(ctx context.Context, workspaceID, sequenceID, id uuid.UUID) (*models.SequenceEnrollment, error)
	ListBySequenceFunc func(ctx context.Context, workspaceID, sequenceID uuid.UUID) ([]*models.SequenceEnrollment, error)
	AdvanceFunc        func(ctx context.Context, id uuid.UUID, sentStepOrder int, sentAt time.Time, nextScheduledAt *time.Time) error
	StopFunc           func(ctx context.Context, id uuid.UUID) (*models.SequenceEnrollment, error)

	Created  []*models.SequenceEnrollment
	Advances []AdvanceCall
	Calls    map[string]int
}

func NewMockEnrollmentRepository() *MockEnrollmentRepository {
	return &MockEnrollmentRepository{Calls: make(map[string]int)}
}

func (m *MockEnrollmentRepository) Create(ctx context.Context, enrollment *models.SequenceEnrollment) error {
	m.Calls["Create"]++
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, enrollment)
	}
	enrollment.ID = uuid.New()
	enrollment.CreatedAt = time.Now()
	m.Created = append(m.Created, enrollment)
	return nil
}

func (m *MockEnrollmentRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.SequenceEnrollment, error) {
	m.Calls["GetByID"]++
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, repository.ErrNotFound
}

func (m *MockEnrollmentRepository) GetInSequence(ctx context.Context, workspaceID, sequenceID, id uuid.UUID) (*models.SequenceEnrollment, error) {
	m.Calls["GetInSequence"]++
	if m.GetInSequenceFunc != nil {
		return m.GetInSequenceFunc(ctx, workspaceID, sequenceID, id)
	}
	return nil, repository.ErrNotFound
}

func (m *MockEnrollmentRepository) ListBySequence(ctx context.Context, workspaceID, sequenceID uuid.UUID) ([]*models.SequenceEnrollment, error) {
	m.Calls["ListBySequence"]++
	if m.ListBySequenceFunc != nil {
		return m.ListBySequenceFunc(ctx, workspaceID, sequenceID)
	}
	return []*models.SequenceEnrollment{}, nil
}

func (m *MockEnrollmentRepository) DueEnrollments(ctx context.Context, now time.Time, limit int) ([]*models.SequenceEnrollment, error) {
	m.Calls["DueEnrollments"]++
	return []*models.SequenceEnrollment{}, nil
}

func (m *MockEnrollmentRepository) Claim(ctx context.Context, id uuid.UUID, now time.Time, lease time.Duration) (*models.SequenceEnrollment, string, error) {
	m.Calls["Claim"]++
	return nil, "", repository.ErrAlreadyClaimed
}

func (m *MockEnrollmentRepository) Release(ctx context.Context, id uuid.UUID, token string) error {
	m.Calls["Release"]++
	return nil
}

func (m *MockEnrollmentRepository) Advance(ctx context.Context, id uuid.UUID, sentStepOrder int, sentAt time.Time, nextScheduledAt *time.Time) error {
	m.Calls["Advance"]++
	m.Advances = append(m.Advances, AdvanceCall{id, sentStepOrder, sentAt, nextScheduledAt})
	if m.AdvanceFunc != nil {
		return m.AdvanceFunc(ctx, id, sentStepOrder, sentAt, nextScheduledAt)
	}
	return nil
}

func (m *MockEnrollmentRepository) Complete(ctx context.Context, id uuid.UUID) error {
	m.Calls["Complete"]++
	return nil
}

func (m *MockEnrollmentRepository) Stop(ctx context.Context, id uuid.UUID) (*models.SequenceEnrollment, error) {
	m.Calls["Stop"]++
	if m.StopFunc != nil {
		return m.StopFunc(ctx, id)
	}
	return &models.SequenceEnrollment{ID: id, Status: models.EnrollmentStatusStopped}, nil
}

// MockEmailRepository mocks EmailRepository, keeping rows in memory
type MockEmailRepository struct {
	CreateQueuedFunc func(ctx context.Context, email *models.OutboundEmail) error
	MarkSentFunc     func(ctx context.Context, id uuid.UUID, sentAt time.Time) error

	Emails map[uuid.UUID]*models.OutboundEmail
	Calls  map[string]int
}

func NewMockEmailRepository() *MockEmailRepository {
	return &MockEmailRepository{
		Emails: make(map[uuid.UUID]*models.OutboundEmail),
		Calls:  make(map[string]int),
	}
}

func (m *MockEmailRepository) CreateQueued(ctx context.Context, email *models.OutboundEmail) error {
	m.Calls["CreateQueued"]++
	if m.CreateQueuedFunc != nil {
		return m.CreateQueuedFunc(ctx, email)
	}
	email.ID = uuid.New()
	email.Status = models.EmailStatusQueued
	email.CreatedAt = time.Now()
	m.Emails[email.ID] = email
	return nil
}

func (m *MockEmailRepository) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	m.Calls["MarkSent"]++
	if m.MarkSentFunc != nil {
		return m.MarkSentFunc(ctx, id, sentAt)
	}
	email, ok := m.Emails[id]
	if !ok || email.Status != models.EmailStatusQueued {
		return repository.ErrNotFound
	}
	email.Status = models.EmailStatusSent
	email.SentAt = &sentAt
	return nil
}

func (m *MockEmailRepository) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	m.Calls["MarkFailed"]++
	email, ok := m.Emails[id]
	if !ok || email.Status != models.EmailStatusQueued {
		return repository.ErrNotFound
	}
	email.Status = models.EmailStatusFailed
	email.ErrorMessage = &reason
	return nil
}

func (m *MockEmailRepository) ListByEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]*models.OutboundEmail, error) {
	m.Calls["ListByEnrollment"]++
	emails := []*models.OutboundEmail{}
	for _, email := range m.Emails {
		if email.EnrollmentID != nil && *email.EnrollmentID == enrollmentID {
			emails = append(emails, email)
		}
	}
	return emails, nil
}

// MockTransport mocks Transport
type MockTransport struct {
	SendFunc func(ctx context.Context, to, subject, body string) error

	mu   sync.Mutex
	Sent []string
}

func (m *MockTransport) Send(ctx context.Context, to, subject, body string) error {
	m.mu.Lock()
	m.Sent = append(m.Sent, subject)
	m.mu.Unlock()
	if m.SendFunc != nil {
		return m.SendFunc(ctx, to, subject, body)
	}
	return nil
}

// recordedEvent is one call to recordingSink.Record
type recordedEvent struct {
	WorkspaceID uuid.UUID
	ActorID     *uuid.UUID
	Type        string
	Payload     map[string]interface{}
}

// recordingSink is an audit.Sink that keeps events in memory
type recordingSink struct {
	mu     sync.Mutex
	Events []recordedEvent
}

func (s *recordingSink) Record(ctx context.Context, workspaceID uuid.UUID, actorID *uuid.UUID, eventType string, payload map[string]interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Events = append(s.Events, recordedEvent{workspaceID, actorID, eventType, payload})
}

func (s *recordingSink) Types() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	types := make([]string, len(s.Events))
	for i, e := range s.Events {
		types[i] = e.Type
	}
	return types
}
