package scheduler

import (
	"context"
	"sort"
	"sync"
	"time"

	"inboxpilot/internal/models"
	"inboxpilot/internal/repository"

	"github.com/google/uuid"
)

// memStore is an in-memory stand-in for the Postgres repositories. Its
// conditional updates mirror the SQL guards so several schedulers can race
// against it.
type memStore struct {
	mu          sync.Mutex
	contacts    map[uuid.UUID]*models.Contact
	steps       map[uuid.UUID][]*models.SequenceStep
	enrollments map[uuid.UUID]*memEnrollment
	emails      []*models.OutboundEmail
	history     map[uuid.UUID][]int
}

type memEnrollment struct {
	models.SequenceEnrollment
	claimedUntil *time.Time
	claimToken   string
}

func newMemStore() *memStore {
	return &memStore{
		contacts:    make(map[uuid.UUID]*models.Contact),
		steps:       make(map[uuid.UUID][]*models.SequenceStep),
		enrollments: make(map[uuid.UUID]*memEnrollment),
		history:     make(map[uuid.UUID][]int),
	}
}

// addSequence stores steps with the given delays, ordered 1..n
func (s *memStore) addSequence(delays ...int) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := uuid.New()
	for i, d := range delays {
		s.steps[id] = append(s.steps[id], &models.SequenceStep{
			ID:              uuid.New(),
			SequenceID:      id,
			StepOrder:       i + 1,
			SubjectTemplate: "Step {{first_name}}",
			BodyTemplate:    "Body",
			DelayDays:       d,
		})
	}
	return id
}

// addDueEnrollment enrolls a new contact with the given email, due now
func (s *memStore) addDueEnrollment(sequenceID uuid.UUID, email string) uuid.UUID {
	s.mu.Lock()
	defer s.mu.Unlock()

	workspaceID := uuid.New()
	first := "Ana"
	contact := &models.Contact{ID: uuid.New(), WorkspaceID: workspaceID, Email: email, FirstName: &first, Status: models.ContactStatusActive}
	s.contacts[contact.ID] = contact

	due := time.Now().Add(-time.Minute)
	e := &memEnrollment{SequenceEnrollment: models.SequenceEnrollment{
		ID:              uuid.New(),
		SequenceID:      sequenceID,
		ContactID:       contact.ID,
		WorkspaceID:     workspaceID,
		Status:          models.EnrollmentStatusActive,
		NextScheduledAt: &due,
		CreatedAt:       time.Now(),
	}}
	s.enrollments[e.ID] = e
	return e.ID
}

func (s *memStore) enrollment(id uuid.UUID) models.SequenceEnrollment {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enrollments[id].SequenceEnrollment
}

func (s *memStore) emailsFor(id uuid.UUID) []*models.OutboundEmail {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*models.OutboundEmail
	for _, e := range s.emails {
		if e.EnrollmentID != nil && *e.EnrollmentID == id {
			copied := *e
			out = append(out, &copied)
		}
	}
	return out
}

func (s *memStore) claimed(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enrollments[id].claimToken != ""
}

func copyEnrollment(e *memEnrollment) *models.SequenceEnrollment {
	copied := e.SequenceEnrollment
	return &copied
}

// EnrollmentRepository

func (s *memStore) Create(ctx context.Context, enrollment *models.SequenceEnrollment) error {
	return nil
}

func (s *memStore) GetByID(ctx context.Context, id uuid.UUID) (*models.SequenceEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.enrollments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyEnrollment(e), nil
}

func (s *memStore) GetInSequence(ctx context.Context, workspaceID, sequenceID, id uuid.UUID) (*models.SequenceEnrollment, error) {
	return s.GetByID(ctx, id)
}

func (s *memStore) ListBySequence(ctx context.Context, workspaceID, sequenceID uuid.UUID) ([]*models.SequenceEnrollment, error) {
	return nil, nil
}

func (s *memStore) DueEnrollments(ctx context.Context, now time.Time, limit int) ([]*models.SequenceEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*models.SequenceEnrollment
	for _, e := range s.enrollments {
		if e.IsDue(now) && (e.claimedUntil == nil || e.claimedUntil.Before(now)) {
			due = append(due, copyEnrollment(e))
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].NextScheduledAt.Before(*due[j].NextScheduledAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *memStore) Claim(ctx context.Context, id uuid.UUID, now time.Time, lease time.Duration) (*models.SequenceEnrollment, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.enrollments[id]
	if !ok || !e.IsDue(now) || (e.claimedUntil != nil && !e.claimedUntil.Before(now)) {
		return nil, "", repository.ErrAlreadyClaimed
	}
	until := now.Add(lease)
	e.claimedUntil = &until
	e.claimToken = uuid.NewString()
	return copyEnrollment(e), e.claimToken, nil
}

func (s *memStore) Release(ctx context.Context, id uuid.UUID, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.enrollments[id]; ok && e.claimToken == token {
		e.claimedUntil = nil
		e.claimToken = ""
	}
	return nil
}

func (s *memStore) Advance(ctx context.Context, id uuid.UUID, sentStepOrder int, sentAt time.Time, nextScheduledAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.enrollments[id]
	if !ok || (e.LastStepSent != nil && *e.LastStepSent >= sentStepOrder) {
		return repository.ErrStaleAdvance
	}

	order := sentStepOrder
	e.LastStepSent = &order
	e.LastSentAt = &sentAt
	if e.Status == models.EnrollmentStatusActive {
		e.NextScheduledAt = nextScheduledAt
		if nextScheduledAt == nil {
			e.Status = models.EnrollmentStatusCompleted
		}
	} else {
		e.NextScheduledAt = nil
	}
	s.history[id] = append(s.history[id], sentStepOrder)
	return nil
}

func (s *memStore) Complete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.enrollments[id]; ok && e.Status == models.EnrollmentStatusActive {
		e.Status = models.EnrollmentStatusCompleted
		e.NextScheduledAt = nil
	}
	return nil
}

func (s *memStore) Stop(ctx context.Context, id uuid.UUID) (*models.SequenceEnrollment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.enrollments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	e.Status = models.EnrollmentStatusStopped
	e.NextScheduledAt = nil
	return copyEnrollment(e), nil
}

// sequenceRepo, contactRepo and emailRepo expose the other repository
// interfaces over the same store

type sequenceRepo struct{ *memStore }

func (r sequenceRepo) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*models.Sequence, error) {
	return &models.Sequence{ID: id, WorkspaceID: workspaceID, IsActive: true}, nil
}

func (r sequenceRepo) ListSteps(ctx context.Context, sequenceID uuid.UUID) ([]*models.SequenceStep, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.steps[sequenceID], nil
}

func (r sequenceRepo) FirstStep(ctx context.Context, sequenceID uuid.UUID) (*models.SequenceStep, error) {
	steps, _ := r.ListSteps(ctx, sequenceID)
	if len(steps) == 0 {
		return nil, nil
	}
	return steps[0], nil
}

type contactRepo struct{ *memStore }

func (r contactRepo) Create(ctx context.Context, contact *models.Contact) error {
	return nil
}

func (r contactRepo) GetByID(ctx context.Context, workspaceID, id uuid.UUID) (*models.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.contacts[id]
	if !ok || c.WorkspaceID != workspaceID {
		return nil, repository.ErrNotFound
	}
	copied := *c
	return &copied, nil
}

func (r contactRepo) GetByEmail(ctx context.Context, workspaceID uuid.UUID, email string) (*models.Contact, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.contacts {
		if c.WorkspaceID == workspaceID && c.Email == email {
			copied := *c
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

type emailRepo struct{ *memStore }

func (r emailRepo) CreateQueued(ctx context.Context, email *models.OutboundEmail) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	email.ID = uuid.New()
	email.Status = models.EmailStatusQueued
	email.CreatedAt = time.Now()
	copied := *email
	r.emails = append(r.emails, &copied)
	return nil
}

func (r emailRepo) finish(id uuid.UUID, apply func(*models.OutboundEmail)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.emails {
		if e.ID == id && e.Status == models.EmailStatusQueued {
			apply(e)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r emailRepo) MarkSent(ctx context.Context, id uuid.UUID, sentAt time.Time) error {
	return r.finish(id, func(e *models.OutboundEmail) {
		e.Status = models.EmailStatusSent
		e.SentAt = &sentAt
	})
}

func (r emailRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	return r.finish(id, func(e *models.OutboundEmail) {
		e.Status = models.EmailStatusFailed
		e.ErrorMessage = &reason
	})
}

func (r emailRepo) ListByEnrollment(ctx context.Context, enrollmentID uuid.UUID) ([]*models.OutboundEmail, error) {
	return r.emailsFor(enrollmentID), nil
}

var (
	_ repository.EnrollmentRepository = (*memStore)(nil)
	_ repository.SequenceRepository   = sequenceRepo{}
	_ repository.ContactRepository    = contactRepo{}
	_ repository.EmailRepository      = emailRepo{}
)
