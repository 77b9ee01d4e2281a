// Package scheduler drives delivery: each tick it reads the due
// enrollments, claims them one by one and hands the claimed ones to the
// delivery pipeline with bounded parallelism. It keeps no state between
// ticks; the enrollment store is the only thing shared between workers.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"inboxpilot/internal/models"
	"inboxpilot/internal/repository"
	"inboxpilot/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const releaseTimeout = 5 * time.Second

// DueSource lists enrollments whose next step is due
type DueSource interface {
	DueEnrollments(ctx context.Context, now time.Time, limit int) ([]*models.SequenceEnrollment, error)
}

// Claimer grants one worker at a time exclusive use of an enrollment.
// Claim returns repository.ErrAlreadyClaimed when the enrollment is held
// elsewhere or is no longer due.
type Claimer interface {
	Claim(ctx context.Context, id uuid.UUID, now time.Time, lease time.Duration) (*models.SequenceEnrollment, string, error)
	Release(ctx context.Context, id uuid.UUID, token string) error
}

// Deliverer processes one claimed enrollment
type Deliverer interface {
	Deliver(ctx context.Context, enrollment *models.SequenceEnrollment) (*service.DeliveryOutcome, error)
}

// Config controls tick cadence and parallelism
type Config struct {
	Interval    time.Duration
	BatchSize   int
	Concurrency int
	ClaimLease  time.Duration
}

// TickReport counts what one tick did
type TickReport struct {
	Due       int `json:"due"`
	Claimed   int `json:"claimed"`
	Contended int `json:"contended"`
	Sent      int `json:"sent"`
	Failed    int `json:"failed"`
	Completed int `json:"completed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Scheduler runs delivery ticks
type Scheduler struct {
	source    DueSource
	claimer   Claimer
	deliverer Deliverer
	cfg       Config
	metrics   *Metrics
	log       logrus.FieldLogger
	now       func() time.Time
}

// New creates a scheduler. Zero config values fall back to one worker, a
// batch of 100 and a five minute lease.
func New(source DueSource, claimer Claimer, deliverer Deliverer, cfg Config, metrics *Metrics, log logrus.FieldLogger) *Scheduler {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.ClaimLease <= 0 {
		cfg.ClaimLease = 5 * time.Minute
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}

	return &Scheduler{
		source:    source,
		claimer:   claimer,
		deliverer: deliverer,
		cfg:       cfg,
		metrics:   metrics,
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run ticks once immediately and then every Interval until ctx is done
func (s *Scheduler) Run(ctx context.Context) error {
	s.log.WithFields(logrus.Fields{
		"interval":    s.cfg.Interval,
		"concurrency": s.cfg.Concurrency,
		"batch_size":  s.cfg.BatchSize,
	}).Info("scheduler started")

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		report := s.Tick(ctx)
		if report.Due > 0 || report.Errors > 0 {
			s.log.WithFields(reportFields(report)).Info("tick finished")
		}

		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Tick processes the current due set once. Failures are contained per
// enrollment and counted in the report; Tick itself never fails.
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	start := time.Now()
	defer func() {
		if s.metrics != nil {
			s.metrics.Ticks.Inc()
			s.metrics.TickDuration.Observe(time.Since(start).Seconds())
		}
	}()

	var report TickReport

	due, err := s.source.DueEnrollments(ctx, s.now(), s.cfg.BatchSize)
	if err != nil {
		s.log.WithError(err).Error("failed to load due enrollments")
		report.Errors++
		s.count("error")
		return report
	}
	report.Due = len(due)

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(s.cfg.Concurrency)

	for _, enrollment := range due {
		if ctx.Err() != nil {
			break
		}

		id := enrollment.ID
		g.Go(func() error {
			result := s.process(ctx, id)

			mu.Lock()
			report.add(result)
			mu.Unlock()
			return nil
		})
	}

	_ = g.Wait()
	return report
}

// outcome of one enrollment within a tick: a delivery result, or one of
// the constants below
type outcome string

const (
	outcomeContended  outcome = "contended"
	outcomeClaimError outcome = "claim_error"
	outcomeError      outcome = "error"
)

func (r *TickReport) add(o outcome) {
	switch o {
	case outcomeContended:
		r.Contended++
		return
	case outcomeClaimError:
		r.Errors++
		return
	}

	r.Claimed++
	switch o {
	case outcomeError:
		r.Errors++
	case outcome(service.DeliverySent):
		r.Sent++
	case outcome(service.DeliveryFailed):
		r.Failed++
	case outcome(service.DeliveryNoStepDue):
		r.Completed++
	case outcome(service.DeliverySkipped):
		r.Skipped++
	}
}

func (s *Scheduler) process(ctx context.Context, id uuid.UUID) (result outcome) {
	log := s.log.WithField("enrollment_id", id)

	enrollment, token, err := s.claimer.Claim(ctx, id, s.now(), s.cfg.ClaimLease)
	if errors.Is(err, repository.ErrAlreadyClaimed) {
		if s.metrics != nil {
			s.metrics.Contention.Inc()
		}
		return outcomeContended
	}
	if err != nil {
		log.WithError(err).Error("failed to claim enrollment")
		s.count(string(outcomeError))
		return outcomeClaimError
	}

	defer func() {
		// A cancelled tick must still free its claims
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := s.claimer.Release(releaseCtx, id, token); err != nil {
			log.WithError(err).Warn("failed to release claim; it will expire with the lease")
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			log.WithField("panic", fmt.Sprint(r)).Error("delivery panicked")
			s.count(string(outcomeError))
			result = outcomeError
		}
	}()

	delivered, err := s.deliverer.Deliver(ctx, enrollment)
	if err != nil {
		log.WithError(err).Error("delivery failed")
		s.count(string(outcomeError))
		return outcomeError
	}

	s.count(string(delivered.Result))
	return outcome(delivered.Result)
}

func (s *Scheduler) count(label string) {
	if s.metrics != nil {
		s.metrics.Deliveries.WithLabelValues(label).Inc()
	}
}

func reportFields(r TickReport) logrus.Fields {
	return logrus.Fields{
		"due":       r.Due,
		"claimed":   r.Claimed,
		"contended": r.Contended,
		"sent":      r.Sent,
		"failed":    r.Failed,
		"completed": r.Completed,
		"skipped":   r.Skipped,
		"errors":    r.Errors,
	}
}
