package main

import (
	"context"
	"database/sql"
	"fmt"

	"inboxpilot/internal/audit"
	"inboxpilot/internal/config"
	"inboxpilot/internal/database"
	"inboxpilot/internal/lease"
	"inboxpilot/internal/logger"
	"inboxpilot/internal/repository"
	"inboxpilot/internal/scheduler"
	"inboxpilot/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// app is everything a scheduler process holds open
type app struct {
	cfg       *config.Config
	log       *logrus.Entry
	db        *sql.DB
	registry  *prometheus.Registry
	scheduler *scheduler.Scheduler
	closers   []func() error
}

func (r *app) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			r.log.WithError(err).Warn("failed to close resource")
		}
	}
}

func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	rt := &app{cfg: cfg, log: logger.New(cfg, "scheduler"), registry: prometheus.NewRegistry()}

	rt.db, err = database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, rt.db.Close)

	sink, closeSink, err := audit.NewFromConfig(cfg, rt.db, rt.log)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, closeSink)

	sequenceRepo := repository.NewSequenceRepository(rt.db)
	contactRepo := repository.NewContactRepository(rt.db)
	enrollmentRepo := repository.NewEnrollmentRepository(rt.db)
	emailRepo := repository.NewEmailRepository(rt.db)

	var claimer scheduler.Claimer = enrollmentRepo
	if cfg.Scheduler.ClaimBackend == config.ClaimBackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			rt.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		rt.closers = append(rt.closers, client.Close)
		claimer = lease.NewRedisClaimer(client, enrollmentRepo, "inboxpilot:")
	}

	deliveries := service.NewDeliveryService(
		sequenceRepo,
		contactRepo,
		enrollmentRepo,
		emailRepo,
		service.NewTemplateService(),
		service.NewTransport(cfg),
		sink,
		cfg.Scheduler.SendTimeout,
		rt.log,
	)

	rt.scheduler = scheduler.New(enrollmentRepo, claimer, deliveries, scheduler.Config{
		Interval:    cfg.Scheduler.Interval,
		BatchSize:   cfg.Scheduler.BatchSize,
		Concurrency: cfg.Scheduler.Concurrency,
		ClaimLease:  cfg.Scheduler.ClaimLease,
	}, scheduler.NewMetrics(rt.registry), rt.log)

	rt.log.WithFields(logrus.Fields{
		"claim_backend": cfg.Scheduler.ClaimBackend,
		"audit_backend": cfg.Audit.Backend,
		"transport":     cfg.Transport.Kind,
	}).Info("scheduler configured")

	return rt, nil
}
