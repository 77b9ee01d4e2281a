package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"inboxpilot/internal/audit"
	"inboxpilot/internal/config"
	"inboxpilot/internal/database"
	"inboxpilot/internal/handler"
	"inboxpilot/internal/logger"
	"inboxpilot/internal/repository"
	"inboxpilot/internal/service"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	log := logger.New(cfg, "api")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to database")

	sink, closeSink, err := audit.NewFromConfig(cfg, db, log)
	if err != nil {
		log.WithError(err).Fatal("failed to set up audit sink")
	}
	defer closeSink()

	sequenceRepo := repository.NewSequenceRepository(db)
	contactRepo := repository.NewContactRepository(db)
	enrollmentRepo := repository.NewEnrollmentRepository(db)
	emailRepo := repository.NewEmailRepository(db)
	activityRepo := repository.NewActivityRepository(db)

	templates := service.NewTemplateService()
	enrollments := service.NewEnrollmentService(sequenceRepo, contactRepo, enrollmentRepo, emailRepo, sink, log)
	previews := service.NewPreviewService(sequenceRepo, contactRepo, templates)
	activity := service.NewActivityService(activityRepo)
	emails := service.NewEmailService(contactRepo, emailRepo, service.NewTransport(cfg), sink, cfg.Scheduler.SendTimeout, log)

	// Only report on the backends this deployment uses
	var queueURL string
	if cfg.Audit.Backend == config.AuditBackendQueue {
		queueURL = cfg.GetRabbitMQURL()
	}
	var redisClient *redis.Client
	if cfg.Scheduler.ClaimBackend == config.ClaimBackendRedis {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	health := service.NewHealthService(db, queueURL, redisClient, version)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewDBStatsCollector(db, cfg.Database.DBName),
	)

	router := handler.NewRouter(handler.Handlers{
		Enrollments: handler.NewEnrollmentHandler(enrollments, log),
		Previews:    handler.NewPreviewHandler(previews, log),
		Emails:      handler.NewEmailHandler(emails, log),
		Activity:    handler.NewActivityHandler(activity, log),
		Health:      handler.NewHealthHandler(health),
		Gatherer:    reg,
	}, log)

	server := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Server.Port, "version": version}).Info("api server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
		os.Exit(1)
	}
	log.Info("api server stopped")
}
