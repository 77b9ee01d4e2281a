package main

import (
	"context"
	"os/signal"
	"syscall"

	"inboxpilot/internal/audit"
	"inboxpilot/internal/config"
	"inboxpilot/internal/database"
	"inboxpilot/internal/logger"
	"inboxpilot/internal/queue"
	"inboxpilot/internal/repository"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// The worker drains the activity event queue into the activity_log table
func main() {
	// Load .env file (ignore error in production)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	log := logger.New(cfg, "worker")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()
	log.Info("connected to database")

	conn, err := queue.NewConnection(cfg.GetRabbitMQURL(), log)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to RabbitMQ")
	}
	defer conn.Close()
	log.Info("connected to RabbitMQ")

	store := audit.NewStoreSink(repository.NewActivityRepository(db), log)
	consumer, err := queue.NewConsumer(conn, cfg.Audit.Queue, store.Store, log)
	if err != nil {
		log.WithError(err).Fatal("failed to create consumer")
	}

	if err := consumer.Start(ctx); err != nil {
		log.WithError(err).Fatal("failed to start consumer")
	}
	log.WithField("queue", cfg.Audit.Queue).Info("worker started")

	<-ctx.Done()
	log.Info("shutting down gracefully")

	if err := consumer.Stop(); err != nil {
		log.WithError(err).Error("error stopping consumer")
	}
	log.Info("worker stopped")
}
