package logger

import (
	"os"

	"inboxpilot/internal/config"

	"github.com/sirupsen/logrus"
)

// New builds the process logger. Development gets human-readable text,
// everything else gets JSON lines.
func New(cfg *config.Config, component string) *logrus.Entry {
	log := logrus.New()
	log.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	log.SetLevel(level)

	if cfg.IsDevelopment() {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	return log.WithFields(logrus.Fields{
		"component": component,
		"env":       cfg.Env,
	})
}
