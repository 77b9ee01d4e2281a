package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	RabbitMQ  RabbitMQConfig
	Redis     RedisConfig
	SMTP      SMTPConfig
	Scheduler SchedulerConfig
	Audit     AuditConfig
	Transport TransportConfig
	Env       string
	LogLevel  string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port string
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host         string
	Port         string
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

// RabbitMQConfig holds RabbitMQ configuration
type RabbitMQConfig struct {
	Host     string
	Port     string
	User     string
	Password string
}

// RedisConfig holds Redis configuration for the lease claim backend
type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

// SMTPConfig holds outbound mail server configuration
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	FromEmail string
	FromName  string
}

// SchedulerConfig controls the delivery loop
type SchedulerConfig struct {
	Interval     time.Duration
	BatchSize    int
	Concurrency  int
	ClaimLease   time.Duration
	SendTimeout  time.Duration
	ClaimBackend string
}

// AuditConfig selects where activity events go
type AuditConfig struct {
	Backend string
	Queue   string
}

// TransportConfig selects the outbound email transport
type TransportConfig struct {
	Kind        string
	SuccessRate float64
}

// Claim backends
const (
	ClaimBackendPostgres = "postgres"
	ClaimBackendRedis    = "redis"
)

// Audit backends
const (
	AuditBackendQueue    = "queue"
	AuditBackendDatabase = "database"
	AuditBackendLog      = "log"
)

// Transport kinds
const (
	TransportSMTP      = "smtp"
	TransportSimulated = "simulated"
)

// Load reads configuration from environment variables
func Load() (*Config, error) {
	config := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "8080"),
		},
		Database: DatabaseConfig{
			Host:         getEnv("POSTGRES_HOST", "localhost"),
			Port:         getEnv("POSTGRES_PORT", "5432"),
			User:         getEnv("POSTGRES_USER", "inboxpilot"),
			Password:     getEnv("POSTGRES_PASSWORD", ""),
			DBName:       getEnv("POSTGRES_DB", "inboxpilot"),
			SSLMode:      getEnv("POSTGRES_SSLMODE", "disable"),
			MaxOpenConns: getEnvAsInt("POSTGRES_MAX_OPEN_CONNS", 20),
			MaxIdleConns: getEnvAsInt("POSTGRES_MAX_IDLE_CONNS", 5),
		},
		RabbitMQ: RabbitMQConfig{
			Host:     getEnv("RABBITMQ_HOST", "localhost"),
			Port:     getEnv("RABBITMQ_PORT", "5672"),
			User:     getEnv("RABBITMQ_DEFAULT_USER", "guest"),
			Password: getEnv("RABBITMQ_DEFAULT_PASS", "guest"),
		},
		Redis: RedisConfig{
			Address:  getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_HOST", "localhost"),
			Port:      getEnvAsInt("SMTP_PORT", 1025),
			Username:  getEnv("SMTP_USERNAME", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			FromEmail: getEnv("FROM_EMAIL", "noreply@inboxpilot.local"),
			FromName:  getEnv("FROM_NAME", "InboxPilot"),
		},
		Scheduler: SchedulerConfig{
			Interval:     getEnvAsDuration("SCHEDULER_INTERVAL", time.Minute),
			BatchSize:    getEnvAsInt("SCHEDULER_BATCH_SIZE", 100),
			Concurrency:  getEnvAsInt("SCHEDULER_CONCURRENCY", 8),
			ClaimLease:   getEnvAsDuration("SCHEDULER_CLAIM_LEASE", 5*time.Minute),
			SendTimeout:  getEnvAsDuration("SCHEDULER_SEND_TIMEOUT", 30*time.Second),
			ClaimBackend: getEnv("SCHEDULER_CLAIM_BACKEND", ClaimBackendPostgres),
		},
		Audit: AuditConfig{
			Backend: getEnv("AUDIT_BACKEND", AuditBackendQueue),
			Queue:   getEnv("AUDIT_QUEUE", "activity_events"),
		},
		Transport: TransportConfig{
			Kind:        getEnv("TRANSPORT", TransportSMTP),
			SuccessRate: getEnvAsFloat("SIMULATED_SUCCESS_RATE", 0.95),
		},
		Env:      getEnv("ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// Validate checks required fields and enumerated settings
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("POSTGRES_PASSWORD is required")
	}

	switch c.Scheduler.ClaimBackend {
	case ClaimBackendPostgres, ClaimBackendRedis:
	default:
		return fmt.Errorf("invalid SCHEDULER_CLAIM_BACKEND %q: must be 'postgres' or 'redis'", c.Scheduler.ClaimBackend)
	}

	switch c.Audit.Backend {
	case AuditBackendQueue, AuditBackendDatabase, AuditBackendLog:
	default:
		return fmt.Errorf("invalid AUDIT_BACKEND %q: must be 'queue', 'database' or 'log'", c.Audit.Backend)
	}

	switch c.Transport.Kind {
	case TransportSMTP, TransportSimulated:
	default:
		return fmt.Errorf("invalid TRANSPORT %q: must be 'smtp' or 'simulated'", c.Transport.Kind)
	}

	// A claim must not expire while its send attempt can still be running.
	if c.Scheduler.ClaimLease <= c.Scheduler.SendTimeout {
		return fmt.Errorf("SCHEDULER_CLAIM_LEASE (%s) must be longer than SCHEDULER_SEND_TIMEOUT (%s)",
			c.Scheduler.ClaimLease, c.Scheduler.SendTimeout)
	}

	return nil
}

// GetDatabaseDSN returns PostgreSQL connection string
func (c *Config) GetDatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.DBName,
		c.Database.SSLMode,
	)
}

// GetRabbitMQURL returns RabbitMQ connection URL
func (c *Config) GetRabbitMQURL() string {
	return fmt.Sprintf(
		"amqp://%s:%s@%s:%s/",
		c.RabbitMQ.User,
		c.RabbitMQ.Password,
		c.RabbitMQ.Host,
		c.RabbitMQ.Port,
	)
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// getEnv gets environment variable or returns default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets environment variable as integer or returns default
func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvAsDuration accepts Go duration strings ("90s", "5m")
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return defaultValue
}
