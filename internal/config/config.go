// Package config loads process configuration from the environment, the
// same way the teacher's postgres.Config and kafka.Config pull their
// settings: one getEnv/getEnvX helper family, sane defaults, no file
// parsing.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every tunable named in spec.md §6 plus the
// teacher's pre-existing DB_*, KAFKA_*, SERVER_* and LOG_* knobs.
type Config struct {
	Environment string
	Server      ServerConfig
	Logging     LoggingConfig
	Database    DatabaseConfig
	Kafka       KafkaConfig
	Saga        SagaConfig
	CORS        CORSConfig
}

type ServerConfig struct {
	Port string
}

type CORSConfig struct {
	AllowOrigins     []string
	AllowHeaders     []string
	AllowMethods     []string
	AllowCredentials bool
}

type LoggingConfig struct {
	Level  string
	Format string
}

type DatabaseConfig struct {
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime string
}

func (c DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type KafkaConfig struct {
	Enabled  bool
	Brokers  []string
	ClientID string
}

// SagaConfig carries the outbox/idempotency tuning knobs named in
// spec.md §6.
type SagaConfig struct {
	WorkerCount            int
	EmptyQueueDelay        time.Duration
	LeaseTTL               time.Duration
	TransientConflictDelay time.Duration
	LostLeaseDelay         time.Duration
	MaxAttemptsBeforeDLQ   int
	StepLeaseDefault       time.Duration
	OverdraftLimitCents    int64
	CreditAmountLimitCents int64
}

// Load builds a Config from the environment, falling back to the
// teacher's development defaults where the operator hasn't overridden
// them.
func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "text"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			Database:        getEnv("DB_NAME", "sagas"),
			User:            getEnv("DB_USER", "sagas"),
			Password:        getEnv("DB_PASSWORD", "sagas_secure_pass"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnv("DB_CONN_MAX_LIFETIME", "30m"),
		},
		Kafka: KafkaConfig{
			Enabled:  getEnv("KAFKA_ENABLED", "true") != "false",
			Brokers:  strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
			ClientID: getEnv("KAFKA_CLIENT_ID", "saga-orchestrator"),
		},
		Saga: SagaConfig{
			WorkerCount:            getEnvAsInt("OUTBOX_WORKER_COUNT", 4),
			EmptyQueueDelay:        getEnvAsDuration("OUTBOX_EMPTY_QUEUE_DELAY", time.Second),
			LeaseTTL:               getEnvAsDuration("OUTBOX_LEASE_TTL", 30*time.Second),
			TransientConflictDelay: getEnvAsDuration("OUTBOX_TRANSIENT_CONFLICT_DELAY", 2*time.Second),
			LostLeaseDelay:         getEnvAsDuration("OUTBOX_LOST_LEASE_DELAY", 5*time.Second),
			MaxAttemptsBeforeDLQ:   getEnvAsInt("OUTBOX_MAX_ATTEMPTS_BEFORE_DLQ", 10),
			StepLeaseDefault:       getEnvAsDuration("STEP_LEASE_DEFAULT", 2*time.Minute),
			OverdraftLimitCents:    int64(getEnvAsInt("LEDGER_OVERDRAFT_LIMIT_CENTS", -50000)),
			CreditAmountLimitCents: int64(getEnvAsInt("SAGA_CREDIT_AMOUNT_LIMIT_CENTS", 100000)),
		},
		CORS: CORSConfig{
			AllowOrigins:     strings.Split(getEnv("CORS_ALLOW_ORIGINS", "*"), ","),
			AllowHeaders:     strings.Split(getEnv("CORS_ALLOW_HEADERS", "Content-Type,Authorization"), ","),
			AllowMethods:     strings.Split(getEnv("CORS_ALLOW_METHODS", "GET,POST,OPTIONS"), ","),
			AllowCredentials: getEnv("CORS_ALLOW_CREDENTIALS", "false") == "true",
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
