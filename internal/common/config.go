package common

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/cv-extractor/constants"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	LLM      LLMConfig
	Queue    QueueConfig
	Session  SessionConfig
	Ingest   IngestConfig
}

// DatabaseConfig holds database-related configuration.
// DSN selects Postgres; otherwise SQLitePath is used.
type DatabaseConfig struct {
	DSN              string
	SQLitePath       string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	BaseURL           string
	APIKey            string
	Models            []string
	Temperature       float32
	Timeout           time.Duration
	MaxRetries        int
	InitialBackoff    time.Duration
	MaxBackoff        time.Duration
	RequestsPerMinute int
}

// QueueConfig holds processing queue configuration
type QueueConfig struct {
	PollInterval    time.Duration
	MinutesPerJob   int
	JobTimeout      time.Duration
	Retention       time.Duration
	CleanupInterval time.Duration
	StatsWindow     time.Duration
}

// SessionConfig holds session memory configuration
type SessionConfig struct {
	TTL time.Duration
}

// IngestConfig holds the optional directory watcher configuration
type IngestConfig struct {
	WatchDir   string
	UserID     string
	Extensions []string
	Debounce   time.Duration
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			SQLitePath:       getEnv("SQLITE_PATH", "cv-extractor.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 10),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 2),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		LLM: LLMConfig{
			BaseURL:           getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:            getEnv("LLM_API_KEY", getEnv("OPENAI_API_KEY", "")),
			Models:            getEnvAsList("LLM_MODELS", []string{"gpt-4o-mini", "gpt-4o", "gpt-3.5-turbo"}),
			Temperature:       getEnvAsFloat32("LLM_TEMPERATURE", 0.1),
			Timeout:           getEnvAsDuration("LLM_TIMEOUT", 45*time.Second),
			MaxRetries:        getEnvAsInt("LLM_MAX_RETRIES", 3),
			InitialBackoff:    getEnvAsDuration("LLM_INITIAL_BACKOFF", time.Second),
			MaxBackoff:        getEnvAsDuration("LLM_MAX_BACKOFF", 10*time.Second),
			RequestsPerMinute: getEnvAsInt("LLM_REQUESTS_PER_MINUTE", 60),
		},
		Queue: QueueConfig{
			PollInterval:    getEnvAsDuration("QUEUE_POLL_INTERVAL", constants.DefaultPollInterval),
			MinutesPerJob:   getEnvAsInt("QUEUE_MINUTES_PER_JOB", constants.DefaultMinutesPerJob),
			JobTimeout:      getEnvAsDuration("QUEUE_JOB_TIMEOUT", constants.DefaultJobTimeout),
			Retention:       getEnvAsDuration("QUEUE_RETENTION", constants.DefaultRetention),
			CleanupInterval: getEnvAsDuration("QUEUE_CLEANUP_INTERVAL", constants.DefaultCleanupInterval),
			StatsWindow:     getEnvAsDuration("QUEUE_STATS_WINDOW", constants.DefaultStatsWindow),
		},
		Session: SessionConfig{
			TTL: getEnvAsDuration("SESSION_TTL", constants.DefaultSessionTTL),
		},
		Ingest: IngestConfig{
			WatchDir:   getEnv("INGEST_WATCH_DIR", ""),
			UserID:     getEnv("INGEST_USER_ID", ""),
			Extensions: getEnvAsList("INGEST_EXTENSIONS", nil),
			Debounce:   getEnvAsDuration("INGEST_DEBOUNCE", 500*time.Millisecond),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 32); err == nil {
			return float32(floatVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// getEnvAsList splits a comma separated value, dropping blanks.
func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Database.DSN == "" && c.Database.SQLitePath == "" {
		return NewAppError("CONFIG_ERROR", "DB_URL or SQLITE_PATH is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError("CONFIG_ERROR", "LLM_API_KEY is required", ErrInvalidInput)
	}
	if len(c.LLM.Models) == 0 {
		return NewAppError("CONFIG_ERROR", "LLM_MODELS must name at least one model", ErrInvalidInput)
	}
	if c.LLM.MaxRetries < 0 {
		return NewAppError("CONFIG_ERROR", "LLM_MAX_RETRIES must not be negative", ErrInvalidInput)
	}
	if c.Server.GRPCAddr == "" {
		return NewAppError("CONFIG_ERROR", "GRPC_ADDR is required", ErrInvalidInput)
	}
	if c.Queue.PollInterval <= 0 {
		return NewAppError("CONFIG_ERROR", "QUEUE_POLL_INTERVAL must be positive", ErrInvalidInput)
	}
	if c.Queue.MinutesPerJob <= 0 {
		return NewAppError("CONFIG_ERROR", "QUEUE_MINUTES_PER_JOB must be positive", ErrInvalidInput)
	}
	if c.Ingest.WatchDir != "" && c.Ingest.UserID == "" {
		return NewAppError("CONFIG_ERROR", "INGEST_USER_ID is required with INGEST_WATCH_DIR", ErrInvalidInput)
	}
	return nil
}
