package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"spendalyzer/internal/core"
	"spendalyzer/internal/log"
)

const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"

	defaultMaxUploadSize = "10MB"
	defaultOverallBudget = "2000.00"
)

type Config struct {
	// HTTP Server
	Port             string
	MaxUploadSize    string // human size, e.g. "10MB"
	UploadsPerMinute int

	// Sessions
	DataBackend          string
	SQLiteDBPath         string
	SessionTTL           time.Duration
	SessionSweepInterval time.Duration
	MaxSessions          int

	// Budget
	OverallBudget string // initial overall budget for new sessions

	// AMQP events, disabled when AMQPURL is empty
	AMQPURL      string
	AMQPExchange string

	LogLevel string
}

func Load() *Config {
	return &Config{
		Port:             getEnv("PORT", "8081"),
		MaxUploadSize:    getEnv("MAX_UPLOAD_SIZE", defaultMaxUploadSize),
		UploadsPerMinute: getEnvInt("UPLOADS_PER_MINUTE", 30),

		DataBackend:          getEnv("DATA_BACKEND", BackendMemory),
		SQLiteDBPath:         getEnv("SQLITE_DB_PATH", "./data/spendalyzer.db"),
		SessionTTL:           getEnvDuration("SESSION_TTL", 2*time.Hour),
		SessionSweepInterval: getEnvDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),
		MaxSessions:          getEnvInt("MAX_SESSIONS", 1000),

		OverallBudget: getEnv("OVERALL_BUDGET", defaultOverallBudget),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "spendalyzer"),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if size, err := humanize.ParseBytes(c.MaxUploadSize); err != nil {
		errors = append(errors, fmt.Sprintf("invalid max upload size '%s': %v", c.MaxUploadSize, err))
	} else if size == 0 {
		errors = append(errors, "max upload size must be greater than zero")
	}

	if c.UploadsPerMinute < 1 {
		errors = append(errors, fmt.Sprintf("invalid uploads per minute %d: must be at least 1", c.UploadsPerMinute))
	}

	switch c.DataBackend {
	case BackendMemory:
		if c.MaxSessions < 1 {
			errors = append(errors, fmt.Sprintf("invalid max sessions %d: must be at least 1", c.MaxSessions))
		}
	case BackendSQLite:
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					if err := os.MkdirAll(dir, 0o755); err != nil {
						errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
					}
				}
			}
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of [%s %s]", c.DataBackend, BackendMemory, BackendSQLite))
	}

	if c.SessionTTL < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid session TTL %v: must be at least 1 minute", c.SessionTTL))
	}
	if c.SessionSweepInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid session sweep interval %v: must be at least 1 second", c.SessionSweepInterval))
	} else if c.SessionSweepInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid session sweep interval %v: must be at most 24 hours", c.SessionSweepInterval))
	}

	if _, err := core.ParseDecimalToCents(c.OverallBudget); err != nil {
		errors = append(errors, fmt.Sprintf("invalid overall budget '%s': must be a non-negative amount", c.OverallBudget))
	}

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		errors = append(errors, err.Error())
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// UploadLimit returns MaxUploadSize in bytes, or the default when it does
// not parse.
func (c *Config) UploadLimit() int64 {
	size, err := humanize.ParseBytes(c.MaxUploadSize)
	if err != nil || size == 0 {
		size, _ = humanize.ParseBytes(defaultMaxUploadSize)
	}
	return int64(size)
}

// InitialBudget returns OverallBudget as money, or the default when it does
// not parse.
func (c *Config) InitialBudget() core.Money {
	cents, err := core.ParseDecimalToCents(c.OverallBudget)
	if err != nil {
		cents, _ = core.ParseDecimalToCents(defaultOverallBudget)
	}
	return core.Money{Cents: cents}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
