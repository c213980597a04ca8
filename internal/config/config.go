package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	applog "fintrack/internal/log"
)

type Config struct {
	// Database
	SQLiteDBPath string

	// Logging
	LogLevel string

	// AMQP (empty URL disables remote sync)
	AMQPURL          string
	AMQPExchange     string
	AMQPChangesQueue string
	AMQPRestoreQueue string

	// Live query result cache
	ResultCacheSize int
	ResultCacheTTL  time.Duration

	// Metrics (empty address disables the endpoint)
	MetricsAddr string

	// Owner stamped on transactions created from the CLI
	DefaultUserID string
}

func Load() *Config {
	return &Config{
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/fintrack.db"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),

		AMQPURL:          getEnv("AMQP_URL", ""),
		AMQPExchange:     getEnv("AMQP_EXCHANGE", "fintrack"),
		AMQPChangesQueue: getEnv("AMQP_CHANGES_QUEUE", "fintrack_changes"),
		AMQPRestoreQueue: getEnv("AMQP_RESTORE_QUEUE", "fintrack_restore"),

		ResultCacheSize: getEnvInt("RESULT_CACHE_SIZE", 256),
		ResultCacheTTL:  getEnvDuration("RESULT_CACHE_TTL", 5*time.Minute),

		MetricsAddr:   getEnv("METRICS_ADDR", ""),
		DefaultUserID: getEnv("DEFAULT_USER_ID", "local"),
	}
}

// AMQPEnabled reports whether remote sync is configured.
func (c *Config) AMQPEnabled() bool {
	return c.AMQPURL != ""
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		// Check if directory exists or can be created
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if _, err := applog.ParseLevel(c.LogLevel); err != nil {
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
		if c.AMQPChangesQueue == "" {
			errors = append(errors, "AMQP changes queue cannot be empty when AMQP URL is provided")
		}
		if c.AMQPRestoreQueue == "" {
			errors = append(errors, "AMQP restore queue cannot be empty when AMQP URL is provided")
		}
		if c.AMQPChangesQueue != "" && c.AMQPChangesQueue == c.AMQPRestoreQueue {
			errors = append(errors, fmt.Sprintf("AMQP changes and restore queues must differ, both are '%s'", c.AMQPChangesQueue))
		}
	}

	if c.ResultCacheSize < 0 {
		errors = append(errors, fmt.Sprintf("invalid result cache size %d: must not be negative", c.ResultCacheSize))
	}
	if c.ResultCacheSize > 0 && c.ResultCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid result cache TTL %v: must be at least 1 second", c.ResultCacheTTL))
	}

	if c.MetricsAddr != "" {
		if _, port, err := net.SplitHostPort(c.MetricsAddr); err != nil {
			errors = append(errors, fmt.Sprintf("invalid metrics address '%s': %v", c.MetricsAddr, err))
		} else if p, err := strconv.Atoi(port); err != nil || p < 1 || p > 65535 {
			errors = append(errors, fmt.Sprintf("invalid metrics port '%s': must be between 1 and 65535", port))
		}
	}

	if strings.TrimSpace(c.DefaultUserID) == "" {
		errors = append(errors, "default user ID cannot be empty")
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
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
