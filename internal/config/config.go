// Package config loads and validates process configuration from the
// environment. Every knob has a default that works for a local-first
// setup: SQLite under ./data, no broker, no remote backend.
package config

import (
	"encoding/hex"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"contabile/internal/remote"
)

type Config struct {
	// HTTP Server
	Port string

	// Ledger database
	DBPath     string
	Passphrase string
	VaultSalt  string

	// AMQP sync nudges. Empty URL disables messaging entirely.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Remote backend selection
	RemoteBackend  string
	RemoteURL      string
	RemoteEmail    string
	RemotePassword string

	// Google Sheets mirror
	GoogleSpreadsheetID   string
	GoogleSheetName       string
	GoogleCredentialsFile string
	GoogleCredentialsJSON string
	GoogleTokenFile       string
	GoogleTokenJSON       string

	// Sync worker
	SyncPollInterval time.Duration
	SyncBatchSize    int
	SyncMaxRetries   int
	SyncRetryDelay   time.Duration
	SyncPullOnStart  bool

	// Background sweeps
	RecurringInterval time.Duration
	OverdueInterval   time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8081"),

		DBPath:     getEnv("CONTABILE_DB_PATH", "./data/contabile.db"),
		Passphrase: getEnv("LEDGER_PASSPHRASE", ""),
		VaultSalt:  getEnv("CONTABILE_VAULT_SALT", ""),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "contabile"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_requests"),

		RemoteBackend:  getEnv("REMOTE_BACKEND", "none"),
		RemoteURL:      getEnv("REMOTE_URL", ""),
		RemoteEmail:    getEnv("REMOTE_EMAIL", ""),
		RemotePassword: getEnv("REMOTE_PASSWORD", ""),

		GoogleSpreadsheetID:   getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:       getEnv("GOOGLE_SHEET_NAME", ""),
		GoogleCredentialsFile: getEnv("GOOGLE_CREDENTIALS_FILE", ""),
		GoogleCredentialsJSON: getEnv("GOOGLE_CREDENTIALS_JSON", ""),
		GoogleTokenFile:       getEnv("GOOGLE_TOKEN_FILE", ""),
		GoogleTokenJSON:       getEnv("GOOGLE_TOKEN_JSON", ""),

		SyncPollInterval: getEnvDuration("SYNC_POLL_INTERVAL", 10*time.Second),
		SyncBatchSize:    getEnvInt("SYNC_BATCH_SIZE", 10),
		SyncMaxRetries:   getEnvInt("SYNC_MAX_RETRIES", 3),
		SyncRetryDelay:   getEnvDuration("SYNC_RETRY_DELAY", 30*time.Second),
		SyncPullOnStart:  getEnvBool("SYNC_PULL_ON_START", false),

		RecurringInterval: getEnvDuration("RECURRING_SWEEP_INTERVAL", time.Hour),
		OverdueInterval:   getEnvDuration("OVERDUE_SWEEP_INTERVAL", 6*time.Hour),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate ledger database
	if c.DBPath == "" {
		errors = append(errors, "ledger database path cannot be empty")
	} else {
		dir := filepath.Dir(c.DBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create ledger database directory '%s': %v", dir, err))
				}
			}
		}
	}

	if c.Passphrase == "" {
		errors = append(errors, "LEDGER_PASSPHRASE is required: the ledger database is encrypted with it")
	}

	if c.VaultSalt != "" {
		if _, err := hex.DecodeString(c.VaultSalt); err != nil {
			errors = append(errors, fmt.Sprintf("invalid vault salt: must be the hex string shown in settings on the paired device: %v", err))
		}
	}

	// Validate remote backend selection
	kind := remote.Kind(c.RemoteBackend)
	if !kind.IsValid() {
		errors = append(errors, fmt.Sprintf("invalid remote backend '%s': must be one of %v", c.RemoteBackend, remote.Kinds()))
	}

	if kind == remote.KindHTTPAPI {
		if c.RemoteURL == "" {
			errors = append(errors, "REMOTE_URL is required when using the httpapi backend")
		} else if parsedURL, err := url.Parse(c.RemoteURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid remote URL '%s': %v", c.RemoteURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid remote URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
		if c.RemoteEmail == "" {
			errors = append(errors, "REMOTE_EMAIL is required when using the httpapi backend")
		}
		if c.RemotePassword == "" {
			errors = append(errors, "REMOTE_PASSWORD is required when using the httpapi backend")
		}
	}

	// Validate Google Sheets configuration if backend is sheets
	if kind == remote.KindSheets {
		if c.GoogleSpreadsheetID == "" {
			errors = append(errors, "GOOGLE_SPREADSHEET_ID is required when using the sheets backend")
		}

		hasCredsFile := c.GoogleCredentialsFile != ""
		hasCredsJSON := c.GoogleCredentialsJSON != ""
		if !hasCredsFile && !hasCredsJSON {
			errors = append(errors, "either GOOGLE_CREDENTIALS_FILE or GOOGLE_CREDENTIALS_JSON must be provided for the sheets backend")
		}

		if hasCredsFile {
			if _, err := os.Stat(c.GoogleCredentialsFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google credentials file does not exist: %s", c.GoogleCredentialsFile))
			}
		}

		if c.GoogleTokenFile != "" {
			if _, err := os.Stat(c.GoogleTokenFile); os.IsNotExist(err) {
				errors = append(errors, fmt.Sprintf("Google OAuth token file does not exist: %s", c.GoogleTokenFile))
			}
		}
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}

		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate sync worker configuration
	if c.SyncBatchSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at least 1", c.SyncBatchSize))
	} else if c.SyncBatchSize > 1000 {
		errors = append(errors, fmt.Sprintf("invalid sync batch size %d: must be at most 1000", c.SyncBatchSize))
	}

	if c.SyncPollInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync poll interval %v: must be at least 1 second", c.SyncPollInterval))
	} else if c.SyncPollInterval > 24*time.Hour {
		errors = append(errors, fmt.Sprintf("invalid sync poll interval %v: must be at most 24 hours", c.SyncPollInterval))
	}

	if c.SyncMaxRetries < 1 {
		errors = append(errors, fmt.Sprintf("invalid sync max retries %d: must be at least 1", c.SyncMaxRetries))
	} else if c.SyncMaxRetries > 100 {
		errors = append(errors, fmt.Sprintf("invalid sync max retries %d: must be at most 100", c.SyncMaxRetries))
	}

	if c.SyncRetryDelay < time.Second {
		errors = append(errors, fmt.Sprintf("invalid sync retry delay %v: must be at least 1 second", c.SyncRetryDelay))
	}

	// Validate background sweeps
	if c.RecurringInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid recurring sweep interval %v: must be at least 1 minute", c.RecurringInterval))
	}
	if c.OverdueInterval < time.Minute {
		errors = append(errors, fmt.Sprintf("invalid overdue sweep interval %v: must be at least 1 minute", c.OverdueInterval))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

// RemoteConfig maps the flat environment fields onto the remote backend
// factory's config.
func (c *Config) RemoteConfig() remote.Config {
	return remote.Config{
		Kind:            remote.Kind(c.RemoteBackend),
		BaseURL:         c.RemoteURL,
		Email:           c.RemoteEmail,
		Password:        c.RemotePassword,
		SpreadsheetID:   c.GoogleSpreadsheetID,
		SheetName:       c.GoogleSheetName,
		CredentialsJSON: c.GoogleCredentialsJSON,
		CredentialsFile: c.GoogleCredentialsFile,
		TokenJSON:       c.GoogleTokenJSON,
		TokenFile:       c.GoogleTokenFile,
	}
}

// MessagingEnabled reports whether an AMQP broker is configured. Without
// one the app still works: writes land in the outbox and the worker's poll
// ticker picks them up.
func (c *Config) MessagingEnabled() bool {
	return c.AMQPURL != ""
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

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}
