// Package cli holds the startup plumbing shared by cmd/contabile,
// cmd/contabile-worker and cmd/recurring-worker.
package cli

import (
	"errors"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"contabile/internal/config"
	"contabile/internal/log"
	"contabile/internal/storage"
)

// SetupLogger builds the binary's component logger and installs it as the
// process default so packages logging through plain slog share the handler.
func SetupLogger(component string) *log.Logger {
	logger := log.New(log.Config{
		Level:     slog.LevelInfo,
		Component: component,
	})
	log.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// OpenStore opens the encrypted ledger database or exits the process. A
// passphrase mismatch gets its own message: it is the one failure the
// operator fixes without reading SQL errors.
func OpenStore(logger *log.Logger, cfg *config.Config) *storage.Store {
	store, err := storage.OpenWithSalt(cfg.DBPath, cfg.Passphrase, cfg.VaultSalt)
	if err != nil {
		if errors.Is(err, storage.ErrWrongPassphrase) {
			logger.Error("Ledger passphrase does not match this database", "path", cfg.DBPath)
		} else {
			logger.Error("Failed to open ledger database", log.FieldError, err, "path", cfg.DBPath)
		}
		os.Exit(1)
	}
	return store
}
