package remote

import (
	"context"
	"fmt"
	"log/slog"

	"contabile/internal/remote/httpapi"
	"contabile/internal/remote/memory"
	"contabile/internal/remote/sheets"
)

// Kind selects the sync backend.
type Kind string

const (
	KindNone    Kind = "none"
	KindHTTPAPI Kind = "httpapi"
	KindSheets  Kind = "sheets"
	KindMemory  Kind = "memory"
)

func (k Kind) String() string { return string(k) }

func (k Kind) IsValid() bool {
	switch k {
	case KindNone, KindHTTPAPI, KindSheets, KindMemory:
		return true
	default:
		return false
	}
}

// Kinds returns every valid backend kind, for config error messages.
func Kinds() []Kind {
	return []Kind{KindNone, KindHTTPAPI, KindSheets, KindMemory}
}

// Config holds backend creation settings. Only the fields of the selected
// kind are read.
type Config struct {
	Kind Kind

	// httpapi
	BaseURL  string
	Email    string
	Password string

	// sheets
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string
	TokenJSON       string
	TokenFile       string
}

func (c Config) Validate() error {
	if !c.Kind.IsValid() {
		return fmt.Errorf("invalid remote backend kind: %s", c.Kind)
	}
	switch c.Kind {
	case KindHTTPAPI:
		if c.BaseURL == "" {
			return fmt.Errorf("remote base URL is required for the httpapi backend")
		}
		if c.Email == "" || c.Password == "" {
			return fmt.Errorf("remote email and password are required for the httpapi backend")
		}
	case KindSheets:
		if c.SpreadsheetID == "" {
			return fmt.Errorf("spreadsheet ID is required for the sheets backend")
		}
		if c.CredentialsJSON == "" && c.CredentialsFile == "" {
			return fmt.Errorf("either inline credentials JSON or a credentials file is required for the sheets backend")
		}
	}
	return nil
}

// CleanupFunc releases backend resources.
type CleanupFunc func() error

// New builds the configured Pusher. KindNone returns a nil Pusher: callers
// skip sync entirely when no backend is configured.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Pusher, CleanupFunc, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}

	switch cfg.Kind {
	case KindNone:
		logger.Info("Sync disabled, no remote backend configured")
		return nil, nil, nil

	case KindHTTPAPI:
		cli := httpapi.New(httpapi.Config{
			BaseURL:  cfg.BaseURL,
			Email:    cfg.Email,
			Password: cfg.Password,
		})
		logger.Info("Initialized hosted API backend", "base_url", cfg.BaseURL)
		return cli, cli.Close, nil

	case KindSheets:
		cli, err := sheets.New(ctx, sheets.Config{
			SpreadsheetID:   cfg.SpreadsheetID,
			SheetName:       cfg.SheetName,
			CredentialsJSON: cfg.CredentialsJSON,
			CredentialsFile: cfg.CredentialsFile,
			TokenJSON:       cfg.TokenJSON,
			TokenFile:       cfg.TokenFile,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("initialize sheets backend: %w", err)
		}
		logger.Info("Initialized Google Sheets mirror backend",
			"spreadsheet_id", cfg.SpreadsheetID,
			"sheet", cfg.SheetName)
		return cli, nil, nil

	case KindMemory:
		store := memory.New()
		logger.Info("Initialized in-memory backend")
		return store, nil, nil

	default:
		return nil, nil, fmt.Errorf("unsupported remote backend kind: %s", cfg.Kind)
	}
}
