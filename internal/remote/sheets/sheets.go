// Package sheets mirrors ledger changes into a Google spreadsheet, one row
// per pushed envelope. The sheet is an append-only log, not a queryable
// copy: row metadata shows what changed and when, while the record itself
// stays sealed ciphertext.
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	remote "contabile/internal/remote/port"
)

const defaultSheetName = "Ledger"

type Config struct {
	SpreadsheetID   string
	SheetName       string
	CredentialsJSON string
	CredentialsFile string

	// Token for the OAuth client flow. Ignored for service account keys.
	TokenJSON string
	TokenFile string
}

type Client struct {
	svc           *gsheet.Service
	spreadsheetID string
	sheetName     string
}

// Interface conformance
var _ remote.Pusher = (*Client)(nil)

// New builds a Sheets mirror. Credentials may be a service account key or
// an OAuth client config; the latter also needs a stored token, minted once
// with the oauth-init tool.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.SpreadsheetID) == "" {
		return nil, errors.New("missing spreadsheet ID")
	}
	sheetName := strings.TrimSpace(cfg.SheetName)
	if sheetName == "" {
		sheetName = defaultSheetName
	}

	credentials, err := readInlineOrFile(cfg.CredentialsJSON, cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	if credentials == nil {
		return nil, errors.New("missing credentials: provide a service account key or an OAuth client config")
	}

	authOpts, err := authOptions(ctx, credentials, cfg)
	if err != nil {
		return nil, err
	}

	svc, err := gsheet.NewService(ctx, authOpts...)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	return &Client{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		sheetName:     sheetName,
	}, nil
}

// authOptions picks the auth flow the credentials call for.
func authOptions(ctx context.Context, credentials []byte, cfg Config) ([]goption.ClientOption, error) {
	var shape struct {
		Type      string          `json:"type"`
		Installed json.RawMessage `json:"installed"`
		Web       json.RawMessage `json:"web"`
	}
	if err := json.Unmarshal(credentials, &shape); err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}

	switch {
	case shape.Type == "service_account":
		return []goption.ClientOption{
			goption.WithCredentialsJSON(credentials),
			goption.WithScopes(gsheet.SpreadsheetsScope),
		}, nil

	case len(shape.Installed) > 0 || len(shape.Web) > 0:
		oauthCfg, err := google.ConfigFromJSON(credentials, gsheet.SpreadsheetsScope)
		if err != nil {
			return nil, fmt.Errorf("parse oauth client config: %w", err)
		}
		tokenBytes, err := readInlineOrFile(cfg.TokenJSON, cfg.TokenFile)
		if err != nil {
			return nil, fmt.Errorf("read oauth token: %w", err)
		}
		if tokenBytes == nil {
			return nil, errors.New("missing oauth token: run the oauth-init tool to authorize once")
		}
		var token oauth2.Token
		if err := json.Unmarshal(tokenBytes, &token); err != nil {
			return nil, fmt.Errorf("parse oauth token: %w", err)
		}
		return []goption.ClientOption{
			goption.WithTokenSource(oauthCfg.TokenSource(ctx, &token)),
		}, nil

	default:
		return nil, errors.New("unrecognized credentials: want a service account key or an OAuth client config")
	}
}

func readInlineOrFile(inline, path string) ([]byte, error) {
	switch {
	case strings.TrimSpace(inline) != "":
		return []byte(inline), nil
	case strings.TrimSpace(path) != "":
		return os.ReadFile(path)
	default:
		return nil, nil
	}
}

// Push appends the envelope as one row: record id, entity, operation,
// version, synced-at, ciphertext. Replays append duplicate rows; the log is
// reconciled by (record id, version), so extra rows are harmless.
func (c *Client) Push(ctx context.Context, env remote.Envelope) error {
	if c.svc == nil {
		return errors.New("sheets service not initialized")
	}

	row := []any{
		env.RecordID,
		env.Entity,
		env.Operation,
		env.Version,
		env.PushedAt.UTC().Format("2006-01-02 15:04:05"),
		env.Payload,
	}
	vr := &gsheet.ValueRange{Values: [][]any{row}}

	rng := fmt.Sprintf("%s!A:F", c.sheetName)
	_, err := c.svc.Spreadsheets.Values.Append(c.spreadsheetID, rng, vr).
		ValueInputOption("RAW").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("append to sheet %s: %w", c.sheetName, err)
	}
	return nil
}
