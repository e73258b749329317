// Package httpapi talks to the hosted sync API: record pushes, change
// pulls, and the account session around them. The client signs in with
// email and password, keeps the bearer token for the session, and refreshes
// it once when the remote answers 401.
package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	remote "contabile/internal/remote/port"
)

const defaultTimeout = 30 * time.Second

type Config struct {
	BaseURL  string
	Email    string
	Password string
	Timeout  time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client

	mu    sync.Mutex
	token string
}

// Interface conformance
var (
	_ remote.Pusher        = (*Client)(nil)
	_ remote.Puller        = (*Client)(nil)
	_ remote.Pinger        = (*Client)(nil)
	_ remote.Authenticator = (*Client)(nil)
)

func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// recordBody is the PUT body for one record version. Payload is the sealed
// ciphertext; the remote stores it without being able to read it.
type recordBody struct {
	Version  int64     `json:"version"`
	Deleted  bool      `json:"deleted"`
	Payload  string    `json:"payload,omitempty"`
	PushedAt time.Time `json:"pushed_at"`
}

// changeRecord is one entry of the GET /v1/changes response.
type changeRecord struct {
	Entity    string    `json:"entity"`
	RecordID  string    `json:"record_id"`
	Version   int64     `json:"version"`
	Deleted   bool      `json:"deleted"`
	Payload   string    `json:"payload,omitempty"`
	ChangedAt time.Time `json:"changed_at"`
}

// Push sends one envelope as a PUT keyed by entity and record id. A 409
// from the remote means this (record, version) was already applied and
// counts as success, keeping replays idempotent.
func (c *Client) Push(ctx context.Context, env remote.Envelope) error {
	body, err := json.Marshal(recordBody{
		Version:  env.Version,
		Deleted:  env.Operation == remote.OpDelete,
		Payload:  env.Payload,
		PushedAt: env.PushedAt,
	})
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}

	path := "/v1/records/" + url.PathEscape(env.Entity) + "/" + url.PathEscape(env.RecordID)
	status, respBody, err := c.authedDo(ctx, http.MethodPut, path, body)
	if err != nil {
		return err
	}
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusConflict:
		// Already applied remotely.
		return nil
	case status == http.StatusUnauthorized:
		return remote.ErrUnauthorized
	default:
		return fmt.Errorf("push record failed: status %d: %s", status, truncate(respBody, 200))
	}
}

// PullSince fetches every change the remote saw after since. A zero since
// asks for the full history, which is how a fresh database backfills.
func (c *Client) PullSince(ctx context.Context, since time.Time) ([]remote.Envelope, error) {
	path := "/v1/changes"
	if !since.IsZero() {
		path += "?since=" + url.QueryEscape(since.UTC().Format(time.RFC3339))
	}

	status, body, err := c.authedDo(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusUnauthorized:
		return nil, remote.ErrUnauthorized
	case status < 200 || status >= 300:
		return nil, fmt.Errorf("pull changes failed: status %d: %s", status, truncate(body, 200))
	}

	var out struct {
		Changes []changeRecord `json:"changes"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("decode changes: %w", err)
	}

	envs := make([]remote.Envelope, 0, len(out.Changes))
	for _, ch := range out.Changes {
		op := remote.OpUpsert
		if ch.Deleted {
			op = remote.OpDelete
		}
		envs = append(envs, remote.Envelope{
			Entity:    ch.Entity,
			RecordID:  ch.RecordID,
			Operation: op,
			Version:   ch.Version,
			Payload:   ch.Payload,
			PushedAt:  ch.ChangedAt,
		})
	}
	return envs, nil
}

// SignIn discards any held session and trades the configured credentials
// for a fresh one.
func (c *Client) SignIn(ctx context.Context) error {
	c.clearToken()
	_, err := c.ensureToken(ctx)
	return err
}

// SignOut invalidates the session token. A 401 back means the token was
// already dead, which is the goal.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	token := c.token
	c.token = ""
	c.mu.Unlock()
	if token == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/auth/signout", nil)
	if err != nil {
		return fmt.Errorf("build signout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}
	defer resp.Body.Close()
	if (resp.StatusCode >= 200 && resp.StatusCode < 300) || resp.StatusCode == http.StatusUnauthorized {
		return nil
	}
	return fmt.Errorf("sign out failed: status %d", resp.StatusCode)
}

// RequestPasswordReset asks the remote to mail a reset link. Works without
// a session: resets are requested exactly when signing in is impossible.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return fmt.Errorf("encode reset request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/auth/reset", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build reset request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request password reset: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("password reset request failed: status %d", resp.StatusCode)
	}
	return nil
}

// Ping checks the remote is reachable and the credentials work.
func (c *Client) Ping(ctx context.Context) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/v1/health", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("health check: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check failed: status %d", resp.StatusCode)
	}
	return nil
}

// Close drops idle connections. The session token needs no teardown.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// authedDo sends a request with the session token, logging in again once if
// the token has expired.
func (c *Client) authedDo(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	for attempt := 0; attempt < 2; attempt++ {
		token, err := c.ensureToken(ctx)
		if err != nil {
			return 0, nil, err
		}

		var rd io.Reader
		if body != nil {
			rd = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, rd)
		if err != nil {
			return 0, nil, fmt.Errorf("build request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.http.Do(req)
		if err != nil {
			return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		respBody, _ := io.ReadAll(resp.Body)
		resp.Body.Close()

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			c.clearToken()
			continue
		}
		return resp.StatusCode, respBody, nil
	}
	return http.StatusUnauthorized, nil, nil
}

func (c *Client) ensureToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" {
		return c.token, nil
	}

	creds, err := json.Marshal(map[string]string{
		"email":    c.cfg.Email,
		"password": c.cfg.Password,
	})
	if err != nil {
		return "", fmt.Errorf("encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/auth/signin", bytes.NewReader(creds))
	if err != nil {
		return "", fmt.Errorf("build signin request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("sign in: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return "", remote.ErrUnauthorized
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("sign in failed: status %d: %s", resp.StatusCode, truncate(body, 200))
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode signin response: %w", err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("signin response missing token")
	}
	c.token = out.Token
	return c.token, nil
}

func (c *Client) clearToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func truncate(b []byte, n int) string {
	s := strings.TrimSpace(string(b))
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
