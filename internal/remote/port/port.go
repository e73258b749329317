// Package port defines the outbound sync ports shared by the remote
// backends. It is a leaf package so the backend implementations and the
// factory in package remote can both depend on it without a cycle; package
// remote re-exports everything here under its original names.
//
// The sync worker drains the outbox and hands each change to a Pusher; which
// sync worker drains the outbox and hands each change to a Pusher; which
// Pusher is a deployment choice (hosted API, Google Sheets mirror, in-memory
// for tests, or none at all). Backends that can also replay changes or
// manage a session implement Puller and Authenticator; callers discover
// those capabilities with type assertions.
package port

import (
	"context"
	"errors"
	"time"
)

// Envelope is one change exchanged with a remote backend. Payload is the
// sealed vault envelope straight out of the outbox: the remote stores and
// returns ciphertext it cannot read, and only another holder of the vault
// key opens it. Delete tombstones carry no payload. (Entity, RecordID,
// Version) identifies the change, so replaying an envelope must be a no-op
// remotely.
type Envelope struct {
	Entity    string    `json:"entity"`
	RecordID  string    `json:"record_id"`
	Operation string    `json:"operation"`
	Version   int64     `json:"version"`
	Payload   string    `json:"payload,omitempty"`
	PushedAt  time.Time `json:"pushed_at"`
}

// Operations an envelope can carry. Values match the outbox rows the sync
// worker drains.
const (
	OpUpsert = "upsert"
	OpDelete = "delete"
)

// Ports for outbound adapters.
type (
	Pusher interface {
		Push(ctx context.Context, env Envelope) error
	}

	// Puller is implemented by backends that can replay changes back, used
	// to backfill a fresh database from the remote copy.
	Puller interface {
		PullSince(ctx context.Context, since time.Time) ([]Envelope, error)
	}

	// Pinger is implemented by backends that can be health-checked before
	// the worker starts draining.
	Pinger interface {
		Ping(ctx context.Context) error
	}

	// Authenticator is implemented by backends with a user session. SignIn
	// trades the configured credentials for a session; SignOut invalidates
	// it. RequestPasswordReset works without a session.
	Authenticator interface {
		SignIn(ctx context.Context) error
		SignOut(ctx context.Context) error
		RequestPasswordReset(ctx context.Context, email string) error
	}
)

// ErrUnauthorized reports rejected credentials. The httpapi client refreshes
// its session once on this; the worker treats a second one as permanent.
var ErrUnauthorized = errors.New("remote rejected credentials")
