// Package remote defines the outbound sync ports and their backends. The
// sync worker drains the outbox and hands each change to a Pusher; which
// Pusher is a deployment choice (hosted API, Google Sheets mirror, in-memory
// for tests, or none at all). Backends that can also replay changes or
// manage a session implement Puller and Authenticator; callers discover
// those capabilities with type assertions.
//
// The definitions live in the leaf package internal/remote/port so the
// backend subpackages and the factory here can share them without an import
// cycle; the aliases below keep the original remote.* names working.
package remote

import (
	"contabile/internal/remote/port"
)

// Envelope is one change exchanged with a remote backend. See port.Envelope.
type Envelope = port.Envelope

// Operations an envelope can carry. Values match the outbox rows the sync
// worker drains.
const (
	OpUpsert = port.OpUpsert
	OpDelete = port.OpDelete
)

// Ports for outbound adapters. See the port package for documentation.
type (
	Pusher        = port.Pusher
	Puller        = port.Puller
	Pinger        = port.Pinger
	Authenticator = port.Authenticator
)

// ErrUnauthorized reports rejected credentials. The httpapi client refreshes
// its session once on this; the worker treats a second one as permanent.
var ErrUnauthorized = port.ErrUnauthorized
