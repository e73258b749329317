// Package memory is the in-process sync backend used by tests and local
// development: it records every pushed envelope, replays them on request,
// and can be told to fail.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	remote "contabile/internal/remote/port"
)

type Store struct {
	mu        sync.Mutex
	envelopes []remote.Envelope
	failures  int
	lastErr   error
}

// Interface conformance
var (
	_ remote.Pusher = (*Store)(nil)
	_ remote.Puller = (*Store)(nil)
	_ remote.Pinger = (*Store)(nil)
)

func New() *Store {
	return &Store{}
}

// Push records the envelope. Envelopes already seen with the same entity,
// record id and version are dropped, mimicking an idempotent remote.
func (s *Store) Push(_ context.Context, env remote.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		if s.lastErr != nil {
			return s.lastErr
		}
		return fmt.Errorf("injected push failure")
	}
	for _, seen := range s.envelopes {
		if seen.Entity == env.Entity && seen.RecordID == env.RecordID &&
			seen.Version == env.Version && seen.Operation == env.Operation {
			return nil
		}
	}
	s.envelopes = append(s.envelopes, env)
	return nil
}

// PullSince replays recorded envelopes pushed after since, in push order. A
// zero since replays everything.
func (s *Store) PullSince(_ context.Context, since time.Time) ([]remote.Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []remote.Envelope
	for _, env := range s.envelopes {
		if env.PushedAt.After(since) {
			out = append(out, env)
		}
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error {
	return nil
}

// FailNext makes the next n pushes return err (or a generic error when err
// is nil).
func (s *Store) FailNext(n int, err error) {
	s.mu.Lock()
	s.failures = n
	s.lastErr = err
	s.mu.Unlock()
}

// Envelopes returns a copy of everything recorded so far.
func (s *Store) Envelopes() []remote.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]remote.Envelope, len(s.envelopes))
	copy(out, s.envelopes)
	return out
}

// Len reports how many envelopes were recorded.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.envelopes)
}
