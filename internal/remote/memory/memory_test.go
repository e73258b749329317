package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	remote "contabile/internal/remote/port"
)

func env(id string, version int64) remote.Envelope {
	return remote.Envelope{Entity: "transaction", RecordID: id, Operation: remote.OpUpsert, Version: version}
}

func TestPushRecords(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Push(ctx, env("a", 1)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := s.Push(ctx, env("b", 1)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 envelopes, got %d", s.Len())
	}
	if got := s.Envelopes()[0].RecordID; got != "a" {
		t.Errorf("expected first record a, got %s", got)
	}
}

func TestPushDeduplicates(t *testing.T) {
	s := New()
	ctx := context.Background()

	if err := s.Push(ctx, env("a", 1)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if err := s.Push(ctx, env("a", 1)); err != nil {
		t.Fatalf("duplicate push must succeed: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("expected duplicate to be dropped, got %d envelopes", s.Len())
	}

	// A new version of the same record is not a duplicate.
	if err := s.Push(ctx, env("a", 2)); err != nil {
		t.Fatalf("push: %v", err)
	}
	if s.Len() != 2 {
		t.Fatalf("expected 2 envelopes after version bump, got %d", s.Len())
	}
}

func TestFailNext(t *testing.T) {
	s := New()
	ctx := context.Background()
	boom := errors.New("boom")

	s.FailNext(2, boom)
	if err := s.Push(ctx, env("a", 1)); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if err := s.Push(ctx, env("a", 1)); !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}
	if err := s.Push(ctx, env("a", 1)); err != nil {
		t.Fatalf("expected recovery after injected failures: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("failed pushes must not be recorded, got %d", s.Len())
	}
}

func TestPullSince(t *testing.T) {
	s := New()
	ctx := context.Background()

	old := env("a", 1)
	old.PushedAt = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	recent := env("b", 1)
	recent.PushedAt = time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)
	for _, e := range []remote.Envelope{old, recent} {
		if err := s.Push(ctx, e); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	got, err := s.PullSince(ctx, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("PullSince: %v", err)
	}
	if len(got) != 1 || got[0].RecordID != "b" {
		t.Fatalf("expected only the recent envelope, got %v", got)
	}

	// Zero since replays the whole history.
	all, err := s.PullSince(ctx, time.Time{})
	if err != nil {
		t.Fatalf("PullSince zero: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected full history, got %d envelopes", len(all))
	}
}

func TestPing(t *testing.T) {
	if err := New().Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
