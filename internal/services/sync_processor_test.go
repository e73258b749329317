package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"contabile/internal/remote"
	"contabile/internal/remote/memory"
	"contabile/internal/storage"
)

func newTestProcessor(t *testing.T) (*SyncProcessor, *storage.Store, *memory.Store) {
	t.Helper()
	store := newTestStore(t)
	backend := memory.New()
	cfg := DefaultSyncProcessorConfig()
	cfg.PollInterval = 50 * time.Millisecond
	return NewSyncProcessor(store, backend, cfg), store, backend
}

func TestDefaultSyncProcessorConfig(t *testing.T) {
	config := DefaultSyncProcessorConfig()

	if config.PollInterval != 10*time.Second {
		t.Errorf("expected PollInterval 10s, got %v", config.PollInterval)
	}
	if config.BatchSize != 10 {
		t.Errorf("expected BatchSize 10, got %d", config.BatchSize)
	}
	if config.MaxRetries != 3 {
		t.Errorf("expected MaxRetries 3, got %d", config.MaxRetries)
	}
	if config.RetryDelay != 30*time.Second {
		t.Errorf("expected RetryDelay 30s, got %v", config.RetryDelay)
	}
	if config.StaleAge != 15*time.Minute {
		t.Errorf("expected StaleAge 15m, got %v", config.StaleAge)
	}
	if config.CleanupInterval != 1*time.Hour {
		t.Errorf("expected CleanupInterval 1h, got %v", config.CleanupInterval)
	}
	if config.CleanupAge != 24*time.Hour {
		t.Errorf("expected CleanupAge 24h, got %v", config.CleanupAge)
	}
}

func TestSyncProcessorLifecycle(t *testing.T) {
	p, _, _ := newTestProcessor(t)
	ctx := context.Background()

	if p.IsRunning() {
		t.Error("processor should not be running before Start")
	}
	if err := p.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !p.IsRunning() {
		t.Error("processor should be running after Start")
	}
	if err := p.Start(ctx); err == nil {
		t.Error("second Start should fail while running")
	}

	stopCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := p.Stop(stopCtx); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if p.IsRunning() {
		t.Error("processor should not be running after Stop")
	}
	if err := p.Stop(ctx); err != nil {
		t.Errorf("Stop on a stopped processor: %v", err)
	}
}

func TestSyncProcessorNeedsBackend(t *testing.T) {
	p := NewSyncProcessor(newTestStore(t), nil, DefaultSyncProcessorConfig())
	if err := p.Start(context.Background()); err == nil {
		t.Fatal("Start without a backend should fail")
	}
}

func TestProcessBatchPushesCiphertext(t *testing.T) {
	p, store, backend := newTestProcessor(t)
	ctx := context.Background()

	tx := sampleTransaction()
	tx.ID = "tx-1"
	if err := store.CreateTransaction(ctx, &tx); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	if n := p.processBatch(ctx); n != 1 {
		t.Fatalf("processBatch = %d, want 1", n)
	}

	envs := backend.Envelopes()
	if len(envs) != 1 {
		t.Fatalf("backend recorded %d envelopes, want 1", len(envs))
	}
	env := envs[0]
	if env.Entity != storage.EntityTransaction || env.RecordID != tx.ID {
		t.Errorf("envelope addressed %s/%s, want %s/%s",
			env.Entity, env.RecordID, storage.EntityTransaction, tx.ID)
	}
	if env.Operation != remote.OpUpsert {
		t.Errorf("Operation = %q, want %q", env.Operation, remote.OpUpsert)
	}
	if env.Version != 1 {
		t.Errorf("Version = %d, want 1", env.Version)
	}
	if !strings.HasPrefix(env.Payload, "v1:") {
		t.Errorf("payload should be a sealed envelope, got %q", env.Payload)
	}
	if strings.Contains(env.Payload, "Office chair") {
		t.Error("payload must not leak plaintext")
	}

	stats, err := p.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Completed != 1 || stats.Pending != 0 {
		t.Errorf("stats = %+v, want 1 completed and 0 pending", stats)
	}
}

func TestProcessBatchRetriesAfterFailure(t *testing.T) {
	p, store, backend := newTestProcessor(t)
	ctx := context.Background()

	tx := sampleTransaction()
	tx.ID = "tx-retry"
	if err := store.CreateTransaction(ctx, &tx); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	backend.FailNext(1, errors.New("remote flake"))
	if n := p.processBatch(ctx); n != 1 {
		t.Fatalf("processBatch = %d, want 1", n)
	}
	if backend.Len() != 0 {
		t.Fatalf("backend recorded %d envelopes, want 0 after failed push", backend.Len())
	}

	stats, err := p.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Pending != 1 {
		t.Errorf("stats = %+v, want the failed item pending for retry", stats)
	}

	// The retry time is in the future, so an immediate batch skips it.
	if n := p.processBatch(ctx); n != 0 {
		t.Errorf("item should wait out its backoff, processed %d", n)
	}
}

func TestProcessBatchUnauthorizedIsPermanent(t *testing.T) {
	p, store, backend := newTestProcessor(t)
	ctx := context.Background()

	tx := sampleTransaction()
	tx.ID = "tx-auth"
	if err := store.CreateTransaction(ctx, &tx); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}

	backend.FailNext(1, remote.ErrUnauthorized)
	if n := p.processBatch(ctx); n != 1 {
		t.Fatalf("processBatch = %d, want 1", n)
	}

	stats, err := p.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Failed != 1 {
		t.Errorf("stats = %+v, want rejected credentials to park the item", stats)
	}

	n, err := p.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed: %v", err)
	}
	if n != 1 {
		t.Errorf("RetryFailed reset %d items, want 1", n)
	}
	stats, err = p.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Pending != 1 || stats.Failed != 0 {
		t.Errorf("stats = %+v, want the item pending again", stats)
	}
}

func TestPullRemoteRestoresDeletedRecord(t *testing.T) {
	p, store, backend := newTestProcessor(t)
	ctx := context.Background()

	tx := sampleTransaction()
	tx.ID = "tx-restore"
	if err := store.CreateTransaction(ctx, &tx); err != nil {
		t.Fatalf("CreateTransaction: %v", err)
	}
	if n := p.processBatch(ctx); n != 1 {
		t.Fatalf("processBatch = %d, want 1", n)
	}
	if backend.Len() != 1 {
		t.Fatalf("backend recorded %d envelopes, want 1", backend.Len())
	}

	if err := store.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("DeleteTransaction: %v", err)
	}
	if _, err := store.GetTransaction(ctx, tx.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}

	applied, err := p.PullRemote(ctx, time.Time{})
	if err != nil {
		t.Fatalf("PullRemote: %v", err)
	}
	if applied != 1 {
		t.Errorf("applied = %d, want 1", applied)
	}

	got, err := store.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction after pull: %v", err)
	}
	if got.Description != tx.Description {
		t.Errorf("Description = %q, want %q", got.Description, tx.Description)
	}
}
