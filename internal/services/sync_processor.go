package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"contabile/internal/remote"
	"contabile/internal/storage"
)

// SyncProcessorConfig holds configuration for the sync processor.
type SyncProcessorConfig struct {
	// PollInterval is how often to check for pending items (default: 10s)
	PollInterval time.Duration

	// BatchSize is the max number of items to push per cycle (default: 10)
	BatchSize int

	// MaxRetries is the attempt limit before an item is parked as failed
	// (default: 3)
	MaxRetries int

	// RetryDelay is the base backoff between attempts; it doubles per
	// attempt (default: 30s)
	RetryDelay time.Duration

	// StaleAge is how long an item may sit in processing before a restart
	// reclaims it (default: 15m)
	StaleAge time.Duration

	// CleanupInterval is how often to delete old completed items
	// (default: 1h)
	CleanupInterval time.Duration

	// CleanupAge is how old completed items must be before cleanup
	// (default: 24h)
	CleanupAge time.Duration
}

// DefaultSyncProcessorConfig returns sensible defaults.
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval:    10 * time.Second,
		BatchSize:       10,
		MaxRetries:      3,
		RetryDelay:      30 * time.Second,
		StaleAge:        15 * time.Minute,
		CleanupInterval: 1 * time.Hour,
		CleanupAge:      24 * time.Hour,
	}
}

// SyncProcessor drains the outbox into the remote backend. Payloads leave
// the queue as sealed ciphertext; the processor never opens them.
type SyncProcessor struct {
	store   *storage.Store
	backend remote.Pusher
	config  SyncProcessorConfig

	nudgeCh chan struct{}

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(store *storage.Store, backend remote.Pusher, config SyncProcessorConfig) *SyncProcessor {
	return &SyncProcessor{
		store:   store,
		backend: backend,
		config:  config,
		nudgeCh: make(chan struct{}, 1),
	}
}

// Start begins the processing loop. Returns an error if already running or
// no backend is configured.
func (p *SyncProcessor) Start(ctx context.Context) error {
	if p.backend == nil {
		return fmt.Errorf("sync processor needs a remote backend")
	}
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	// Reclaim items a previous run left mid-push.
	if _, err := p.store.ResetStaleOutbox(ctx, p.config.StaleAge); err != nil {
		slog.WarnContext(ctx, "Failed to reset stale outbox items", "error", err)
	}

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)

	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	close(p.stopCh)

	select {
	case <-p.doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}

	p.mu.Lock()
	p.running = false
	p.mu.Unlock()

	return nil
}

// IsRunning reports whether the processing loop is active.
func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Nudge asks the processor to drain the outbox now instead of waiting for
// the next poll. Safe from any goroutine; a full buffer means a drain is
// already scheduled.
func (p *SyncProcessor) Nudge() {
	select {
	case p.nudgeCh <- struct{}{}:
	default:
	}
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	pollTicker := time.NewTicker(p.config.PollInterval)
	defer pollTicker.Stop()

	cleanupTicker := time.NewTicker(p.config.CleanupInterval)
	defer cleanupTicker.Stop()

	// Catch up on whatever queued while the processor was down.
	p.drainOutbox(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-p.nudgeCh:
			p.drainOutbox(ctx)
		case <-pollTicker.C:
			p.processBatch(ctx)
		case <-cleanupTicker.C:
			p.cleanupCompleted(ctx)
		}
	}
}

// drainOutbox pushes batches until the queue runs dry or the loop is told
// to stop.
func (p *SyncProcessor) drainOutbox(ctx context.Context) {
	for p.processBatch(ctx) == p.config.BatchSize {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}
	}
}

// processBatch pushes one batch of pending items and returns how many it
// handled.
func (p *SyncProcessor) processBatch(ctx context.Context) int {
	items, err := p.store.DequeueOutboxBatch(ctx, p.config.BatchSize)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to dequeue outbox batch", "error", err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	slog.DebugContext(ctx, "Processing outbox batch", "count", len(items))

	processed := 0
	for _, item := range items {
		select {
		case <-p.stopCh:
			return processed
		case <-ctx.Done():
			return processed
		default:
		}

		if err := p.store.MarkOutboxProcessing(ctx, item.ID); err != nil {
			slog.ErrorContext(ctx, "Failed to mark outbox item processing",
				"id", item.ID, "error", err)
			continue
		}

		if err := p.pushItem(ctx, item); err != nil {
			p.handleFailure(ctx, item, err)
		} else {
			p.handleSuccess(ctx, item)
		}
		processed++
	}
	return processed
}

// pushItem sends one outbox row to the backend as-is. The payload stays
// the sealed envelope the store queued; the remote sees only ciphertext.
func (p *SyncProcessor) pushItem(ctx context.Context, item storage.OutboxItem) error {
	env := remote.Envelope{
		Entity:    item.Entity,
		RecordID:  item.RecordID,
		Operation: item.Operation,
		Version:   item.RecordVersion,
		Payload:   item.PayloadEnc,
		PushedAt:  time.Now().UTC(),
	}
	if err := p.backend.Push(ctx, env); err != nil {
		return fmt.Errorf("push %s/%s v%d: %w", item.Entity, item.RecordID, item.RecordVersion, err)
	}
	return nil
}

func (p *SyncProcessor) handleSuccess(ctx context.Context, item storage.OutboxItem) {
	if err := p.store.MarkOutboxCompleted(ctx, item.ID); err != nil {
		slog.ErrorContext(ctx, "Failed to mark outbox item completed",
			"id", item.ID, "error", err)
		return
	}
	slog.InfoContext(ctx, "Pushed record to remote",
		"entity", item.Entity,
		"record_id", item.RecordID,
		"version", item.RecordVersion,
		"operation", item.Operation)
}

// handleFailure parks or reschedules a failed push. Rejected credentials
// are permanent; the backend already retried its sign-in once.
func (p *SyncProcessor) handleFailure(ctx context.Context, item storage.OutboxItem, processErr error) {
	slog.WarnContext(ctx, "Outbox push failed",
		"id", item.ID,
		"entity", item.Entity,
		"record_id", item.RecordID,
		"attempt", item.Attempts+1,
		"error", processErr)

	if errors.Is(processErr, remote.ErrUnauthorized) || item.Attempts+1 >= int64(p.config.MaxRetries) {
		if err := p.store.MarkOutboxFailed(ctx, item.ID, processErr.Error()); err != nil {
			slog.ErrorContext(ctx, "Failed to mark outbox item failed",
				"id", item.ID, "error", err)
			return
		}
		slog.ErrorContext(ctx, "Outbox item failed permanently",
			"id", item.ID,
			"entity", item.Entity,
			"record_id", item.RecordID,
			"attempts", item.Attempts+1)
		return
	}

	delay := p.config.RetryDelay << item.Attempts
	if err := p.store.ScheduleOutboxRetry(ctx, item.ID, processErr.Error(), delay); err != nil {
		slog.ErrorContext(ctx, "Failed to schedule outbox retry",
			"id", item.ID, "error", err)
	}
}

func (p *SyncProcessor) cleanupCompleted(ctx context.Context) {
	cutoff := time.Now().Add(-p.config.CleanupAge)
	removed, err := p.store.CleanupOutbox(ctx, cutoff)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to cleanup completed outbox items", "error", err)
		return
	}
	if removed > 0 {
		slog.InfoContext(ctx, "Cleaned up completed outbox items", "removed", removed)
	}
}

// PullRemote replays the remote change log into the local store. Records
// at or ahead of the remote version are skipped, so replaying is safe to
// repeat. Returns how many envelopes changed the local database.
func (p *SyncProcessor) PullRemote(ctx context.Context, since time.Time) (int, error) {
	puller, ok := p.backend.(remote.Puller)
	if !ok {
		return 0, fmt.Errorf("remote backend cannot replay changes")
	}
	envs, err := puller.PullSince(ctx, since)
	if err != nil {
		return 0, fmt.Errorf("pull changes: %w", err)
	}

	applied := 0
	for _, env := range envs {
		changed, err := p.store.ApplyRemote(ctx, env.Entity, env.RecordID, env.Operation, env.Version, env.Payload)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to apply pulled record",
				"entity", env.Entity,
				"record_id", env.RecordID,
				"version", env.Version,
				"error", err)
			continue
		}
		if changed {
			applied++
		}
	}

	slog.InfoContext(ctx, "Pulled remote changes",
		"received", len(envs), "applied", applied)
	return applied, nil
}

// Stats returns current queue statistics.
func (p *SyncProcessor) Stats(ctx context.Context) (storage.OutboxStats, error) {
	return p.store.GetOutboxStats(ctx)
}

// RetryFailed resets all failed items for a fresh round of attempts and
// schedules an immediate drain.
func (p *SyncProcessor) RetryFailed(ctx context.Context) (int64, error) {
	n, err := p.store.RetryFailedOutbox(ctx)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.Nudge()
	}
	return n, nil
}
