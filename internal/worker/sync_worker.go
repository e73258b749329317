// Package worker composes the pieces of the sync worker process: the
// outbox processor, the optional AMQP nudge consumer and the startup
// replay of the remote change log.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"contabile/internal/amqp"
	"contabile/internal/services"
)

// stopTimeout bounds how long shutdown waits for an in-flight batch.
const stopTimeout = 10 * time.Second

// SyncWorker drives the sync processor. The AMQP client is optional; with
// no consumer the processor still drains the outbox on its poll ticker.
type SyncWorker struct {
	processor   *services.SyncProcessor
	consumer    *amqp.Client
	pullOnStart bool
}

func NewSyncWorker(processor *services.SyncProcessor, consumer *amqp.Client, pullOnStart bool) *SyncWorker {
	return &SyncWorker{
		processor:   processor,
		consumer:    consumer,
		pullOnStart: pullOnStart,
	}
}

// RunProcessor starts the outbox processor, optionally replays the remote
// change log into the local store, and keeps the processor alive until ctx
// ends. The startup replay is best effort: a device that was restored from
// scratch catches up here, everyone else skips already-known versions.
func (w *SyncWorker) RunProcessor(ctx context.Context) error {
	if err := w.processor.Start(ctx); err != nil {
		return err
	}

	if w.pullOnStart {
		if _, err := w.processor.PullRemote(ctx, time.Time{}); err != nil {
			slog.WarnContext(ctx, "Startup replay failed", "error", err)
		}
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	return w.processor.Stop(stopCtx)
}

// ConsumeNudges feeds AMQP sync requests into the processor. The message
// is only a hint that the outbox has new rows; the outbox table stays the
// authoritative queue, so handling is ack-always.
func (w *SyncWorker) ConsumeNudges(ctx context.Context) error {
	if w.consumer == nil {
		slog.InfoContext(ctx, "AMQP not configured, sync runs on poll ticks only")
		<-ctx.Done()
		return nil
	}

	err := w.consumer.ConsumeSyncRequests(ctx, func(msg *amqp.SyncRequestMessage) error {
		slog.DebugContext(ctx, "Sync nudge received",
			"entity", msg.Entity,
			"record_id", msg.RecordID,
			"version", msg.Version)
		w.processor.Nudge()
		return nil
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
