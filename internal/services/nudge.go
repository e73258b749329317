package services

import (
	"context"
	"log/slog"

	"contabile/internal/amqp"
)

// nudgeSync tells the sync worker that a record changed. The outbox row was
// written in the same database transaction as the record, so a missing
// client or a failed publish only delays the push until the next poll.
func nudgeSync(ctx context.Context, client *amqp.Client, entity, recordID string, version int64) {
	if client == nil {
		slog.WarnContext(ctx, "AMQP client not available, skipping sync nudge",
			"entity", entity, "record_id", recordID)
		return
	}
	if err := client.PublishSyncRequest(ctx, entity, recordID, version); err != nil {
		slog.ErrorContext(ctx, "Failed to publish sync nudge",
			"entity", entity, "record_id", recordID, "error", err)
	}
}
