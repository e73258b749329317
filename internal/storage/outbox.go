package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Outbox entities and operations. One row per (entity, record, version,
// operation); replaying the same write is a no-op thanks to the unique
// index, which keeps pushes idempotent across crashes.
const (
	EntityTransaction    = "transaction"
	EntityDocument       = "document"
	EntityProduct        = "product"
	EntityService        = "service"
	EntityBusinessConfig = "business_config"

	OpUpsert = "upsert"
	OpDelete = "delete"
)

// Outbox row statuses.
const (
	OutboxPending    = "pending"
	OutboxProcessing = "processing"
	OutboxCompleted  = "completed"
	OutboxFailed     = "failed"
)

// OutboxItem is one queued change waiting to reach the remote backend.
type OutboxItem struct {
	ID            int64
	Entity        string
	RecordID      string
	Operation     string
	RecordVersion int64
	PayloadEnc    string
	Status        string
	Attempts      int64
	LastError     string
	NextAttemptAt sql.NullTime
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OutboxStats summarizes the queue for the sync status panel.
type OutboxStats struct {
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
}

func (st OutboxStats) Total() int64 {
	return st.Pending + st.Processing + st.Completed + st.Failed
}

// enqueueOutbox inserts a queue row inside the caller's transaction.
// Duplicate (entity, record, version, operation) rows are ignored.
func enqueueOutbox(ctx context.Context, tx *sql.Tx, entity, recordID, op string, version int64, payloadEnc string, now time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT OR IGNORE INTO sync_outbox (
			entity, record_id, operation, record_version, payload_enc,
			status, attempts, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, 0, ?, ?)`,
		entity, recordID, op, version, payloadEnc, OutboxPending, now, now)
	if err != nil {
		return fmt.Errorf("enqueue outbox: %w", err)
	}
	return nil
}

const outboxColumns = `id, entity, record_id, operation, record_version,
	payload_enc, status, attempts, last_error, next_attempt_at, created_at, updated_at`

func scanOutboxItem(scan func(...any) error) (OutboxItem, error) {
	var it OutboxItem
	err := scan(&it.ID, &it.Entity, &it.RecordID, &it.Operation, &it.RecordVersion,
		&it.PayloadEnc, &it.Status, &it.Attempts, &it.LastError,
		&it.NextAttemptAt, &it.CreatedAt, &it.UpdatedAt)
	return it, err
}

// DequeueOutboxBatch returns up to limit pending items whose retry time has
// come, oldest first. Items stay pending until MarkOutboxProcessing.
func (s *Store) DequeueOutboxBatch(ctx context.Context, limit int) ([]OutboxItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+outboxColumns+` FROM sync_outbox
		WHERE status = ? AND (next_attempt_at IS NULL OR datetime(next_attempt_at) <= datetime(?))
		ORDER BY id
		LIMIT ?`,
		OutboxPending, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("dequeue outbox batch: %w", err)
	}
	defer rows.Close()

	var items []OutboxItem
	for rows.Next() {
		it, err := scanOutboxItem(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan outbox item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (s *Store) MarkOutboxProcessing(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_outbox SET status = ?, updated_at = ? WHERE id = ?`,
		OutboxProcessing, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark outbox processing: %w", err)
	}
	return nil
}

func (s *Store) MarkOutboxCompleted(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE sync_outbox SET status = ?, last_error = '', updated_at = ? WHERE id = ?`,
		OutboxCompleted, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark outbox completed: %w", err)
	}
	return nil
}

// MarkOutboxFailed parks an item permanently after retries ran out. It stays
// visible in stats until RetryFailedOutbox or cleanup.
func (s *Store) MarkOutboxFailed(ctx context.Context, id int64, lastError string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_outbox SET status = ?, attempts = attempts + 1, last_error = ?, updated_at = ?
		WHERE id = ?`,
		OutboxFailed, lastError, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}

// ScheduleOutboxRetry puts an item back in the pending state with a retry
// time in the future.
func (s *Store) ScheduleOutboxRetry(ctx context.Context, id int64, lastError string, delay time.Duration) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_outbox SET status = ?, attempts = attempts + 1, last_error = ?,
			next_attempt_at = ?, updated_at = ?
		WHERE id = ?`,
		OutboxPending, lastError, now.Add(delay), now, id)
	if err != nil {
		return fmt.Errorf("schedule outbox retry: %w", err)
	}
	return nil
}

// ResetStaleOutbox returns items stuck in processing (a previous run died
// mid-push) to the pending state.
func (s *Store) ResetStaleOutbox(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_outbox SET status = ?, updated_at = ?
		WHERE status = ? AND datetime(updated_at) < datetime(?)`,
		OutboxPending, time.Now().UTC(), OutboxProcessing, cutoff)
	if err != nil {
		return 0, fmt.Errorf("reset stale outbox: %w", err)
	}
	return res.RowsAffected()
}

// CleanupOutbox deletes completed items older than the cutoff.
func (s *Store) CleanupOutbox(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM sync_outbox WHERE status = ? AND datetime(updated_at) < datetime(?)`,
		OutboxCompleted, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("cleanup outbox: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailedOutbox resets every failed item for a fresh round of attempts.
func (s *Store) RetryFailedOutbox(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sync_outbox SET status = ?, attempts = 0, last_error = '',
			next_attempt_at = NULL, updated_at = ?
		WHERE status = ?`,
		OutboxPending, time.Now().UTC(), OutboxFailed)
	if err != nil {
		return 0, fmt.Errorf("retry failed outbox: %w", err)
	}
	return res.RowsAffected()
}

// GetOutboxStats counts queue items by status.
func (s *Store) GetOutboxStats(ctx context.Context) (OutboxStats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM sync_outbox GROUP BY status`)
	if err != nil {
		return OutboxStats{}, fmt.Errorf("get outbox stats: %w", err)
	}
	defer rows.Close()

	var st OutboxStats
	for rows.Next() {
		var (
			status string
			count  int64
		)
		if err := rows.Scan(&status, &count); err != nil {
			return OutboxStats{}, fmt.Errorf("scan outbox stats: %w", err)
		}
		switch status {
		case OutboxPending:
			st.Pending = count
		case OutboxProcessing:
			st.Processing = count
		case OutboxCompleted:
			st.Completed = count
		case OutboxFailed:
			st.Failed = count
		}
	}
	return st, rows.Err()
}

// OpenPayload decrypts a sealed sync payload, either an outbox row's
// payload_enc or the payload of a pulled envelope. Delete tombstones have no
// payload and come back nil.
func (s *Store) OpenPayload(payloadEnc string) ([]byte, error) {
	if payloadEnc == "" {
		return nil, nil
	}
	return s.vault.Decrypt(payloadEnc)
}
