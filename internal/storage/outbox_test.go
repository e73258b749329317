package storage

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestWritesEnqueueOutbox(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx := testTx()
	if err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.UpdateTransaction(ctx, tx); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := s.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	items, err := s.DequeueOutboxBatch(ctx, 10)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("expected 3 queued items, got %d", len(items))
	}
	// Queue preserves write order.
	if items[0].Operation != OpUpsert || items[0].RecordVersion != 1 {
		t.Fatalf("first item: %+v", items[0])
	}
	if items[1].Operation != OpUpsert || items[1].RecordVersion != 2 {
		t.Fatalf("second item: %+v", items[1])
	}
	if items[2].Operation != OpDelete || items[2].RecordVersion != 3 {
		t.Fatalf("third item: %+v", items[2])
	}
	for _, it := range items {
		if it.Entity != EntityTransaction || it.RecordID != tx.ID {
			t.Fatalf("wrong identity: %+v", it)
		}
	}
}

func TestOutboxPayloadSealedAndOpens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx := testTx()
	if err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	items, err := s.DequeueOutboxBatch(ctx, 1)
	if err != nil || len(items) != 1 {
		t.Fatalf("dequeue: %v (%d items)", err, len(items))
	}

	it := items[0]
	if it.PayloadEnc == "" || it.PayloadEnc[:3] != "v1:" {
		t.Fatalf("payload not sealed: %q", it.PayloadEnc)
	}
	raw, err := s.OpenPayload(it.PayloadEnc)
	if err != nil {
		t.Fatalf("open payload: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("payload not JSON: %v", err)
	}
	if decoded["id"] != tx.ID || decoded["amount"] != "150" {
		t.Fatalf("payload contents wrong: %v", decoded)
	}
}

func TestOutboxLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx := testTx()
	if err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	items, _ := s.DequeueOutboxBatch(ctx, 1)
	id := items[0].ID

	if err := s.MarkOutboxProcessing(ctx, id); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	// Processing items are not dequeued again.
	again, _ := s.DequeueOutboxBatch(ctx, 10)
	if len(again) != 0 {
		t.Fatalf("processing item dequeued again")
	}

	if err := s.MarkOutboxCompleted(ctx, id); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
	st, err := s.GetOutboxStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Completed != 1 || st.Pending != 0 {
		t.Fatalf("stats after complete: %+v", st)
	}

	// Cleanup removes old completed rows.
	n, err := s.CleanupOutbox(ctx, time.Now().UTC().Add(time.Hour))
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 cleaned, got %d", n)
	}
}

func TestOutboxRetryFlow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx := testTx()
	if err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	items, _ := s.DequeueOutboxBatch(ctx, 1)
	id := items[0].ID

	// A scheduled retry hides the item until its time comes.
	if err := s.ScheduleOutboxRetry(ctx, id, "connection refused", time.Hour); err != nil {
		t.Fatalf("schedule retry: %v", err)
	}
	hidden, _ := s.DequeueOutboxBatch(ctx, 10)
	if len(hidden) != 0 {
		t.Fatalf("retry-scheduled item dequeued early")
	}

	// An immediate retry is visible.
	if err := s.ScheduleOutboxRetry(ctx, id, "connection refused", -time.Second); err != nil {
		t.Fatalf("schedule retry: %v", err)
	}
	visible, _ := s.DequeueOutboxBatch(ctx, 10)
	if len(visible) != 1 {
		t.Fatalf("due retry not dequeued")
	}
	if visible[0].Attempts != 2 || visible[0].LastError != "connection refused" {
		t.Fatalf("retry bookkeeping wrong: %+v", visible[0])
	}

	// Terminal failure, then bulk retry resets it.
	if err := s.MarkOutboxFailed(ctx, id, "gave up"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	st, _ := s.GetOutboxStats(ctx)
	if st.Failed != 1 {
		t.Fatalf("stats after fail: %+v", st)
	}
	n, err := s.RetryFailedOutbox(ctx)
	if err != nil || n != 1 {
		t.Fatalf("retry failed: %v (%d)", err, n)
	}
	fresh, _ := s.DequeueOutboxBatch(ctx, 10)
	if len(fresh) != 1 || fresh[0].Attempts != 0 {
		t.Fatalf("failed item not reset: %+v", fresh)
	}
}

func TestResetStaleOutbox(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx := testTx()
	if err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	items, _ := s.DequeueOutboxBatch(ctx, 1)
	if err := s.MarkOutboxProcessing(ctx, items[0].ID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}

	// Zero age treats everything processing as stale.
	n, err := s.ResetStaleOutbox(ctx, -time.Second)
	if err != nil {
		t.Fatalf("reset stale: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 reset, got %d", n)
	}
	back, _ := s.DequeueOutboxBatch(ctx, 10)
	if len(back) != 1 {
		t.Fatalf("stale item not back in queue")
	}
}

func TestDeleteTombstoneHasNoPayload(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx := testTx()
	if err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteTransaction(ctx, tx.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	items, _ := s.DequeueOutboxBatch(ctx, 10)
	var tomb *OutboxItem
	for i := range items {
		if items[i].Operation == OpDelete {
			tomb = &items[i]
		}
	}
	if tomb == nil {
		t.Fatalf("no delete tombstone queued")
	}
	raw, err := s.OpenPayload(tomb.PayloadEnc)
	if err != nil {
		t.Fatalf("open tombstone payload: %v", err)
	}
	if raw != nil {
		t.Fatalf("tombstone payload expected nil, got %q", raw)
	}
}
