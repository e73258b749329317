package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"contabile/internal/core"
	"contabile/internal/storage"
)

func sampleRecurring(id string) core.RecurringTransaction {
	return core.RecurringTransaction{
		ID:          id,
		Type:        core.Expense,
		Amount:      decimal.RequireFromString("29.90"),
		Description: "Hosting plan",
		Category:    "Infrastructure",
		Vendor:      "Hetzner",
		Account:     "main",
		Every:       core.Daily,
		StartDate:   time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestProcessDueMaterializesTransactions(t *testing.T) {
	store := newTestStore(t)
	ledger := NewLedgerService(store, nil)
	proc := NewRecurringProcessor(store, ledger)
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	rt := sampleRecurring("rec-1")
	if err := store.CreateRecurring(ctx, &rt); err != nil {
		t.Fatalf("CreateRecurring: %v", err)
	}

	created, err := proc.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if created != 1 {
		t.Fatalf("created = %d, want 1", created)
	}

	txs, err := store.ListTransactions(ctx, storage.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 1 {
		t.Fatalf("stored %d transactions, want 1", len(txs))
	}
	if txs[0].Description != rt.Description {
		t.Errorf("Description = %q, want %q", txs[0].Description, rt.Description)
	}
	if !txs[0].Amount.Equal(rt.Amount) {
		t.Errorf("Amount = %s, want %s", txs[0].Amount, rt.Amount)
	}

	got, err := store.GetRecurring(ctx, rt.ID)
	if err != nil {
		t.Fatalf("GetRecurring: %v", err)
	}
	if got.LastExecution.Format("2006-01-02") != "2025-06-10" {
		t.Errorf("LastExecution = %s, want 2025-06-10", got.LastExecution.Format("2006-01-02"))
	}

	// Same day again: the daily template already ran.
	created, err = proc.ProcessDue(ctx, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("ProcessDue second run: %v", err)
	}
	if created != 0 {
		t.Errorf("second run created = %d, want 0", created)
	}
}

func TestProcessDueSkipsInactiveTemplates(t *testing.T) {
	store := newTestStore(t)
	ledger := NewLedgerService(store, nil)
	proc := NewRecurringProcessor(store, ledger)
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	future := sampleRecurring("rec-future")
	future.StartDate = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	if err := store.CreateRecurring(ctx, &future); err != nil {
		t.Fatalf("CreateRecurring future: %v", err)
	}

	expired := sampleRecurring("rec-expired")
	expired.StartDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	expired.EndDate = time.Date(2025, 5, 31, 0, 0, 0, 0, time.UTC)
	if err := store.CreateRecurring(ctx, &expired); err != nil {
		t.Fatalf("CreateRecurring expired: %v", err)
	}

	created, err := proc.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if created != 0 {
		t.Errorf("created = %d, want 0", created)
	}
}

func TestProcessDueSkipsBrokenTemplate(t *testing.T) {
	store := newTestStore(t)
	ledger := NewLedgerService(store, nil)
	proc := NewRecurringProcessor(store, ledger)
	ctx := context.Background()
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	// The store takes templates as-is, so a blank description can land on
	// disk; the ledger rejects the transaction it would materialize.
	bad := sampleRecurring("rec-bad")
	bad.Description = ""
	if err := store.CreateRecurring(ctx, &bad); err != nil {
		t.Fatalf("CreateRecurring bad: %v", err)
	}
	good := sampleRecurring("rec-good")
	if err := store.CreateRecurring(ctx, &good); err != nil {
		t.Fatalf("CreateRecurring good: %v", err)
	}

	// The broken template is skipped, not fatal, and the sweep continues.
	created, err := proc.ProcessDue(ctx, now)
	if err != nil {
		t.Fatalf("ProcessDue: %v", err)
	}
	if created != 1 {
		t.Errorf("created = %d, want 1", created)
	}

	txs, err := store.ListTransactions(ctx, storage.TransactionFilter{})
	if err != nil {
		t.Fatalf("ListTransactions: %v", err)
	}
	if len(txs) != 1 || txs[0].Description != good.Description {
		t.Fatalf("expected only the good template to materialize, got %d transactions", len(txs))
	}
}
