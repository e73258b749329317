package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"contabile/internal/core"
)

func TestCreateDocumentGeneratesNumber(t *testing.T) {
	store := newTestStore(t)
	svc := NewDocumentService(store, nil)
	ctx := context.Background()

	saved, dup, err := svc.CreateDocument(ctx, sampleDocument())
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}
	if dup {
		t.Error("fresh document flagged as duplicate")
	}
	if !strings.HasPrefix(saved.Number, "INV-") {
		t.Errorf("Number = %q, want INV- prefix", saved.Number)
	}
	if !saved.Subtotal.Equal(decimal.RequireFromString("1045.50")) {
		t.Errorf("Subtotal = %s, want 1045.50", saved.Subtotal)
	}
	if !saved.Tax.Equal(decimal.RequireFromString("104.55")) {
		t.Errorf("Tax = %s, want 104.55", saved.Tax)
	}
	if !saved.Total.Equal(decimal.RequireFromString("1150.05")) {
		t.Errorf("Total = %s, want 1150.05", saved.Total)
	}

	bill := sampleDocument()
	bill.Kind = core.KindBill
	savedBill, _, err := svc.CreateDocument(ctx, bill)
	if err != nil {
		t.Fatalf("CreateDocument bill: %v", err)
	}
	if !strings.HasPrefix(savedBill.Number, "BILL-") {
		t.Errorf("Number = %q, want BILL- prefix", savedBill.Number)
	}
}

func TestCreateDocumentFlagsDuplicateNumber(t *testing.T) {
	store := newTestStore(t)
	svc := NewDocumentService(store, nil)
	ctx := context.Background()

	first := sampleDocument()
	first.Number = "INV-2025-007"
	if _, dup, err := svc.CreateDocument(ctx, first); err != nil || dup {
		t.Fatalf("first create: dup=%v err=%v", dup, err)
	}

	second := sampleDocument()
	second.Number = "INV-2025-007"
	_, dup, err := svc.CreateDocument(ctx, second)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if !dup {
		t.Error("reused number not flagged as duplicate")
	}

	// Same number on the other kind does not collide.
	bill := sampleDocument()
	bill.Kind = core.KindBill
	bill.Number = "INV-2025-007"
	_, dup, err = svc.CreateDocument(ctx, bill)
	if err != nil {
		t.Fatalf("bill create: %v", err)
	}
	if dup {
		t.Error("bill flagged as duplicate of an invoice number")
	}
}

func TestSetDocumentStatus(t *testing.T) {
	store := newTestStore(t)
	svc := NewDocumentService(store, nil)
	ctx := context.Background()

	saved, _, err := svc.CreateDocument(ctx, sampleDocument())
	if err != nil {
		t.Fatalf("CreateDocument: %v", err)
	}

	paid, err := svc.SetDocumentStatus(ctx, saved.ID, core.StatusPaid)
	if err != nil {
		t.Fatalf("SetDocumentStatus: %v", err)
	}
	if paid.Status != core.StatusPaid {
		t.Errorf("Status = %q, want %q", paid.Status, core.StatusPaid)
	}
	if paid.Version != saved.Version+1 {
		t.Errorf("Version = %d, want %d", paid.Version, saved.Version+1)
	}

	// Corrections may move a document backwards.
	reopened, err := svc.SetDocumentStatus(ctx, saved.ID, core.StatusPending)
	if err != nil {
		t.Fatalf("SetDocumentStatus back to pending: %v", err)
	}
	if reopened.Status != core.StatusPending {
		t.Errorf("Status = %q, want %q", reopened.Status, core.StatusPending)
	}

	if _, err := svc.SetDocumentStatus(ctx, saved.ID, core.DocumentStatus("archived")); !errors.Is(err, core.ErrInvalidStatus) {
		t.Errorf("expected ErrInvalidStatus, got %v", err)
	}
}

func TestMarkOverdue(t *testing.T) {
	store := newTestStore(t)
	svc := NewDocumentService(store, nil)
	ctx := context.Background()
	now := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)

	pastDue := sampleDocument()
	pastDue.Status = core.StatusPending
	pastDue.DueDate = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	savedPastDue, _, err := svc.CreateDocument(ctx, pastDue)
	if err != nil {
		t.Fatalf("CreateDocument past due: %v", err)
	}

	notDue := sampleDocument()
	notDue.Status = core.StatusSent
	notDue.DueDate = time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	savedNotDue, _, err := svc.CreateDocument(ctx, notDue)
	if err != nil {
		t.Fatalf("CreateDocument not due: %v", err)
	}

	// Drafts never flip, no matter how stale.
	draft := sampleDocument()
	draft.DueDate = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	savedDraft, _, err := svc.CreateDocument(ctx, draft)
	if err != nil {
		t.Fatalf("CreateDocument draft: %v", err)
	}

	flipped, err := svc.MarkOverdue(ctx, now)
	if err != nil {
		t.Fatalf("MarkOverdue: %v", err)
	}
	if flipped != 1 {
		t.Errorf("flipped = %d, want 1", flipped)
	}

	for _, tc := range []struct {
		id   string
		want core.DocumentStatus
	}{
		{savedPastDue.ID, core.StatusOverdue},
		{savedNotDue.ID, core.StatusSent},
		{savedDraft.ID, core.StatusDraft},
	} {
		got, err := svc.GetDocument(ctx, tc.id)
		if err != nil {
			t.Fatalf("GetDocument(%s): %v", tc.id, err)
		}
		if got.Status != tc.want {
			t.Errorf("document %s status = %q, want %q", tc.id, got.Status, tc.want)
		}
	}

	// A second sweep finds nothing left to flip.
	flipped, err = svc.MarkOverdue(ctx, now)
	if err != nil {
		t.Fatalf("MarkOverdue second sweep: %v", err)
	}
	if flipped != 0 {
		t.Errorf("second sweep flipped = %d, want 0", flipped)
	}
}
