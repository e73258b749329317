package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"contabile/internal/core"
)

func testDoc() *core.Document {
	d := &core.Document{
		ID:        uuid.NewString(),
		Kind:      core.KindInvoice,
		Number:    "INV-001",
		Party:     "Acme Corp",
		Status:    core.StatusDraft,
		IssueDate: date(2025, 6, 1),
		DueDate:   date(2025, 7, 1),
		Lines: []core.LineItem{
			{Description: "Widget", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(25)},
			{Description: "Consulting", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.NewFromInt(80)},
		},
		Notes: "net 30",
	}
	d.ComputeTotals()
	return d
}

func TestDocumentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := testDoc()
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Party != "Acme Corp" || got.Number != "INV-001" {
		t.Fatalf("header did not round trip: %+v", got)
	}
	if len(got.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(got.Lines))
	}
	if !got.Lines[0].LineTotal.Equal(decimal.NewFromInt(50)) {
		t.Fatalf("line total expected 50, got %s", got.Lines[0].LineTotal)
	}
	// 50 + 240 = 290 subtotal, 29 tax, 319 total
	if got.Subtotal.String() != "290" || got.Tax.String() != "29" || got.Total.String() != "319" {
		t.Fatalf("totals did not round trip: %s/%s/%s", got.Subtotal, got.Tax, got.Total)
	}
	if !got.DueDate.Equal(doc.DueDate) {
		t.Fatalf("due date expected %v, got %v", doc.DueDate, got.DueDate)
	}
}

func TestDocumentUpdateReplacesLines(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := testDoc()
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}

	doc.Lines = []core.LineItem{
		{Description: "Widget", Quantity: decimal.NewFromInt(5), UnitPrice: decimal.NewFromInt(25)},
	}
	doc.ComputeTotals()
	doc.Status = core.StatusSent
	if err := s.UpdateDocument(ctx, doc); err != nil {
		t.Fatalf("update: %v", err)
	}
	if doc.Version != 2 {
		t.Fatalf("version expected 2, got %d", doc.Version)
	}

	got, err := s.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Lines) != 1 || got.Subtotal.String() != "125" {
		t.Fatalf("lines not replaced: %+v", got)
	}
	if got.Status != core.StatusSent {
		t.Fatalf("status expected sent, got %s", got.Status)
	}
}

func TestDocumentDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := testDoc()
	if err := s.CreateDocument(ctx, doc); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := s.DeleteDocument(ctx, doc.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetDocument(ctx, doc.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListDocumentsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []struct {
		kind   core.DocumentKind
		status core.DocumentStatus
	}{
		{core.KindInvoice, core.StatusDraft},
		{core.KindInvoice, core.StatusSent},
		{core.KindBill, core.StatusPending},
	}
	for i, sd := range seed {
		d := testDoc()
		d.ID = uuid.NewString()
		d.Kind = sd.kind
		d.Status = sd.status
		d.Number = d.Number + string(rune('A'+i))
		if err := s.CreateDocument(ctx, d); err != nil {
			t.Fatalf("seed create: %v", err)
		}
	}

	invoices, err := s.ListDocuments(ctx, DocumentFilter{Kind: core.KindInvoice})
	if err != nil {
		t.Fatalf("list invoices: %v", err)
	}
	if len(invoices) != 2 {
		t.Fatalf("expected 2 invoices, got %d", len(invoices))
	}

	sent, err := s.ListDocuments(ctx, DocumentFilter{Kind: core.KindInvoice, Status: core.StatusSent})
	if err != nil {
		t.Fatalf("list sent: %v", err)
	}
	if len(sent) != 1 {
		t.Fatalf("expected 1 sent invoice, got %d", len(sent))
	}

	n, err := s.CountDocumentsByNumber(ctx, core.KindInvoice, "INV-001A", "")
	if err != nil {
		t.Fatalf("count by number: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1, got %d", n)
	}
}
