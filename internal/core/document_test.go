package core

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func validDocument() Document {
	return Document{
		ID:         "doc-1",
		Kind:       KindInvoice,
		Number:     "INV-001",
		Party:      "Acme Corp",
		PartyEmail: "billing@acme.test",
		Status:     StatusDraft,
		IssueDate:  time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		Lines: []LineItem{
			{Description: "Widget", Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(25)},
		},
	}
}

func TestComputeTotals(t *testing.T) {
	d := validDocument()
	d.ComputeTotals()

	if d.Lines[0].LineTotal.String() != "50" {
		t.Fatalf("line total expected 50, got %s", d.Lines[0].LineTotal)
	}
	if d.Subtotal.String() != "50" {
		t.Fatalf("subtotal expected 50, got %s", d.Subtotal)
	}
	if d.Tax.String() != "5" {
		t.Fatalf("tax expected 5, got %s", d.Tax)
	}
	if d.Total.String() != "55" {
		t.Fatalf("total expected 55, got %s", d.Total)
	}
}

func TestComputeTotalsRounding(t *testing.T) {
	d := validDocument()
	d.Lines = []LineItem{
		{Description: "a", Quantity: decimal.NewFromInt(3), UnitPrice: decimal.RequireFromString("0.333")},
		{Description: "b", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("0.05")},
	}
	d.ComputeTotals()

	// 3*0.333 = 0.999 -> 1.00 per line, subtotal 1.05, tax 0.105 -> 0.11 half-up
	if d.Lines[0].LineTotal.String() != "1" {
		t.Fatalf("line total expected 1, got %s", d.Lines[0].LineTotal)
	}
	if d.Subtotal.String() != "1.05" {
		t.Fatalf("subtotal expected 1.05, got %s", d.Subtotal)
	}
	if d.Tax.String() != "0.11" {
		t.Fatalf("tax expected 0.11, got %s", d.Tax)
	}
	if d.Total.String() != "1.16" {
		t.Fatalf("total expected 1.16, got %s", d.Total)
	}
}

func TestComputeTotalsIgnoresStaleTotals(t *testing.T) {
	d := validDocument()
	d.Lines[0].LineTotal = decimal.NewFromInt(999)
	d.Subtotal = decimal.NewFromInt(999)
	d.ComputeTotals()
	if d.Subtotal.String() != "50" {
		t.Fatalf("stale totals must be recomputed, got %s", d.Subtotal)
	}
}

func TestDocumentValidate(t *testing.T) {
	if err := validDocument().Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Document)
		want   error
	}{
		{"bad kind", func(d *Document) { d.Kind = "receipt" }, ErrInvalidKind},
		{"bad status", func(d *Document) { d.Status = "archived" }, ErrInvalidStatus},
		{"zero issue date", func(d *Document) { d.IssueDate = time.Time{} }, ErrInvalidDate},
		{"blank party", func(d *Document) { d.Party = " " }, ErrEmptyParty},
		{"bad email", func(d *Document) { d.PartyEmail = "not-an-email" }, ErrInvalidEmail},
		{"no lines", func(d *Document) { d.Lines = nil }, ErrNoLines},
		{"blank line description", func(d *Document) { d.Lines[0].Description = " " }, ErrEmptyDescription},
		{"zero quantity", func(d *Document) { d.Lines[0].Quantity = decimal.Zero }, ErrInvalidQuantity},
		{"negative price", func(d *Document) { d.Lines[0].UnitPrice = decimal.NewFromInt(-1) }, ErrInvalidAmount},
	}
	for _, tc := range cases {
		d := validDocument()
		tc.mutate(&d)
		if err := d.Validate(); err != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	// Zero unit price is allowed (free line on an otherwise billed document).
	free := validDocument()
	free.Lines[0].UnitPrice = decimal.Zero
	if err := free.Validate(); err != nil {
		t.Fatalf("expected ok for zero unit price, got %v", err)
	}

	// Email is optional.
	noMail := validDocument()
	noMail.PartyEmail = ""
	if err := noMail.Validate(); err != nil {
		t.Fatalf("expected ok without email, got %v", err)
	}
}

func TestIsPastDue(t *testing.T) {
	now := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	past := now.AddDate(0, 0, -10)
	future := now.AddDate(0, 0, 10)

	cases := []struct {
		name   string
		status DocumentStatus
		due    time.Time
		want   bool
	}{
		{"sent past due", StatusSent, past, true},
		{"pending past due", StatusPending, past, true},
		{"draft past due", StatusDraft, past, true},
		{"sent not yet due", StatusSent, future, false},
		{"paid past due", StatusPaid, past, false},
		{"cancelled past due", StatusCancelled, past, false},
		{"already overdue", StatusOverdue, past, false},
		{"no due date", StatusSent, time.Time{}, false},
	}
	for _, tc := range cases {
		d := validDocument()
		d.Status = tc.status
		d.DueDate = tc.due
		if got := d.IsPastDue(now); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}
