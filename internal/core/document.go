package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	KindInvoice DocumentKind = "invoice"
	KindBill    DocumentKind = "bill"
)

const (
	StatusDraft     DocumentStatus = "draft"
	StatusPending   DocumentStatus = "pending"
	StatusSent      DocumentStatus = "sent"
	StatusPaid      DocumentStatus = "paid"
	StatusOverdue   DocumentStatus = "overdue"
	StatusCancelled DocumentStatus = "cancelled"
)

// TaxRate is the flat rate applied to every document subtotal.
var TaxRate = decimal.NewFromFloat(0.10)

type (
	DocumentKind string

	DocumentStatus string

	// LineItem is one row of a document. LineTotal is derived, never taken
	// from input.
	LineItem struct {
		Description string
		Quantity    decimal.Decimal
		UnitPrice   decimal.Decimal
		LineTotal   decimal.Decimal
	}

	// Document is an invoice (money owed to the business) or a bill (money
	// the business owes). Line items travel with the document as a single
	// unit; there is no standalone line item record.
	Document struct {
		ID         string
		Kind       DocumentKind
		Number     string
		Party      string // customer for invoices, vendor for bills
		PartyEmail string
		Status     DocumentStatus
		IssueDate  time.Time
		DueDate    time.Time
		Lines      []LineItem
		Subtotal   decimal.Decimal
		Tax        decimal.Decimal
		Total      decimal.Decimal
		Notes      string
		CreatedAt  time.Time
		UpdatedAt  time.Time
		Version    int64
	}
)

var (
	ErrInvalidKind     = errors.New("invalid document kind")
	ErrInvalidStatus   = errors.New("invalid document status")
	ErrEmptyParty      = errors.New("counterparty name is required")
	ErrInvalidEmail    = errors.New("invalid counterparty email")
	ErrNoLines         = errors.New("document has no line items")
	ErrInvalidQuantity = errors.New("invalid quantity")
)

func (k DocumentKind) IsValid() bool {
	return k == KindInvoice || k == KindBill
}

func (s DocumentStatus) IsValid() bool {
	switch s {
	case StatusDraft, StatusPending, StatusSent, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// ComputeTotals recalculates every line total and the document subtotal, tax
// and total. Line totals are quantity times unit price; tax is a flat 10% of
// the subtotal. All three are rounded to two decimal places.
func (d *Document) ComputeTotals() {
	subtotal := decimal.Zero
	for i := range d.Lines {
		d.Lines[i].LineTotal = d.Lines[i].Quantity.Mul(d.Lines[i].UnitPrice).Round(2)
		subtotal = subtotal.Add(d.Lines[i].LineTotal)
	}
	d.Subtotal = subtotal.Round(2)
	d.Tax = d.Subtotal.Mul(TaxRate).Round(2)
	d.Total = d.Subtotal.Add(d.Tax)
}

func (d Document) Validate() error {
	if !d.Kind.IsValid() {
		return ErrInvalidKind
	}
	if !d.Status.IsValid() {
		return ErrInvalidStatus
	}
	if d.IssueDate.IsZero() {
		return ErrInvalidDate
	}
	if len(strings.TrimSpace(d.Party)) == 0 {
		return ErrEmptyParty
	}
	if d.PartyEmail != "" && !strings.Contains(d.PartyEmail, "@") {
		return ErrInvalidEmail
	}
	if len(d.Lines) == 0 {
		return ErrNoLines
	}
	for _, li := range d.Lines {
		if len(strings.TrimSpace(li.Description)) == 0 {
			return ErrEmptyDescription
		}
		if !li.Quantity.IsPositive() {
			return ErrInvalidQuantity
		}
		if li.UnitPrice.IsNegative() {
			return ErrInvalidAmount
		}
	}
	return nil
}

// IsPastDue reports whether an unpaid document has slipped past its due date.
// Paid and cancelled documents never become overdue.
func (d Document) IsPastDue(now time.Time) bool {
	if d.DueDate.IsZero() {
		return false
	}
	switch d.Status {
	case StatusPaid, StatusCancelled, StatusOverdue:
		return false
	}
	return d.DueDate.Before(now)
}
