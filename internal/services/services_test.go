package services

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"contabile/internal/core"
	"contabile/internal/storage"
)

func newTestStore(t *testing.T) *storage.Store {
	t.Helper()
	s, err := storage.Open(filepath.Join(t.TempDir(), "ledger.db"), "correct horse battery")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleTransaction() core.Transaction {
	return core.Transaction{
		Type:        core.Expense,
		Amount:      decimal.RequireFromString("42.50"),
		Description: "Office chair",
		Category:    "Equipment",
		Vendor:      "Miller & Co",
		Account:     "main",
		Date:        time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC),
	}
}

func sampleDocument() core.Document {
	return core.Document{
		Kind:      core.KindInvoice,
		Party:     "Acme GmbH",
		Status:    core.StatusDraft,
		IssueDate: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		DueDate:   time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		Lines: []core.LineItem{
			{Description: "Consulting", Quantity: decimal.NewFromInt(8), UnitPrice: decimal.RequireFromString("120.00")},
			{Description: "Travel", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.RequireFromString("85.50")},
		},
	}
}
