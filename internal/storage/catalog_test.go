package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"contabile/internal/core"
)

func TestProductRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &core.Product{
		ID:          uuid.NewString(),
		Name:        "Widget",
		Description: "Standard widget",
		Price:       decimal.RequireFromString("25.00"),
		Category:    "Hardware",
	}
	if err := s.CreateProduct(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Widget" || !got.Price.Equal(p.Price) {
		t.Fatalf("round trip: %+v", got)
	}

	p.Price = decimal.RequireFromString("27.50")
	if err := s.UpdateProduct(ctx, p); err != nil {
		t.Fatalf("update: %v", err)
	}
	if p.Version != 2 {
		t.Fatalf("version expected 2, got %d", p.Version)
	}

	if err := s.DeleteProduct(ctx, p.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.GetProduct(ctx, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestServiceRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sv := &core.Service{
		ID:         uuid.NewString(),
		Name:       "Consulting",
		HourlyRate: decimal.RequireFromString("80.00"),
		Category:   "Professional",
	}
	if err := s.CreateService(ctx, sv); err != nil {
		t.Fatalf("create: %v", err)
	}

	list, err := s.ListServices(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || !list[0].HourlyRate.Equal(sv.HourlyRate) {
		t.Fatalf("list round trip: %+v", list)
	}

	if err := s.DeleteService(ctx, sv.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := s.DeleteService(ctx, sv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestCatalogRatesAreSealed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &core.Product{ID: uuid.NewString(), Name: "Widget", Price: decimal.NewFromInt(25)}
	if err := s.CreateProduct(ctx, p); err != nil {
		t.Fatalf("create: %v", err)
	}
	var priceEnc string
	if err := s.db.QueryRow(`SELECT price_enc FROM products WHERE id = ?`, p.ID).Scan(&priceEnc); err != nil {
		t.Fatalf("raw read: %v", err)
	}
	if priceEnc[:3] != "v1:" {
		t.Fatalf("price not sealed: %q", priceEnc)
	}
}

func TestBusinessConfigSave(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, err := s.GetBusinessConfig(ctx); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}

	bc := &core.BusinessConfig{Name: "Studio Rossi", Type: core.BusinessLegal, Currency: "EUR", Locale: "it"}
	if err := s.SaveBusinessConfig(ctx, bc); err != nil {
		t.Fatalf("save: %v", err)
	}
	if bc.Version != 1 {
		t.Fatalf("version expected 1, got %d", bc.Version)
	}

	bc.Currency = "USD"
	if err := s.SaveBusinessConfig(ctx, bc); err != nil {
		t.Fatalf("second save: %v", err)
	}
	if bc.Version != 2 {
		t.Fatalf("version expected 2, got %d", bc.Version)
	}

	got, err := s.GetBusinessConfig(ctx)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Currency != "USD" || got.Name != "Studio Rossi" {
		t.Fatalf("round trip: %+v", got)
	}
	if got.CreatedAt.IsZero() || !got.CreatedAt.Equal(bc.CreatedAt) {
		t.Fatalf("created_at must survive overwrites")
	}
}

func TestRecurringRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rt := &core.RecurringTransaction{
		ID:          uuid.NewString(),
		Type:        core.Expense,
		Amount:      decimal.RequireFromString("1200.00"),
		Description: "Office rent to Landlord",
		Category:    "Rent",
		Every:       core.Monthly,
		StartDate:   date(2025, 1, 1),
	}
	if err := s.CreateRecurring(ctx, rt); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := s.GetRecurring(ctx, rt.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Amount.Equal(rt.Amount) || got.Description != rt.Description {
		t.Fatalf("round trip: %+v", got)
	}
	if !got.LastExecution.IsZero() {
		t.Fatalf("fresh template must have zero last execution")
	}

	ranOn := date(2025, 2, 1)
	if err := s.MarkRecurringExecuted(ctx, rt.ID, ranOn); err != nil {
		t.Fatalf("mark executed: %v", err)
	}
	got, err = s.GetRecurring(ctx, rt.ID)
	if err != nil {
		t.Fatalf("get after mark: %v", err)
	}
	if !got.LastExecution.Equal(ranOn) {
		t.Fatalf("last execution expected %v, got %v", ranOn, got.LastExecution)
	}

	// Templates do not enter the sync outbox.
	st, err := s.GetOutboxStats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.Total() != 0 {
		t.Fatalf("recurring writes must not enqueue sync: %+v", st)
	}
}
