package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"contabile/internal/core"
	"contabile/internal/storage"
)

func TestCreateTemplateAssignsID(t *testing.T) {
	store := newTestStore(t)
	svc := NewRecurringService(store)
	ctx := context.Background()

	rt := sampleRecurring("")
	saved, err := svc.CreateTemplate(ctx, rt)
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if saved.ID == "" {
		t.Fatal("expected a generated ID")
	}

	got, err := svc.GetTemplate(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if got.Description != rt.Description {
		t.Errorf("Description = %q, want %q", got.Description, rt.Description)
	}
	if got.Every != core.Daily {
		t.Errorf("Every = %q, want daily", got.Every)
	}
}

func TestCreateTemplateValidates(t *testing.T) {
	store := newTestStore(t)
	svc := NewRecurringService(store)
	ctx := context.Background()

	bad := sampleRecurring("")
	bad.Every = core.RepetitionType("biweekly")
	if _, err := svc.CreateTemplate(ctx, bad); !errors.Is(err, core.ErrInvalidCadence) {
		t.Fatalf("expected ErrInvalidCadence, got %v", err)
	}

	bad = sampleRecurring("")
	bad.Amount = decimal.Zero
	if _, err := svc.CreateTemplate(ctx, bad); !errors.Is(err, core.ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	templates, err := svc.ListTemplates(ctx)
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(templates) != 0 {
		t.Errorf("rejected template was stored, found %d records", len(templates))
	}
}

func TestUpdateTemplateKeepsLastExecution(t *testing.T) {
	store := newTestStore(t)
	svc := NewRecurringService(store)
	ctx := context.Background()

	saved, err := svc.CreateTemplate(ctx, sampleRecurring(""))
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	ranOn := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	if err := store.MarkRecurringExecuted(ctx, saved.ID, ranOn); err != nil {
		t.Fatalf("MarkRecurringExecuted: %v", err)
	}

	saved.Description = "Hosting plan XL"
	saved.Amount = decimal.RequireFromString("49.90")
	saved.Every = core.Monthly
	saved.LastExecution = time.Time{} // callers never manage this field
	updated, err := svc.UpdateTemplate(ctx, saved)
	if err != nil {
		t.Fatalf("UpdateTemplate: %v", err)
	}
	if updated.LastExecution.IsZero() {
		t.Error("LastExecution lost on update")
	}

	got, err := svc.GetTemplate(ctx, saved.ID)
	if err != nil {
		t.Fatalf("GetTemplate: %v", err)
	}
	if got.Description != "Hosting plan XL" {
		t.Errorf("Description = %q, want %q", got.Description, "Hosting plan XL")
	}
	if got.Every != core.Monthly {
		t.Errorf("Every = %q, want monthly", got.Every)
	}
	if got.LastExecution.Format("2006-01-02") != "2025-06-10" {
		t.Errorf("LastExecution = %s, want 2025-06-10", got.LastExecution.Format("2006-01-02"))
	}
}

func TestDeleteTemplate(t *testing.T) {
	store := newTestStore(t)
	svc := NewRecurringService(store)
	ctx := context.Background()

	saved, err := svc.CreateTemplate(ctx, sampleRecurring(""))
	if err != nil {
		t.Fatalf("CreateTemplate: %v", err)
	}
	if err := svc.DeleteTemplate(ctx, saved.ID); err != nil {
		t.Fatalf("DeleteTemplate: %v", err)
	}
	if _, err := svc.GetTemplate(ctx, saved.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := svc.DeleteTemplate(ctx, saved.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
