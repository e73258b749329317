package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"contabile/internal/core"
)

// sealForApply builds the envelope a remote pull hands back: the same
// payload JSON the push path produces, sealed with this vault's key.
func sealForApply(t *testing.T, s *Store, payload []byte, err error) string {
	t.Helper()
	if err != nil {
		t.Fatalf("encode payload: %v", err)
	}
	enc, err := s.vault.Encrypt(payload)
	if err != nil {
		t.Fatalf("seal payload: %v", err)
	}
	return enc
}

func TestApplyRemoteUpsertTransaction(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx := *testTx()
	tx.Version = 3
	payload, err := transactionPayload(tx)
	env := sealForApply(t, s, payload, err)

	applied, err := s.ApplyRemote(ctx, EntityTransaction, tx.ID, OpUpsert, 3, env)
	if err != nil {
		t.Fatalf("ApplyRemote: %v", err)
	}
	if !applied {
		t.Fatal("expected envelope to apply")
	}

	got, err := s.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Description != tx.Description {
		t.Errorf("description = %q, want %q", got.Description, tx.Description)
	}
	if !got.Amount.Equal(tx.Amount) {
		t.Errorf("amount = %s, want %s", got.Amount, tx.Amount)
	}
	if got.Version != 3 {
		t.Errorf("version = %d, want 3", got.Version)
	}

	// Pulled writes must not echo back into the outbox.
	stats, err := s.GetOutboxStats(ctx)
	if err != nil {
		t.Fatalf("GetOutboxStats: %v", err)
	}
	if stats.Total() != 0 {
		t.Errorf("outbox rows after apply = %d, want 0", stats.Total())
	}
}

func TestApplyRemoteLastWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx := testTx()
	if err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}
	tx.Description = "local edit"
	if err := s.UpdateTransaction(ctx, tx); err != nil {
		t.Fatalf("update: %v", err)
	}
	// Local row is now at version 2.

	stale := *tx
	stale.Description = "stale remote copy"
	stale.Version = 1
	payload, err := transactionPayload(stale)
	env := sealForApply(t, s, payload, err)

	applied, err := s.ApplyRemote(ctx, EntityTransaction, tx.ID, OpUpsert, 1, env)
	if err != nil {
		t.Fatalf("ApplyRemote stale: %v", err)
	}
	if applied {
		t.Fatal("stale envelope should be skipped")
	}

	equal := *tx
	equal.Description = "same-version remote copy"
	payload, err = transactionPayload(equal)
	env = sealForApply(t, s, payload, err)
	if applied, err = s.ApplyRemote(ctx, EntityTransaction, tx.ID, OpUpsert, 2, env); err != nil {
		t.Fatalf("ApplyRemote equal: %v", err)
	}
	if applied {
		t.Fatal("equal-version envelope should be skipped")
	}

	newer := *tx
	newer.Description = "remote edit"
	newer.Version = 5
	payload, err = transactionPayload(newer)
	env = sealForApply(t, s, payload, err)
	if applied, err = s.ApplyRemote(ctx, EntityTransaction, tx.ID, OpUpsert, 5, env); err != nil {
		t.Fatalf("ApplyRemote newer: %v", err)
	}
	if !applied {
		t.Fatal("newer envelope should apply")
	}

	got, err := s.GetTransaction(ctx, tx.ID)
	if err != nil {
		t.Fatalf("GetTransaction: %v", err)
	}
	if got.Description != "remote edit" {
		t.Errorf("description = %q, want %q", got.Description, "remote edit")
	}
	if got.Version != 5 {
		t.Errorf("version = %d, want 5", got.Version)
	}
}

func TestApplyRemoteDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tx := testTx()
	if err := s.CreateTransaction(ctx, tx); err != nil {
		t.Fatalf("create: %v", err)
	}

	applied, err := s.ApplyRemote(ctx, EntityTransaction, tx.ID, OpDelete, 2, "")
	if err != nil {
		t.Fatalf("ApplyRemote delete: %v", err)
	}
	if !applied {
		t.Fatal("expected delete to apply")
	}
	if _, err := s.GetTransaction(ctx, tx.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("after delete err = %v, want ErrNotFound", err)
	}

	// Tombstone for a record this device never had: nothing to do.
	applied, err = s.ApplyRemote(ctx, EntityTransaction, tx.ID, OpDelete, 3, "")
	if err != nil {
		t.Fatalf("ApplyRemote repeat delete: %v", err)
	}
	if applied {
		t.Fatal("deleting an absent record should be a no-op")
	}
}

func TestApplyRemoteDocument(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	d := *testDoc()
	d.ID = uuid.NewString()
	d.Number = "INV-2025-042"
	d.PartyEmail = "accounts@client.test"
	d.Version = 2
	payload, err := documentPayload(d)
	env := sealForApply(t, s, payload, err)

	applied, err := s.ApplyRemote(ctx, EntityDocument, d.ID, OpUpsert, 2, env)
	if err != nil {
		t.Fatalf("ApplyRemote: %v", err)
	}
	if !applied {
		t.Fatal("expected envelope to apply")
	}

	got, err := s.GetDocument(ctx, d.ID)
	if err != nil {
		t.Fatalf("GetDocument: %v", err)
	}
	if got.Number != d.Number {
		t.Errorf("number = %q, want %q", got.Number, d.Number)
	}
	if got.Party != d.Party {
		t.Errorf("party = %q, want %q", got.Party, d.Party)
	}
	if got.PartyEmail != d.PartyEmail {
		t.Errorf("party email = %q, want %q", got.PartyEmail, d.PartyEmail)
	}
	if len(got.Lines) != len(d.Lines) {
		t.Fatalf("lines = %d, want %d", len(got.Lines), len(d.Lines))
	}
	if !got.Total.Equal(d.Total) {
		t.Errorf("total = %s, want %s", got.Total, d.Total)
	}
}

func TestApplyRemoteCatalog(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := core.Product{
		ID:       uuid.NewString(),
		Name:     "Widget",
		Price:    decimal.RequireFromString("19.99"),
		Category: "Hardware",
		Version:  1,
	}
	payload, err := productPayload(p)
	env := sealForApply(t, s, payload, err)
	applied, err := s.ApplyRemote(ctx, EntityProduct, p.ID, OpUpsert, 1, env)
	if err != nil || !applied {
		t.Fatalf("apply product: applied=%v err=%v", applied, err)
	}
	gotP, err := s.GetProduct(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProduct: %v", err)
	}
	if !gotP.Price.Equal(p.Price) {
		t.Errorf("price = %s, want %s", gotP.Price, p.Price)
	}

	sv := core.Service{
		ID:         uuid.NewString(),
		Name:       "Consulting",
		HourlyRate: decimal.RequireFromString("120"),
		Version:    1,
	}
	payload, err = servicePayload(sv)
	env = sealForApply(t, s, payload, err)
	applied, err = s.ApplyRemote(ctx, EntityService, sv.ID, OpUpsert, 1, env)
	if err != nil || !applied {
		t.Fatalf("apply service: applied=%v err=%v", applied, err)
	}
	gotS, err := s.GetService(ctx, sv.ID)
	if err != nil {
		t.Fatalf("GetService: %v", err)
	}
	if !gotS.HourlyRate.Equal(sv.HourlyRate) {
		t.Errorf("hourly rate = %s, want %s", gotS.HourlyRate, sv.HourlyRate)
	}
}

func TestApplyRemoteBusinessConfig(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	bc := core.BusinessConfig{
		Name:     "Studio Rossi",
		Type:     core.BusinessLegal,
		Currency: "EUR",
		Locale:   "it",
		Version:  4,
	}
	payload, err := businessConfigPayload(bc)
	env := sealForApply(t, s, payload, err)

	applied, err := s.ApplyRemote(ctx, EntityBusinessConfig, configRecordID, OpUpsert, 4, env)
	if err != nil {
		t.Fatalf("ApplyRemote: %v", err)
	}
	if !applied {
		t.Fatal("expected envelope to apply")
	}

	got, err := s.GetBusinessConfig(ctx)
	if err != nil {
		t.Fatalf("GetBusinessConfig: %v", err)
	}
	if got.Name != bc.Name || got.Type != bc.Type || got.Locale != bc.Locale {
		t.Errorf("config = %+v, want %+v", got, bc)
	}

	stale := bc
	stale.Name = "Old Name"
	stale.Version = 2
	payload, err = businessConfigPayload(stale)
	env = sealForApply(t, s, payload, err)
	if applied, err = s.ApplyRemote(ctx, EntityBusinessConfig, configRecordID, OpUpsert, 2, env); err != nil {
		t.Fatalf("ApplyRemote stale: %v", err)
	}
	if applied {
		t.Fatal("stale config envelope should be skipped")
	}
}

func TestApplyRemoteUnknownEntity(t *testing.T) {
	s := newTestStore(t)

	_, err := s.ApplyRemote(context.Background(), "ledger", uuid.NewString(), OpUpsert, 1, "")
	if err == nil {
		t.Fatal("expected error for unknown entity")
	}
}
