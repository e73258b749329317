package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"contabile/internal/amqp"
	"contabile/internal/core"
	"contabile/internal/storage"
)

// LedgerService owns transaction writes: validation, persistence and the
// sync nudge that follows a successful save.
type LedgerService struct {
	store *storage.Store
	amqp  *amqp.Client
}

func NewLedgerService(store *storage.Store, amqpClient *amqp.Client) *LedgerService {
	return &LedgerService{store: store, amqp: amqpClient}
}

// CreateTransaction assigns an ID when the caller left it blank, validates
// and saves the record.
func (s *LedgerService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.CreateTransaction(ctx, &t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	nudgeSync(ctx, s.amqp, storage.EntityTransaction, t.ID, t.Version)
	return t, nil
}

func (s *LedgerService) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.store.UpdateTransaction(ctx, &t); err != nil {
		return core.Transaction{}, err
	}
	nudgeSync(ctx, s.amqp, storage.EntityTransaction, t.ID, t.Version)
	return t, nil
}

// DeleteTransaction tombstones a record. The nudge carries version zero
// because the tombstone version is assigned inside the store.
func (s *LedgerService) DeleteTransaction(ctx context.Context, id string) error {
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return err
	}
	nudgeSync(ctx, s.amqp, storage.EntityTransaction, id, 0)
	return nil
}

func (s *LedgerService) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

func (s *LedgerService) ListTransactions(ctx context.Context, f storage.TransactionFilter) ([]core.Transaction, error) {
	return s.store.ListTransactions(ctx, f)
}

func (s *LedgerService) ListCategories(ctx context.Context) ([]string, error) {
	return s.store.ListCategories(ctx)
}
