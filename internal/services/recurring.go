package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"contabile/internal/core"
	"contabile/internal/storage"
)

// RecurringService owns recurring-template writes. Templates are local
// scheduling state and never reach the outbox, so there is no sync nudge
// here; the transactions they materialize go through the ledger service.
type RecurringService struct {
	store *storage.Store
}

func NewRecurringService(store *storage.Store) *RecurringService {
	return &RecurringService{store: store}
}

// CreateTemplate assigns an ID when the caller left it blank, validates and
// saves the template.
func (s *RecurringService) CreateTemplate(ctx context.Context, rt core.RecurringTransaction) (core.RecurringTransaction, error) {
	if rt.ID == "" {
		rt.ID = uuid.NewString()
	}
	if err := rt.Validate(); err != nil {
		return core.RecurringTransaction{}, err
	}
	if err := s.store.CreateRecurring(ctx, &rt); err != nil {
		return core.RecurringTransaction{}, fmt.Errorf("create recurring template: %w", err)
	}
	return rt, nil
}

// UpdateTemplate rewrites a template in place. LastExecution survives the
// update so an edited template does not re-fire for a period it already
// covered.
func (s *RecurringService) UpdateTemplate(ctx context.Context, rt core.RecurringTransaction) (core.RecurringTransaction, error) {
	if err := rt.Validate(); err != nil {
		return core.RecurringTransaction{}, err
	}
	current, err := s.store.GetRecurring(ctx, rt.ID)
	if err != nil {
		return core.RecurringTransaction{}, err
	}
	rt.LastExecution = current.LastExecution
	if err := s.store.UpdateRecurring(ctx, &rt); err != nil {
		return core.RecurringTransaction{}, err
	}
	return rt, nil
}

func (s *RecurringService) DeleteTemplate(ctx context.Context, id string) error {
	return s.store.DeleteRecurring(ctx, id)
}

func (s *RecurringService) GetTemplate(ctx context.Context, id string) (core.RecurringTransaction, error) {
	return s.store.GetRecurring(ctx, id)
}

func (s *RecurringService) ListTemplates(ctx context.Context) ([]core.RecurringTransaction, error) {
	return s.store.ListRecurring(ctx)
}
