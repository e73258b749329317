package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"contabile/internal/core"
	"contabile/internal/storage"
)

// RecurringProcessor materializes transactions from recurring templates.
// Templates themselves stay local; the transactions they create go through
// the ledger service and sync like any hand-entered record.
type RecurringProcessor struct {
	store  *storage.Store
	ledger *LedgerService
}

func NewRecurringProcessor(store *storage.Store, ledger *LedgerService) *RecurringProcessor {
	return &RecurringProcessor{store: store, ledger: ledger}
}

// ProcessDue sweeps the active templates and creates a transaction for each
// one whose cadence says it is due. Returns how many were created. A
// failing template is logged and skipped so one bad row cannot stall the
// rest of the sweep.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	templates, err := p.store.ListActiveRecurring(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("list active recurring transactions: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring transactions",
		"active", len(templates), "date", now.Format("2006-01-02"))

	created := 0
	for _, rt := range templates {
		checker, err := GetDuenessChecker(rt.Every)
		if err != nil {
			slog.ErrorContext(ctx, "Unknown recurring cadence",
				"recurring_id", rt.ID, "every", rt.Every, "error", err)
			continue
		}
		if !checker.IsDue(rt.LastExecution, now, rt.StartDate) {
			continue
		}

		t := core.Transaction{
			Type:        rt.Type,
			Amount:      rt.Amount,
			Description: rt.Description,
			Category:    rt.Category,
			Customer:    rt.Customer,
			Vendor:      rt.Vendor,
			Account:     rt.Account,
			Date:        now,
		}
		saved, err := p.ledger.CreateTransaction(ctx, t)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to create transaction from recurring template",
				"recurring_id", rt.ID, "error", err)
			continue
		}
		// If this mark fails the next sweep will create a duplicate; a
		// duplicate beats silently losing the charge.
		if err := p.store.MarkRecurringExecuted(ctx, rt.ID, now); err != nil {
			slog.ErrorContext(ctx, "Failed to record recurring execution",
				"recurring_id", rt.ID, "transaction_id", saved.ID, "error", err)
			continue
		}
		created++
		slog.InfoContext(ctx, "Created transaction from recurring template",
			"recurring_id", rt.ID, "transaction_id", saved.ID, "every", rt.Every)
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"active", len(templates), "created", created)
	return created, nil
}
