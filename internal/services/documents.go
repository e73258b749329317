package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"contabile/internal/amqp"
	"contabile/internal/core"
	"contabile/internal/storage"
)

// DocumentService owns invoice and bill writes: numbering, totals,
// validation, duplicate-number detection and status transitions.
type DocumentService struct {
	store *storage.Store
	amqp  *amqp.Client
}

func NewDocumentService(store *storage.Store, amqpClient *amqp.Client) *DocumentService {
	return &DocumentService{store: store, amqp: amqpClient}
}

// CreateDocument fills in defaults, recomputes totals and saves. A blank
// number gets a kind-prefixed timestamp. The returned flag reports whether
// another document of the same kind already uses the number; duplicates are
// stored anyway and left for the caller to surface.
func (s *DocumentService) CreateDocument(ctx context.Context, d core.Document) (core.Document, bool, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = core.StatusDraft
	}
	if strings.TrimSpace(d.Number) == "" {
		d.Number = documentNumber(d.Kind, time.Now().UTC())
	}
	d.ComputeTotals()
	if err := d.Validate(); err != nil {
		return core.Document{}, false, err
	}
	if err := s.store.CreateDocument(ctx, &d); err != nil {
		return core.Document{}, false, fmt.Errorf("create document: %w", err)
	}
	nudgeSync(ctx, s.amqp, storage.EntityDocument, d.ID, d.Version)
	return d, s.numberTaken(ctx, d), nil
}

// UpdateDocument recomputes totals, validates and overwrites the stored
// document, line items included. Same duplicate-number flag as create.
func (s *DocumentService) UpdateDocument(ctx context.Context, d core.Document) (core.Document, bool, error) {
	d.ComputeTotals()
	if err := d.Validate(); err != nil {
		return core.Document{}, false, err
	}
	if err := s.store.UpdateDocument(ctx, &d); err != nil {
		return core.Document{}, false, err
	}
	nudgeSync(ctx, s.amqp, storage.EntityDocument, d.ID, d.Version)
	return d, s.numberTaken(ctx, d), nil
}

func (s *DocumentService) DeleteDocument(ctx context.Context, id string) error {
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	nudgeSync(ctx, s.amqp, storage.EntityDocument, id, 0)
	return nil
}

// SetDocumentStatus moves a document to any valid status. Transitions are
// unrestricted; marking a paid invoice pending again is a bookkeeping
// correction, not an error.
func (s *DocumentService) SetDocumentStatus(ctx context.Context, id string, status core.DocumentStatus) (core.Document, error) {
	if !status.IsValid() {
		return core.Document{}, core.ErrInvalidStatus
	}
	d, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return core.Document{}, err
	}
	d.Status = status
	if err := s.store.UpdateDocument(ctx, &d); err != nil {
		return core.Document{}, err
	}
	nudgeSync(ctx, s.amqp, storage.EntityDocument, d.ID, d.Version)
	return d, nil
}

// MarkOverdue flips pending and sent documents past their due date to
// overdue and returns how many changed. Drafts keep their status no matter
// how old they are.
func (s *DocumentService) MarkOverdue(ctx context.Context, now time.Time) (int, error) {
	flipped := 0
	for _, status := range []core.DocumentStatus{core.StatusPending, core.StatusSent} {
		docs, err := s.store.ListDocuments(ctx, storage.DocumentFilter{Status: status})
		if err != nil {
			return flipped, fmt.Errorf("list %s documents: %w", status, err)
		}
		for _, d := range docs {
			if !d.IsPastDue(now) {
				continue
			}
			d.Status = core.StatusOverdue
			if err := s.store.UpdateDocument(ctx, &d); err != nil {
				slog.ErrorContext(ctx, "Failed to mark document overdue",
					"document_id", d.ID, "error", err)
				continue
			}
			nudgeSync(ctx, s.amqp, storage.EntityDocument, d.ID, d.Version)
			flipped++
		}
	}
	return flipped, nil
}

func (s *DocumentService) GetDocument(ctx context.Context, id string) (core.Document, error) {
	return s.store.GetDocument(ctx, id)
}

func (s *DocumentService) ListDocuments(ctx context.Context, f storage.DocumentFilter) ([]core.Document, error) {
	return s.store.ListDocuments(ctx, f)
}

// numberTaken reports whether another document of the same kind uses the
// same number. Lookup failures count as no duplicate; the warning is
// advisory and must not fail a write that already landed.
func (s *DocumentService) numberTaken(ctx context.Context, d core.Document) bool {
	n, err := s.store.CountDocumentsByNumber(ctx, d.Kind, d.Number, d.ID)
	if err != nil {
		slog.WarnContext(ctx, "Duplicate number check failed",
			"document_id", d.ID, "error", err)
		return false
	}
	return n > 0
}

// documentNumber derives a fallback number for documents created without
// one: kind prefix plus creation timestamp.
func documentNumber(kind core.DocumentKind, now time.Time) string {
	prefix := "INV"
	if kind == core.KindBill {
		prefix = "BILL"
	}
	return fmt.Sprintf("%s-%d", prefix, now.Unix())
}
