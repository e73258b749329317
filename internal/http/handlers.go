package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"contabile/internal/core"
	"contabile/internal/log"
	"contabile/internal/storage"
)

// render executes a template into a buffer first so a failed render becomes
// a clean 500 instead of a half-written fragment.
func (s *Server) render(w http.ResponseWriter, name string, data any) {
	if s.templates == nil {
		http.Error(w, "Templates unavailable", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		slog.Error("Template render failed", "template", name, log.FieldError, err)
		http.Error(w, "Failed to render view", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

// businessConfig loads display settings, falling back to defaults so a
// rendering path never breaks on a missing config row.
func (s *Server) businessConfig(ctx context.Context) core.BusinessConfig {
	cfg, err := s.settings.GetBusinessConfig(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Falling back to default business config", log.FieldError, err)
		return core.BusinessConfig{Type: core.BusinessGeneral, Currency: "EUR", Locale: "en"}
	}
	return cfg
}

// transactionsInRange returns transactions between from and to, serving
// repeat renders from the view cache. A zero to leaves the range open.
func (s *Server) transactionsInRange(ctx context.Context, from, to time.Time) ([]core.Transaction, error) {
	key := from.Format("2006-01-02") + "|" + to.Format("2006-01-02")
	if txs, ok := s.txCache.Get(key); ok {
		return txs, nil
	}
	txs, err := s.ledger.ListTransactions(ctx, storage.TransactionFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	s.txCache.Set(key, txs)
	return txs, nil
}

// documentsOfKind returns every document of one kind, cached per kind.
func (s *Server) documentsOfKind(ctx context.Context, kind core.DocumentKind) ([]core.Document, error) {
	key := string(kind)
	if docs, ok := s.docCache.Get(key); ok {
		return docs, nil
	}
	docs, err := s.documents.ListDocuments(ctx, storage.DocumentFilter{Kind: kind})
	if err != nil {
		return nil, err
	}
	s.docCache.Set(key, docs)
	return docs, nil
}

// validationMessages maps domain sentinels to the message shown inline.
var validationMessages = []struct {
	err error
	msg string
}{
	{core.ErrInvalidType, "Transaction type must be income or expense"},
	{core.ErrInvalidAmount, "Amount must be a positive number"},
	{core.ErrInvalidDate, "A valid date is required"},
	{core.ErrEmptyDescription, "Description is required"},
	{core.ErrEmptyName, "Name is required"},
	{core.ErrInvalidCadence, "Unsupported repetition cadence"},
	{core.ErrInvalidBusiness, "Unsupported business type"},
	{core.ErrInvalidCurrency, "Unsupported currency"},
	{core.ErrInvalidKind, "Document kind must be invoice or bill"},
	{core.ErrInvalidStatus, "Unsupported document status"},
	{core.ErrEmptyParty, "Counterparty name is required"},
	{core.ErrInvalidEmail, "Counterparty email looks invalid"},
	{core.ErrNoLines, "At least one line item is required"},
	{core.ErrInvalidQuantity, "Line quantities must be positive numbers"},
}

// writeDomainError renders a validation failure as a 422 fragment, a missing
// record as 404, and anything else as a logged 500.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error, action string) {
	for _, vm := range validationMessages {
		if errors.Is(err, vm.err) {
			UnprocessableEntityError(vm.msg).Write(w)
			return
		}
	}
	if errors.Is(err, storage.ErrNotFound) {
		NotFoundError("Record not found").Write(w)
		return
	}
	slog.ErrorContext(r.Context(), "Request failed",
		log.FieldOperation, action,
		log.FieldPath, r.URL.Path,
		log.FieldError, err)
	InternalServerError("Something went wrong. Please try again.").Write(w)
}

// handleHealth is a basic liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleReady verifies the store answers queries before reporting ready.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]any)

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	if _, err := s.store.GetOutboxStats(ctx); err != nil {
		checks["store"] = "failed: " + err.Error()
		status = "not_ready"
		httpStatus = http.StatusServiceUnavailable
	} else {
		checks["store"] = "ok"
	}

	w.WriteHeader(httpStatus)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": checks,
		"security": map[string]any{
			"active_clients":      s.rateLimiter.activeClients(),
			"rate_limit_hits":     atomic.LoadInt64(&s.secMetrics.rateLimitHits),
			"suspicious_requests": atomic.LoadInt64(&s.secMetrics.suspiciousRequests),
		},
	})
}
