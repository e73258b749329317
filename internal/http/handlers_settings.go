package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"contabile/internal/core"
	"contabile/internal/log"
)

type settingsView struct {
	Name       string
	Type       string
	Currency   string
	Locale     string
	Currencies []string
	Types      []string
	VaultSalt  string
	HasBackend bool
}

// handleSettingsForm renders the business profile form. The vault salt is
// shown so a second device can be paired against the same remote copy.
func (s *Server) handleSettingsForm(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	cfg := s.businessConfig(ctx)

	s.render(w, "settings.html", settingsView{
		Name:       cfg.Name,
		Type:       string(cfg.Type),
		Currency:   cfg.Currency,
		Locale:     cfg.Locale,
		Currencies: core.SupportedCurrencies,
		Types:      []string{string(core.BusinessGeneral), string(core.BusinessLegal)},
		VaultSalt:  s.store.VaultSalt(),
		HasBackend: s.auth != nil,
	})
}

// handleSaveSettings stores the business profile.
func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	cfg := core.BusinessConfig{
		Name:     sanitizeInput(r.FormValue("name")),
		Type:     core.BusinessType(strings.TrimSpace(r.FormValue("business_type"))),
		Currency: strings.ToUpper(strings.TrimSpace(r.FormValue("currency"))),
		Locale:   strings.TrimSpace(r.FormValue("locale")),
	}

	saved, err := s.settings.SaveBusinessConfig(ctx, cfg)
	if err != nil {
		writeDomainError(w, r, err, "save settings")
		return
	}

	// Currency and locale feed every money string, so cached views are stale.
	s.invalidateViews()
	NewHTMXResponse().
		TriggerSettingsSaved().
		TriggerLedgerChanged().
		TriggerDocumentsChanged().
		TriggerCatalogChanged().
		TriggerSyncChanged().
		TriggerSuccessNotification("Settings saved for " + saved.Name).
		Write(w)
}

// handlePasswordReset asks the hosted backend to mail a reset link. Without
// a backend there is no account, so the action is rejected.
func (s *Server) handlePasswordReset(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if s.auth == nil {
		BadRequestError("Password reset needs a hosted backend").Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	email := strings.TrimSpace(r.FormValue("email"))
	if email == "" || !strings.Contains(email, "@") {
		UnprocessableEntityError("A valid email is required").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	if err := s.auth.RequestPasswordReset(ctx, email); err != nil {
		slog.ErrorContext(ctx, "Password reset request failed", log.FieldError, err)
		InternalServerError("Could not reach the backend. Please try again.").Write(w)
		return
	}

	NewHTMXResponse().
		TriggerSuccessNotification("Reset link sent to " + email).
		Write(w)
}

type syncStatusView struct {
	State      string
	Pending    int64
	Processing int64
	Completed  int64
	Failed     int64
	HasFailed  bool
}

// handleSyncStatus renders the outbox badge: synced, syncing, or attention
// when pushes have exhausted their retries.
func (s *Server) handleSyncStatus(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	stats, err := s.store.GetOutboxStats(ctx)
	if err != nil {
		writeDomainError(w, r, err, "sync status")
		return
	}

	state := "synced"
	switch {
	case stats.Failed > 0:
		state = "attention"
	case stats.Pending > 0 || stats.Processing > 0:
		state = "syncing"
	}

	s.render(w, "sync_status.html", syncStatusView{
		State:      state,
		Pending:    stats.Pending,
		Processing: stats.Processing,
		Completed:  stats.Completed,
		Failed:     stats.Failed,
		HasFailed:  stats.Failed > 0,
	})
}

// handleSyncRetry requeues failed outbox items and pokes the worker.
func (s *Server) handleSyncRetry(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	n, err := s.store.RetryFailedOutbox(ctx)
	if err != nil {
		writeDomainError(w, r, err, "sync retry")
		return
	}

	if n > 0 && s.nudger != nil {
		if err := s.nudger.PublishSyncRequest(ctx, "outbox", "retry", 0); err != nil {
			slog.WarnContext(ctx, "Failed to nudge sync worker after retry", log.FieldError, err)
		}
	}

	resp := NewHTMXResponse().TriggerSyncChanged()
	if n == 0 {
		resp.TriggerNotification(NotificationInfo, "Nothing to retry", 3000)
	} else {
		resp.TriggerSuccessNotification(fmt.Sprintf("Requeued %d failed changes", n))
	}
	resp.Write(w)
}
