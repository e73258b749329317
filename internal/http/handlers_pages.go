package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"contabile/internal/log"
)

// indexView is the data for the dashboard shell. The sections inside it load
// themselves over HTMX, so this stays small.
type indexView struct {
	BusinessName string
	Currency     string
	Today        string
	MonthStart   string
	MonthEnd     string
	Categories   []string
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// The root pattern matches everything; anything but "/" is a miss.
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	cfg := s.businessConfig(ctx)

	categories, err := s.ledger.ListCategories(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to load categories for datalist", log.FieldError, err)
	}

	now := time.Now()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)

	name := cfg.Name
	if name == "" {
		name = "Contabile"
	}

	s.render(w, "index.html", indexView{
		BusinessName: name,
		Currency:     cfg.Currency,
		Today:        now.Format("2006-01-02"),
		MonthStart:   first.Format("2006-01-02"),
		MonthEnd:     first.AddDate(0, 1, -1).Format("2006-01-02"),
		Categories:   categories,
	})
}
