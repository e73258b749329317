package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"contabile/internal/core"
	"contabile/internal/export"
	"contabile/internal/log"
	"contabile/internal/report"
)

const exportTimeout = 30 * time.Second

// sendCSV sets download headers and streams the writer's output. Errors past
// the first byte cannot change the status code, so they are only logged.
func sendCSV(w http.ResponseWriter, r *http.Request, filename string, write func() error) {
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	if err := write(); err != nil {
		slog.ErrorContext(r.Context(), "CSV export failed",
			log.FieldPath, r.URL.Path,
			log.FieldError, err)
	}
}

// handleExportTransactions streams the ledger window as CSV.
func (s *Server) handleExportTransactions(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()

	rng := ParseRangeParams(r.URL.Query(), time.Now())
	txs, err := s.transactionsInRange(ctx, rng.From, rng.To)
	if err != nil {
		writeDomainError(w, r, err, "export transactions")
		return
	}

	name := "transactions_" + rng.From.Format("2006-01-02") + "_" + rng.To.Format("2006-01-02") + ".csv"
	sendCSV(w, r, name, func() error {
		return export.WriteTransactions(w, txs)
	})
}

// handleExportCustomers streams the income-by-customer summary as CSV.
func (s *Server) handleExportCustomers(w http.ResponseWriter, r *http.Request) {
	s.exportGroups(w, r, "customers", core.Income, report.GroupByParty)
}

// handleExportVendors streams the spending-by-vendor summary as CSV.
func (s *Server) handleExportVendors(w http.ResponseWriter, r *http.Request) {
	s.exportGroups(w, r, "vendors", core.Expense, report.GroupByParty)
}

// handleExportCategories streams the spending-by-category summary as CSV.
func (s *Server) handleExportCategories(w http.ResponseWriter, r *http.Request) {
	s.exportGroups(w, r, "categories", core.Expense, report.GroupByCategory)
}

func (s *Server) exportGroups(w http.ResponseWriter, r *http.Request, name string, typ core.TransactionType, group func([]core.Transaction, core.TransactionType) []report.Group) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()

	rng := ParseRangeParams(r.URL.Query(), time.Now())
	txs, err := s.transactionsInRange(ctx, rng.From, rng.To)
	if err != nil {
		writeDomainError(w, r, err, "export "+name)
		return
	}

	header := export.PartiesHeader
	if name == "categories" {
		header = export.CategoriesHeader
	}

	filename := name + "_" + rng.From.Format("2006-01-02") + "_" + rng.To.Format("2006-01-02") + ".csv"
	sendCSV(w, r, filename, func() error {
		return export.WriteGroups(w, header, group(txs, typ))
	})
}

// handleExportTrend streams the monthly trend as CSV.
func (s *Server) handleExportTrend(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()

	months := ParseMonthsParam(r.URL.Query(), defaultTrendMonths, 1, maxTrendMonths)
	now := time.Now().UTC()
	from := trendStart(now, months)

	txs, err := s.transactionsInRange(ctx, from, time.Time{})
	if err != nil {
		writeDomainError(w, r, err, "export trend")
		return
	}

	cfg := s.businessConfig(ctx)
	points := report.MonthlyTrend(txs, months, now, cfg.Locale)

	sendCSV(w, r, "trend.csv", func() error {
		return export.WriteTrend(w, points)
	})
}

// handleExportDocuments streams invoices or bills as CSV.
func (s *Server) handleExportDocuments(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), exportTimeout)
	defer cancel()

	kind := core.DocumentKind(strings.TrimSpace(r.URL.Query().Get("kind")))
	if kind == "" {
		kind = core.KindInvoice
	}
	if !kind.IsValid() {
		BadRequestError("Unknown document kind").Write(w)
		return
	}

	docs, err := s.documentsOfKind(ctx, kind)
	if err != nil {
		writeDomainError(w, r, err, "export documents")
		return
	}

	sendCSV(w, r, string(kind)+"s.csv", func() error {
		return export.WriteDocuments(w, docs)
	})
}
