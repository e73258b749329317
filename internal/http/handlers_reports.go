package http

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"contabile/internal/core"
	"contabile/internal/report"
)

const (
	defaultTrendMonths = 6
	maxTrendMonths     = 24
)

type summaryView struct {
	From             string
	To               string
	TotalIncome      string
	TotalExpenses    string
	NetProfit        string
	NetNegative      bool
	ProfitMargin     string
	TransactionCount int
}

// handleSummary renders the headline income/expense/profit card.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	rng := ParseRangeParams(r.URL.Query(), time.Now())
	txs, err := s.transactionsInRange(ctx, rng.From, rng.To)
	if err != nil {
		writeDomainError(w, r, err, "summary")
		return
	}

	cfg := s.businessConfig(ctx)
	sum := report.Summarize(txs)

	s.render(w, "summary.html", summaryView{
		From:             rng.From.Format("2006-01-02"),
		To:               rng.To.Format("2006-01-02"),
		TotalIncome:      formatMoney(sum.TotalIncome, cfg),
		TotalExpenses:    formatMoney(sum.TotalExpenses, cfg),
		NetProfit:        formatMoney(sum.NetProfit, cfg),
		NetNegative:      sum.NetProfit.IsNegative(),
		ProfitMargin:     formatPercent(sum.ProfitMargin),
		TransactionCount: sum.TransactionCount,
	})
}

type trendRow struct {
	Label        string
	Income       string
	Expenses     string
	Net          string
	NetNegative  bool
	IncomeWidth  int
	ExpenseWidth int
}

type trendView struct {
	Months    int
	Rows      []trendRow
	ExportURL string
}

// handleTrend renders the month-by-month income and expense bars.
func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	months := ParseMonthsParam(r.URL.Query(), defaultTrendMonths, 1, maxTrendMonths)
	now := time.Now().UTC()
	from := trendStart(now, months)

	txs, err := s.transactionsInRange(ctx, from, time.Time{})
	if err != nil {
		writeDomainError(w, r, err, "trend")
		return
	}

	cfg := s.businessConfig(ctx)
	points := report.MonthlyTrend(txs, months, now, cfg.Locale)

	max := decimal.Zero
	for _, p := range points {
		if p.Income.GreaterThan(max) {
			max = p.Income
		}
		if p.Expenses.GreaterThan(max) {
			max = p.Expenses
		}
	}

	rows := make([]trendRow, 0, len(points))
	for _, p := range points {
		rows = append(rows, trendRow{
			Label:        p.Label,
			Income:       formatMoney(p.Income, cfg),
			Expenses:     formatMoney(p.Expenses, cfg),
			Net:          formatMoney(p.Net, cfg),
			NetNegative:  p.Net.IsNegative(),
			IncomeWidth:  barWidth(p.Income, max),
			ExpenseWidth: barWidth(p.Expenses, max),
		})
	}

	s.render(w, "trend.html", trendView{
		Months:    months,
		Rows:      rows,
		ExportURL: "/export/trend.csv?months=" + strconv.Itoa(months),
	})
}

// trendStart is the first day of the oldest month in a trend window ending
// at now. Stored dates are UTC, so the anchor converts to the UTC calendar
// first; otherwise a local clock near a month boundary would shift the
// window off the data by one month.
func trendStart(now time.Time, months int) time.Time {
	now = now.UTC()
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
}

type groupRow struct {
	Name    string
	Total   string
	Count   int
	Average string
	Percent string
	Width   int
}

type groupsView struct {
	Title     string
	Rows      []groupRow
	ExportURL string
}

// handleCustomers breaks income down by counterparty.
func (s *Server) handleCustomers(w http.ResponseWriter, r *http.Request) {
	s.renderGroups(w, r, "Income by customer", core.Income, report.GroupByParty, "/export/customers.csv")
}

// handleVendors breaks spending down by counterparty.
func (s *Server) handleVendors(w http.ResponseWriter, r *http.Request) {
	s.renderGroups(w, r, "Spending by vendor", core.Expense, report.GroupByParty, "/export/vendors.csv")
}

// handleCategories breaks spending down by category.
func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.renderGroups(w, r, "Spending by category", core.Expense, report.GroupByCategory, "/export/categories.csv")
}

func (s *Server) renderGroups(w http.ResponseWriter, r *http.Request, title string, typ core.TransactionType, group func([]core.Transaction, core.TransactionType) []report.Group, exportPath string) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	rng := ParseRangeParams(r.URL.Query(), time.Now())
	txs, err := s.transactionsInRange(ctx, rng.From, rng.To)
	if err != nil {
		writeDomainError(w, r, err, "groups")
		return
	}

	cfg := s.businessConfig(ctx)
	groups := group(txs, typ)

	max := decimal.Zero
	for _, g := range groups {
		if g.Total.GreaterThan(max) {
			max = g.Total
		}
	}

	rows := make([]groupRow, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, groupRow{
			Name:    g.Name,
			Total:   formatMoney(g.Total, cfg),
			Count:   g.Count,
			Average: formatMoney(g.Average, cfg),
			Percent: formatPercent(g.Percent),
			Width:   barWidth(g.Total, max),
		})
	}

	q := url.Values{}
	q.Set("from", rng.From.Format("2006-01-02"))
	q.Set("to", rng.To.Format("2006-01-02"))

	s.render(w, "group_table.html", groupsView{
		Title:     title,
		Rows:      rows,
		ExportURL: exportPath + "?" + q.Encode(),
	})
}
