// Package report aggregates decrypted records into dashboard and report
// figures. Everything here is pure: callers load transactions and documents
// through the store, then hand the slices over. Nothing in this package
// touches SQL, because the columns the figures derive from are encrypted at
// rest and only readable after the store has decrypted them.
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"contabile/internal/core"
)

// Fallback bucket names for records missing a category or a recognizable
// counterparty.
const (
	GeneralCategory = "General"
	UnknownParty    = "Unknown"
)

type (
	// Summary is the headline card of the dashboard.
	Summary struct {
		TotalIncome      decimal.Decimal
		TotalExpenses    decimal.Decimal
		NetProfit        decimal.Decimal
		ProfitMargin     decimal.Decimal // percent of income, 0 when no income
		TransactionCount int
	}

	// Group is one aggregation bucket: a category or a counterparty.
	Group struct {
		Name    string
		Total   decimal.Decimal
		Count   int
		Average decimal.Decimal // 0 when the bucket is empty
		Percent decimal.Decimal // share of the grand total, 0 when that is 0
	}

	// MonthPoint is one month of the trend chart.
	MonthPoint struct {
		Year     int
		Month    int // 1-12
		Label    string
		Income   decimal.Decimal
		Expenses decimal.Decimal
		Net      decimal.Decimal
	}

	// StatusCount aggregates documents of one status.
	StatusCount struct {
		Status core.DocumentStatus
		Count  int
		Total  decimal.Decimal
	}

	// DocumentSummary is the invoice or bill card of the dashboard.
	// Outstanding sums documents still awaiting payment, which excludes
	// paid and cancelled ones.
	DocumentSummary struct {
		Kind        core.DocumentKind
		Count       int
		Total       decimal.Decimal
		Outstanding decimal.Decimal
		ByStatus    []StatusCount
	}
)

var hundred = decimal.NewFromInt(100)

// Filter returns the transactions dated inside [from, to], both ends
// inclusive. A zero from or to leaves that end of the range open.
func Filter(txs []core.Transaction, from, to time.Time) []core.Transaction {
	out := make([]core.Transaction, 0, len(txs))
	for _, tx := range txs {
		if !from.IsZero() && tx.Date.Before(from) {
			continue
		}
		if !to.IsZero() && tx.Date.After(to) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// Summarize computes income, expense and profit totals over the given
// transactions. The profit margin is net profit as a percentage of income,
// guarded to zero when there is no income to divide by.
func Summarize(txs []core.Transaction) Summary {
	s := Summary{
		TotalIncome:   decimal.Zero,
		TotalExpenses: decimal.Zero,
	}
	for _, tx := range txs {
		switch tx.Type {
		case core.Income:
			s.TotalIncome = s.TotalIncome.Add(tx.Amount)
		case core.Expense:
			s.TotalExpenses = s.TotalExpenses.Add(tx.Amount)
		}
		s.TransactionCount++
	}
	s.NetProfit = s.TotalIncome.Sub(s.TotalExpenses)
	if s.TotalIncome.IsPositive() {
		s.ProfitMargin = s.NetProfit.Div(s.TotalIncome).Mul(hundred).Round(2)
	} else {
		s.ProfitMargin = decimal.Zero
	}
	return s
}

// GroupByCategory buckets transactions of the given type by category.
// Records without a category land in "General". Groups come back sorted by
// total, largest first; ties keep first-seen order.
func GroupByCategory(txs []core.Transaction, typ core.TransactionType) []Group {
	return groupBy(txs, typ, func(tx core.Transaction) string {
		if c := strings.TrimSpace(tx.Category); c != "" {
			return c
		}
		return GeneralCategory
	})
}

// GroupByParty buckets transactions of the given type by counterparty. The
// party is read out of the description text, not out of the structured
// customer/vendor fields: income descriptions name the payer after the word
// "from", expense descriptions name the payee after the word "to".
// Descriptions without the marker word land in "Unknown".
func GroupByParty(txs []core.Transaction, typ core.TransactionType) []Group {
	return groupBy(txs, typ, func(tx core.Transaction) string {
		return PartyFromDescription(tx.Description, tx.Type)
	})
}

// PartyFromDescription extracts the counterparty from free text. It scans
// for the last standalone "from" (income) or "to" (expense), case
// insensitively, and returns the trimmed text after it. "Unknown" when the
// marker is missing or trailing.
func PartyFromDescription(desc string, typ core.TransactionType) string {
	marker := "to"
	if typ == core.Income {
		marker = "from"
	}
	fields := strings.Fields(desc)
	for i := len(fields) - 1; i >= 0; i-- {
		if strings.EqualFold(fields[i], marker) {
			party := strings.Join(fields[i+1:], " ")
			if party == "" {
				return UnknownParty
			}
			return party
		}
	}
	return UnknownParty
}

func groupBy(txs []core.Transaction, typ core.TransactionType, key func(core.Transaction) string) []Group {
	idx := make(map[string]int)
	groups := make([]Group, 0)
	grand := decimal.Zero

	for _, tx := range txs {
		if tx.Type != typ {
			continue
		}
		name := key(tx)
		i, ok := idx[name]
		if !ok {
			i = len(groups)
			idx[name] = i
			groups = append(groups, Group{Name: name, Total: decimal.Zero})
		}
		groups[i].Total = groups[i].Total.Add(tx.Amount)
		groups[i].Count++
		grand = grand.Add(tx.Amount)
	}

	for i := range groups {
		if groups[i].Count > 0 {
			groups[i].Average = groups[i].Total.Div(decimal.NewFromInt(int64(groups[i].Count))).Round(2)
		} else {
			groups[i].Average = decimal.Zero
		}
		if grand.IsPositive() {
			groups[i].Percent = groups[i].Total.Div(grand).Mul(hundred).Round(2)
		} else {
			groups[i].Percent = decimal.Zero
		}
	}

	sort.SliceStable(groups, func(a, b int) bool {
		return groups[a].Total.GreaterThan(groups[b].Total)
	})
	return groups
}

// MonthlyTrend returns one point per month for the window of `months` months
// ending at `now`, oldest first. Months with no activity still appear, with
// zero totals, so charts keep a continuous axis.
func MonthlyTrend(txs []core.Transaction, months int, now time.Time, locale string) []MonthPoint {
	if months <= 0 {
		return nil
	}
	points := make([]MonthPoint, months)
	idx := make(map[[2]int]int, months)
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(months - 1), 0)
	for i := 0; i < months; i++ {
		m := first.AddDate(0, i, 0)
		points[i] = MonthPoint{
			Year:     m.Year(),
			Month:    int(m.Month()),
			Label:    core.MonthLabel(int(m.Month()), locale),
			Income:   decimal.Zero,
			Expenses: decimal.Zero,
		}
		idx[[2]int{m.Year(), int(m.Month())}] = i
	}

	for _, tx := range txs {
		i, ok := idx[[2]int{tx.Date.Year(), int(tx.Date.Month())}]
		if !ok {
			continue
		}
		switch tx.Type {
		case core.Income:
			points[i].Income = points[i].Income.Add(tx.Amount)
		case core.Expense:
			points[i].Expenses = points[i].Expenses.Add(tx.Amount)
		}
	}
	for i := range points {
		points[i].Net = points[i].Income.Sub(points[i].Expenses)
	}
	return points
}

// statusOrder fixes the display order of status rows.
var statusOrder = []core.DocumentStatus{
	core.StatusDraft, core.StatusPending, core.StatusSent,
	core.StatusPaid, core.StatusOverdue, core.StatusCancelled,
}

// SummarizeDocuments aggregates documents of one kind by status. Statuses
// with no documents are omitted.
func SummarizeDocuments(docs []core.Document, kind core.DocumentKind) DocumentSummary {
	s := DocumentSummary{
		Kind:        kind,
		Total:       decimal.Zero,
		Outstanding: decimal.Zero,
	}
	byStatus := make(map[core.DocumentStatus]*StatusCount)
	for _, d := range docs {
		if d.Kind != kind {
			continue
		}
		s.Count++
		s.Total = s.Total.Add(d.Total)
		if d.Status != core.StatusPaid && d.Status != core.StatusCancelled {
			s.Outstanding = s.Outstanding.Add(d.Total)
		}
		sc, ok := byStatus[d.Status]
		if !ok {
			sc = &StatusCount{Status: d.Status, Total: decimal.Zero}
			byStatus[d.Status] = sc
		}
		sc.Count++
		sc.Total = sc.Total.Add(d.Total)
	}
	for _, st := range statusOrder {
		if sc, ok := byStatus[st]; ok {
			s.ByStatus = append(s.ByStatus, *sc)
		}
	}
	return s
}
