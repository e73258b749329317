// Package export renders ledger data as CSV. Handlers stream these writers
// straight into download responses.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"contabile/internal/core"
	"contabile/internal/report"
)

// Column headers, one constant per export so handlers and tests share a
// single source of truth.
const (
	TransactionsHeader = "id,date,type,description,category,amount,customer,vendor,account,notes"
	PartiesHeader      = "party,total,count,average,percent"
	CategoriesHeader   = "category,total,count,average,percent"
	TrendHeader        = "year,month,label,income,expenses,net"
	DocumentsHeader    = "id,kind,number,party,status,issue_date,due_date,subtotal,tax,total"
)

const dateFormat = "2006-01-02"

// WriteTransactions writes the transaction export, header included.
func WriteTransactions(w io.Writer, txs []core.Transaction) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(TransactionsHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, t := range txs {
		row := []string{
			t.ID,
			t.Date.Format(dateFormat),
			string(t.Type),
			t.Description,
			t.Category,
			t.Amount.StringFixed(2),
			t.Customer,
			t.Vendor,
			t.Account,
			t.Notes,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// WriteGroups writes a party or category summary export. The header picks
// the first column's name, so both summaries share one writer.
func WriteGroups(w io.Writer, header string, groups []report.Group) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(header, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, g := range groups {
		row := []string{
			g.Name,
			g.Total.StringFixed(2),
			strconv.Itoa(g.Count),
			g.Average.StringFixed(2),
			g.Percent.StringFixed(1),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// WriteTrend writes the monthly trend export, oldest month first.
func WriteTrend(w io.Writer, points []report.MonthPoint) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(TrendHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, p := range points {
		row := []string{
			strconv.Itoa(p.Year),
			strconv.Itoa(p.Month),
			p.Label,
			p.Income.StringFixed(2),
			p.Expenses.StringFixed(2),
			p.Net.StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}

// WriteDocuments writes the invoice or bill export. Line items stay out;
// the export carries the document totals.
func WriteDocuments(w io.Writer, docs []core.Document) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write(strings.Split(DocumentsHeader, ",")); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	for i, d := range docs {
		dueDate := ""
		if !d.DueDate.IsZero() {
			dueDate = d.DueDate.Format(dateFormat)
		}
		row := []string{
			d.ID,
			string(d.Kind),
			d.Number,
			d.Party,
			string(d.Status),
			d.IssueDate.Format(dateFormat),
			dueDate,
			d.Subtotal.StringFixed(2),
			d.Tax.StringFixed(2),
			d.Total.StringFixed(2),
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}
	return cw.Error()
}
