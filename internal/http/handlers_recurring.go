package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"contabile/internal/core"
)

type recurringRow struct {
	ID          string
	Description string
	Category    string
	Party       string
	Every       string
	Amount      string
	IsIncome    bool
	Starts      string
	Ends        string
	LastRun     string
}

type recurringView struct {
	Today      string
	Rows       []recurringRow
	MonthlyNet string
	NetIsLoss  bool
}

type recurringEditView struct {
	ID          string
	Type        string
	Amount      string
	Description string
	Category    string
	Customer    string
	Vendor      string
	Account     string
	Every       string
	StartDate   string
	EndDate     string
}

// handleRecurringList renders the template table together with the entry
// form; the edit flow swaps the form in place, so both live in one partial.
func (s *Server) handleRecurringList(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	templates, err := s.recurring.ListTemplates(ctx)
	if err != nil {
		writeDomainError(w, r, err, "recurring list")
		return
	}

	cfg := s.businessConfig(ctx)
	net := decimal.Zero
	rows := make([]recurringRow, 0, len(templates))
	for _, rt := range templates {
		net = net.Add(monthlyImpact(rt))
		sign := "+"
		if rt.Type == core.Expense {
			sign = "-"
		}
		rows = append(rows, recurringRow{
			ID:          rt.ID,
			Description: rt.Description,
			Category:    rt.Category,
			Party:       recurringParty(rt),
			Every:       string(rt.Every),
			Amount:      sign + formatMoney(rt.Amount, cfg),
			IsIncome:    rt.Type == core.Income,
			Starts:      formatDate(rt.StartDate),
			Ends:        formatDate(rt.EndDate),
			LastRun:     formatDate(rt.LastExecution),
		})
	}

	s.render(w, "recurring.html", recurringView{
		Today:      time.Now().Format("2006-01-02"),
		Rows:       rows,
		MonthlyNet: formatMoney(net.Abs().Round(2), cfg),
		NetIsLoss:  net.IsNegative(),
	})
}

// handleRecurringEditForm swaps the entry form for one pre-filled with the
// selected template.
func (s *Server) handleRecurringEditForm(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		BadRequestError("Missing template id").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	rt, err := s.recurring.GetTemplate(ctx, id)
	if err != nil {
		writeDomainError(w, r, err, "recurring edit form")
		return
	}

	s.render(w, "recurring_edit.html", recurringEditView{
		ID:          rt.ID,
		Type:        string(rt.Type),
		Amount:      rt.Amount.StringFixed(2),
		Description: rt.Description,
		Category:    rt.Category,
		Customer:    rt.Customer,
		Vendor:      rt.Vendor,
		Account:     rt.Account,
		Every:       string(rt.Every),
		StartDate:   formatDate(rt.StartDate),
		EndDate:     formatDate(rt.EndDate),
	})
}

// handleCreateRecurring schedules a new template from the entry form.
func (s *Server) handleCreateRecurring(w http.ResponseWriter, r *http.Request) {
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

	rt, err := parseRecurringForm(r)
	if err != nil {
		writeDomainError(w, r, err, "create recurring template")
		return
	}

	created, err := s.recurring.CreateTemplate(ctx, rt)
	if err != nil {
		writeDomainError(w, r, err, "create recurring template")
		return
	}

	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerRecurringChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Scheduled " + created.Description).
		Write(w)
}

// handleUpdateRecurring rewrites a template from the edit form.
func (s *Server) handleUpdateRecurring(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	rt, err := parseRecurringForm(r)
	if err != nil {
		writeDomainError(w, r, err, "update recurring template")
		return
	}
	rt.ID = strings.TrimSpace(r.FormValue("id"))
	if rt.ID == "" {
		BadRequestError("Missing template id").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	updated, err := s.recurring.UpdateTemplate(ctx, rt)
	if err != nil {
		writeDomainError(w, r, err, "update recurring template")
		return
	}

	NewHTMXResponse().
		TriggerRecurringChanged().
		TriggerSuccessNotification("Updated " + updated.Description).
		Write(w)
}

// handleDeleteRecurring removes a template by id. Transactions it already
// materialized stay in the ledger.
func (s *Server) handleDeleteRecurring(w http.ResponseWriter, r *http.Request) {
	if resp := RequireDeleteOrPOST(r); resp != nil {
		resp.Write(w)
		return
	}

	parser := NewRequestBodyParser(r)
	if err := parser.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	id := parser.Get("id")
	if id == "" {
		BadRequestError("Missing template id").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	if err := s.recurring.DeleteTemplate(ctx, id); err != nil {
		writeDomainError(w, r, err, "delete recurring template")
		return
	}

	NewHTMXResponse().
		TriggerRecurringChanged().
		TriggerSuccessNotification("Template deleted").
		Write(w)
}

// parseRecurringForm reads the shared create/update form fields. The start
// date defaults to today so a blank form schedules from now.
func parseRecurringForm(r *http.Request) (core.RecurringTransaction, error) {
	amount, err := core.ParseAmount(r.FormValue("amount"))
	if err != nil {
		return core.RecurringTransaction{}, err
	}

	start := time.Now()
	if v := strings.TrimSpace(r.FormValue("start_date")); v != "" {
		start, err = parseDate(v)
		if err != nil {
			return core.RecurringTransaction{}, core.ErrInvalidDate
		}
	}
	var end time.Time
	if v := strings.TrimSpace(r.FormValue("end_date")); v != "" {
		end, err = parseDate(v)
		if err != nil {
			return core.RecurringTransaction{}, core.ErrInvalidDate
		}
	}

	return core.RecurringTransaction{
		Type:        core.TransactionType(strings.TrimSpace(r.FormValue("type"))),
		Amount:      amount,
		Description: sanitizeInput(r.FormValue("description")),
		Category:    sanitizeInput(r.FormValue("category")),
		Customer:    sanitizeInput(r.FormValue("customer")),
		Vendor:      sanitizeInput(r.FormValue("vendor")),
		Account:     sanitizeInput(r.FormValue("account")),
		Every:       core.RepetitionType(strings.TrimSpace(r.FormValue("every"))),
		StartDate:   start,
		EndDate:     end,
	}, nil
}

// recurringParty mirrors Transaction.Party for templates.
func recurringParty(rt core.RecurringTransaction) string {
	if rt.Type == core.Income {
		return rt.Customer
	}
	return rt.Vendor
}

// monthlyImpact estimates what a template adds to (or takes from) a month:
// daily fires 30 times, weekly 4, yearly a twelfth. Expenses count negative.
func monthlyImpact(rt core.RecurringTransaction) decimal.Decimal {
	var m decimal.Decimal
	switch rt.Every {
	case core.Daily:
		m = rt.Amount.Mul(decimal.NewFromInt(30))
	case core.Weekly:
		m = rt.Amount.Mul(decimal.NewFromInt(4))
	case core.Yearly:
		m = rt.Amount.Div(decimal.NewFromInt(12))
	default:
		m = rt.Amount
	}
	if rt.Type == core.Expense {
		return m.Neg()
	}
	return m
}
