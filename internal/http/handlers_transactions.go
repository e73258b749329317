package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"contabile/internal/core"
)

type transactionRow struct {
	ID          string
	Date        string
	Description string
	Category    string
	Party       string
	Account     string
	Amount      string
	IsIncome    bool
	Tags        string
}

type transactionsView struct {
	From      string
	To        string
	Type      string
	Rows      []transactionRow
	ExportURL string
}

// handleTransactionList renders the ledger table for the selected window.
func (s *Server) handleTransactionList(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	rng := ParseRangeParams(r.URL.Query(), time.Now())
	txs, err := s.transactionsInRange(ctx, rng.From, rng.To)
	if err != nil {
		writeDomainError(w, r, err, "transaction list")
		return
	}

	typ := strings.TrimSpace(r.URL.Query().Get("type"))
	cfg := s.businessConfig(ctx)

	rows := make([]transactionRow, 0, len(txs))
	for _, t := range txs {
		if typ != "" && typ != "all" && string(t.Type) != typ {
			continue
		}
		sign := "+"
		if t.Type == core.Expense {
			sign = "-"
		}
		rows = append(rows, transactionRow{
			ID:          t.ID,
			Date:        formatDate(t.Date),
			Description: t.Description,
			Category:    t.Category,
			Party:       t.Party(),
			Account:     t.Account,
			Amount:      sign + formatMoney(t.Amount, cfg),
			IsIncome:    t.Type == core.Income,
			Tags:        strings.Join(t.Tags, ", "),
		})
	}

	from := rng.From.Format("2006-01-02")
	to := rng.To.Format("2006-01-02")

	s.render(w, "transactions.html", transactionsView{
		From:      from,
		To:        to,
		Type:      typ,
		Rows:      rows,
		ExportURL: "/export/transactions.csv?from=" + from + "&to=" + to,
	})
}

// handleCreateTransaction records a new income or expense from the entry form.
func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
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

	tx, err := parseTransactionForm(r)
	if err != nil {
		writeDomainError(w, r, err, "create transaction")
		return
	}

	created, err := s.ledger.CreateTransaction(ctx, tx)
	if err != nil {
		writeDomainError(w, r, err, "create transaction")
		return
	}

	s.invalidateViews()
	NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerLedgerChanged().
		TriggerSyncChanged().
		TriggerFormReset().
		TriggerSuccessNotification("Recorded " + created.Description).
		Write(w)
}

type transactionEditView struct {
	ID          string
	Type        string
	Amount      string
	Date        string
	Description string
	Category    string
	Customer    string
	Vendor      string
	Account     string
	Tags        string
	Attachments string
	Notes       string
}

// handleTransactionEditForm swaps in a form pre-filled with the selected
// ledger entry.
func (s *Server) handleTransactionEditForm(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		BadRequestError("Missing transaction id").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	tx, err := s.ledger.GetTransaction(ctx, id)
	if err != nil {
		writeDomainError(w, r, err, "transaction edit form")
		return
	}

	s.render(w, "transaction_edit.html", transactionEditView{
		ID:          tx.ID,
		Type:        string(tx.Type),
		Amount:      tx.Amount.StringFixed(2),
		Date:        formatDate(tx.Date),
		Description: tx.Description,
		Category:    tx.Category,
		Customer:    tx.Customer,
		Vendor:      tx.Vendor,
		Account:     tx.Account,
		Tags:        strings.Join(tx.Tags, ", "),
		Attachments: strings.Join(tx.Attachments, ", "),
		Notes:       tx.Notes,
	})
}

// handleUpdateTransaction rewrites a ledger entry from the edit form.
func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	tx, err := parseTransactionForm(r)
	if err != nil {
		writeDomainError(w, r, err, "update transaction")
		return
	}
	tx.ID = strings.TrimSpace(r.FormValue("id"))
	if tx.ID == "" {
		BadRequestError("Missing transaction id").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	updated, err := s.ledger.UpdateTransaction(ctx, tx)
	if err != nil {
		writeDomainError(w, r, err, "update transaction")
		return
	}

	s.invalidateViews()
	NewHTMXResponse().
		TriggerLedgerChanged().
		TriggerSyncChanged().
		TriggerSuccessNotification("Updated " + updated.Description).
		Write(w)
}

// handleDeleteTransaction removes a ledger entry by id.
func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
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
		BadRequestError("Missing transaction id").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	if err := s.ledger.DeleteTransaction(ctx, id); err != nil {
		writeDomainError(w, r, err, "delete transaction")
		return
	}

	s.invalidateViews()
	NewHTMXResponse().
		TriggerLedgerChanged().
		TriggerSyncChanged().
		TriggerSuccessNotification("Transaction deleted").
		Write(w)
}

// parseTransactionForm reads the shared create/update form fields. The date
// defaults to today so a blank form records for now. Attachments are stored
// as comma-separated references (links or file names), like tags.
func parseTransactionForm(r *http.Request) (core.Transaction, error) {
	amount, err := core.ParseAmount(r.FormValue("amount"))
	if err != nil {
		return core.Transaction{}, err
	}

	date := time.Now()
	if v := strings.TrimSpace(r.FormValue("date")); v != "" {
		date, err = parseDate(v)
		if err != nil {
			return core.Transaction{}, core.ErrInvalidDate
		}
	}

	return core.Transaction{
		Type:        core.TransactionType(strings.TrimSpace(r.FormValue("type"))),
		Amount:      amount,
		Description: sanitizeInput(r.FormValue("description")),
		Category:    sanitizeInput(r.FormValue("category")),
		Date:        date,
		Customer:    sanitizeInput(r.FormValue("customer")),
		Vendor:      sanitizeInput(r.FormValue("vendor")),
		Account:     sanitizeInput(r.FormValue("account")),
		Notes:       sanitizeInput(r.FormValue("notes")),
		Tags:        splitTags(r.FormValue("tags")),
		Attachments: splitTags(r.FormValue("attachments")),
	}, nil
}

// splitTags turns "consulting, q3 , travel" into a trimmed tag list.
func splitTags(s string) []string {
	var tags []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(sanitizeInput(t)); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
