package http

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"contabile/internal/core"
	"contabile/internal/report"
)

type documentRow struct {
	ID        string
	Number    string
	Party     string
	Status    string
	IssueDate string
	DueDate   string
	Total     string
	PastDue   bool
}

type statusBadge struct {
	Status string
	Count  int
	Total  string
}

type documentsView struct {
	Kind        string
	Title       string
	Count       int
	Total       string
	Outstanding string
	ByStatus    []statusBadge
	Rows        []documentRow
	Statuses    []string
	ExportURL   string
}

var documentStatuses = []string{
	string(core.StatusDraft),
	string(core.StatusPending),
	string(core.StatusSent),
	string(core.StatusPaid),
	string(core.StatusOverdue),
	string(core.StatusCancelled),
}

// handleDocumentList renders the invoice or bill table with its summary
// card. A status query narrows the table but not the summary.
func (s *Server) handleDocumentList(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
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
		writeDomainError(w, r, err, "document list")
		return
	}

	cfg := s.businessConfig(ctx)
	sum := report.SummarizeDocuments(docs, kind)

	badges := make([]statusBadge, 0, len(sum.ByStatus))
	for _, sc := range sum.ByStatus {
		badges = append(badges, statusBadge{
			Status: string(sc.Status),
			Count:  sc.Count,
			Total:  formatMoney(sc.Total, cfg),
		})
	}

	statusFilter := core.DocumentStatus(strings.TrimSpace(r.URL.Query().Get("status")))
	now := time.Now()

	rows := make([]documentRow, 0, len(docs))
	for _, d := range docs {
		if statusFilter != "" && d.Status != statusFilter {
			continue
		}
		rows = append(rows, documentRow{
			ID:        d.ID,
			Number:    d.Number,
			Party:     d.Party,
			Status:    string(d.Status),
			IssueDate: formatDate(d.IssueDate),
			DueDate:   formatDate(d.DueDate),
			Total:     formatMoney(d.Total, cfg),
			PastDue:   d.IsPastDue(now),
		})
	}

	title := "Invoices"
	if kind == core.KindBill {
		title = "Bills"
	}

	s.render(w, "documents.html", documentsView{
		Kind:        string(kind),
		Title:       title,
		Count:       sum.Count,
		Total:       formatMoney(sum.Total, cfg),
		Outstanding: formatMoney(sum.Outstanding, cfg),
		ByStatus:    badges,
		Rows:        rows,
		Statuses:    documentStatuses,
		ExportURL:   "/export/documents.csv?kind=" + string(kind),
	})
}

// handleCreateDocument saves an invoice or bill with its line items. A
// duplicate number is stored but reported back as a warning.
func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
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

	doc, err := parseDocumentForm(r)
	if err != nil {
		writeDomainError(w, r, err, "create document")
		return
	}

	created, numberTaken, err := s.documents.CreateDocument(ctx, doc)
	if err != nil {
		writeDomainError(w, r, err, "create document")
		return
	}

	s.invalidateViews()
	resp := NewHTMXResponse().
		Status(http.StatusCreated).
		TriggerDocumentsChanged().
		TriggerSyncChanged().
		TriggerFormReset()
	if numberTaken {
		resp.TriggerWarningNotification(fmt.Sprintf("Saved, but number %s is already in use", created.Number))
	} else {
		resp.TriggerSuccessNotification(fmt.Sprintf("Saved %s for %s", created.Number, created.Party))
	}
	resp.Write(w)
}

type documentLineView struct {
	Description string
	Quantity    string
	UnitPrice   string
}

type documentEditView struct {
	ID        string
	Kind      string
	Number    string
	Party     string
	Email     string
	Status    string
	IssueDate string
	DueDate   string
	Notes     string
	Lines     []documentLineView
	Statuses  []string
}

// handleDocumentEditForm swaps in a form pre-filled with the selected
// document, line items included.
func (s *Server) handleDocumentEditForm(w http.ResponseWriter, r *http.Request) {
	if resp := RequireGET(r); resp != nil {
		resp.Write(w)
		return
	}

	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		BadRequestError("Missing document id").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	d, err := s.documents.GetDocument(ctx, id)
	if err != nil {
		writeDomainError(w, r, err, "document edit form")
		return
	}

	lines := make([]documentLineView, 0, len(d.Lines))
	for _, l := range d.Lines {
		lines = append(lines, documentLineView{
			Description: l.Description,
			Quantity:    l.Quantity.String(),
			UnitPrice:   l.UnitPrice.StringFixed(2),
		})
	}

	s.render(w, "document_edit.html", documentEditView{
		ID:        d.ID,
		Kind:      string(d.Kind),
		Number:    d.Number,
		Party:     d.Party,
		Email:     d.PartyEmail,
		Status:    string(d.Status),
		IssueDate: formatDate(d.IssueDate),
		DueDate:   formatDate(d.DueDate),
		Notes:     d.Notes,
		Lines:     lines,
		Statuses:  documentStatuses,
	})
}

// handleUpdateDocument rewrites a document from the edit form. Totals are
// recomputed from the submitted lines; the duplicate-number warning works
// like on create.
func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	doc, err := parseDocumentForm(r)
	if err != nil {
		writeDomainError(w, r, err, "update document")
		return
	}
	doc.ID = strings.TrimSpace(r.FormValue("id"))
	if doc.ID == "" {
		BadRequestError("Missing document id").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	updated, numberTaken, err := s.documents.UpdateDocument(ctx, doc)
	if err != nil {
		writeDomainError(w, r, err, "update document")
		return
	}

	s.invalidateViews()
	resp := NewHTMXResponse().
		TriggerDocumentsChanged().
		TriggerSyncChanged()
	if numberTaken {
		resp.TriggerWarningNotification(fmt.Sprintf("Saved, but number %s is already in use", updated.Number))
	} else {
		resp.TriggerSuccessNotification(fmt.Sprintf("Updated %s for %s", updated.Number, updated.Party))
	}
	resp.Write(w)
}

// parseDocumentForm reads the shared create/update form fields, including
// the parallel line-item arrays.
func parseDocumentForm(r *http.Request) (core.Document, error) {
	lines, err := ParseLineItems(r.PostForm)
	if err != nil {
		return core.Document{}, err
	}

	issueDate := time.Now()
	if v := strings.TrimSpace(r.FormValue("issue_date")); v != "" {
		issueDate, err = parseDate(v)
		if err != nil {
			return core.Document{}, core.ErrInvalidDate
		}
	}

	var dueDate time.Time
	if v := strings.TrimSpace(r.FormValue("due_date")); v != "" {
		dueDate, err = parseDate(v)
		if err != nil {
			return core.Document{}, core.ErrInvalidDate
		}
	}

	return core.Document{
		Kind:       core.DocumentKind(strings.TrimSpace(r.FormValue("kind"))),
		Number:     sanitizeInput(r.FormValue("number")),
		Party:      sanitizeInput(r.FormValue("party")),
		PartyEmail: sanitizeInput(r.FormValue("party_email")),
		Status:     core.DocumentStatus(strings.TrimSpace(r.FormValue("status"))),
		IssueDate:  issueDate,
		DueDate:    dueDate,
		Lines:      lines,
		Notes:      sanitizeInput(r.FormValue("notes")),
	}, nil
}

// handleDocumentStatus moves a document to the requested status.
func (s *Server) handleDocumentStatus(w http.ResponseWriter, r *http.Request) {
	if resp := RequirePOST(r); resp != nil {
		resp.Write(w)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}

	id := strings.TrimSpace(r.FormValue("id"))
	status := core.DocumentStatus(strings.TrimSpace(r.FormValue("status")))
	if id == "" {
		BadRequestError("Missing document id").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	doc, err := s.documents.SetDocumentStatus(ctx, id, status)
	if err != nil {
		writeDomainError(w, r, err, "set document status")
		return
	}

	s.invalidateViews()
	NewHTMXResponse().
		TriggerDocumentsChanged().
		TriggerSyncChanged().
		TriggerSuccessNotification(fmt.Sprintf("Marked %s as %s", doc.Number, doc.Status)).
		Write(w)
}

// handleDeleteDocument removes a document and its embedded lines.
func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
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
		BadRequestError("Missing document id").Write(w)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), partialTimeout)
	defer cancel()

	if err := s.documents.DeleteDocument(ctx, id); err != nil {
		writeDomainError(w, r, err, "delete document")
		return
	}

	s.invalidateViews()
	NewHTMXResponse().
		TriggerDocumentsChanged().
		TriggerSyncChanged().
		TriggerSuccessNotification("Document deleted").
		Write(w)
}
