package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"contabile/internal/core"
)

// Column codec helpers. Optional fields store '' instead of an envelope so
// the schema can tell "absent" from "sealed empty string" without a decrypt.

func (s *Store) sealRequired(value string) (string, error) {
	return s.vault.EncryptString(value)
}

func (s *Store) sealOptional(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	return s.vault.EncryptString(value)
}

func (s *Store) openOptional(env string) (string, error) {
	if env == "" {
		return "", nil
	}
	return s.vault.DecryptString(env)
}

func (s *Store) sealAmount(d decimal.Decimal) (string, error) {
	return s.vault.EncryptString(d.String())
}

func (s *Store) openAmount(env string) (decimal.Decimal, error) {
	plain, err := s.vault.DecryptString(env)
	if err != nil {
		return decimal.Zero, err
	}
	d, err := decimal.NewFromString(plain)
	if err != nil {
		return decimal.Zero, fmt.Errorf("decode amount: %w", err)
	}
	return d, nil
}

func (s *Store) sealStrings(values []string) (string, error) {
	if len(values) == 0 {
		return "", nil
	}
	raw, err := json.Marshal(values)
	if err != nil {
		return "", fmt.Errorf("encode string list: %w", err)
	}
	return s.vault.Encrypt(raw)
}

func (s *Store) openStrings(env string) ([]string, error) {
	if env == "" {
		return nil, nil
	}
	raw, err := s.vault.Decrypt(env)
	if err != nil {
		return nil, err
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, fmt.Errorf("decode string list: %w", err)
	}
	return values, nil
}

// docBody is the sealed part of a document row: every line item plus the
// derived totals, one envelope for the whole set so a document is always
// written and read as a unit.
type docBody struct {
	Lines    []docLine       `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

type docLine struct {
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

func wireLines(lines []core.LineItem) []docLine {
	out := make([]docLine, len(lines))
	for i, li := range lines {
		out[i] = docLine{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			LineTotal:   li.LineTotal,
		}
	}
	return out
}

func coreLines(lines []docLine) []core.LineItem {
	out := make([]core.LineItem, len(lines))
	for i, li := range lines {
		out[i] = core.LineItem{
			Description: li.Description,
			Quantity:    li.Quantity,
			UnitPrice:   li.UnitPrice,
			LineTotal:   li.LineTotal,
		}
	}
	return out
}

func (s *Store) sealDocBody(d core.Document) (string, error) {
	raw, err := json.Marshal(docBody{
		Lines:    wireLines(d.Lines),
		Subtotal: d.Subtotal,
		Tax:      d.Tax,
		Total:    d.Total,
	})
	if err != nil {
		return "", fmt.Errorf("encode document body: %w", err)
	}
	return s.vault.Encrypt(raw)
}

func (s *Store) openDocBody(env string, d *core.Document) error {
	raw, err := s.vault.Decrypt(env)
	if err != nil {
		return err
	}
	var body docBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return fmt.Errorf("decode document body: %w", err)
	}
	d.Lines = coreLines(body.Lines)
	d.Subtotal = body.Subtotal
	d.Tax = body.Tax
	d.Total = body.Total
	return nil
}

// Outbox payload DTOs. This JSON is sealed into payload_enc and travels to
// the remote as opaque ciphertext; only another holder of the vault key can
// open it, so field names here are the cross-device contract, not a server
// API.

type txPayload struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Amount      string    `json:"amount"`
	Description string    `json:"description"`
	Category    string    `json:"category,omitempty"`
	Date        string    `json:"date"`
	Customer    string    `json:"customer,omitempty"`
	Vendor      string    `json:"vendor,omitempty"`
	Account     string    `json:"account,omitempty"`
	Attachments []string  `json:"attachments,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int64     `json:"version"`
}

type docPayload struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Number     string    `json:"number"`
	Party      string    `json:"party"`
	PartyEmail string    `json:"party_email,omitempty"`
	Status     string    `json:"status"`
	IssueDate  string    `json:"issue_date"`
	DueDate    string    `json:"due_date,omitempty"`
	Lines      []docLine `json:"lines"`
	Subtotal   string    `json:"subtotal"`
	Tax        string    `json:"tax"`
	Total      string    `json:"total"`
	Notes      string    `json:"notes,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	Version    int64     `json:"version"`
}

type catalogPayload struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       string    `json:"price,omitempty"`
	HourlyRate  string    `json:"hourly_rate,omitempty"`
	Category    string    `json:"category,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Version     int64     `json:"version"`
}

type configPayload struct {
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Currency  string    `json:"currency"`
	Locale    string    `json:"locale"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   int64     `json:"version"`
}

func transactionPayload(t core.Transaction) ([]byte, error) {
	return json.Marshal(txPayload{
		ID:          t.ID,
		Type:        string(t.Type),
		Amount:      t.Amount.String(),
		Description: t.Description,
		Category:    t.Category,
		Date:        formatDate(t.Date),
		Customer:    t.Customer,
		Vendor:      t.Vendor,
		Account:     t.Account,
		Attachments: t.Attachments,
		Tags:        t.Tags,
		Notes:       t.Notes,
		CreatedAt:   t.CreatedAt.UTC(),
		UpdatedAt:   t.UpdatedAt.UTC(),
		Version:     t.Version,
	})
}

func documentPayload(d core.Document) ([]byte, error) {
	lines := wireLines(d.Lines)
	return json.Marshal(docPayload{
		ID:         d.ID,
		Kind:       string(d.Kind),
		Number:     d.Number,
		Party:      d.Party,
		PartyEmail: d.PartyEmail,
		Status:     string(d.Status),
		IssueDate:  formatDate(d.IssueDate),
		DueDate:    formatDate(d.DueDate),
		Lines:      lines,
		Subtotal:   d.Subtotal.String(),
		Tax:        d.Tax.String(),
		Total:      d.Total.String(),
		Notes:      d.Notes,
		CreatedAt:  d.CreatedAt.UTC(),
		UpdatedAt:  d.UpdatedAt.UTC(),
		Version:    d.Version,
	})
}

func productPayload(p core.Product) ([]byte, error) {
	return json.Marshal(catalogPayload{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.String(),
		Category:    p.Category,
		CreatedAt:   p.CreatedAt.UTC(),
		UpdatedAt:   p.UpdatedAt.UTC(),
		Version:     p.Version,
	})
}

func servicePayload(sv core.Service) ([]byte, error) {
	return json.Marshal(catalogPayload{
		ID:          sv.ID,
		Name:        sv.Name,
		Description: sv.Description,
		HourlyRate:  sv.HourlyRate.String(),
		Category:    sv.Category,
		CreatedAt:   sv.CreatedAt.UTC(),
		UpdatedAt:   sv.UpdatedAt.UTC(),
		Version:     sv.Version,
	})
}

func businessConfigPayload(bc core.BusinessConfig) ([]byte, error) {
	return json.Marshal(configPayload{
		Name:      bc.Name,
		Type:      string(bc.Type),
		Currency:  bc.Currency,
		Locale:    bc.Locale,
		CreatedAt: bc.CreatedAt.UTC(),
		UpdatedAt: bc.UpdatedAt.UTC(),
		Version:   bc.Version,
	})
}

// Payload decoders, the pull direction: a payload opened from a remote
// envelope is turned back into a domain record before it is written locally.

func decodeTransactionPayload(raw []byte) (core.Transaction, error) {
	var p txPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return core.Transaction{}, fmt.Errorf("decode transaction payload: %w", err)
	}
	amount, err := decimal.NewFromString(p.Amount)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("decode amount: %w", err)
	}
	date, err := parseDate(p.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("decode date: %w", err)
	}
	return core.Transaction{
		ID:          p.ID,
		Type:        core.TransactionType(p.Type),
		Amount:      amount,
		Description: p.Description,
		Category:    p.Category,
		Date:        date,
		Customer:    p.Customer,
		Vendor:      p.Vendor,
		Account:     p.Account,
		Attachments: p.Attachments,
		Tags:        p.Tags,
		Notes:       p.Notes,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Version:     p.Version,
	}, nil
}

func decodeDocumentPayload(raw []byte) (core.Document, error) {
	var p docPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return core.Document{}, fmt.Errorf("decode document payload: %w", err)
	}
	subtotal, err := decimal.NewFromString(p.Subtotal)
	if err != nil {
		return core.Document{}, fmt.Errorf("decode subtotal: %w", err)
	}
	tax, err := decimal.NewFromString(p.Tax)
	if err != nil {
		return core.Document{}, fmt.Errorf("decode tax: %w", err)
	}
	total, err := decimal.NewFromString(p.Total)
	if err != nil {
		return core.Document{}, fmt.Errorf("decode total: %w", err)
	}
	issueDate, err := parseDate(p.IssueDate)
	if err != nil {
		return core.Document{}, fmt.Errorf("decode issue date: %w", err)
	}
	dueDate, err := parseDate(p.DueDate)
	if err != nil {
		return core.Document{}, fmt.Errorf("decode due date: %w", err)
	}
	return core.Document{
		ID:         p.ID,
		Kind:       core.DocumentKind(p.Kind),
		Number:     p.Number,
		Party:      p.Party,
		PartyEmail: p.PartyEmail,
		Status:     core.DocumentStatus(p.Status),
		IssueDate:  issueDate,
		DueDate:    dueDate,
		Lines:      coreLines(p.Lines),
		Subtotal:   subtotal,
		Tax:        tax,
		Total:      total,
		Notes:      p.Notes,
		CreatedAt:  p.CreatedAt,
		UpdatedAt:  p.UpdatedAt,
		Version:    p.Version,
	}, nil
}

func decodeProductPayload(raw []byte) (core.Product, error) {
	var p catalogPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return core.Product{}, fmt.Errorf("decode product payload: %w", err)
	}
	price, err := decimal.NewFromString(p.Price)
	if err != nil {
		return core.Product{}, fmt.Errorf("decode price: %w", err)
	}
	return core.Product{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Price:       price,
		Category:    p.Category,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Version:     p.Version,
	}, nil
}

func decodeServicePayload(raw []byte) (core.Service, error) {
	var p catalogPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return core.Service{}, fmt.Errorf("decode service payload: %w", err)
	}
	rate, err := decimal.NewFromString(p.HourlyRate)
	if err != nil {
		return core.Service{}, fmt.Errorf("decode hourly rate: %w", err)
	}
	return core.Service{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		HourlyRate:  rate,
		Category:    p.Category,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
		Version:     p.Version,
	}, nil
}

func decodeBusinessConfigPayload(raw []byte) (core.BusinessConfig, error) {
	var p configPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return core.BusinessConfig{}, fmt.Errorf("decode config payload: %w", err)
	}
	return core.BusinessConfig{
		Name:      p.Name,
		Type:      core.BusinessType(p.Type),
		Currency:  p.Currency,
		Locale:    p.Locale,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
		Version:   p.Version,
	}, nil
}
