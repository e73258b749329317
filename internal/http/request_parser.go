package http

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"contabile/internal/core"
)

// RangeParams is a parsed reporting window. Handlers default it to the
// current calendar month when the query carries no bounds.
type RangeParams struct {
	From time.Time
	To   time.Time
}

// ParseRangeParams reads from/to dates (2006-01-02) out of query values.
// Missing or malformed bounds fall back to the calendar month of now, on
// the UTC calendar to match the stored transaction dates.
func ParseRangeParams(query url.Values, now time.Time) RangeParams {
	now = now.UTC()
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	params := RangeParams{
		From: first,
		To:   first.AddDate(0, 1, -1),
	}

	if v := strings.TrimSpace(query.Get("from")); v != "" {
		if d, err := time.Parse("2006-01-02", v); err == nil {
			params.From = d
		}
	}
	if v := strings.TrimSpace(query.Get("to")); v != "" {
		if d, err := time.Parse("2006-01-02", v); err == nil {
			params.To = d
		}
	}

	return params
}

// ParseMonthsParam reads the trend depth, clamped to [min, max].
func ParseMonthsParam(query url.Values, fallback, min, max int) int {
	v := strings.TrimSpace(query.Get("months"))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// ParseLineItems reads the parallel line_description, line_quantity and
// line_unit_price form arrays into line items. Rows with every field blank
// are skipped; totals are computed later by the document service.
func ParseLineItems(form url.Values) ([]core.LineItem, error) {
	descs := form["line_description"]
	qtys := form["line_quantity"]
	prices := form["line_unit_price"]

	n := len(descs)
	if len(qtys) > n {
		n = len(qtys)
	}
	if len(prices) > n {
		n = len(prices)
	}

	var lines []core.LineItem
	for i := 0; i < n; i++ {
		desc := strings.TrimSpace(sanitizeInput(valueAt(descs, i)))
		qtyStr := strings.TrimSpace(valueAt(qtys, i))
		priceStr := strings.TrimSpace(valueAt(prices, i))

		if desc == "" && qtyStr == "" && priceStr == "" {
			continue
		}

		qty, err := parseDecimalField(qtyStr)
		if err != nil || !qty.IsPositive() {
			return nil, fmt.Errorf("line %d: %w", i+1, core.ErrInvalidQuantity)
		}
		price, err := parseDecimalField(priceStr)
		if err != nil || price.IsNegative() {
			return nil, fmt.Errorf("line %d: %w", i+1, core.ErrInvalidAmount)
		}

		lines = append(lines, core.LineItem{
			Description: desc,
			Quantity:    qty,
			UnitPrice:   price,
		})
	}

	return lines, nil
}

func valueAt(vals []string, i int) string {
	if i < len(vals) {
		return vals[i]
	}
	return ""
}

// parseDecimalField accepts both decimal separators. Unlike amounts, a zero
// value is legal here; callers apply their own sign checks.
func parseDecimalField(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	return d.Round(2), nil
}

// RequestBodyParser reads a request body once and answers lookups whether
// the client sent JSON or form-encoded data. HTMX delete buttons send forms;
// scripted clients tend to send JSON.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser creates a parser for the given request.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	p.body, p.err = io.ReadAll(r.Body)
	return p
}

// Parse attempts to parse the body as JSON or form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	if len(p.body) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if p.body[0] == '{' || p.body[0] == '[' {
		p.jsonData = make(map[string]any)
		if err := json.Unmarshal(p.body, &p.jsonData); err != nil {
			p.err = err
			return err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(p.body))
	return p.err
}

// Get returns a trimmed, sanitized string value from the parsed data.
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return strings.TrimSpace(sanitizeInput(stringValue(val)))
		}
	}
	if p.formData != nil {
		return strings.TrimSpace(sanitizeInput(p.formData.Get(key)))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// RequireMethod returns an error response builder unless the request method
// is one of the expected methods.
func RequireMethod(r *http.Request, methods ...string) *HTMXResponseBuilder {
	for _, m := range methods {
		if r.Method == m {
			return nil
		}
	}
	return MethodNotAllowedError(strings.Join(methods, ", "))
}

// RequirePOST is a convenience function for POST-only handlers.
func RequirePOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodPost)
}

// RequireGET is a convenience function for read-only handlers.
func RequireGET(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodGet)
}

// RequireDeleteOrPOST accepts both verbs so plain forms can delete too.
func RequireDeleteOrPOST(r *http.Request) *HTMXResponseBuilder {
	return RequireMethod(r, http.MethodDelete, http.MethodPost)
}

// ParseFormOrFail parses the request form, returning an error response on
// failure and nil on success.
func ParseFormOrFail(r *http.Request) *HTMXResponseBuilder {
	if err := r.ParseForm(); err != nil {
		return BadRequestError("Invalid request format")
	}
	return nil
}
