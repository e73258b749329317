package http

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"contabile/internal/core"
)

// parseDate parses a date string in YYYY-MM-DD format.
func parseDate(dateStr string) (time.Time, error) {
	return time.Parse("2006-01-02", dateStr)
}

// formatDate renders a date for tables; zero dates become an empty cell.
func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

// formatMoney renders an amount in the configured currency and locale.
func formatMoney(d decimal.Decimal, cfg core.BusinessConfig) string {
	return core.FormatAmount(d, cfg.Currency, cfg.Locale)
}

// formatPercent renders a share with one decimal place, e.g. "42.5%".
func formatPercent(d decimal.Decimal) string {
	return d.StringFixed(1) + "%"
}

// barWidth scales a value against the chart maximum into a 0-100 CSS width.
func barWidth(v, max decimal.Decimal) int {
	if max.IsZero() || !v.IsPositive() {
		return 0
	}
	w := int(v.Div(max).Mul(decimal.NewFromInt(100)).IntPart())
	if w > 100 {
		w = 100
	}
	return w
}

// sanitizeInput removes control characters and trims whitespace. Tab, LF and
// CR survive so notes keep their line breaks.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
