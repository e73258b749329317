package core

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	Income  TransactionType = "income"
	Expense TransactionType = "expense"
)

const (
	Monthly RepetitionType = "monthly"
	Yearly  RepetitionType = "yearly"
	Weekly  RepetitionType = "weekly"
	Daily   RepetitionType = "daily"
)

const (
	BusinessGeneral BusinessType = "general"
	BusinessLegal   BusinessType = "legal"
)

type (
	TransactionType string

	RepetitionType string

	BusinessType string

	// Transaction is a single income or expense record. Customer and Vendor
	// are free text, not foreign keys; reports group by string equality.
	Transaction struct {
		ID          string
		Type        TransactionType
		Amount      decimal.Decimal
		Description string
		Category    string
		Date        time.Time
		Customer    string
		Vendor      string
		Account     string
		Attachments []string
		Tags        []string
		Notes       string
		CreatedAt   time.Time
		UpdatedAt   time.Time
		Version     int64
	}

	// Product is a catalog item sold at a fixed price.
	Product struct {
		ID          string
		Name        string
		Description string
		Price       decimal.Decimal
		Category    string
		CreatedAt   time.Time
		UpdatedAt   time.Time
		Version     int64
	}

	// Service is a catalog item billed by the hour.
	Service struct {
		ID          string
		Name        string
		Description string
		HourlyRate  decimal.Decimal
		Category    string
		CreatedAt   time.Time
		UpdatedAt   time.Time
		Version     int64
	}

	// RecurringTransaction is a template that materializes transactions on a
	// fixed cadence between StartDate and EndDate.
	RecurringTransaction struct {
		ID            string
		Type          TransactionType
		Amount        decimal.Decimal
		Description   string
		Category      string
		Customer      string
		Vendor        string
		Account       string
		Every         RepetitionType
		StartDate     time.Time
		EndDate       time.Time // zero = no end
		LastExecution time.Time // zero = never ran
		CreatedAt     time.Time
		UpdatedAt     time.Time
	}

	// BusinessConfig is the singleton record describing the business.
	BusinessConfig struct {
		Name      string
		Type      BusinessType
		Currency  string
		Locale    string
		CreatedAt time.Time
		UpdatedAt time.Time
		Version   int64
	}
)

var (
	ErrInvalidType      = errors.New("invalid transaction type")
	ErrInvalidAmount    = errors.New("invalid amount")
	ErrInvalidDate      = errors.New("invalid date")
	ErrEmptyDescription = errors.New("empty description")
	ErrEmptyName        = errors.New("empty name")
	ErrInvalidCadence   = errors.New("invalid repetition type")
	ErrInvalidBusiness  = errors.New("invalid business type")
	ErrInvalidCurrency  = errors.New("invalid currency")
)

func (t TransactionType) IsValid() bool {
	return t == Income || t == Expense
}

func (t Transaction) Validate() error {
	if !t.Type.IsValid() {
		return ErrInvalidType
	}
	if t.Date.IsZero() {
		return ErrInvalidDate
	}
	if len(strings.TrimSpace(t.Description)) == 0 {
		return ErrEmptyDescription
	}
	if len(t.Description) > 500 {
		return errors.New("description too long (max 500 characters)")
	}
	if !t.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	// Category, customer, vendor and account may stay empty; reports bucket
	// missing values under "General"/"Unknown" instead of failing.
	return nil
}

func (p Product) Validate() error {
	if len(strings.TrimSpace(p.Name)) == 0 {
		return ErrEmptyName
	}
	if !p.Price.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (s Service) Validate() error {
	if len(strings.TrimSpace(s.Name)) == 0 {
		return ErrEmptyName
	}
	if !s.HourlyRate.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (rt RecurringTransaction) Validate() error {
	if !rt.Type.IsValid() {
		return ErrInvalidType
	}
	if rt.StartDate.IsZero() {
		return errors.New("invalid start date")
	}
	if !rt.EndDate.IsZero() && rt.EndDate.Before(rt.StartDate) {
		return errors.New("end date must not be before start date")
	}
	switch rt.Every {
	case Daily, Weekly, Monthly, Yearly:
	default:
		return ErrInvalidCadence
	}
	if len(strings.TrimSpace(rt.Description)) == 0 {
		return ErrEmptyDescription
	}
	if !rt.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}

func (bt BusinessType) IsValid() bool {
	return bt == BusinessGeneral || bt == BusinessLegal
}

// SupportedCurrencies lists the currency codes the UI can format.
var SupportedCurrencies = []string{"EUR", "USD", "GBP"}

func (bc BusinessConfig) Validate() error {
	if len(strings.TrimSpace(bc.Name)) == 0 {
		return ErrEmptyName
	}
	if !bc.Type.IsValid() {
		return ErrInvalidBusiness
	}
	supported := false
	for _, c := range SupportedCurrencies {
		if bc.Currency == c {
			supported = true
			break
		}
	}
	if !supported {
		return ErrInvalidCurrency
	}
	return nil
}

// Party returns the structured counterparty of the transaction: Customer for
// income, Vendor for expenses. Report grouping does NOT read this; it derives
// the party from the description text instead.
func (t Transaction) Party() string {
	if t.Type == Income {
		return t.Customer
	}
	return t.Vendor
}
