package models

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"credit-engine/internal/engine"
)

// ErrInvalidRequest marks request payloads rejected before reaching the engine.
var ErrInvalidRequest = errors.New("invalid request")

// CreditStatus defines the status of a credit
type CreditStatus string

const (
	CreditStatusActive  CreditStatus = "ACTIVE"
	CreditStatusSettled CreditStatus = "SETTLED"
)

// Credit is the aggregate root of a loan. Its ledger state is always derived
// from the installments and payments, never stored.
type Credit struct {
	ID              uuid.UUID        `json:"id" db:"id"`
	ClientRef       string           `json:"client_ref" db:"client_ref"`
	BorrowerEmail   string           `json:"borrower_email,omitempty" db:"borrower_email"`
	Principal       decimal.Decimal  `json:"principal" db:"principal"`
	MonthlyRate     decimal.Decimal  `json:"monthly_rate" db:"monthly_rate"`
	TermMonths      decimal.Decimal  `json:"term_months" db:"term_months"`
	Frequency       engine.Frequency `json:"frequency" db:"frequency"`
	StartDate       time.Time        `json:"start_date" db:"start_date"`
	Calendar        string           `json:"calendar" db:"calendar"`
	PeriodicPayment decimal.Decimal  `json:"periodic_payment" db:"periodic_payment"`
	MaturityDate    time.Time        `json:"maturity_date" db:"maturity_date"`
	Status          CreditStatus     `json:"status" db:"status"`
	Version         int              `json:"version" db:"version"`
	CreatedAt       time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at" db:"updated_at"`
}

// Terms returns the loan terms of the credit resolved against cal.
func (c *Credit) Terms(cal *engine.Calendar) engine.LoanTerms {
	return engine.LoanTerms{
		Principal:   c.Principal,
		MonthlyRate: c.MonthlyRate,
		TermMonths:  c.TermMonths,
		Frequency:   c.Frequency,
		StartDate:   c.StartDate,
		Holidays:    cal,
	}
}

// ApplySchedule copies the schedule-derived fields onto the credit.
func (c *Credit) ApplySchedule(s engine.Schedule) {
	c.PeriodicPayment = s.PeriodicPayment
	c.MaturityDate = s.MaturityDate()
}

// CreditFilter narrows a credit listing. Empty fields match everything.
type CreditFilter struct {
	Status    CreditStatus
	ClientRef string
	Calendar  string
}

// CreditRequest represents a credit origination request
type CreditRequest struct {
	ClientRef     string          `json:"client_ref"`
	BorrowerEmail string          `json:"borrower_email,omitempty"`
	Principal     decimal.Decimal `json:"principal"`
	MonthlyRate   decimal.Decimal `json:"monthly_rate"`
	TermMonths    decimal.Decimal `json:"term_months"`
	Frequency     string          `json:"frequency"`
	StartDate     string          `json:"start_date"` // YYYY-MM-DD
	Calendar      string          `json:"calendar,omitempty"`
}

// Validate checks the fields the engine does not know about. Loan terms are
// validated by the engine when the schedule is generated.
func (c *CreditRequest) Validate() error {
	if strings.TrimSpace(c.ClientRef) == "" {
		return fmt.Errorf("%w: client_ref is required", ErrInvalidRequest)
	}
	if c.BorrowerEmail != "" {
		if _, err := mail.ParseAddress(c.BorrowerEmail); err != nil {
			return fmt.Errorf("%w: borrower_email: %v", ErrInvalidRequest, err)
		}
	}
	if c.StartDate == "" {
		return fmt.Errorf("%w: start_date is required", ErrInvalidRequest)
	}
	if _, err := time.Parse(time.DateOnly, c.StartDate); err != nil {
		return fmt.Errorf("%w: start_date must be YYYY-MM-DD", ErrInvalidRequest)
	}
	return nil
}

// ToCredit converts CreditRequest to Credit. defaultCalendar is used when the
// request does not name a holiday calendar.
func (c *CreditRequest) ToCredit(defaultCalendar string) (*Credit, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	freq, err := engine.ParseFrequency(c.Frequency)
	if err != nil {
		return nil, err
	}
	start, _ := time.Parse(time.DateOnly, c.StartDate)

	calendar := c.Calendar
	if calendar == "" {
		calendar = defaultCalendar
	}

	return &Credit{
		ID:            uuid.New(),
		ClientRef:     strings.TrimSpace(c.ClientRef),
		BorrowerEmail: c.BorrowerEmail,
		Principal:     c.Principal,
		MonthlyRate:   c.MonthlyRate,
		TermMonths:    c.TermMonths,
		Frequency:     freq,
		StartDate:     engine.DateOf(start),
		Calendar:      calendar,
		Status:        CreditStatusActive,
		Version:       1,
	}, nil
}

// CreditStatusResponse is the ledger position of a credit as of a date.
type CreditStatusResponse struct {
	Credit    *Credit            `json:"credit"`
	Ledger    engine.LedgerState `json:"ledger"`
	Provision engine.Provision   `json:"provision"`
}
