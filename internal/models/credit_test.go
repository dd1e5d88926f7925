package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"credit-engine/internal/engine"
)

func validRequest() CreditRequest {
	return CreditRequest{
		ClientRef:     "CL-1001",
		BorrowerEmail: "borrower@example.com",
		Principal:     decimal.RequireFromString("10000"),
		MonthlyRate:   decimal.RequireFromString("5"),
		TermMonths:    decimal.RequireFromString("12"),
		Frequency:     "semimonthly",
		StartDate:     "2025-01-01",
	}
}

func TestCreditRequest_ToCredit(t *testing.T) {
	req := validRequest()

	credit, err := req.ToCredit("default")
	require.NoError(t, err)

	assert.Equal(t, engine.Semimonthly, credit.Frequency)
	assert.Equal(t, "default", credit.Calendar)
	assert.Equal(t, CreditStatusActive, credit.Status)
	assert.Equal(t, 1, credit.Version)
	assert.Equal(t, engine.Date(2025, time.January, 1), credit.StartDate)
	assert.NotEqual(t, uuid.Nil, credit.ID)

	req.Calendar = "ru"
	credit, err = req.ToCredit("default")
	require.NoError(t, err)
	assert.Equal(t, "ru", credit.Calendar)
}

func TestCreditRequest_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *CreditRequest)
	}{
		{"missing client", func(r *CreditRequest) { r.ClientRef = "  " }},
		{"bad email", func(r *CreditRequest) { r.BorrowerEmail = "not-an-address" }},
		{"missing start", func(r *CreditRequest) { r.StartDate = "" }},
		{"bad start", func(r *CreditRequest) { r.StartDate = "01/02/2025" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest()
			tt.mutate(&req)
			_, err := req.ToCredit("default")
			assert.ErrorIs(t, err, ErrInvalidRequest)
		})
	}

	req := validRequest()
	req.Frequency = "monthly"
	_, err := req.ToCredit("default")
	assert.True(t, engine.IsValidation(err))
}

func TestCalculateScheduleSummary(t *testing.T) {
	req := validRequest()
	credit, err := req.ToCredit("default")
	require.NoError(t, err)

	s, err := engine.GenerateSchedule(credit.Terms(nil))
	require.NoError(t, err)
	credit.ApplySchedule(s)
	assert.Equal(t, "559.13", credit.PeriodicPayment.StringFixed(2))

	rows := InstallmentsFromSchedule(credit.ID, s)
	require.Len(t, rows, 24)
	rebuilt := ToSchedule(credit.PeriodicPayment, rows)

	paid := []engine.Payment{{Amount: decimal.RequireFromString("1200"), Timestamp: engine.Date(2025, time.January, 16), Status: engine.PaymentValid}}
	st := engine.Default().ComputeStatus(rebuilt, paid, engine.Date(2025, time.March, 10))

	summary := CalculateScheduleSummary(st)
	assert.Equal(t, 24, summary.TotalPayments)
	assert.Equal(t, 2, summary.PaidPayments)
	assert.Equal(t, 22, summary.RemainingPayments)
	assert.Equal(t, "10000.00", summary.TotalPrincipal.StringFixed(2))
	assert.Equal(t, "3419.05", summary.TotalInterest.StringFixed(2))
	assert.True(t, summary.OverdueAmount.IsPositive())
}

func TestPaymentOrdering(t *testing.T) {
	base := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	a := &Payment{PaidAt: base.Add(time.Hour), Status: engine.PaymentValid, CreatedAt: base}
	b := &Payment{PaidAt: base, Status: engine.PaymentValid, CreatedAt: base.Add(time.Minute)}
	c := &Payment{PaidAt: base.Add(2 * time.Hour), Status: engine.PaymentVoided, CreatedAt: base}

	list := []*Payment{a, c, b}
	SortPayments(list)
	assert.Equal(t, []*Payment{b, a, c}, list)
	assert.Equal(t, a.PaidAt, LatestValid(list))
}
