package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"credit-engine/internal/engine"
)

// Installment is a persisted schedule row
type Installment struct {
	CreditID  uuid.UUID       `json:"credit_id" db:"credit_id"`
	Number    int             `json:"number" db:"number"`
	DueDate   time.Time       `json:"due_date" db:"due_date"`
	Principal decimal.Decimal `json:"principal" db:"principal"`
	Interest  decimal.Decimal `json:"interest" db:"interest"`
	Total     decimal.Decimal `json:"total" db:"total"`
	Balance   decimal.Decimal `json:"balance" db:"balance"`
}

// InstallmentsFromSchedule converts a generated schedule into rows for creditID.
func InstallmentsFromSchedule(creditID uuid.UUID, s engine.Schedule) []*Installment {
	rows := make([]*Installment, 0, len(s.Installments))
	for _, in := range s.Installments {
		rows = append(rows, &Installment{
			CreditID:  creditID,
			Number:    in.Number,
			DueDate:   in.DueDate,
			Principal: in.Principal,
			Interest:  in.Interest,
			Total:     in.Total,
			Balance:   in.Balance,
		})
	}
	return rows
}

// ToSchedule rebuilds the engine schedule from stored rows. Rows must be
// ordered by number.
func ToSchedule(periodicPayment decimal.Decimal, rows []*Installment) engine.Schedule {
	s := engine.Schedule{PeriodicPayment: periodicPayment}
	for _, r := range rows {
		s.Installments = append(s.Installments, engine.Installment{
			Number:    r.Number,
			DueDate:   engine.DateOf(r.DueDate),
			Principal: r.Principal,
			Interest:  r.Interest,
			Total:     r.Total,
			Balance:   r.Balance,
		})
	}
	return s
}

// ScheduleSummary represents summary statistics for a schedule as of a date
type ScheduleSummary struct {
	TotalPayments     int             `json:"total_payments"`
	TotalPrincipal    decimal.Decimal `json:"total_principal"`
	TotalInterest     decimal.Decimal `json:"total_interest"`
	TotalAmount       decimal.Decimal `json:"total_amount"`
	PaidPayments      int             `json:"paid_payments"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	OverduePayments   int             `json:"overdue_payments"`
	OverdueAmount     decimal.Decimal `json:"overdue_amount"`
	RemainingPayments int             `json:"remaining_payments"`
	RemainingAmount   decimal.Decimal `json:"remaining_amount"`
}

// CalculateScheduleSummary aggregates the installment rows of a ledger state.
func CalculateScheduleSummary(st engine.LedgerState) *ScheduleSummary {
	summary := &ScheduleSummary{
		TotalPayments:   len(st.Installments),
		TotalPrincipal:  decimal.Zero,
		TotalInterest:   decimal.Zero,
		TotalAmount:     st.TotalAmount,
		PaidAmount:      st.PaidAmount,
		OverdueAmount:   st.Overdue,
		RemainingAmount: st.RemainingBalance,
	}

	for _, row := range st.Installments {
		summary.TotalPrincipal = summary.TotalPrincipal.Add(row.Principal)
		summary.TotalInterest = summary.TotalInterest.Add(row.Interest)

		switch row.Status {
		case engine.InstallmentPaid:
			summary.PaidPayments++
		case engine.InstallmentOverdue:
			summary.OverduePayments++
			summary.RemainingPayments++
		default:
			summary.RemainingPayments++
		}
	}

	return summary
}

// ScheduleResponse is a credit's schedule with per-installment coverage.
type ScheduleResponse struct {
	CreditID        uuid.UUID                 `json:"credit_id"`
	AsOf            time.Time                 `json:"as_of"`
	PeriodicPayment decimal.Decimal           `json:"periodic_payment"`
	Summary         *ScheduleSummary          `json:"summary"`
	Installments    []engine.InstallmentState `json:"installments"`
}
