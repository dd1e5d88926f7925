package engine

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus marks whether a payment counts toward the ledger.
type PaymentStatus string

const (
	PaymentValid  PaymentStatus = "VALID"
	PaymentVoided PaymentStatus = "VOIDED"
)

// Payment is an append-only ledger entry. Voiding flips Status; the entry is
// never removed.
type Payment struct {
	ID         uuid.UUID       `json:"id"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
	Status     PaymentStatus   `json:"status"`
	Reference  string          `json:"reference,omitempty"`
	Operator   string          `json:"operator"`
	VoidedAt   *time.Time      `json:"voided_at,omitempty"`
	VoidedBy   string          `json:"voided_by,omitempty"`
	VoidReason string          `json:"void_reason,omitempty"`
}

// VoidPayment moves p from Valid to Voided.
func VoidPayment(p *Payment, by, reason string, at time.Time) error {
	if p.Status == PaymentVoided {
		return newError("VoidPayment", ErrAlreadyVoided, "payment %s", p.ID)
	}
	p.Status = PaymentVoided
	p.VoidedAt = &at
	p.VoidedBy = by
	p.VoidReason = reason
	return nil
}

// InstallmentStatus describes an installment as of the ledger date.
type InstallmentStatus string

const (
	InstallmentPaid     InstallmentStatus = "PAID"
	InstallmentOverdue  InstallmentStatus = "OVERDUE"
	InstallmentDueToday InstallmentStatus = "DUE_TODAY"
	InstallmentPartial  InstallmentStatus = "PARTIAL"
	InstallmentPending  InstallmentStatus = "PENDING"
)

// InstallmentState is an installment together with how much of it is covered.
type InstallmentState struct {
	Installment
	Paid        decimal.Decimal   `json:"paid"`
	Outstanding decimal.Decimal   `json:"outstanding"`
	Status      InstallmentStatus `json:"status"`
}

// LedgerState is the financial position of a loan as of a date. It is derived
// from the schedule and the valid payments and is never stored.
type LedgerState struct {
	AsOf                time.Time          `json:"as_of"`
	TotalAmount         decimal.Decimal    `json:"total_amount"`
	PaidAmount          decimal.Decimal    `json:"paid_amount"`
	RemainingBalance    decimal.Decimal    `json:"remaining_balance"`
	DueToday            decimal.Decimal    `json:"due_today"`
	Overdue             decimal.Decimal    `json:"overdue"`
	Advance             decimal.Decimal    `json:"advance"`
	Unapplied           decimal.Decimal    `json:"unapplied"`
	LateDays            int                `json:"late_days"`
	Category            string             `json:"category"`
	OverdueInstallments int                `json:"overdue_installments"`
	NextDueDate         *time.Time         `json:"next_due_date,omitempty"`
	Installments        []InstallmentState `json:"installments"`
}

// Settled reports whether nothing remains to be paid.
func (s LedgerState) Settled() bool {
	return !s.RemainingBalance.IsPositive()
}

// ComputeStatus derives the ledger state of a schedule as of asOf. Only valid
// payments dated on or before asOf count. Payments cover installments oldest
// first, so the covered installments always form a prefix of the schedule.
func (e *Engine) ComputeStatus(s Schedule, payments []Payment, asOf time.Time) LedgerState {
	asOf = DateOf(asOf)

	paid := decimal.Zero
	for _, p := range payments {
		if p.Status != PaymentValid || DateOf(p.Timestamp).After(asOf) {
			continue
		}
		paid = paid.Add(p.Amount)
	}

	rows := make([]InstallmentState, len(s.Installments))
	left := paid
	for i, in := range s.Installments {
		cover := decimal.Min(left, in.Total)
		left = left.Sub(cover)
		rows[i] = InstallmentState{Installment: in, Paid: cover}
	}
	return e.summarize(rows, asOf, left)
}

// summarize fills the per-installment status and the aggregates. ComputeStatus
// and ApplyPayment both go through it so their results cannot drift apart.
func (e *Engine) summarize(rows []InstallmentState, asOf time.Time, unapplied decimal.Decimal) LedgerState {
	st := LedgerState{
		AsOf:         asOf,
		TotalAmount:  decimal.Zero,
		PaidAmount:   unapplied,
		DueToday:     decimal.Zero,
		Overdue:      decimal.Zero,
		Advance:      unapplied,
		Unapplied:    unapplied,
		Installments: rows,
	}

	var oldestUnpaid *time.Time
	for i := range rows {
		row := &rows[i]
		row.Outstanding = row.Total.Sub(row.Paid)
		st.TotalAmount = st.TotalAmount.Add(row.Total)
		st.PaidAmount = st.PaidAmount.Add(row.Paid)

		due := row.DueDate
		if due.After(asOf) {
			st.Advance = st.Advance.Add(row.Paid)
		}

		switch {
		case !row.Outstanding.IsPositive():
			row.Status = InstallmentPaid
		case due.Before(asOf):
			row.Status = InstallmentOverdue
			st.Overdue = st.Overdue.Add(row.Outstanding)
			st.OverdueInstallments++
			if oldestUnpaid == nil {
				oldestUnpaid = &row.DueDate
			}
		case due.Equal(asOf):
			row.Status = InstallmentDueToday
			st.DueToday = st.DueToday.Add(row.Outstanding)
		case row.Paid.IsPositive():
			row.Status = InstallmentPartial
		default:
			row.Status = InstallmentPending
		}

		if row.Outstanding.IsPositive() && !due.Before(asOf) && st.NextDueDate == nil {
			next := row.DueDate
			st.NextDueDate = &next
		}
	}

	st.RemainingBalance = decimal.Max(st.TotalAmount.Sub(st.PaidAmount), decimal.Zero)
	if oldestUnpaid != nil {
		st.LateDays = DaysBetween(*oldestUnpaid, asOf)
	}
	st.Category = e.rules.Category(st.LateDays)
	return st
}
