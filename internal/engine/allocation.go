package engine

import (
	"time"

	"github.com/shopspring/decimal"
)

// AllocationBucket is the waterfall tier a portion of a payment landed in.
type AllocationBucket string

const (
	BucketOverdue  AllocationBucket = "OVERDUE"
	BucketDueToday AllocationBucket = "DUE_TODAY"
	BucketAdvance  AllocationBucket = "ADVANCE"
)

// AllocationLine is the part of a payment applied to one installment.
type AllocationLine struct {
	Installment int              `json:"installment"`
	DueDate     time.Time        `json:"due_date"`
	Bucket      AllocationBucket `json:"bucket"`
	Amount      decimal.Decimal  `json:"amount"`
	Principal   decimal.Decimal  `json:"principal"`
	Interest    decimal.Decimal  `json:"interest"`
}

// Allocation breaks a payment down by waterfall tier and by installment.
type Allocation struct {
	Amount    decimal.Decimal  `json:"amount"`
	Overdue   decimal.Decimal  `json:"overdue"`
	DueToday  decimal.Decimal  `json:"due_today"`
	Advance   decimal.Decimal  `json:"advance"`
	Principal decimal.Decimal  `json:"principal"`
	Interest  decimal.Decimal  `json:"interest"`
	Lines     []AllocationLine `json:"lines"`
}

// PaymentResult is the outcome of ApplyPayment.
type PaymentResult struct {
	Allocation Allocation  `json:"allocation"`
	Updated    LedgerState `json:"updated"`
}

// ApplyPayment runs amount through the waterfall against state: overdue
// installments oldest first, then the installment due on the payment date,
// then future installments as an advance. state must have been computed as of
// the payment's date.
func (e *Engine) ApplyPayment(state LedgerState, amount decimal.Decimal, ts time.Time) (PaymentResult, error) {
	const op = "ApplyPayment"

	if !amount.IsPositive() {
		return PaymentResult{}, newError(op, ErrInvalidAmount, "got %s", amount)
	}
	if !amount.Equal(amount.Round(2)) {
		return PaymentResult{}, newError(op, ErrInvalidAmount, "%s has more than two decimal places", amount)
	}
	if !DateOf(ts).Equal(state.AsOf) {
		return PaymentResult{}, newError(op, ErrStaleLedger, "ledger as of %s, payment on %s",
			state.AsOf.Format(time.DateOnly), DateOf(ts).Format(time.DateOnly))
	}
	if state.Settled() {
		return PaymentResult{}, newError(op, ErrNoOutstandingBalance, "loan is fully paid")
	}
	if amount.GreaterThan(state.RemainingBalance) {
		return PaymentResult{}, newError(op, ErrExceedsBalance, "payment %s, balance %s", amount, state.RemainingBalance)
	}

	rows := make([]InstallmentState, len(state.Installments))
	copy(rows, state.Installments)

	alloc := Allocation{
		Amount:    amount,
		Overdue:   decimal.Zero,
		DueToday:  decimal.Zero,
		Advance:   decimal.Zero,
		Principal: decimal.Zero,
		Interest:  decimal.Zero,
	}
	left := amount
	for i := range rows {
		if !left.IsPositive() {
			break
		}
		row := &rows[i]
		outstanding := row.Total.Sub(row.Paid)
		if !outstanding.IsPositive() {
			continue
		}

		take := decimal.Min(left, outstanding)
		principal, interest := splitCoverage(row.Installment, row.Paid, take)
		line := AllocationLine{
			Installment: row.Number,
			DueDate:     row.DueDate,
			Bucket:      bucketFor(row.DueDate, state.AsOf),
			Amount:      take,
			Principal:   principal,
			Interest:    interest,
		}
		switch line.Bucket {
		case BucketOverdue:
			alloc.Overdue = alloc.Overdue.Add(take)
		case BucketDueToday:
			alloc.DueToday = alloc.DueToday.Add(take)
		case BucketAdvance:
			alloc.Advance = alloc.Advance.Add(take)
		}
		alloc.Principal = alloc.Principal.Add(principal)
		alloc.Interest = alloc.Interest.Add(interest)
		alloc.Lines = append(alloc.Lines, line)

		row.Paid = row.Paid.Add(take)
		left = left.Sub(take)
	}

	mustHold(left.IsZero(), "%s of the payment was not allocated", left)
	mustHold(alloc.Overdue.Add(alloc.DueToday).Add(alloc.Advance).Equal(amount), "allocation tiers do not add up to %s", amount)

	return PaymentResult{
		Allocation: alloc,
		Updated:    e.summarize(rows, state.AsOf, state.Unapplied),
	}, nil
}

func bucketFor(due, asOf time.Time) AllocationBucket {
	switch {
	case due.Before(asOf):
		return BucketOverdue
	case due.Equal(asOf):
		return BucketDueToday
	default:
		return BucketAdvance
	}
}

// splitCoverage divides take between principal and interest in proportion to
// the installment's own split. The interest share is computed on cumulative
// coverage so that partial payments add up to the scheduled interest exactly.
func splitCoverage(in Installment, before, take decimal.Decimal) (principal, interest decimal.Decimal) {
	interestAt := func(covered decimal.Decimal) decimal.Decimal {
		if in.Total.IsZero() {
			return decimal.Zero
		}
		return covered.Mul(in.Interest).Div(in.Total).Round(2)
	}
	interest = interestAt(before.Add(take)).Sub(interestAt(before))
	return take.Sub(interest), interest
}
