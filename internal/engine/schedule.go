package engine

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var (
	hundred  = decimal.NewFromInt(100)
	halfStep = decimal.NewFromInt(2)
)

// LoanTerms are the commercial terms a schedule is generated from.
type LoanTerms struct {
	Principal   decimal.Decimal `json:"principal" yaml:"principal"`
	MonthlyRate decimal.Decimal `json:"monthly_rate" yaml:"monthly_rate"` // percent per month
	TermMonths  decimal.Decimal `json:"term_months" yaml:"term_months"`   // multiple of 0.5
	Frequency   Frequency       `json:"frequency" yaml:"frequency"`
	StartDate   time.Time       `json:"start_date" yaml:"start_date"`
	Holidays    *Calendar       `json:"-" yaml:"-"`
}

// Validate checks the terms before any schedule math runs.
func (t LoanTerms) Validate() error {
	const op = "LoanTerms.Validate"

	if !t.Principal.IsPositive() {
		return newError(op, ErrInvalidTerms, "principal must be positive")
	}
	if !t.Principal.Equal(t.Principal.Round(2)) {
		return newError(op, ErrInvalidTerms, "principal %s has more than two decimal places", t.Principal)
	}
	if !t.MonthlyRate.IsPositive() {
		return newError(op, ErrInvalidTerms, "monthly rate must be positive")
	}
	if !t.TermMonths.IsPositive() {
		return newError(op, ErrInvalidTerms, "term must be positive")
	}
	if !t.TermMonths.Mul(halfStep).IsInteger() {
		return newError(op, ErrInvalidTerms, "term %s is not a multiple of half a month", t.TermMonths)
	}
	if !t.Frequency.Valid() {
		return newError(op, ErrInvalidTerms, "unsupported payment frequency %d", int(t.Frequency))
	}
	if t.StartDate.IsZero() {
		return newError(op, ErrInvalidTerms, "start date is required")
	}
	return nil
}

// PeriodCount is the number of installments: term months times the frequency's
// periods per month, rounded half up, never less than one.
func (t LoanTerms) PeriodCount() int {
	num, den := t.Frequency.periodsPerMonth()
	n := int(t.TermMonths.Mul(decimal.NewFromInt(num)).Div(decimal.NewFromInt(den)).Round(0).IntPart())
	if n < 1 {
		return 1
	}
	return n
}

// PeriodRate is the interest rate applied to the balance each period.
func (t LoanTerms) PeriodRate() decimal.Decimal {
	num, den := t.Frequency.periodsPerMonth()
	return t.MonthlyRate.Mul(decimal.NewFromInt(den)).Div(hundred.Mul(decimal.NewFromInt(num)))
}

// Installment is one scheduled obligation.
type Installment struct {
	Number    int             `json:"number"`
	DueDate   time.Time       `json:"due_date"`
	Principal decimal.Decimal `json:"principal"`
	Interest  decimal.Decimal `json:"interest"`
	Total     decimal.Decimal `json:"total"`
	Balance   decimal.Decimal `json:"balance"` // principal left after this installment
}

// Schedule is the full list of installments for a loan.
type Schedule struct {
	PeriodicPayment decimal.Decimal `json:"periodic_payment"`
	Installments    []Installment   `json:"installments"`
}

// TotalPrincipal sums the principal portions.
func (s Schedule) TotalPrincipal() decimal.Decimal {
	sum := decimal.Zero
	for _, in := range s.Installments {
		sum = sum.Add(in.Principal)
	}
	return sum
}

// TotalInterest sums the interest portions.
func (s Schedule) TotalInterest() decimal.Decimal {
	sum := decimal.Zero
	for _, in := range s.Installments {
		sum = sum.Add(in.Interest)
	}
	return sum
}

// TotalAmount is principal plus all scheduled interest.
func (s Schedule) TotalAmount() decimal.Decimal {
	sum := decimal.Zero
	for _, in := range s.Installments {
		sum = sum.Add(in.Total)
	}
	return sum
}

// MaturityDate is the due date of the last installment.
func (s Schedule) MaturityDate() time.Time {
	if len(s.Installments) == 0 {
		return time.Time{}
	}
	return s.Installments[len(s.Installments)-1].DueDate
}

// GenerateSchedule builds the level-payment schedule for terms. Interest is
// charged on the declining principal balance; the final installment takes
// whatever principal is left so the balance lands exactly on zero.
func GenerateSchedule(terms LoanTerms) (Schedule, error) {
	const op = "GenerateSchedule"

	if err := terms.Validate(); err != nil {
		return Schedule{}, err
	}

	n := terms.PeriodCount()
	rate := terms.PeriodRate()
	payment, err := levelPayment(terms.Principal, rate, n)
	if err != nil {
		return Schedule{}, newError(op, ErrInvalidTerms, "%v", err)
	}
	start := DateOf(terms.StartDate)
	skipWeekends := terms.Frequency.SkipsWeekends()

	installments := make([]Installment, 0, n)
	balance := terms.Principal
	prev := start

	for k := 1; k <= n; k++ {
		interest := balance.Mul(rate).Round(2)
		principal := payment.Sub(interest)
		switch {
		case k == n:
			principal = balance
		case !principal.IsPositive():
			return Schedule{}, newError(op, ErrInvalidTerms,
				"installment %d of %d: principal portion %s is not positive (payment %s, interest %s); principal %s is too small",
				k, n, principal, payment, interest, terms.Principal)
		case principal.GreaterThanOrEqual(balance):
			return Schedule{}, newError(op, ErrInvalidTerms,
				"installment %d of %d: principal portion %s clears the remaining balance %s early",
				k, n, principal, balance)
		}

		candidate := terms.Frequency.rawDate(start, k)
		if !candidate.After(prev) {
			candidate = prev.AddDate(0, 0, 1)
		}
		due, err := NextBusinessDate(candidate, terms.Holidays, skipWeekends)
		if err != nil {
			return Schedule{}, newError(op, ErrUnresolvableDate,
				"installment %d: %v", k, err)
		}

		balance = balance.Sub(principal)
		installments = append(installments, Installment{
			Number:    k,
			DueDate:   due,
			Principal: principal,
			Interest:  interest,
			Total:     principal.Add(interest),
			Balance:   balance,
		})
		prev = due
	}

	s := Schedule{PeriodicPayment: payment, Installments: installments}
	checkSchedule(s, terms.Principal)
	return s, nil
}

// levelPayment is P*r / (1 - (1+r)^-n) rounded to cents. The power is taken in
// float64 and the result moved back to decimal for the money arithmetic. A rate
// too small to move (1+r)^n off one in float64 degenerates to P/n.
func levelPayment(principal, rate decimal.Decimal, n int) (decimal.Decimal, error) {
	r := rate.InexactFloat64()
	factor := math.Pow(1+r, float64(n))
	if rate.IsZero() || factor == 1 {
		return principal.Div(decimal.NewFromInt(int64(n))).Round(2), nil
	}
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor < 1 {
		return decimal.Zero, fmt.Errorf("period rate %s has no finite level payment over %d periods", rate, n)
	}

	amount := principal.InexactFloat64() * r * factor / (factor - 1)
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount <= 0 {
		return decimal.Zero, fmt.Errorf("period rate %s has no finite level payment over %d periods", rate, n)
	}
	return decimal.NewFromFloat(amount).Round(2), nil
}

func checkSchedule(s Schedule, principal decimal.Decimal) {
	mustHold(s.TotalPrincipal().Equal(principal),
		"principal portions sum to %s, want %s", s.TotalPrincipal(), principal)

	last := principal
	for i, in := range s.Installments {
		mustHold(in.Balance.LessThan(last), "balance did not decrease at installment %d", in.Number)
		mustHold(in.Total.Equal(in.Principal.Add(in.Interest)), "installment %d total mismatch", in.Number)
		if i > 0 {
			mustHold(in.DueDate.After(s.Installments[i-1].DueDate), "installment %d date not increasing", in.Number)
		}
		last = in.Balance
	}
	mustHold(last.IsZero(), "final balance is %s", last)
}
