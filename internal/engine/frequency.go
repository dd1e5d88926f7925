package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Frequency is the payment frequency of a loan.
type Frequency int

const (
	Daily Frequency = iota + 1
	Weekly
	Biweekly14
	Semimonthly
)

var frequencyNames = map[Frequency]string{
	Daily:       "DAILY",
	Weekly:      "WEEKLY",
	Biweekly14:  "BIWEEKLY14",
	Semimonthly: "SEMIMONTHLY",
}

// Frequencies lists every supported frequency.
func Frequencies() []Frequency {
	return []Frequency{Daily, Weekly, Biweekly14, Semimonthly}
}

// ParseFrequency parses a frequency name, case-insensitively.
func ParseFrequency(s string) (Frequency, error) {
	name := strings.ToUpper(strings.TrimSpace(s))
	for f, n := range frequencyNames {
		if n == name {
			return f, nil
		}
	}
	return 0, newError("ParseFrequency", ErrInvalidTerms, "unknown payment frequency %q", s)
}

func (f Frequency) String() string {
	if n, ok := frequencyNames[f]; ok {
		return n
	}
	return fmt.Sprintf("Frequency(%d)", int(f))
}

// Valid reports whether f is one of the supported frequencies.
func (f Frequency) Valid() bool {
	_, ok := frequencyNames[f]
	return ok
}

// MarshalText implements encoding.TextMarshaler.
func (f Frequency) MarshalText() ([]byte, error) {
	if !f.Valid() {
		return nil, fmt.Errorf("invalid payment frequency %d", int(f))
	}
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Frequency) UnmarshalText(text []byte) error {
	parsed, err := ParseFrequency(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// periodsPerMonth is the number of installments per month of term as an exact
// ratio, so that 1.5 weekly months is 6.5 periods and not 6.4999...
func (f Frequency) periodsPerMonth() (num, den int64) {
	switch f {
	case Daily:
		return 30, 1
	case Weekly:
		return 52, 12
	case Biweekly14, Semimonthly:
		return 2, 1
	}
	panic(fmt.Sprintf("unhandled frequency %d", int(f)))
}

// PeriodsPerMonth is the number of installments that make up one month of term.
func (f Frequency) PeriodsPerMonth() decimal.Decimal {
	num, den := f.periodsPerMonth()
	return decimal.NewFromInt(num).Div(decimal.NewFromInt(den))
}

// SkipsWeekends reports whether Saturdays and Sundays are excluded from
// payment dates for this frequency.
func (f Frequency) SkipsWeekends() bool {
	switch f {
	case Daily, Weekly:
		return true
	case Biweekly14, Semimonthly:
		return false
	}
	panic(fmt.Sprintf("unhandled frequency %d", int(f)))
}

// rawDate returns the unresolved date of the k-th installment (1-based).
func (f Frequency) rawDate(start time.Time, k int) time.Time {
	switch f {
	case Daily:
		return start.AddDate(0, 0, k)
	case Weekly:
		return start.AddDate(0, 0, 7*k)
	case Biweekly14:
		return start.AddDate(0, 0, 14*k)
	case Semimonthly:
		// odd periods land half a month after a whole-month mark
		base := addMonths(start, k/2)
		if k%2 == 1 {
			return base.AddDate(0, 0, 15)
		}
		return base
	}
	panic(fmt.Sprintf("unhandled frequency %d", int(f)))
}
