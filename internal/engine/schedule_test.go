package engine

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func semimonthlyTerms() LoanTerms {
	return LoanTerms{
		Principal:   dec("10000"),
		MonthlyRate: dec("5"),
		TermMonths:  dec("12"),
		Frequency:   Semimonthly,
		StartDate:   Date(2025, time.January, 1),
	}
}

func TestGenerateSchedule_Semimonthly(t *testing.T) {
	s, err := GenerateSchedule(semimonthlyTerms())
	require.NoError(t, err)

	require.Len(t, s.Installments, 24)
	assert.Equal(t, "559.13", s.PeriodicPayment.StringFixed(2))

	first := s.Installments[0]
	assert.Equal(t, Date(2025, time.January, 16), first.DueDate)
	assert.Equal(t, "250.00", first.Interest.StringFixed(2))
	assert.Equal(t, "309.13", first.Principal.StringFixed(2))
	assert.Equal(t, "9690.87", first.Balance.StringFixed(2))

	assert.Equal(t, Date(2025, time.February, 1), s.Installments[1].DueDate)
	assert.Equal(t, "242.27", s.Installments[1].Interest.StringFixed(2))

	last := s.Installments[23]
	assert.Equal(t, Date(2026, time.January, 1), last.DueDate)
	assert.True(t, last.Balance.IsZero())
	assert.Equal(t, "545.42", last.Principal.StringFixed(2))
	assert.Equal(t, "559.06", last.Total.StringFixed(2))

	assert.True(t, s.TotalPrincipal().Equal(dec("10000")))
	assert.Equal(t, "3419.05", s.TotalInterest().StringFixed(2))
	assert.Equal(t, "13419.05", s.TotalAmount().StringFixed(2))
	assert.Equal(t, last.DueDate, s.MaturityDate())
}

func TestGenerateSchedule_HolidayShiftsDate(t *testing.T) {
	terms := semimonthlyTerms()
	terms.Holidays = NewCalendar(Date(2025, time.January, 16), Date(2025, time.January, 17))

	s, err := GenerateSchedule(terms)
	require.NoError(t, err)
	assert.Equal(t, Date(2025, time.January, 18), s.Installments[0].DueDate)
	assert.Equal(t, Date(2025, time.February, 1), s.Installments[1].DueDate)
}

func TestGenerateSchedule_DailySkipsWeekendsAndKeepsDatesDistinct(t *testing.T) {
	terms := LoanTerms{
		Principal:   dec("3000"),
		MonthlyRate: dec("10"),
		TermMonths:  dec("1"),
		Frequency:   Daily,
		StartDate:   Date(2025, time.January, 3), // friday
		Holidays:    NewCalendar(Date(2025, time.January, 7)),
	}

	s, err := GenerateSchedule(terms)
	require.NoError(t, err)
	require.Len(t, s.Installments, 30)

	assert.Equal(t, Date(2025, time.January, 6), s.Installments[0].DueDate)
	assert.Equal(t, Date(2025, time.January, 8), s.Installments[1].DueDate)
	for i, in := range s.Installments {
		assert.NotEqual(t, time.Saturday, in.DueDate.Weekday())
		assert.NotEqual(t, time.Sunday, in.DueDate.Weekday())
		assert.False(t, terms.Holidays.Contains(in.DueDate))
		if i > 0 {
			assert.True(t, in.DueDate.After(s.Installments[i-1].DueDate))
		}
	}
}

func TestGenerateSchedule_BiweeklyKeepsWeekends(t *testing.T) {
	terms := LoanTerms{
		Principal:   dec("5000"),
		MonthlyRate: dec("4"),
		TermMonths:  dec("3"),
		Frequency:   Biweekly14,
		StartDate:   Date(2025, time.January, 4), // saturday
	}

	s, err := GenerateSchedule(terms)
	require.NoError(t, err)
	require.Len(t, s.Installments, 6)
	assert.Equal(t, Date(2025, time.January, 18), s.Installments[0].DueDate)
	assert.Equal(t, time.Saturday, s.Installments[0].DueDate.Weekday())
}

func TestGenerateSchedule_SemimonthlyMonthEnd(t *testing.T) {
	terms := semimonthlyTerms()
	terms.StartDate = Date(2025, time.January, 31)
	terms.TermMonths = dec("2")

	s, err := GenerateSchedule(terms)
	require.NoError(t, err)

	var dates []time.Time
	for _, in := range s.Installments {
		dates = append(dates, in.DueDate)
	}
	assert.Equal(t, []time.Time{
		Date(2025, time.February, 15),
		Date(2025, time.February, 28),
		Date(2025, time.March, 15),
		Date(2025, time.March, 31),
	}, dates)
}

func TestLoanTerms_PeriodCount(t *testing.T) {
	tests := []struct {
		freq Frequency
		term string
		want int
	}{
		{Daily, "1", 30},
		{Daily, "0.5", 15},
		{Weekly, "12", 52},
		{Weekly, "6", 26},
		{Weekly, "1", 4},
		{Weekly, "1.5", 7},
		{Weekly, "0.5", 2},
		{Biweekly14, "12", 24},
		{Semimonthly, "0.5", 1},
		{Semimonthly, "2.5", 5},
	}

	for _, tt := range tests {
		t.Run(tt.freq.String()+"/"+tt.term, func(t *testing.T) {
			terms := LoanTerms{TermMonths: dec(tt.term), Frequency: tt.freq}
			assert.Equal(t, tt.want, terms.PeriodCount())
		})
	}
}

func TestLoanTerms_Validate(t *testing.T) {
	base := semimonthlyTerms()

	tests := []struct {
		name   string
		mutate func(*LoanTerms)
	}{
		{"zero principal", func(l *LoanTerms) { l.Principal = decimal.Zero }},
		{"negative principal", func(l *LoanTerms) { l.Principal = dec("-1") }},
		{"sub-cent principal", func(l *LoanTerms) { l.Principal = dec("100.001") }},
		{"zero rate", func(l *LoanTerms) { l.MonthlyRate = decimal.Zero }},
		{"zero term", func(l *LoanTerms) { l.TermMonths = decimal.Zero }},
		{"quarter month term", func(l *LoanTerms) { l.TermMonths = dec("1.25") }},
		{"unknown frequency", func(l *LoanTerms) { l.Frequency = Frequency(9) }},
		{"missing start date", func(l *LoanTerms) { l.StartDate = time.Time{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := base
			tt.mutate(&terms)

			_, err := GenerateSchedule(terms)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidTerms)
			assert.True(t, IsValidation(err))
		})
	}
}

func TestGenerateSchedule_PrincipalTooSmall(t *testing.T) {
	terms := LoanTerms{
		Principal:   dec("0.10"),
		MonthlyRate: dec("5"),
		TermMonths:  dec("12"),
		Frequency:   Daily,
		StartDate:   Date(2025, time.January, 1),
	}

	_, err := GenerateSchedule(terms)
	assert.True(t, IsValidation(err))
	assert.Contains(t, err.Error(), "installment 1 of 360")
}

func TestGenerateSchedule_DegenerateRate(t *testing.T) {
	tests := []struct {
		name        string
		rate        string
		freq        Frequency
		term        string
		wantPayment string
		wantErr     bool
	}{
		// the period rate underflows to zero in decimal
		{"rate rounds to zero", "0.000000000000001", Daily, "1", "33.33", false},
		// non-zero period rate, but 1+r is 1 in float64
		{"rate below float epsilon", "0.00000000000002", Semimonthly, "2", "250.00", false},
		{"rate overflows float", "1e400", Daily, "1", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			terms := LoanTerms{
				Principal:   dec("1000"),
				MonthlyRate: dec(tt.rate),
				TermMonths:  dec(tt.term),
				Frequency:   tt.freq,
				StartDate:   Date(2025, time.January, 1),
			}

			var (
				s   Schedule
				err error
			)
			require.NotPanics(t, func() { s, err = GenerateSchedule(terms) })
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidTerms)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPayment, s.PeriodicPayment.StringFixed(2))
			assert.Len(t, s.Installments, terms.PeriodCount())
			assert.True(t, s.TotalPrincipal().Equal(dec("1000")))
			assert.True(t, s.TotalInterest().IsZero())
		})
	}
}

func TestGenerateSchedule_UnresolvableCalendar(t *testing.T) {
	cal := NewCalendar()
	for i := 0; i < 500; i++ {
		cal.Add(Date(2025, time.January, 20).AddDate(0, 0, i))
	}
	terms := semimonthlyTerms()
	terms.Holidays = cal

	_, err := GenerateSchedule(terms)
	require.Error(t, err)
	assert.True(t, IsScheduling(err))
	assert.Contains(t, err.Error(), "installment 2")
}

func TestGenerateSchedule_Invariants(t *testing.T) {
	principals := []string{"100", "999.99", "2500.50", "75000"}
	rates := []string{"0.5", "3", "12.75"}
	terms := []string{"0.5", "1", "3.5", "12"}

	for _, freq := range Frequencies() {
		for _, p := range principals {
			for _, r := range rates {
				for _, m := range terms {
					lt := LoanTerms{
						Principal:   dec(p),
						MonthlyRate: dec(r),
						TermMonths:  dec(m),
						Frequency:   freq,
						StartDate:   Date(2025, time.March, 14),
						Holidays:    NewCalendar(Date(2025, time.April, 18), Date(2025, time.May, 1)),
					}
					s, err := GenerateSchedule(lt)
					if p == "100" && freq == Daily && err != nil {
						// tiny daily loans may legitimately be rejected
						continue
					}
					require.NoError(t, err, "%s %s %s %s", freq, p, r, m)

					assert.Len(t, s.Installments, lt.PeriodCount())
					assert.True(t, s.TotalPrincipal().Equal(lt.Principal))
					prev := lt.Principal
					for _, in := range s.Installments {
						assert.True(t, in.Balance.LessThan(prev))
						prev = in.Balance
					}
					assert.True(t, prev.IsZero())
				}
			}
		}
	}
}

func TestParseFrequency(t *testing.T) {
	f, err := ParseFrequency(" weekly ")
	require.NoError(t, err)
	assert.Equal(t, Weekly, f)

	var g Frequency
	require.NoError(t, g.UnmarshalText([]byte("biweekly14")))
	assert.Equal(t, Biweekly14, g)

	text, err := Semimonthly.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "SEMIMONTHLY", string(text))

	_, err = ParseFrequency("monthly")
	assert.Error(t, err)
}
