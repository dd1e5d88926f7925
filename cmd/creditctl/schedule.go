package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"credit-engine/configs"
	"credit-engine/internal/engine"
)

func newScheduleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Generate a repayment schedule without touching the database",
		Example: `  creditctl schedule --principal 10000 --rate 5 --term 3 --frequency weekly --start 2025-03-01
  creditctl schedule --principal 1200 --rate 6 --term 2 --frequency semimonthly \
      --start 2025-01-01 --holiday 2025-01-16`,
		RunE: runSchedule,
	}

	cmd.Flags().String("principal", "", "Principal amount")
	cmd.Flags().String("rate", "", "Monthly interest rate in percent")
	cmd.Flags().String("term", "", "Term in months, a multiple of 0.5")
	cmd.Flags().String("frequency", "weekly", "daily, weekly, biweekly14 or semimonthly")
	cmd.Flags().String("start", "", "Start date (YYYY-MM-DD)")
	cmd.Flags().StringSlice("holiday", nil, "Holiday date (YYYY-MM-DD), repeatable")
	cmd.Flags().String("rules", "", "Rules file whose calendar supplies holidays")
	cmd.Flags().String("calendar", "default", "Calendar of the rules file to use")
	for _, name := range []string{"principal", "rate", "term", "start"} {
		cmd.MarkFlagRequired(name)
	}
	return cmd
}

func runSchedule(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	principalStr, _ := flags.GetString("principal")
	rateStr, _ := flags.GetString("rate")
	termStr, _ := flags.GetString("term")
	freqStr, _ := flags.GetString("frequency")
	startStr, _ := flags.GetString("start")
	holidays, _ := flags.GetStringSlice("holiday")
	rulesPath, _ := flags.GetString("rules")
	calendar, _ := flags.GetString("calendar")

	var terms engine.LoanTerms
	var err error
	if terms.Principal, err = decimal.NewFromString(principalStr); err != nil {
		return fmt.Errorf("invalid --principal: %w", err)
	}
	if terms.MonthlyRate, err = decimal.NewFromString(rateStr); err != nil {
		return fmt.Errorf("invalid --rate: %w", err)
	}
	if terms.TermMonths, err = decimal.NewFromString(termStr); err != nil {
		return fmt.Errorf("invalid --term: %w", err)
	}
	if terms.Frequency, err = engine.ParseFrequency(freqStr); err != nil {
		return err
	}
	if terms.StartDate, err = time.Parse(time.DateOnly, startStr); err != nil {
		return fmt.Errorf("invalid --start, use YYYY-MM-DD: %w", err)
	}

	cal := engine.NewCalendar()
	if rulesPath != "" {
		rules, err := configs.LoadRules(rulesPath)
		if err != nil {
			return err
		}
		dates, err := rules.HolidayDates()
		if err != nil {
			return err
		}
		for _, d := range dates[calendar] {
			cal.Add(d)
		}
	}
	for _, h := range holidays {
		d, err := time.Parse(time.DateOnly, h)
		if err != nil {
			return fmt.Errorf("invalid --holiday %q: %w", h, err)
		}
		cal.Add(d)
	}
	terms.Holidays = cal

	schedule, err := engine.GenerateSchedule(terms)
	if err != nil {
		return err
	}
	return printJSON(cmd, schedule)
}
