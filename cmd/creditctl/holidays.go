package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"credit-engine/internal/models"
)

func newHolidaysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "holidays",
		Short: "Manage holiday calendars",
	}
	cmd.AddCommand(newHolidaysListCmd(), newHolidaysImportCmd())
	return cmd
}

func newHolidaysListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [calendar]",
		Short: "List calendars, or the holidays of one calendar",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if len(args) == 0 {
				names, err := a.Services.Holiday.Calendars(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(cmd, names)
			}
			holidays, err := a.Services.Holiday.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, holidays)
		},
	}
}

func newHolidaysImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <calendar>",
		Short: "Import a production calendar XML document and resync affected credits",
		Example: `  creditctl holidays import ru --file calendar-2025.xml
  creditctl holidays import ru --year 2025`,
		Args: cobra.ExactArgs(1),
		RunE: runHolidaysImport,
	}
	cmd.Flags().String("file", "", "Path of the XML document")
	cmd.Flags().Int("year", 0, "Download the calendar of this year from CALENDAR_URL")
	cmd.Flags().Bool("no-resync", false, "Do not regenerate the schedules of affected credits")
	return cmd
}

func runHolidaysImport(cmd *cobra.Command, args []string) error {
	calendar := args[0]
	path, _ := cmd.Flags().GetString("file")
	year, _ := cmd.Flags().GetInt("year")
	noResync, _ := cmd.Flags().GetBool("no-resync")

	if (path == "") == (year == 0) {
		return errors.New("exactly one of --file and --year is required")
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer a.Close()

	var result *models.ImportResult
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open calendar: %w", err)
		}
		defer f.Close()
		result, err = a.Services.Holiday.ImportXML(cmd.Context(), calendar, f)
		if err != nil {
			return err
		}
	} else {
		result, err = a.Services.Holiday.Fetch(cmd.Context(), calendar, year)
		if err != nil {
			return err
		}
	}

	if !noResync && result.Added > 0 {
		n, err := a.Services.Credit.ResyncAll(cmd.Context(), calendar)
		result.Resynced = n
		if err != nil {
			printJSON(cmd, result)
			return err
		}
	}
	return printJSON(cmd, result)
}
