package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"credit-engine/configs"
	"credit-engine/internal/app"
	"credit-engine/internal/engine"
)

var version = "1.0.0"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "creditctl",
		Short: "creditctl - operate the credit lifecycle engine",
		Long: `creditctl works against the same database and configuration as the API
server (DB_DRIVER, DB_*, SQLITE_PATH, RULES_FILE, ...). The schedule command
runs offline and needs no database.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newScheduleCmd(),
		newStatusCmd(),
		newProvisionCmd(),
		newReceiptCmd(),
		newSweepCmd(),
		newHolidaysCmd(),
		newMigrateCmd(),
	)
	return root
}

// openApp loads the configuration from the environment and opens the
// application. Logs go to stderr so stdout stays machine readable.
func openApp(cmd *cobra.Command) (*app.App, error) {
	cfg, err := configs.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return app.New(cmd.Context(), cfg, cmd.ErrOrStderr())
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}

// asOfFlag reads the --as-of flag, defaulting to today.
func asOfFlag(cmd *cobra.Command) (time.Time, error) {
	v, _ := cmd.Flags().GetString("as-of")
	if v == "" {
		return engine.DateOf(time.Now()), nil
	}
	d, err := time.Parse(time.DateOnly, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --as-of, use YYYY-MM-DD: %w", err)
	}
	return d, nil
}
