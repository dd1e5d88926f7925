package main

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status <credit-id>",
		Short: "Show the ledger state and provisioning of a credit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid credit id: %w", err)
			}
			asOf, err := asOfFlag(cmd)
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			status, err := a.Services.Credit.GetStatus(cmd.Context(), id, asOf)
			if err != nil {
				return err
			}
			return printJSON(cmd, status)
		},
	}
	cmd.Flags().String("as-of", "", "Evaluation date (YYYY-MM-DD, default: today)")
	return cmd
}

func newProvisionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provision",
		Short: "Build the portfolio provisioning report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, err := asOfFlag(cmd)
			if err != nil {
				return err
			}
			summaryOnly, _ := cmd.Flags().GetBool("summary")

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			report, err := a.Services.Portfolio.ProvisioningReport(cmd.Context(), asOf)
			if err != nil {
				return err
			}
			if summaryOnly {
				return printJSON(cmd, report.Summary)
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().String("as-of", "", "Report date (YYYY-MM-DD, default: today)")
	cmd.Flags().Bool("summary", false, "Print the per-bucket totals only")
	return cmd
}

func newReceiptCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "receipt <payment-id>",
		Short: "Reconstruct the allocation receipt of a payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid payment id: %w", err)
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			receipt, err := a.Services.Payment.Receipt(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd, receipt)
		},
	}
}

func newSweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run the delinquency reminder sweep once",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asOf, err := asOfFlag(cmd)
			if err != nil {
				return err
			}

			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			sent, err := a.Services.Notification.DelinquencySweep(cmd.Context(), asOf, a.Config.Scheduler.ReminderThresholds)
			fmt.Fprintf(cmd.OutOrStdout(), "%d notices sent\n", sent)
			return err
		},
	}
	cmd.Flags().String("as-of", "", "Sweep date (YYYY-MM-DD, default: today)")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date (%s)\n", a.Config.Database.Driver)
			return nil
		},
	}
}
