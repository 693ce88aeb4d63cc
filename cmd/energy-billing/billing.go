package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	billingapp "energy-billing/internal/billing/application"
)

var (
	recalcCompany  string
	recalcPayments []string
)

var billingCmd = &cobra.Command{
	Use:   "billing",
	Short: "Billing maintenance",
}

var billingRecalcCmd = &cobra.Command{
	Use:   "recalc",
	Short: "Recalculate payment amounts for a company or explicit payment ids",
	RunE:  runBillingRecalc,
}

func init() {
	billingRecalcCmd.Flags().StringVar(&recalcCompany, "company", "", "recalculate every payment of this company")
	billingRecalcCmd.Flags().StringSliceVar(&recalcPayments, "payment", nil, "payment id (repeatable)")
	billingCmd.AddCommand(billingRecalcCmd)
	rootCmd.AddCommand(billingCmd)
}

func runBillingRecalc(cmd *cobra.Command, _ []string) error {
	if (recalcCompany == "") == (len(recalcPayments) == 0) {
		return errors.New("exactly one of --company or --payment is required")
	}
	cfg, logger, err := setup()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	a, err := buildApp(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	var report billingapp.RecalculationReport
	if recalcCompany != "" {
		report, err = a.payments.RecalculateCompany(cmd.Context(), recalcCompany)
	} else {
		report, err = a.payments.RecalculatePayments(cmd.Context(), recalcPayments)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated %d payments, failed %d\n", len(report.Updated), len(report.Failed))
	for _, failure := range report.Failed {
		fmt.Fprintf(cmd.ErrOrStderr(), "  %s: %v\n", failure.PaymentID, failure.Err)
	}
	return report.Err()
}
