package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/kc-allan/at-insurance/internal/model"
	"github.com/kc-allan/at-insurance/internal/policies"
)

var quoteCmd = &cobra.Command{
	Use:   "quote <crop|livestock> <quantity>",
	Short: "Print the annual premium for a coverage quantity",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		quantity, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("quantity must be a number: %w", err)
		}
		policyType := model.PolicyType(args[0])
		premium, err := policies.CalculatePremium(policyType, quantity)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: premium KES %.2f\n", policies.CoverageDescription(policyType, quantity), premium)
		return nil
	},
}
