package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/applelectricals/microjpeg/domain/pricing"
	"github.com/applelectricals/microjpeg/domain/tier"
)

var tiersCmd = &cobra.Command{
	Use:   "tiers",
	Short: "Show the tier catalog",
	RunE:  runTiers,
}

var costCmd = &cobra.Command{
	Use:   "cost <operations>",
	Short: "Preview the pay-as-you-go cost of a monthly volume",
	Long: `Preview the graduated pay-as-you-go cost of a monthly volume.

Each band charges only the operations that fall inside it.

Examples:
  microjpeg cost 25000
  microjpeg cost 1200000`,
	Args: cobra.ExactArgs(1),
	RunE: runCost,
}

var bundlesCmd = &cobra.Command{
	Use:   "bundles",
	Short: "List prepaid bundles and their savings",
	RunE:  runBundles,
}

var savingsCmd = &cobra.Command{
	Use:   "savings <bundle-id>",
	Short: "Compare a prepaid bundle against pay-as-you-go",
	Args:  cobra.ExactArgs(1),
	RunE:  runSavings,
}

func init() {
	rootCmd.AddCommand(tiersCmd)
	rootCmd.AddCommand(costCmd)
	rootCmd.AddCommand(bundlesCmd)
	rootCmd.AddCommand(savingsCmd)
}

func runTiers(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	catalog, err := cfg.Catalog()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPOLICY\tFREE (REG/RAW)\tMAX MB (REG/RAW)\tPER HOUR\tCAPABILITIES")
	fmt.Fprintln(w, "--\t----\t------\t--------------\t----------------\t--------\t------------")
	for _, t := range catalog.Tiers() {
		free := "-"
		if t.IsMetered() {
			free = fmt.Sprintf("%d/%d", t.MonthlyFreeOperations.Regular, t.MonthlyFreeOperations.Raw)
		}
		rate := "-"
		if t.RateCeilingPerHour > 0 {
			rate = strconv.Itoa(t.RateCeilingPerHour)
		}
		caps := make([]string, 0, len(t.Capabilities))
		for _, c := range t.CapabilityList() {
			caps = append(caps, string(c))
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d/%d\t%s\t%s\n",
			t.ID, t.DisplayName, t.Policy, free,
			t.FileSizeCeiling.Regular/tier.MB, t.FileSizeCeiling.Raw/tier.MB,
			rate, strings.Join(caps, ","))
	}
	return w.Flush()
}

func runCost(cmd *cobra.Command, args []string) error {
	ops, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("operations must be a whole number: %s", args[0])
	}
	svc, err := pricingService()
	if err != nil {
		return err
	}
	cost, err := svc.PreviewCost(ops)
	if err != nil {
		return err
	}

	currency := svc.Schedule().Currency
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	printBreakdown(w, cost.Breakdown)
	fmt.Fprintf(w, "\nTotal for %d operations:\t%s %s\n", cost.Operations, cost.Total, currency)
	return w.Flush()
}

func runBundles(cmd *cobra.Command, args []string) error {
	svc, err := pricingService()
	if err != nil {
		return err
	}
	bundles := svc.Bundles()
	if len(bundles) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No prepaid bundles configured.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tOPERATIONS\tPRICE\tPAY-AS-YOU-GO\tSAVINGS")
	fmt.Fprintln(w, "--\t----\t----------\t-----\t-------------\t-------")
	for _, b := range bundles {
		s, err := svc.PreviewPrepaidSavings(b.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s (%.1f%%)\n",
			b.ID, b.Name, b.Operations, b.Price, s.PayAsYouGoEquivalent, s.Savings, s.SavingsPercent)
	}
	return w.Flush()
}

func runSavings(cmd *cobra.Command, args []string) error {
	svc, err := pricingService()
	if err != nil {
		return err
	}
	s, err := svc.PreviewPrepaidSavings(args[0])
	if err != nil {
		return err
	}

	currency := svc.Schedule().Currency
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Bundle:\t%s (%d operations)\n", s.Bundle.Name, s.Bundle.Operations)
	fmt.Fprintf(w, "Price:\t%s %s\n\n", s.Bundle.Price, currency)
	printBreakdown(w, s.PayAsYouGoBreakdown)
	fmt.Fprintf(w, "\nPay-as-you-go:\t%s %s\n", s.PayAsYouGoEquivalent, currency)
	fmt.Fprintf(w, "Savings:\t%s %s (%.1f%%)\n", s.Savings, currency, s.SavingsPercent)
	return w.Flush()
}

func printBreakdown(w *tabwriter.Writer, charges []pricing.BandCharge) {
	fmt.Fprintln(w, "BAND\tUNIT PRICE\tOPERATIONS\tSUBTOTAL")
	fmt.Fprintln(w, "----\t----------\t----------\t--------")
	for _, c := range charges {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", c.Band.Label(), c.Band.UnitPrice, c.Operations, c.Subtotal)
	}
}
