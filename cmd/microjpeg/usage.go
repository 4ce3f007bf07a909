package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/applelectricals/microjpeg/domain/ledger"
	"github.com/applelectricals/microjpeg/domain/quota"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "View metered usage",
	Long: `View metered usage recorded by the service.

Examples:
  microjpeg usage show --user=u_123 --plan=free
  microjpeg usage show --anonymous=sess_abc`,
}

var usageShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show usage for the current monthly window",
	RunE:  runUsageShow,
}

var (
	usageUserID    string
	usageAnonymous string
	usageSession   string
	usagePlan      string
)

func init() {
	rootCmd.AddCommand(usageCmd)
	usageCmd.AddCommand(usageShowCmd)

	usageShowCmd.Flags().StringVar(&usageUserID, "user", "", "user ID")
	usageShowCmd.Flags().StringVar(&usageAnonymous, "anonymous", "", "anonymous session token")
	usageShowCmd.Flags().StringVar(&usageSession, "session", "", "optional session scope")
	usageShowCmd.Flags().StringVar(&usagePlan, "plan", "", "plan label used to resolve the tier")
}

func identityFromFlags(user, anonymous string) (ledger.Identity, error) {
	switch {
	case user != "" && anonymous != "":
		return ledger.Identity{}, fmt.Errorf("--user and --anonymous are mutually exclusive")
	case user != "":
		return ledger.User(user), nil
	case anonymous != "":
		return ledger.AnonymousSession(anonymous), nil
	}
	return ledger.Identity{}, fmt.Errorf("either --user or --anonymous is required")
}

func runUsageShow(cmd *cobra.Command, args []string) error {
	id, err := identityFromFlags(usageUserID, usageAnonymous)
	if err != nil {
		return err
	}

	ctx := context.Background()
	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	u, err := svc.admission.Usage(ctx, id, usageSession, usagePlan)
	if err != nil {
		return fmt.Errorf("failed to read usage: %w", err)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Identity:\t%s\n", u.Key)
	fmt.Fprintf(w, "Tier:\t%s\n", u.TierID)
	if !u.Metered {
		fmt.Fprintf(w, "Metered:\tno\n")
	}
	fmt.Fprintf(w, "Window:\t%s to %s\n\n",
		u.Regular.WindowStartedAt.Format(time.RFC3339), u.Regular.ResetsAt.Format(time.RFC3339))

	fmt.Fprintln(w, "CATEGORY\tUSED\tLIMIT\tREMAINING\tUSED %")
	fmt.Fprintln(w, "--------\t----\t-----\t---------\t------")
	for _, s := range []quota.Snapshot{u.Regular, u.Raw} {
		limit, remaining := "-", "-"
		if u.Metered {
			limit = fmt.Sprint(s.Limit)
			remaining = fmt.Sprint(s.Remaining)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%.1f\n", s.Category, s.Used, limit, remaining, s.PercentUsed)
	}
	fmt.Fprintf(w, "\nBandwidth:\t%d bytes\n", u.Regular.BandwidthBytes)
	return w.Flush()
}
