package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/applelectricals/microjpeg/domain/audit"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the operation audit trail",
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit records, newest first",
	Long: `List audit records, newest first.

Examples:
  microjpeg audit list --bypassed
  microjpeg audit list --user=u_123 --since=24h
  microjpeg audit list --outcome=denied --limit=50`,
	RunE: runAuditList,
}

var (
	auditUserID    string
	auditAnonymous string
	auditSession   string
	auditBypassed  bool
	auditOutcome   string
	auditSince     time.Duration
	auditLimit     int
)

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)

	auditListCmd.Flags().StringVar(&auditUserID, "user", "", "filter by user ID")
	auditListCmd.Flags().StringVar(&auditAnonymous, "anonymous", "", "filter by anonymous session token")
	auditListCmd.Flags().StringVar(&auditSession, "session", "", "filter by session scope")
	auditListCmd.Flags().BoolVar(&auditBypassed, "bypassed", false, "only records that bypassed enforcement")
	auditListCmd.Flags().StringVar(&auditOutcome, "outcome", "", "processed, denied or bypassed")
	auditListCmd.Flags().DurationVar(&auditSince, "since", 0, "only records newer than this duration")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 20, "maximum number of records")
}

func runAuditList(cmd *cobra.Command, args []string) error {
	f := audit.Filter{
		SessionID:    auditSession,
		BypassedOnly: auditBypassed,
		Outcome:      audit.Outcome(auditOutcome),
		Limit:        auditLimit,
	}
	if auditUserID != "" || auditAnonymous != "" {
		id, err := identityFromFlags(auditUserID, auditAnonymous)
		if err != nil {
			return err
		}
		f.Identity = &id
	}
	if auditSince > 0 {
		f.Since = time.Now().Add(-auditSince)
	}
	if f.Outcome != "" && !f.Outcome.Valid() {
		return fmt.Errorf("--outcome must be processed, denied or bypassed, got %q", auditOutcome)
	}

	ctx := context.Background()
	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	records, err := svc.admission.AuditLog(ctx, f)
	if err != nil {
		return fmt.Errorf("failed to list audit records: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No audit records found.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tIDENTITY\tTIER\tOPERATION\tFORMAT\tSIZE MB\tOUTCOME\tREASON")
	fmt.Fprintln(w, "----\t--------\t----\t---------\t------\t-------\t-------\t------")
	for _, r := range records {
		reason := r.Reason
		if r.WasBypassed {
			reason = "bypass: " + r.BypassReason
			if r.ActingAdministrator != "" {
				reason += " (" + r.ActingAdministrator + ")"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%.2f\t%s\t%s\n",
			r.Timestamp.Format(time.RFC3339), r.Identity, r.TierID, r.Operation,
			r.FileFormat, r.FileSizeMB, r.Outcome, reason)
	}
	return w.Flush()
}
