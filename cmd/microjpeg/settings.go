package main

import (
	"context"
	"fmt"
	"os/user"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/applelectricals/microjpeg/domain/settings"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage runtime settings",
	Long: `Manage runtime settings stored alongside the usage ledger.

A running server picks up changes within its settings cache TTL.

Examples:
  microjpeg settings list
  microjpeg settings set ratelimit.burst_tokens 20
  microjpeg settings enforcement off`,
}

var settingsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all settings with defaults applied",
	RunE:  runSettingsList,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a setting value",
	Args:  cobra.ExactArgs(2),
	RunE:  runSettingsSet,
}

var settingsEnforcementCmd = &cobra.Command{
	Use:       "enforcement <on|off>",
	Short:     "Switch usage enforcement on or off",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"on", "off"},
	RunE:      runSettingsEnforcement,
}

func init() {
	rootCmd.AddCommand(settingsCmd)

	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsEnforcementCmd)
}

func runSettingsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	all := svc.settings.Get(ctx)
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tVALUE")
	fmt.Fprintln(w, "---\t-----")
	for _, k := range settings.Keys() {
		fmt.Fprintf(w, "%s\t%s\n", k, all[k])
	}
	return w.Flush()
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.settings.Set(ctx, args[0], args[1], operator()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Set %s\n", checkMark, args[0])
	return nil
}

func runSettingsEnforcement(cmd *cobra.Command, args []string) error {
	var enabled bool
	switch args[0] {
	case "on":
		enabled = true
	case "off":
	default:
		return fmt.Errorf("expected on or off, got %q", args[0])
	}

	ctx := context.Background()
	svc, err := openServices(ctx)
	if err != nil {
		return err
	}
	defer svc.Close()

	if err := svc.settings.SetEnforcement(ctx, enabled, operator()); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s Enforcement %s (%s=%s)\n",
		checkMark, args[0], settings.KeyEnforcementEnabled, settings.FormatBool(enabled))
	return nil
}

// operator names the person changing a setting from the command line.
func operator() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return "cli:" + u.Username
	}
	return "cli"
}
