package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/applelectricals/microjpeg/bootstrap"
	"github.com/applelectricals/microjpeg/config"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the microjpeg configuration file.

Checks:
  - YAML syntax is valid
  - Tier catalog and pricing schedule are consistent
  - Storage backend is reachable (optional)

Examples:
  microjpeg validate
  microjpeg validate --check-storage --config /etc/microjpeg/config.yaml`,
	RunE: runValidate,
}

var validateCheckStorage bool

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateCheckStorage, "check-storage", false, "open the storage backend and ping it")
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	if _, err := os.Stat(cfgFile); os.IsNotExist(err) {
		fmt.Fprintf(out, "  %s Config file exists\n", crossMark)
		return fmt.Errorf("config file not found: %s", cfgFile)
	}
	fmt.Fprintf(out, "  %s Config file exists\n", checkMark)

	cfg, err := config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)

	catalog, _ := cfg.Catalog()
	schedule, _ := cfg.Schedule()
	fmt.Fprintf(out, "  %s Storage: %s\n", checkMark, cfg.Storage.Backend)
	fmt.Fprintf(out, "  %s Tiers: %d (%d plan labels)\n", checkMark, len(catalog.Tiers()), catalog.Labels())
	fmt.Fprintf(out, "  %s Pricing bands: %d, bundles: %d\n", checkMark, len(schedule.Bands), len(schedule.Bundles))
	fmt.Fprintf(out, "  %s Admin tokens: %d\n", checkMark, len(cfg.Admin.Tokens))

	if validateCheckStorage {
		if err := checkStorage(cfg); err != nil {
			fmt.Fprintf(out, "  %s Storage reachable\n", crossMark)
			fmt.Fprintf(out, "      Error: %v\n", err)
		} else {
			fmt.Fprintf(out, "  %s Storage reachable\n", checkMark)
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}

func checkStorage(cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	stores, err := bootstrap.OpenStores(ctx, cfg, zerolog.Nop())
	if err != nil {
		return err
	}
	defer stores.Close()
	return stores.HealthCheck(ctx)
}
