package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	envFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "microjpeg",
	Short: "Usage metering and tiered billing for image compression",
	Long: `microjpeg meters image operations per customer and decides whether
each one may proceed under the customer's plan.

Quick start:
  microjpeg validate   # Check configuration
  microjpeg serve      # Start the HTTP service

Inspection:
  microjpeg tiers      # Show the tier catalog
  microjpeg cost 25000 # Preview a pay-as-you-go bill
  microjpeg usage show --user=u_123`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return loadEnvFile(envFile)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "microjpeg.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with MICROJPEG_* variables")
}

// loadEnvFile loads path into the environment without overriding
// variables that are already set. A missing default file is not an error.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		if path == ".env" {
			return nil
		}
		return fmt.Errorf("env file not found: %s", path)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
)
