package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/applelectricals/microjpeg/bootstrap"
)

var hotReload bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP service",
	Long: `Start the microjpeg HTTP service.

The server will:
  - Load configuration from microjpeg.yaml (or --config)
  - Or load configuration from MICROJPEG_* environment variables
  - Open the configured storage backend
  - Serve admission, usage and pricing endpoints under /v1

Environment variables (for container deployments):
  MICROJPEG_STORAGE_BACKEND - memory, sqlite or redis (default: sqlite)
  MICROJPEG_STORAGE_PATH    - SQLite database file (default: microjpeg.db)
  MICROJPEG_REDIS_ADDR      - Redis address (default: localhost:6379)
  MICROJPEG_SERVER_PORT     - Server port (default: 8080)
  MICROJPEG_LOG_LEVEL       - Log level: debug, info, warn, error

Examples:
  microjpeg serve
  microjpeg serve --config /etc/microjpeg/config.yaml
  microjpeg serve --hot-reload=false`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&hotReload, "hot-reload", true, "reload configuration on file change and SIGHUP")
}

func runServe(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "No config file at %s, using environment variables\n", cfgFile)
	}

	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		Watch:      hotReload,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run(context.Background())
}
