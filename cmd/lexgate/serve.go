package main

import (
	"fmt"
	"os"

	"github.com/artpar/lexgate/bootstrap"
	"github.com/artpar/lexgate/config"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the lexgate HTTP server.

Configuration comes from lexgate.yaml (or --config). When the file does
not exist, LEXGATE_* environment variables are used instead.

Environment variables (for container deployments):
  LEXGATE_AUTH_JWT_SECRET     - Token signing secret (required)
  ANTHROPIC_API_KEY           - Upstream API key
  LEXGATE_SERVER_PORT         - Server port (default: 8080)
  LEXGATE_RATELIMIT_BACKEND   - memory or redis
  LEXGATE_RATELIMIT_REDIS_URL - Redis URL when backend is redis
  LEXGATE_LOG_LEVEL           - debug, info, warn, error

Examples:
  lexgate serve
  lexgate serve --config /etc/lexgate/lexgate.toml
  LEXGATE_AUTH_JWT_SECRET=s3cret ANTHROPIC_API_KEY=sk-... lexgate serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if _, err := os.Stat(cfgFile); err != nil && !config.HasEnvConfig() {
		fmt.Fprintln(cmd.OutOrStdout(), "No configuration found.")
		fmt.Fprintln(cmd.OutOrStdout())
		fmt.Fprintf(cmd.OutOrStdout(), "Option 1: Create %s\n", cfgFile)
		fmt.Fprintln(cmd.OutOrStdout(), "Option 2: Set LEXGATE_AUTH_JWT_SECRET and ANTHROPIC_API_KEY")
		return nil
	}

	app, err := bootstrap.New(bootstrap.Options{
		ConfigPath: cfgFile,
		Version:    version,
	})
	if err != nil {
		return fmt.Errorf("error initializing: %w", err)
	}

	// Run (blocks until shutdown)
	return app.Run()
}
