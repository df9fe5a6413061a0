package main

import (
	"fmt"
	"os"

	"github.com/artpar/lexgate/config"
	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lexgate",
	Short: "AI request pipeline for legal guidance",
	Long: `lexgate fronts an LLM provider for a legal-guidance product.

Every request is authenticated, rate limited per plan, validated,
moderated, answered from cache when possible, retried on transient
upstream failures, and recorded for usage reporting.

Quick start:
  lexgate serve                 # Start the HTTP server
  lexgate validate              # Check configuration
  lexgate token --user u1       # Mint a bearer token for testing`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", config.DefaultPath, "config file path (YAML or TOML)")
}
