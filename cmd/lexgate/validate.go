package main

import (
	"fmt"
	"sort"

	"github.com/artpar/lexgate/config"
	"github.com/artpar/lexgate/domain/plan"
	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration before deployment",
	Long: `Validate the lexgate configuration.

Checks:
  - YAML or TOML syntax is valid
  - Required fields are present
  - Plan overrides name known tiers

Examples:
  lexgate validate
  lexgate validate --config /etc/lexgate/lexgate.toml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

const (
	checkMark = "\033[32m✓\033[0m"
	crossMark = "\033[31m✗\033[0m"
	warnMark  = "\033[33m!\033[0m"
)

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Validating %s...\n\n", cfgFile)

	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		fmt.Fprintf(out, "  %s Config valid\n", crossMark)
		return fmt.Errorf("config error: %w", err)
	}
	fmt.Fprintf(out, "  %s Config valid\n", checkMark)

	fmt.Fprintf(out, "  %s Listen: %s\n", checkMark, cfg.Server.Addr())
	fmt.Fprintf(out, "  %s Upstream: %s\n", checkMark, cfg.Upstream.BaseURL)
	if cfg.Upstream.APIKey == "" {
		fmt.Fprintf(out, "  %s Upstream API key not set, chat requests will fail\n", warnMark)
	}
	fmt.Fprintf(out, "  %s Rate limit backend: %s\n", checkMark, cfg.RateLimit.Backend)
	fmt.Fprintf(out, "  %s Guest endpoint: %t\n", checkMark, cfg.Guest.IsEnabled())

	table := cfg.PlanTable()
	tiers := make([]string, 0, len(table))
	for t := range table {
		tiers = append(tiers, string(t))
	}
	sort.Strings(tiers)
	for _, name := range tiers {
		l := table[plan.Tier(name)]
		fmt.Fprintf(out, "  %s Plan %s: %d rpm, %d max tokens, %d messages, %s\n",
			checkMark, name, l.RequestsPerMinute, l.MaxTokensPerRequest, l.MaxConversationLength, l.Model)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Configuration is valid.")
	return nil
}
