package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/artpar/lexgate/adapters/auth"
	"github.com/artpar/lexgate/config"
	"github.com/artpar/lexgate/domain/plan"
	"github.com/artpar/lexgate/ports"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed bearer token",
	Long: `Mint a bearer token signed with the configured JWT secret.

Intended for local testing and operator access. Production tokens are
issued by the account service that shares the same secret.

Examples:
  lexgate token --user user-123 --plan premium
  lexgate token --user user-123 --email a@example.com --ttl 1h`,
	RunE: runToken,
}

var (
	tokenUser  string
	tokenEmail string
	tokenPlan  string
	tokenTTL   time.Duration
)

func init() {
	rootCmd.AddCommand(tokenCmd)

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user ID (required)")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "user email")
	tokenCmd.Flags().StringVar(&tokenPlan, "plan", string(plan.TierFree), "plan tier: free, basic, premium, enterprise")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default: auth.token_ttl)")
	tokenCmd.MarkFlagRequired("user")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadWithFallback(cfgFile)
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	ttl := cfg.Auth.TokenTTL
	if tokenTTL > 0 {
		ttl = tokenTTL
	}

	tier := plan.ParseTier(tokenPlan)
	if string(tier) != strings.ToLower(strings.TrimSpace(tokenPlan)) {
		return fmt.Errorf("unknown plan %q", tokenPlan)
	}

	svc := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, ttl)
	tok, exp, err := svc.GenerateToken(ports.Identity{ID: tokenUser, Email: tokenEmail, Plan: tier})
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), tok)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format(time.RFC3339))
	return nil
}
