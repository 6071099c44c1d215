package main

import (
	"fmt"
	"time"

	"job-sync/internal/pkg/jwt"

	"github.com/spf13/cobra"
)

var tokenCommand = &cobra.Command{
	Use:   "token",
	Short: "Mint a signed trigger token",
	Long:  "Prints a token external schedulers can present instead of the shared trigger secret.",
	RunE:  runTokenCmd,
}

var (
	tokenSubject string
	tokenScopes  []string
	tokenTTL     time.Duration
)

func init() {
	tokenCommand.Flags().StringVar(&tokenSubject, "subject", "scheduler", "caller identity recorded in the token")
	tokenCommand.Flags().StringSliceVar(&tokenScopes, "scope", []string{jwt.ScopeSync}, "granted scopes: sync, admin")
	tokenCommand.Flags().DurationVar(&tokenTTL, "ttl", 0, "token lifetime (default TRIGGER_TOKEN_TTL)")

	rootCmd.AddCommand(tokenCommand)
}

func runTokenCmd(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	ttl := tokenTTL
	if ttl <= 0 {
		ttl = cfg.Trigger.TokenTTL
	}

	tok, err := jwt.NewHMACService(cfg.Trigger.Secret, ttl).GenerateTriggerToken(tokenSubject, tokenScopes...)
	if err != nil {
		return fmt.Errorf("generate token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
