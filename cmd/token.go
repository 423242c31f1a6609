package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"smsbridge/pkg/config"
	"smsbridge/pkg/gateway"
)

var (
	tokenSubject string
	tokenTTL     time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue a bearer token for the gateway API",
	Long:  "Signs an HS256 token with gateway.auth_secret for use with POST /v1/send and GET /v1/events.",
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = args

		cfg, err := config.LoadConfig()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		if cfg.Gateway.AuthSecret == "" {
			return errors.New("gateway.auth_secret is not configured")
		}

		token, err := gateway.IssueToken(cfg.Gateway.AuthSecret, tokenSubject, tokenTTL)
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
	SilenceUsage: true,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "cli", "token subject")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")

	rootCmd.AddCommand(tokenCmd)
}
