package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"cmssync/internal/auth"
)

var (
	tokenName string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token <author-id>",
	Short: "Issue a signed author token for local testing",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if cfg.Auth.JWTSecret == "" {
			return errors.New("AUTH_JWT_SECRET is not set")
		}
		v := auth.NewVerifier([]byte(cfg.Auth.JWTSecret), cfg.Auth.JWTIssuer)
		token, err := v.Issue(args[0], tokenName, tokenTTL)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name claim")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 12*time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
