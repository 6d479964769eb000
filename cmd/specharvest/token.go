package main

import (
	"fmt"
	"time"

	"github.com/mohammad-safakhou/specharvest/internal/runtime"
	"github.com/spf13/cobra"
)

func tokenCMD(load configLoader) *cobra.Command {
	var (
		subject string
		ttl     time.Duration
		scopes  []string
	)
	var token = &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return err
			}
			secret, err := runtime.LoadJWTSecret(cfg)
			if err != nil {
				return err
			}
			if subject == "" {
				return fmt.Errorf("--subject is required")
			}
			tok, err := runtime.SignJWT(subject, secret, ttl, scopes...)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}
	token.Flags().StringVar(&subject, "subject", "", "token subject")
	token.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	token.Flags().StringSliceVar(&scopes, "scope", nil, "scopes to grant (runs:read, runs:write); none grants full access")
	return token
}
