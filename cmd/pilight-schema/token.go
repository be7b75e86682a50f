package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/nerrad567/pilight-gateway/internal/auth"
)

// secretEnv names the variable holding the API signing secret, the same
// one the gateway reads.
const secretEnv = "PILIGHT_API_SECRET"

func newTokenCmd() *cobra.Command {
	var (
		subject string
		scope   string
		issuer  string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint a bearer token for catalog uploads",
		Long: `Mint an HS256 bearer token for PUT /api/v1/catalog.

The signing secret is read from ` + secretEnv + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			secret := os.Getenv(secretEnv)
			if secret == "" {
				return errors.New(secretEnv + " is not set")
			}

			token, err := auth.GenerateToken(subject, scope, secret, issuer, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject")
	cmd.Flags().StringVar(&scope, "scope", auth.ScopeCatalogWrite, "space-separated scopes")
	cmd.Flags().StringVar(&issuer, "issuer", "", "token issuer (must match api.auth.issuer when set)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	return cmd
}
