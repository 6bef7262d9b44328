package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pulse-analytics/pulse/internal/repository"
	"github.com/pulse-analytics/pulse/internal/service"
)

func TokensCmd() *cobra.Command {
	tokensCmd := &cobra.Command{
		Use:   "tokens",
		Short: "Maintain auth tokens",
	}

	tokensCmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired, revoked and used tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(d *database) error {
				purger := service.NewTokenPurger(repository.NewCredentialStore(d.DB, d.cfg.DBQueryTimeout))

				result, err := purger.Purge(cmd.Context())
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "purged %d tokens (verification %d, refresh %d, reset %d)\n",
					result.Total(), result.VerificationTokens, result.RefreshTokens, result.ResetTokens)
				return nil
			})
		},
	})

	return tokensCmd
}
