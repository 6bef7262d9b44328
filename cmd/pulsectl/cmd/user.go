package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pulse-analytics/pulse/internal/repository"
	"github.com/pulse-analytics/pulse/internal/validation"
)

// UserCmd toggles account flags that have no public endpoint.
func UserCmd() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	userCmd.AddCommand(userFlagCmd("disable", "Disable an account and block its sessions", func(ctx context.Context, s *repository.CredentialStore, id string) error {
		return s.SetActive(ctx, id, false)
	}))
	userCmd.AddCommand(userFlagCmd("enable", "Re-enable a disabled account", func(ctx context.Context, s *repository.CredentialStore, id string) error {
		return s.SetActive(ctx, id, true)
	}))
	userCmd.AddCommand(userFlagCmd("verify", "Mark an account's email as verified", func(ctx context.Context, s *repository.CredentialStore, id string) error {
		return s.SetVerified(ctx, id, true)
	}))

	return userCmd
}

func userFlagCmd(use, short string, apply func(ctx context.Context, s *repository.CredentialStore, userID string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <email>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := validation.NormalizeEmail(args[0])

			return withDatabase(func(d *database) error {
				store := repository.NewCredentialStore(d.DB, d.cfg.DBQueryTimeout)
				ctx := cmd.Context()

				user, err := store.UserByEmail(ctx, email)
				if errors.Is(err, repository.ErrUserNotFound) {
					return fmt.Errorf("no user with email %s", email)
				}
				if err != nil {
					return err
				}

				err = apply(ctx, store, user.ID)
				if err != nil {
					return fmt.Errorf("%s user: %w", use, err)
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s (%s)\n", use, email, user.ID)
				return nil
			})
		},
	}
}
