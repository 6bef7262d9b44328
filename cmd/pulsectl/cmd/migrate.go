package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pulse-analytics/pulse/internal/db"
)

func MigrateCmd() *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(d *database) error {
				err := db.RunMigrations(d.DB.DB, d.cfg.DBDriver)
				if err != nil {
					return err
				}
				return printVersion(cmd, d)
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(d *database) error {
				err := db.MigrateDown(d.DB.DB, d.cfg.DBDriver)
				if err != nil {
					return err
				}
				return printVersion(cmd, d)
			})
		},
	})

	migrateCmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDatabase(func(d *database) error {
				return printVersion(cmd, d)
			})
		},
	})

	return migrateCmd
}

func printVersion(cmd *cobra.Command, d *database) error {
	version, err := db.Version(d.DB.DB, d.cfg.DBDriver)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d\n", version)
	return nil
}

func withDatabase(fn func(d *database) error) error {
	d, err := openDatabase()
	if err != nil {
		return err
	}
	defer func() { _ = d.close() }()

	return fn(d)
}
