package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/pulse-analytics/pulse/cmd/pulsectl/cmd"
	"github.com/pulse-analytics/pulse/internal/logger"
)

func main() {
	logger.Init(logger.Options{Development: true, Output: os.Stderr})

	rootCmd := &cobra.Command{
		Use:          "pulsectl",
		Short:        "Administration tools for Pulse",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(cmd.MigrateCmd())
	rootCmd.AddCommand(cmd.UserCmd())
	rootCmd.AddCommand(cmd.TokensCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
