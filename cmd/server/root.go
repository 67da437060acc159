package main

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "shelfreader",
		Short: "EPUB bookshelf and reading session server",
		Long: `ShelfReader keeps a shelf of EPUB books, remembers where each one was left
and serves a paginated reading session over HTTP.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (defaults plus SR_ variables when empty)")

	cmd.AddCommand(newServeCmd(&configPath))
	cmd.AddCommand(newShelfCmd(&configPath))

	return cmd
}
