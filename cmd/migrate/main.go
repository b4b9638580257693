package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/suriekke/shopeasy2-sub000/internal/config"
	"github.com/suriekke/shopeasy2-sub000/internal/database"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Manage the shopeasy database schema",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(
		gooseCommand("up", "Apply all pending migrations"),
		gooseCommand("down", "Roll back the most recent migration"),
		gooseCommand("status", "Show the status of each migration"),
		gooseCommand("version", "Print the current schema version"),
	)
}

func gooseCommand(name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			db, err := database.NewConnection(cmd.Context(), &cfg.Database)
			if err != nil {
				return err
			}
			defer db.Close()

			return database.Migrate(cmd.Context(), db, name)
		},
	}
}
