package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"inboxpilot/internal/config"
	"inboxpilot/internal/database"
	"inboxpilot/internal/migrations"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	db     *sql.DB
	runner *migrations.Runner
)

var rootCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply and roll back the InboxPilot schema",
	Long: `Migrations are embedded in the binary and tracked in the schema_migrations
table. Each migration runs in its own transaction.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load .env file (ignore error if not present)
		_ = godotenv.Load()

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		printInfo("Connecting to database...")
		db, err = database.Open(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		runner, err = migrations.NewRunner(db)
		if err != nil {
			return err
		}
		if err := runner.EnsureTable(cmd.Context()); err != nil {
			return err
		}
		printSuccess("✓ Connected to database\n")
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if db != nil {
			db.Close()
		}
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		printError(err.Error())
		os.Exit(1)
	}
}
