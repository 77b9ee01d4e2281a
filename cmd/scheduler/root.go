package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Delivers due sequence steps",
	Long: `The scheduler finds enrollments whose next step is due, claims each one
and sends the step. Any number of scheduler processes may run at once.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Load .env file (ignore error in production)
		_ = godotenv.Load()
	},
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
