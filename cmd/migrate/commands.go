package main

import (
	"fmt"
	"strings"

	"inboxpilot/internal/migrations"

	"github.com/spf13/cobra"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		applied, err := runner.Up(cmd.Context())
		for _, m := range applied {
			printSuccess(fmt.Sprintf("  ✓ %03d_%s applied", m.Version, m.Name))
		}
		if err != nil {
			return err
		}

		if len(applied) == 0 {
			printSuccess("✓ No pending migrations. Database is up to date.")
			return nil
		}
		printSuccess(fmt.Sprintf("\n✓ Successfully applied %d migration(s)", len(applied)))
		return nil
	},
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the last applied migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := runner.Down(cmd.Context())
		if err != nil {
			return err
		}
		if m == nil {
			printWarning("No migrations to roll back")
			return nil
		}
		printSuccess(fmt.Sprintf("✓ %03d_%s rolled back", m.Version, m.Name))
		return nil
	},
}

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Roll back every migration and apply them again",
	RunE: func(cmd *cobra.Command, args []string) error {
		printWarning("Rolling back all migrations...")
		for {
			m, err := runner.Down(cmd.Context())
			if err != nil {
				return err
			}
			if m == nil {
				break
			}
			printSuccess(fmt.Sprintf("  ✓ %03d_%s rolled back", m.Version, m.Name))
		}
		return upCmd.RunE(cmd, args)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which migrations are applied",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := runner.Status(cmd.Context())
		if err != nil {
			return err
		}
		printStatus(status)
		return nil
	},
}

func printStatus(status []migrations.Migration) {
	printInfo("Migration Status:\n")

	fmt.Printf("%s%-10s %-40s %-12s %-20s%s\n",
		colorBold, "VERSION", "NAME", "STATUS", "APPLIED AT", colorReset)
	fmt.Println(strings.Repeat("-", 85))

	appliedCount := 0
	for _, m := range status {
		state, stateColor, appliedAt := "pending", colorYellow, "-"
		if m.Applied {
			appliedCount++
			state, stateColor = "applied", colorGreen
			if m.AppliedAt != nil {
				appliedAt = m.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}

		fmt.Printf("%-10s %-40s %s%-12s%s %-20s\n",
			fmt.Sprintf("%03d", m.Version), m.Name, stateColor, state, colorReset, appliedAt)
	}

	fmt.Println(strings.Repeat("-", 85))
	printInfo(fmt.Sprintf("\nSummary: %d/%d migrations applied", appliedCount, len(status)))
}

func init() {
	rootCmd.AddCommand(upCmd, downCmd, resetCmd, statusCmd)
}
