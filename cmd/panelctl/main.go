// Package main provides panelctl, the offline companion of the panel server.
// It loads a backup file into a throwaway in-memory panel and prints reports
// or exports from it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

const (
	Version = "0.3.0"
	appName = "panelctl"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Offline reports and exports for panel backups",
		Long: `panelctl works on backup files written by GET /api/export/backup.

Every command restores the backup into a private in-memory database, so the
running server is never touched.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		seedCmd(),
		reportCmd(),
		exportCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}
