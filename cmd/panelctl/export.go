package main

import (
	"github.com/huangang/panelsentry/internal/services"
	"github.com/spf13/cobra"
)

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export data from a backup",
	}
	cmd.AddCommand(exportCSVCmd())
	return cmd
}

func exportCSVCmd() *cobra.Command {
	var (
		backupPath string
		out        string
		filter     services.ResponseFilter
	)

	cmd := &cobra.Command{
		Use:   "csv",
		Short: "Write responses as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadPanel(backupPath)
			if err != nil {
				return err
			}
			defer p.Close()

			data, err := p.Export.ResponsesCSV(&filter)
			if err != nil {
				return err
			}

			w, closeFn, err := output(out, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if _, err := w.Write(data); err != nil {
				closeFn()
				return err
			}
			return closeFn()
		},
	}

	cmd.Flags().StringVarP(&backupPath, "backup", "b", "", "Backup file to export from")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&filter.ProjectID, "project", "", "Only responses of this project")
	cmd.Flags().StringVar(&filter.VendorID, "vendor", "", "Only responses of this vendor")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Only responses with this status")
	return cmd
}
