package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Write a backup file holding the fixture panel",
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openPanel()
			if err != nil {
				return err
			}
			defer p.Close()

			if _, err := p.Seeder.Seed(); err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			backup, err := p.Export.Backup()
			if err != nil {
				return err
			}

			w, closeFn, err := output(out, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			if err := writeJSON(w, backup); err != nil {
				closeFn()
				return err
			}
			if err := closeFn(); err != nil {
				return err
			}
			if out != "" && out != "-" {
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d projects, %d vendors, %d responses to %s\n",
					len(backup.Projects), len(backup.Vendors), len(backup.Responses), out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "Output file (default stdout)")
	return cmd
}
