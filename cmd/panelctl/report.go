package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/huangang/panelsentry/internal/services"
	"github.com/spf13/cobra"
)

func reportCmd() *cobra.Command {
	var (
		backupPath string
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print panel reports from a backup",
	}
	cmd.PersistentFlags().StringVarP(&backupPath, "backup", "b", "", "Backup file to report on")
	cmd.PersistentFlags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")

	run := func(fn func(p *services.Panel, w io.Writer, asJSON bool) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			p, err := loadPanel(backupPath)
			if err != nil {
				return err
			}
			defer p.Close()
			return fn(p, cmd.OutOrStdout(), asJSON)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "stats",
			Short: "Global panel stats",
			RunE:  run(printStats),
		},
		&cobra.Command{
			Use:   "vendors",
			Short: "Performance of every vendor",
			RunE:  run(printVendors),
		},
		&cobra.Command{
			Use:   "fraud",
			Short: "Fraud summary and top alerts",
			RunE:  run(printFraud),
		},
	)
	return cmd
}

func printStats(p *services.Panel, w io.Writer, asJSON bool) error {
	stats, err := p.Dashboard.GetStats()
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, stats)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Projects\t%d (%d active)\n", stats.TotalProjects, stats.ActiveProjects)
	fmt.Fprintf(tw, "Vendors\t%d (%d active)\n", stats.TotalVendors, stats.ActiveVendors)
	fmt.Fprintf(tw, "Responses\t%d\n", stats.TotalResponses)
	fmt.Fprintf(tw, "Completes\t%d\n", stats.TotalCompletes)
	fmt.Fprintf(tw, "Terminates\t%d\n", stats.TotalTerminates)
	fmt.Fprintf(tw, "Quota full\t%d\n", stats.TotalQuotaFull)
	fmt.Fprintf(tw, "Completion rate\t%.1f%%\n", stats.OverallCompletionRate)
	fmt.Fprintf(tw, "Earnings\t$%.2f\n", stats.TotalEarnings)
	return tw.Flush()
}

func printVendors(p *services.Panel, w io.Writer, asJSON bool) error {
	perf, err := p.Reports.AllVendorPerformance()
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, perf)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSTATUS\tSENT\tCOMPLETES\tRATE\tEARNINGS\tRATING\tRISK")
	for _, v := range perf {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.1f%%\t$%.2f\t%.1f\t%s\n",
			v.VendorID, v.VendorName, v.Status, v.Total, v.Completes,
			v.CompletionRate, v.Earnings, v.Rating, v.RiskLevel)
	}
	return tw.Flush()
}

func printFraud(p *services.Panel, w io.Writer, asJSON bool) error {
	report, err := p.Reports.FraudReport()
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(w, report)
	}

	s := report.Summary
	fmt.Fprintf(w, "%d alerts (%d critical, %d high, %d medium), %d blocked IPs, %d high-risk vendors\n",
		s.TotalAlerts, s.CriticalAlerts, s.HighAlerts, s.MediumAlerts, s.BlockedIPs, s.HighRiskVendors)
	if len(report.Alerts) == 0 {
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEVERITY\tTYPE\tRESPONSES\tDESCRIPTION")
	for _, a := range report.Alerts {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", a.Severity, a.Type, a.ResponseCount, a.Description)
	}
	return tw.Flush()
}
