package services

import (
	"context"
	"fmt"
	"sort"
)

const digestTopVendors = 3

// DigestService sends the daily panel summary to the admin bot.
type DigestService struct {
	dashboard *DashboardService
	reports   *ReportService
	notifier  *NotificationService
}

func NewDigestService(dashboard *DashboardService, reports *ReportService, notifier *NotificationService) *DigestService {
	return &DigestService{dashboard: dashboard, reports: reports, notifier: notifier}
}

// Build renders the digest without sending it.
func (s *DigestService) Build() (*AdminNotification, error) {
	stats, err := s.dashboard.GetStats()
	if err != nil {
		return nil, err
	}
	perf, err := s.reports.AllVendorPerformance()
	if err != nil {
		return nil, err
	}
	fraud, err := s.reports.FraudReport()
	if err != nil {
		return nil, err
	}

	lines := []string{
		fmt.Sprintf("**Projects**: %d (%d active)", stats.TotalProjects, stats.ActiveProjects),
		fmt.Sprintf("**Vendors**: %d (%d active)", stats.TotalVendors, stats.ActiveVendors),
		fmt.Sprintf("**Completes**: %d  **Terminates**: %d  **Quota full**: %d",
			stats.TotalCompletes, stats.TotalTerminates, stats.TotalQuotaFull),
		fmt.Sprintf("**Completion rate**: %.1f%%", stats.OverallCompletionRate),
		fmt.Sprintf("**Earnings**: $%.2f", stats.TotalEarnings),
		fmt.Sprintf("**Fraud alerts**: %d (%d critical)", fraud.Summary.TotalAlerts, fraud.Summary.CriticalAlerts),
	}

	ranked := rankByCompletes(perf)
	if len(ranked) > 0 {
		lines = append(lines, "", "**Top vendors**")
		for i, p := range ranked {
			if i == digestTopVendors {
				break
			}
			lines = append(lines, fmt.Sprintf("%d. %s: %d completes (%.1f%%)", i+1, p.VendorName, p.Completes, p.CompletionRate))
		}
	}

	severity := SeverityLow
	if fraud.Summary.CriticalAlerts > 0 {
		severity = SeverityHigh
	}
	return &AdminNotification{
		Title:    "Daily panel digest",
		Severity: severity,
		Lines:    lines,
	}, nil
}

func (s *DigestService) Send(ctx context.Context) error {
	n, err := s.Build()
	if err != nil {
		return err
	}
	return s.notifier.Notify(ctx, n)
}

func rankByCompletes(perf []VendorPerformance) []VendorPerformance {
	out := make([]VendorPerformance, 0, len(perf))
	for _, p := range perf {
		if p.Completes > 0 {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Completes > out[j].Completes
	})
	return out
}
