package services

import (
	"sort"
	"strconv"
	"strings"

	"github.com/huangang/panelsentry/internal/models"
)

// ParseIncentive reads a currency string such as "$2.50" or "1,200". Anything
// unparsable counts as 0.
func ParseIncentive(s string) float64 {
	cleaned := strings.NewReplacer("$", "", ",", "", " ", "").Replace(strings.TrimSpace(s))
	if cleaned == "" {
		return 0
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0
	}
	return v
}

func percent(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}

func clamp(lo, hi, v float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PanelStats are the global dashboard aggregates.
type PanelStats struct {
	TotalProjects         int     `json:"total_projects"`
	ActiveProjects        int     `json:"active_projects"`
	TotalVendors          int     `json:"total_vendors"`
	ActiveVendors         int     `json:"active_vendors"`
	TotalResponses        int64   `json:"total_responses"`
	TotalCompletes        int     `json:"total_completes"`
	TotalTerminates       int     `json:"total_terminates"`
	TotalQuotaFull        int     `json:"total_quota_full"`
	OverallCompletionRate float64 `json:"overall_completion_rate"`
	TotalEarnings         float64 `json:"total_earnings"`
}

// ComputePanelStats sums project counters. The completion rate is over
// completes, terminates and quota-full only.
func ComputePanelStats(projects []models.Project, vendors []models.Vendor, responseCount int64) PanelStats {
	stats := PanelStats{
		TotalProjects:  len(projects),
		TotalVendors:   len(vendors),
		TotalResponses: responseCount,
	}
	for _, p := range projects {
		if p.Status == models.ProjectStatusActive {
			stats.ActiveProjects++
		}
		stats.TotalCompletes += p.Completes
		stats.TotalTerminates += p.Terminates
		stats.TotalQuotaFull += p.QuotaFull
		stats.TotalEarnings += float64(p.Completes) * ParseIncentive(p.Incentive)
	}
	for _, v := range vendors {
		if v.Status == models.VendorStatusActive {
			stats.ActiveVendors++
		}
	}
	stats.OverallCompletionRate = percent(stats.TotalCompletes,
		stats.TotalCompletes+stats.TotalTerminates+stats.TotalQuotaFull)
	return stats
}

// statusBreakdown partitions responses by status.
type statusBreakdown struct {
	Total       int `json:"total_responses"`
	Completes   int `json:"completes"`
	Terminates  int `json:"terminates"`
	QuotaFull   int `json:"quota_full"`
	StudyClosed int `json:"study_closed"`
}

func (b *statusBreakdown) add(status string) {
	b.Total++
	switch status {
	case models.ResponseStatusComplete:
		b.Completes++
	case models.ResponseStatusTerminate:
		b.Terminates++
	case models.ResponseStatusQuotaFull:
		b.QuotaFull++
	case models.ResponseStatusStudyClosed:
		b.StudyClosed++
	}
}

type VendorPerformance struct {
	VendorID   string `json:"vendor_id"`
	VendorName string `json:"vendor_name"`
	Status     string `json:"status"`
	statusBreakdown
	CompletionRate float64 `json:"completion_rate"`
	TerminateRate  float64 `json:"terminate_rate"`
	Earnings       float64 `json:"earnings"`
	Rating         float64 `json:"rating"`
	FraudScore     float64 `json:"fraud_score"`
	RiskLevel      string  `json:"risk_level"`
	ProjectCount   int     `json:"project_count"`
}

// ComputeVendorPerformance derives a vendor's rollup from the full response
// list. Earnings only count the vendor's assigned projects.
func ComputeVendorPerformance(v *models.Vendor, responses []models.Response, projects []models.Project) VendorPerformance {
	perf := VendorPerformance{
		VendorID:     v.ID,
		VendorName:   v.Name,
		Status:       v.Status,
		FraudScore:   v.FraudScore,
		RiskLevel:    VendorRiskLevel(v.FraudScore),
		ProjectCount: len(v.AssignedProjects),
	}

	completesByProject := make(map[string]int)
	for _, r := range responses {
		if r.VendorID != v.ID {
			continue
		}
		perf.add(r.Status)
		if r.Status == models.ResponseStatusComplete {
			completesByProject[r.ProjectID]++
		}
	}

	perf.CompletionRate = percent(perf.Completes, perf.Total)
	perf.TerminateRate = percent(perf.Terminates, perf.Total)

	incentives := make(map[string]float64, len(projects))
	for _, p := range projects {
		incentives[p.ID] = ParseIncentive(p.Incentive)
	}
	for _, pid := range v.AssignedProjects {
		perf.Earnings += float64(completesByProject[pid]) * incentives[pid]
	}

	perf.Rating = clamp(1, 5, perf.CompletionRate/20-max(0, (v.FraudScore-2)*0.5))
	return perf
}

type VendorCompletes struct {
	VendorID       string  `json:"vendor_id"`
	VendorName     string  `json:"vendor_name"`
	Responses      int     `json:"responses"`
	Completes      int     `json:"completes"`
	CompletionRate float64 `json:"completion_rate"`
}

type ProjectAnalytics struct {
	ProjectID   string `json:"project_id"`
	ProjectName string `json:"project_name"`
	ClientName  string `json:"client_name"`
	Status      string `json:"status"`
	statusBreakdown
	CompletionRate float64           `json:"completion_rate"`
	TerminateRate  float64           `json:"terminate_rate"`
	TotalQuota     int               `json:"total_quota"`
	QuotaProgress  float64           `json:"quota_progress"`
	CPI            float64           `json:"cpi"`
	Earnings       float64           `json:"earnings"`
	VendorCount    int               `json:"vendor_count"`
	TopVendors     []VendorCompletes `json:"top_vendors"`
}

// ComputeProjectAnalytics derives a project's rollup. vendors must be the
// project's assigned vendors in assignment order; top vendors are ranked by
// completes with ties left in that order.
func ComputeProjectAnalytics(p *models.Project, vendors []models.Vendor, responses []models.Response) ProjectAnalytics {
	a := ProjectAnalytics{
		ProjectID:   p.ID,
		ProjectName: p.Name,
		ClientName:  p.ClientName,
		Status:      p.Status,
		TotalQuota:  p.TotalQuota,
		CPI:         ParseIncentive(p.Incentive),
		VendorCount: len(vendors),
	}

	perVendor := make(map[string]*statusBreakdown, len(vendors))
	for _, r := range responses {
		if r.ProjectID != p.ID {
			continue
		}
		a.add(r.Status)
		b, ok := perVendor[r.VendorID]
		if !ok {
			b = &statusBreakdown{}
			perVendor[r.VendorID] = b
		}
		b.add(r.Status)
	}

	a.CompletionRate = percent(a.Completes, a.Total)
	a.TerminateRate = percent(a.Terminates, a.Total)
	a.Earnings = float64(p.Completes) * a.CPI
	if p.TotalQuota > 0 {
		a.QuotaProgress = min(100, float64(p.Completes)/float64(p.TotalQuota)*100)
	}

	a.TopVendors = make([]VendorCompletes, 0, len(vendors))
	for _, v := range vendors {
		vc := VendorCompletes{VendorID: v.ID, VendorName: v.Name}
		if b, ok := perVendor[v.ID]; ok {
			vc.Responses = b.Total
			vc.Completes = b.Completes
			vc.CompletionRate = percent(b.Completes, b.Total)
		}
		a.TopVendors = append(a.TopVendors, vc)
	}
	sort.SliceStable(a.TopVendors, func(i, j int) bool {
		return a.TopVendors[i].Completes > a.TopVendors[j].Completes
	})
	return a
}
