package services

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/huangang/panelsentry/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIncentive(t *testing.T) {
	tests := []struct {
		in   string
		want float64
	}{
		{"$2.50", 2.5},
		{" $12.00 ", 12},
		{"1,200", 1200},
		{"", 0},
		{"free", 0},
		{"$", 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseIncentive(tt.in), "ParseIncentive(%q)", tt.in)
	}
}

func TestComputePanelStats(t *testing.T) {
	projects := []models.Project{
		{ID: "P1", Status: models.ProjectStatusActive, Completes: 4, Terminates: 3, QuotaFull: 1, Incentive: "$2.50"},
		{ID: "P2", Status: models.ProjectStatusPaused, Completes: 2, Incentive: "$12.00"},
	}
	vendors := []models.Vendor{
		{ID: "V1", Status: models.VendorStatusActive},
		{ID: "V2", Status: models.VendorStatusSuspended},
	}

	got := ComputePanelStats(projects, vendors, 11)
	want := PanelStats{
		TotalProjects:         2,
		ActiveProjects:        1,
		TotalVendors:          2,
		ActiveVendors:         1,
		TotalResponses:        11,
		TotalCompletes:        6,
		TotalTerminates:       3,
		TotalQuotaFull:        1,
		OverallCompletionRate: 60,
		TotalEarnings:         34,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ComputePanelStats() mismatch (-want +got):\n%s", diff)
	}
}

func TestComputePanelStats_Empty(t *testing.T) {
	got := ComputePanelStats(nil, nil, 0)
	assert.Zero(t, got.OverallCompletionRate)
	assert.Zero(t, got.TotalEarnings)
}

func TestVendorPerformance_NoResponses(t *testing.T) {
	v := &models.Vendor{ID: "V1", Name: "Idle", FraudScore: 0}

	perf := ComputeVendorPerformance(v, nil, nil)

	assert.Zero(t, perf.CompletionRate)
	assert.Zero(t, perf.TerminateRate)
	assert.Zero(t, perf.Earnings)
	assert.Equal(t, 1.0, perf.Rating, "rating is clamped to at least 1")
	assert.Equal(t, SeverityLow, perf.RiskLevel)
}

func TestVendorPerformance_EarningsOnlyOnAssignedProjects(t *testing.T) {
	v := &models.Vendor{ID: "V1", Name: "GSN", FraudScore: 3, AssignedProjects: []string{"P1"}}
	projects := []models.Project{
		{ID: "P1", Incentive: "$2.50"},
		{ID: "P2", Incentive: "$10"},
	}
	responses := []models.Response{
		{ID: "R1", ProjectID: "P1", VendorID: "V1", Status: models.ResponseStatusComplete},
		{ID: "R2", ProjectID: "P1", VendorID: "V1", Status: models.ResponseStatusComplete},
		{ID: "R3", ProjectID: "P1", VendorID: "V1", Status: models.ResponseStatusTerminate},
		{ID: "R4", ProjectID: "P2", VendorID: "V1", Status: models.ResponseStatusComplete},
		{ID: "R5", ProjectID: "P1", VendorID: "V2", Status: models.ResponseStatusComplete},
	}

	perf := ComputeVendorPerformance(v, responses, projects)

	assert.Equal(t, 4, perf.Total)
	assert.Equal(t, 3, perf.Completes)
	assert.Equal(t, 75.0, perf.CompletionRate)
	assert.Equal(t, 25.0, perf.TerminateRate)
	assert.Equal(t, 5.0, perf.Earnings)
	// 75/20 - (3-2)*0.5
	assert.Equal(t, 3.25, perf.Rating)
	assert.Equal(t, SeverityHigh, perf.RiskLevel)
}

func TestProjectAnalytics_TopVendorsKeepAssignmentOrderOnTies(t *testing.T) {
	p := &models.Project{ID: "P1", Name: "Tracker", TotalQuota: 4, Completes: 5, Incentive: "$2"}
	vendors := []models.Vendor{{ID: "V1", Name: "A"}, {ID: "V2", Name: "B"}, {ID: "V3", Name: "C"}}
	responses := []models.Response{
		{ProjectID: "P1", VendorID: "V2", Status: models.ResponseStatusComplete},
		{ProjectID: "P1", VendorID: "V3", Status: models.ResponseStatusComplete},
		{ProjectID: "P1", VendorID: "V3", Status: models.ResponseStatusComplete},
		{ProjectID: "P1", VendorID: "V1", Status: models.ResponseStatusComplete},
		{ProjectID: "P1", VendorID: "V2", Status: models.ResponseStatusTerminate},
		{ProjectID: "P1", VendorID: "V1", Status: models.ResponseStatusComplete},
		{ProjectID: "P9", VendorID: "V1", Status: models.ResponseStatusComplete},
	}

	a := ComputeProjectAnalytics(p, vendors, responses)

	var order []string
	for _, tv := range a.TopVendors {
		order = append(order, tv.VendorID)
	}
	assert.Equal(t, []string{"V1", "V3", "V2"}, order)
	assert.Equal(t, 6, a.Total)
	assert.Equal(t, 100.0, a.QuotaProgress, "progress is capped")
	assert.Equal(t, 10.0, a.Earnings)
	assert.Equal(t, 2.0, a.CPI)
	assert.Equal(t, 50.0, a.TopVendors[2].CompletionRate)
}

func TestReports_FromStore(t *testing.T) {
	p := newTestPanel(t)
	vendor := mustVendor(t, p, CreateVendorRequest{Name: "GSN"})
	project := mustProject(t, p, CreateProjectRequest{TotalQuota: 10, Incentive: "$3", Vendors: []string{vendor.ID}})
	addResponse(t, p, project.ID, vendor.ID, models.ResponseStatusComplete)
	addResponse(t, p, project.ID, vendor.ID, models.ResponseStatusTerminate)

	perf, err := p.Reports.VendorPerformance(vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, 50.0, perf.CompletionRate)
	assert.Equal(t, 3.0, perf.Earnings)
	assert.Equal(t, 1, perf.ProjectCount)

	a, err := p.Reports.ProjectAnalytics(project.ID)
	require.NoError(t, err)
	assert.Equal(t, 10.0, a.QuotaProgress)
	assert.Equal(t, 1, a.VendorCount)

	_, err = p.Reports.VendorPerformance("V404")
	assert.ErrorIs(t, err, ErrVendorNotFound)
	_, err = p.Reports.ProjectAnalytics("P404")
	assert.ErrorIs(t, err, ErrProjectNotFound)

	snap, err := p.Reports.AnalyticsSnapshot()
	require.NoError(t, err)
	assert.Len(t, snap.Projects, 1)
	assert.Len(t, snap.Vendors, 1)
	assert.Equal(t, 1, snap.Stats.TotalCompletes)
}
