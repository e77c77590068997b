package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/huangang/panelsentry/internal/config"
	"github.com/huangang/panelsentry/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sameIP returns n responses from ip spread round-robin over vendors.
func sameIP(ip string, n int, vendors ...string) []models.Response {
	if len(vendors) == 0 {
		vendors = []string{"V1"}
	}
	out := make([]models.Response, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Response{
			ID:        fmt.Sprintf("R-%s-%d", ip, i),
			ProjectID: "P1",
			VendorID:  vendors[i%len(vendors)],
			UID:       fmt.Sprintf("u-%s-%d", ip, i),
			IP:        ip,
			Status:    models.ResponseStatusComplete,
			Timestamp: testEpoch.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

func alertsOfType(alerts []FraudAlert, typ string) []FraudAlert {
	var out []FraudAlert
	for _, a := range alerts {
		if a.Type == typ {
			out = append(out, a)
		}
	}
	return out
}

func TestDuplicateIPThresholds(t *testing.T) {
	th := DefaultFraudThresholds()
	tests := []struct {
		count    int
		want     bool
		severity string
	}{
		{3, false, ""},
		{4, true, SeverityMedium},
		{6, true, SeverityMedium},
		{7, true, SeverityHigh},
		{10, true, SeverityHigh},
		{11, true, SeverityCritical},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d responses", tt.count), func(t *testing.T) {
			alerts := alertsOfType(DetectFraudAlerts(sameIP("1.1.1.1", tt.count), nil, th), AlertDuplicateIP)
			if !tt.want {
				assert.Empty(t, alerts)
				return
			}
			require.Len(t, alerts, 1)
			assert.Equal(t, tt.severity, alerts[0].Severity)
			assert.Equal(t, "duplicate-ip:1.1.1.1", alerts[0].ID)
			assert.Equal(t, tt.count, alerts[0].ResponseCount)
		})
	}
}

func TestDuplicateUIDThresholds(t *testing.T) {
	th := DefaultFraudThresholds()
	mk := func(n int) []models.Response {
		out := make([]models.Response, n)
		for i := range out {
			out[i] = models.Response{ID: fmt.Sprintf("R%d", i), UID: "same", IP: fmt.Sprintf("10.0.0.%d", i), VendorID: "V1"}
		}
		return out
	}

	assert.Empty(t, alertsOfType(DetectFraudAlerts(mk(1), nil, th), AlertDuplicateUID))

	for n, severity := range map[int]string{2: SeverityMedium, 4: SeverityHigh, 6: SeverityCritical} {
		alerts := alertsOfType(DetectFraudAlerts(mk(n), nil, th), AlertDuplicateUID)
		require.Len(t, alerts, 1, "n=%d", n)
		assert.Equal(t, severity, alerts[0].Severity, "n=%d", n)
	}
}

func TestEmptyKeysAreNotGrouped(t *testing.T) {
	responses := make([]models.Response, 8)
	for i := range responses {
		responses[i] = models.Response{ID: fmt.Sprintf("R%d", i), VendorID: "V1"}
	}

	assert.Empty(t, DetectFraudAlerts(responses, nil, DefaultFraudThresholds()))
	assert.Empty(t, ComputeIPMonitoring(responses, DefaultFraudThresholds()))
}

func TestFiveResponsesFourVendorsScenario(t *testing.T) {
	th := DefaultFraudThresholds()
	responses := sameIP("1.1.1.1", 5, "V1", "V2", "V3", "V4")

	alerts := alertsOfType(DetectFraudAlerts(responses, nil, th), AlertDuplicateIP)
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityMedium, alerts[0].Severity)
	assert.Equal(t, []string{"V1", "V2", "V3", "V4"}, alerts[0].VendorIDs)

	rows := ComputeIPMonitoring(responses, th)
	require.Len(t, rows, 1)
	assert.Equal(t, 4, len(rows[0].VendorIDs))
	assert.Equal(t, 2, rows[0].RiskScore, "only the multiple-vendors rule applies")
	assert.False(t, rows[0].IsBlocked)
}

func TestIPRiskScore(t *testing.T) {
	tests := []struct {
		responses, uids, vendors int
		want                     int
	}{
		{1, 1, 1, 0},
		{5, 1, 1, 0},
		{6, 1, 1, 4},
		{11, 11, 1, 3},
		{11, 1, 1, 7},
		{5, 5, 4, 2},
		{11, 1, 4, 9},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IPRiskScore(tt.responses, tt.uids, tt.vendors), "%+v", tt)
	}
}

func TestIPMonitoring_BlockAndOrder(t *testing.T) {
	th := DefaultFraudThresholds()
	var responses []models.Response
	responses = append(responses, sameIP("9.9.9.9", 2)...)
	bot := sameIP("6.6.6.6", 12, "V1", "V2", "V3", "V4")
	for i := range bot {
		bot[i].UID = "bot"
	}
	responses = append(responses, bot...)

	rows := ComputeIPMonitoring(responses, th)
	require.Len(t, rows, 2)
	assert.Equal(t, "6.6.6.6", rows[0].IP)
	assert.Equal(t, 9, rows[0].RiskScore)
	assert.True(t, rows[0].IsBlocked)
	assert.Equal(t, 1, rows[0].UniqueUIDs)
	assert.Equal(t, "9.9.9.9", rows[1].IP)
}

func TestVendorRiskLevelAndAlertSeverityAreIndependent(t *testing.T) {
	th := DefaultFraudThresholds()

	assert.Equal(t, SeverityCritical, VendorRiskLevel(4.2))
	assert.Equal(t, SeverityCritical, VendorRiskLevel(4.0))
	assert.Equal(t, SeverityHigh, VendorRiskLevel(3.0))
	assert.Equal(t, SeverityMedium, VendorRiskLevel(2.0))
	assert.Equal(t, SeverityLow, VendorRiskLevel(1.9))

	vendors := []models.Vendor{
		{ID: "V1", Name: "Shady", FraudScore: 4.2},
		{ID: "V2", Name: "Worse", FraudScore: 4.5},
		{ID: "V3", Name: "Fine", FraudScore: 3.9},
	}
	alerts := alertsOfType(DetectFraudAlerts(nil, vendors, th), AlertSuspiciousPattern)
	require.Len(t, alerts, 2)
	bySeverity := map[string]string{}
	for _, a := range alerts {
		bySeverity[a.VendorID] = a.Severity
	}
	assert.Equal(t, map[string]string{"V1": SeverityHigh, "V2": SeverityCritical}, bySeverity)
}

func TestDetectFraudAlerts_Ordering(t *testing.T) {
	th := DefaultFraudThresholds()
	var responses []models.Response
	responses = append(responses, sameIP("1.1.1.1", 4)...)  // medium, older
	responses = append(responses, sameIP("2.2.2.2", 11)...) // critical
	late := sameIP("3.3.3.3", 4)
	for i := range late {
		late[i].Timestamp = late[i].Timestamp.Add(time.Hour)
	}
	responses = append(responses, late...) // medium, newer

	alerts := DetectFraudAlerts(responses, nil, th)
	var ids []string
	for _, a := range alerts {
		ids = append(ids, a.ID)
	}
	want := []string{"duplicate-ip:2.2.2.2", "duplicate-ip:3.3.3.3", "duplicate-ip:1.1.1.1"}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Errorf("alert order mismatch (-want +got):\n%s", diff)
	}
}

func TestTopAlerts(t *testing.T) {
	alerts := make([]FraudAlert, 15)
	th := DefaultFraudThresholds()
	assert.Len(t, TopAlerts(alerts, th), 10)

	th.AlertLimit = 0
	assert.Len(t, TopAlerts(alerts, th), 15)
}

func TestVendorFraudScores(t *testing.T) {
	th := DefaultFraudThresholds()
	vendors := []models.Vendor{
		{ID: "V1", Name: "Clean", FraudScore: 1},
		{ID: "V2", Name: "Dirty", FraudScore: 4.1, AssignedProjects: []string{"P1"}},
	}
	responses := sameIP("1.1.1.1", 4, "V2")
	responses = append(responses,
		models.Response{ID: "C1", VendorID: "V1", IP: "8.8.8.8", UID: "c1"},
		models.Response{ID: "C2", VendorID: "V1", IP: "8.8.4.4", UID: "c2"},
	)

	rows := ComputeVendorFraudScores(vendors, responses, th)
	require.Len(t, rows, 2)
	assert.Equal(t, "V2", rows[0].VendorID, "highest score first")
	assert.Equal(t, 4, rows[0].DuplicateIPs)
	assert.Equal(t, 100.0, rows[0].SuspiciousRate)
	assert.True(t, rows[0].FlaggedByPattern)
	assert.Equal(t, 1, rows[0].AssignedProjects)
	assert.Zero(t, rows[1].SuspiciousRate)
	assert.False(t, rows[1].FlaggedByPattern)
}

func TestBuildFraudReport_SummaryCountsAllAlerts(t *testing.T) {
	th := DefaultFraudThresholds()
	th.AlertLimit = 2
	var responses []models.Response
	for i := 0; i < 4; i++ {
		responses = append(responses, sameIP(fmt.Sprintf("10.0.0.%d", i), 4)...)
	}
	vendors := []models.Vendor{{ID: "V1", Name: "x", FraudScore: 4.6}}

	report := BuildFraudReport(vendors, responses, th, testEpoch)

	assert.Len(t, report.Alerts, 2)
	assert.Equal(t, 5, report.Summary.TotalAlerts)
	assert.Equal(t, 1, report.Summary.CriticalAlerts)
	assert.Equal(t, 4, report.Summary.MediumAlerts)
	assert.Equal(t, 16, report.Summary.SuspiciousResponses)
	assert.Equal(t, 1, report.Summary.HighRiskVendors)
	assert.Equal(t, SeverityCritical, report.Alerts[0].Severity)
}

func TestFraudThresholdsFromConfig(t *testing.T) {
	th := FraudThresholdsFromConfig(&config.FraudConfig{IPDuplicateThreshold: 5, AlertLimit: 3})
	assert.Equal(t, 5, th.IPDuplicate)
	assert.Equal(t, 3, th.AlertLimit)
	assert.Equal(t, 6, th.IPHigh, "zero values keep defaults")

	assert.Equal(t, DefaultFraudThresholds(), FraudThresholdsFromConfig(nil))
}
