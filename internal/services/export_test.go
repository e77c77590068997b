package services

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/huangang/panelsentry/internal/config"
	"github.com/huangang/panelsentry/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteResponsesCSV_Quoting(t *testing.T) {
	duration := 615
	score := 1.5
	responses := []models.Response{
		{
			ProjectID:  "P00001",
			UID:        `say "hi"`,
			ClientUID:  "C-1",
			Status:     models.ResponseStatusComplete,
			IP:         "10.0.0.1",
			Country:    "US",
			City:       "Washington, D.C.",
			Timestamp:  time.Date(2026, 3, 2, 14, 5, 9, 0, time.UTC),
			Duration:   &duration,
			FraudScore: &score,
		},
		{
			ProjectID: "P00002",
			UID:       "plain",
			Status:    models.ResponseStatusTerminate,
			City:      "line\nbreak",
			Timestamp: time.Date(2026, 3, 3, 0, 0, 1, 0, time.UTC),
		},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteResponsesCSV(&buf, responses))

	want := strings.Join([]string{
		"PID,Vendor UID,Client UID,Status,IP,Country,City,Date,Time,Duration,Fraud Score",
		`P00001,"say ""hi""",C-1,complete,10.0.0.1,US,"Washington, D.C.",2026-03-02,14:05:09,615,1.5`,
		"P00002,plain,,terminate,,,\"line\nbreak\",2026-03-03,00:00:01,,",
		"",
	}, "\n")
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("CSV mismatch (-want +got):\n%s", diff)
	}
}

func TestExportResponsesCSV_Filter(t *testing.T) {
	p := newTestPanel(t)
	a := mustProject(t, p, CreateProjectRequest{Name: "A"})
	b := mustProject(t, p, CreateProjectRequest{Name: "B"})
	addResponse(t, p, a.ID, "V1", models.ResponseStatusComplete)
	addResponse(t, p, b.ID, "V1", models.ResponseStatusComplete)
	addResponse(t, p, a.ID, "V1", models.ResponseStatusTerminate)

	data, err := p.Export.ResponsesCSV(&ResponseFilter{ProjectID: a.ID})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[1], a.ID+",,,complete"))
	assert.True(t, strings.HasPrefix(lines[2], a.ID+",,,terminate"))
}

func TestBackup_RoundTrip(t *testing.T) {
	src := newTestPanel(t)
	seeded, err := src.Seeder.Seed()
	require.NoError(t, err)
	require.True(t, seeded)
	drainQueue(t, src)
	_, err = src.Settings.Merge(map[string]json.RawMessage{"company_name": json.RawMessage(`"Acme"`)})
	require.NoError(t, err)

	backup, err := src.Export.Backup()
	require.NoError(t, err)
	assert.Equal(t, BackupVersion, backup.BackupVersion)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(backup))
	decoded, err := ReadBackup(&buf)
	require.NoError(t, err)

	dst := newTestPanel(t)
	mustProject(t, dst, CreateProjectRequest{Name: "Overwritten"})
	require.NoError(t, dst.Export.RestoreBackup(decoded))

	srcStats, err := src.Dashboard.GetStats()
	require.NoError(t, err)
	dstStats, err := dst.Dashboard.GetStats()
	require.NoError(t, err)
	assert.Equal(t, srcStats, dstStats)

	srcProjects, err := src.Projects.All()
	require.NoError(t, err)
	dstProjects, err := dst.Projects.All()
	require.NoError(t, err)
	require.Len(t, dstProjects, len(srcProjects))
	for i := range srcProjects {
		assert.Equal(t, srcProjects[i].ID, dstProjects[i].ID)
		assert.Equal(t, srcProjects[i].Vendors, dstProjects[i].Vendors)
		assert.Equal(t, srcProjects[i].Quotas.Data(), dstProjects[i].Quotas.Data())
	}

	var company string
	ok, err := dst.Settings.Value("company_name", &company)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Acme", company)
}

func TestRestoreBackup_SkipsDanglingAssignments(t *testing.T) {
	p := newTestPanel(t)
	backup := &Backup{
		BackupVersion: BackupVersion,
		Projects:      []models.Project{{ID: "P1", Name: "x", Status: models.ProjectStatusActive, Vendors: []string{"V1", "V9"}}},
		Vendors:       []models.Vendor{{ID: "V1", Name: "y", Status: models.VendorStatusActive, AssignedProjects: []string{"P1", "P7"}}},
	}

	require.NoError(t, p.Export.RestoreBackup(backup))

	project, err := p.Projects.GetByID("P1")
	require.NoError(t, err)
	assert.Equal(t, []string{"V1"}, project.Vendors)
}

func TestReadBackup_UnsupportedVersion(t *testing.T) {
	_, err := ReadBackup(strings.NewReader(`{"backup_version":"0.9","projects":[]}`))
	assert.ErrorIs(t, err, ErrUnsupportedBackup)

	_, err = ReadBackup(strings.NewReader(`not json`))
	assert.Error(t, err)

	p := newTestPanel(t)
	assert.ErrorIs(t, p.Export.RestoreBackup(&Backup{BackupVersion: "2.0"}), ErrUnsupportedBackup)
}

func TestSettings_MergeIsShallow(t *testing.T) {
	p := newTestPanel(t)

	_, err := p.Settings.Merge(map[string]json.RawMessage{
		"redirect": json.RawMessage(`{"delay":3,"page":true}`),
		"currency": json.RawMessage(`"USD"`),
	})
	require.NoError(t, err)

	doc, err := p.Settings.Merge(map[string]json.RawMessage{
		"redirect": json.RawMessage(`{"delay":5}`),
	})
	require.NoError(t, err)

	assert.JSONEq(t, `{"delay":5}`, string(doc["redirect"]))
	assert.JSONEq(t, `"USD"`, string(doc["currency"]))
}

func TestSettings_Import(t *testing.T) {
	p := newTestPanel(t)

	doc, err := p.Settings.Import([]byte(`{"timezone":"Europe/Berlin","limits":[1,2]}`))
	require.NoError(t, err)
	assert.JSONEq(t, `"Europe/Berlin"`, string(doc["timezone"]))
	assert.JSONEq(t, `[1,2]`, string(doc["limits"]))

	for _, bad := range []string{`[1,2]`, `"text"`, `{broken`, `null`} {
		_, err := p.Settings.Import([]byte(bad))
		assert.ErrorIs(t, err, ErrInvalidSettings, bad)
	}

	_, err = p.Settings.Merge(map[string]json.RawMessage{"x": json.RawMessage(`{nope`)})
	assert.ErrorIs(t, err, ErrInvalidSettings)
}

func TestSettings_ValueMissingKey(t *testing.T) {
	p := newTestPanel(t)
	var v string
	ok, err := p.Settings.Value("absent", &v)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRestoreBackup_KeepsAssignmentState(t *testing.T) {
	src := newTestPanel(t, func(c *config.Config) { c.Quota.Enforce = true })
	v1 := mustVendor(t, src, CreateVendorRequest{Name: "A"})
	v2 := mustVendor(t, src, CreateVendorRequest{Name: "B"})
	project := mustProject(t, src, CreateProjectRequest{TotalQuota: 10, Vendors: []string{v2.ID, v1.ID}})
	addResponse(t, src, project.ID, v1.ID, models.ResponseStatusComplete)
	drainQueue(t, src)

	backup, err := src.Export.Backup()
	require.NoError(t, err)
	require.Len(t, backup.Assignments, 2)

	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(backup))
	decoded, err := ReadBackup(&buf)
	require.NoError(t, err)

	dst := newTestPanel(t, func(c *config.Config) { c.Quota.Enforce = true })
	require.NoError(t, dst.Export.RestoreBackup(decoded))

	var edges []models.ProjectVendor
	require.NoError(t, dst.DB.Order("id ASC").Find(&edges).Error)
	require.Len(t, edges, 2)
	assert.Equal(t, v2.ID, edges[0].VendorID, "assignment order survives")
	assert.False(t, edges[0].Paused)
	assert.Equal(t, v1.ID, edges[1].VendorID)
	assert.True(t, edges[1].Paused, "paused state survives")
	assert.Equal(t, 1, edges[1].Completes)
	assert.True(t, edges[1].AssignedAt.Equal(backup.Assignments[1].AssignedAt))

	resp := addResponse(t, dst, project.ID, v1.ID, models.ResponseStatusComplete)
	assert.Equal(t, models.ResponseStatusQuotaFull, resp.Status, "restored pause is still enforced")
}

func TestSettings_Bool(t *testing.T) {
	p := newTestPanel(t)

	assert.True(t, p.Settings.Bool(SettingFraudDetection, true), "absent key gives the default")

	_, err := p.Settings.Merge(map[string]json.RawMessage{
		SettingFraudDetection: json.RawMessage(`false`),
		SettingAutoBlockIPs:   json.RawMessage(`"yes"`),
	})
	require.NoError(t, err)
	assert.False(t, p.Settings.Bool(SettingFraudDetection, true))
	assert.False(t, p.Settings.Bool(SettingAutoBlockIPs, false), "non-boolean gives the default")
}
