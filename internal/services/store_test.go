package services

import (
	"encoding/json"
	"testing"

	"github.com/huangang/panelsentry/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectCreate_Defaults(t *testing.T) {
	p := newTestPanel(t)

	project := mustProject(t, p, CreateProjectRequest{Name: "Tracker", TotalQuota: 50, Incentive: "$2.50"})

	assert.Equal(t, "P00001", project.ID)
	assert.Equal(t, models.ProjectStatusActive, project.Status)
	assert.Equal(t, "2026-03-02", project.CreatedDate)
	assert.Zero(t, project.Completes)
	assert.Zero(t, project.Terminates)
	assert.Zero(t, project.QuotaFull)
	assert.Equal(t, []string{}, project.Vendors)
}

func TestProjectCreate_InvalidStatus(t *testing.T) {
	p := newTestPanel(t)

	_, err := p.Projects.Create(&CreateProjectRequest{Name: "x", Status: "running"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestProjectCreate_AssignsKnownVendorsOnly(t *testing.T) {
	p := newTestPanel(t)
	v1 := mustVendor(t, p, CreateVendorRequest{Name: "A"})
	v2 := mustVendor(t, p, CreateVendorRequest{Name: "B"})

	project := mustProject(t, p, CreateProjectRequest{Vendors: []string{v2.ID, "V999", v1.ID, v2.ID}})

	assert.Equal(t, []string{v2.ID, v1.ID}, project.Vendors)
}

func TestProjectUpdate_Partial(t *testing.T) {
	p := newTestPanel(t)
	project := mustProject(t, p, CreateProjectRequest{Name: "Before", ClientName: "Acme", TotalQuota: 10})

	name := "After"
	updated, err := p.Projects.Update(project.ID, &UpdateProjectRequest{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "After", updated.Name)
	assert.Equal(t, "Acme", updated.ClientName)
	assert.Equal(t, 10, updated.TotalQuota)

	_, err = p.Projects.UpdateStatus(project.ID, "bogus")
	assert.ErrorIs(t, err, ErrInvalidStatus)

	updated, err = p.Projects.UpdateStatus(project.ID, models.ProjectStatusPaused)
	require.NoError(t, err)
	assert.Equal(t, models.ProjectStatusPaused, updated.Status)
}

func TestNotFound(t *testing.T) {
	p := newTestPanel(t)

	_, err := p.Projects.GetByID("P404")
	assert.ErrorIs(t, err, ErrProjectNotFound)
	_, err = p.Vendors.GetByID("V404")
	assert.ErrorIs(t, err, ErrVendorNotFound)
	assert.ErrorIs(t, p.Projects.Delete("P404"), ErrProjectNotFound)
	assert.ErrorIs(t, p.Vendors.Delete("V404"), ErrVendorNotFound)
	assert.ErrorIs(t, p.Projects.AssignVendor("P404", "V001"), ErrProjectNotFound)

	project := mustProject(t, p, CreateProjectRequest{})
	assert.ErrorIs(t, p.Projects.AssignVendor(project.ID, "V404"), ErrVendorNotFound)
}

func TestCounterConsistency(t *testing.T) {
	p := newTestPanel(t)
	project := mustProject(t, p, CreateProjectRequest{TotalQuota: 100})
	vendor := mustVendor(t, p, CreateVendorRequest{})

	statuses := []string{
		models.ResponseStatusComplete,
		models.ResponseStatusTerminate,
		models.ResponseStatusComplete,
		models.ResponseStatusStudyClosed,
		models.ResponseStatusQuotaFull,
		models.ResponseStatusTerminate,
		models.ResponseStatusComplete,
	}
	for _, s := range statuses {
		addResponse(t, p, project.ID, vendor.ID, s)
	}

	got, err := p.Projects.GetByID(project.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Completes)
	assert.Equal(t, 2, got.Terminates)
	assert.Equal(t, 1, got.QuotaFull)

	responses, err := p.Responses.ByProject(project.ID)
	require.NoError(t, err)
	counted := 0
	for _, r := range responses {
		if projectCounterColumn(r.Status) != "" {
			counted++
		}
	}
	assert.Equal(t, got.Completes+got.Terminates+got.QuotaFull, counted)

	v, err := p.Vendors.GetByID(vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, len(statuses), v.TotalSent)
	assert.Equal(t, 3, v.TotalCompletes)
}

func TestAddResponse_RejectsUnknownStatus(t *testing.T) {
	p := newTestPanel(t)

	_, err := p.Responses.Add(&CreateResponseRequest{ProjectID: "P1", VendorID: "V1", Status: "screened"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestAddResponse_DanglingReferences(t *testing.T) {
	p := newTestPanel(t)

	resp := addResponse(t, p, "P404", "V404", models.ResponseStatusComplete)
	assert.Equal(t, "R1", resp.ID)
	assert.True(t, resp.Timestamp.After(testEpoch))

	n, err := p.Responses.Count()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestThreeCompletesScenario(t *testing.T) {
	p := newTestPanel(t)
	project := mustProject(t, p, CreateProjectRequest{TotalQuota: 10})

	for i := 0; i < 3; i++ {
		addResponse(t, p, project.ID, "", models.ResponseStatusComplete)
	}

	got, err := p.Projects.GetByID(project.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Completes)

	stats, err := p.Dashboard.GetStats()
	require.NoError(t, err)
	assert.Equal(t, 100.0, stats.OverallCompletionRate)
	assert.EqualValues(t, 3, stats.TotalResponses)
}

func TestAssignmentSymmetry(t *testing.T) {
	p := newTestPanel(t)
	project := mustProject(t, p, CreateProjectRequest{})
	vendor := mustVendor(t, p, CreateVendorRequest{})

	for i := 0; i < 2; i++ {
		require.NoError(t, p.Projects.AssignVendor(project.ID, vendor.ID))
	}

	gotProject, err := p.Projects.GetByID(project.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{vendor.ID}, gotProject.Vendors)
	gotVendor, err := p.Vendors.GetByID(vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{project.ID}, gotVendor.AssignedProjects)

	for i := 0; i < 2; i++ {
		require.NoError(t, p.Projects.RemoveVendor(project.ID, vendor.ID))
	}

	gotProject, err = p.Projects.GetByID(project.ID)
	require.NoError(t, err)
	assert.Empty(t, gotProject.Vendors)
	gotVendor, err = p.Vendors.GetByID(vendor.ID)
	require.NoError(t, err)
	assert.Empty(t, gotVendor.AssignedProjects)
}

func TestListVendors_AssignmentOrder(t *testing.T) {
	p := newTestPanel(t)
	project := mustProject(t, p, CreateProjectRequest{})
	a := mustVendor(t, p, CreateVendorRequest{Name: "A"})
	b := mustVendor(t, p, CreateVendorRequest{Name: "B"})
	c := mustVendor(t, p, CreateVendorRequest{Name: "C"})

	for _, v := range []*models.Vendor{c, a, b} {
		require.NoError(t, p.Projects.AssignVendor(project.ID, v.ID))
	}

	vendors, err := p.Projects.ListVendors(project.ID)
	require.NoError(t, err)
	var names []string
	for _, v := range vendors {
		names = append(names, v.Name)
	}
	assert.Equal(t, []string{"C", "A", "B"}, names)

	projects, err := p.Vendors.ListProjects(a.ID)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, project.ID, projects[0].ID)
}

func TestDeleteProject_Cascades(t *testing.T) {
	p := newTestPanel(t)
	keep := mustProject(t, p, CreateProjectRequest{Name: "Keep"})
	gone := mustProject(t, p, CreateProjectRequest{Name: "Gone"})
	vendor := mustVendor(t, p, CreateVendorRequest{})
	require.NoError(t, p.Projects.AssignVendor(keep.ID, vendor.ID))
	require.NoError(t, p.Projects.AssignVendor(gone.ID, vendor.ID))
	addResponse(t, p, keep.ID, vendor.ID, models.ResponseStatusComplete)
	addResponse(t, p, gone.ID, vendor.ID, models.ResponseStatusTerminate)

	require.NoError(t, p.Projects.Delete(gone.ID))

	v, err := p.Vendors.GetByID(vendor.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{keep.ID}, v.AssignedProjects)

	left, err := p.Responses.ByProject(gone.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	kept, err := p.Responses.ByProject(keep.ID)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}

func TestDeleteVendor_CascadesAndAdjustsCounters(t *testing.T) {
	p := newTestPanel(t)
	project := mustProject(t, p, CreateProjectRequest{})
	stay := mustVendor(t, p, CreateVendorRequest{Name: "Stay"})
	gone := mustVendor(t, p, CreateVendorRequest{Name: "Gone"})
	require.NoError(t, p.Projects.AssignVendor(project.ID, stay.ID))
	require.NoError(t, p.Projects.AssignVendor(project.ID, gone.ID))

	addResponse(t, p, project.ID, stay.ID, models.ResponseStatusComplete)
	addResponse(t, p, project.ID, gone.ID, models.ResponseStatusComplete)
	addResponse(t, p, project.ID, gone.ID, models.ResponseStatusTerminate)
	addResponse(t, p, project.ID, gone.ID, models.ResponseStatusStudyClosed)

	require.NoError(t, p.Vendors.Delete(gone.ID))

	got, err := p.Projects.GetByID(project.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{stay.ID}, got.Vendors)
	assert.Equal(t, 1, got.Completes)
	assert.Equal(t, 0, got.Terminates)

	left, err := p.Responses.ByVendor(gone.ID)
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestLists_FilterAndPaginate(t *testing.T) {
	p := newTestPanel(t)
	vendor := mustVendor(t, p, CreateVendorRequest{Name: "Panel Direct", Company: "PD Inc"})
	for i, name := range []string{"Alpha", "Beta", "Gamma"} {
		req := CreateProjectRequest{Name: name}
		if i == 1 {
			req.Status = models.ProjectStatusPaused
			req.Vendors = []string{vendor.ID}
		}
		mustProject(t, p, req)
	}

	list, err := p.Projects.List(&ProjectListRequest{Status: models.ProjectStatusActive})
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)

	list, err = p.Projects.List(&ProjectListRequest{VendorID: vendor.ID})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Beta", list.Items[0].Name)

	list, err = p.Projects.List(&ProjectListRequest{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, list.Total)
	assert.Len(t, list.Items, 1)

	vendors, err := p.Vendors.List(&VendorListRequest{Name: "PD"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, vendors.Total)
}

func TestResponseList_Filters(t *testing.T) {
	p := newTestPanel(t)
	project := mustProject(t, p, CreateProjectRequest{})
	vendor := mustVendor(t, p, CreateVendorRequest{})
	addResponse(t, p, project.ID, vendor.ID, models.ResponseStatusComplete, withIP("10.0.0.1"), withUID("alpha-1"))
	addResponse(t, p, project.ID, vendor.ID, models.ResponseStatusTerminate, withIP("10.0.0.2"), withUID("beta-2"))
	addResponse(t, p, project.ID, vendor.ID, models.ResponseStatusComplete, withIP("10.0.0.1"), withUID("gamma-3"))

	list, err := p.Responses.List(&ResponseListRequest{ResponseFilter: ResponseFilter{IP: "10.0.0.1"}})
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)
	assert.Equal(t, "R3", list.Items[0].ID, "newest first")

	list, err = p.Responses.List(&ResponseListRequest{ResponseFilter: ResponseFilter{Search: "beta"}})
	require.NoError(t, err)
	require.Len(t, list.Items, 1)
	assert.Equal(t, models.ResponseStatusTerminate, list.Items[0].Status)

	list, err = p.Responses.List(&ResponseListRequest{ResponseFilter: ResponseFilter{Status: models.ResponseStatusComplete}, PageSize: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 2, list.Total)
	assert.Len(t, list.Items, 1)
}

func TestVendorCreate_DefaultRedirectSettings(t *testing.T) {
	p := newTestPanel(t)

	v := mustVendor(t, p, CreateVendorRequest{Name: "GSN"})
	settings := v.RedirectSettings.Data()
	assert.True(t, settings.AutoRedirect)
	assert.Equal(t, 3, settings.RedirectDelay)
	assert.Equal(t, models.VendorStatusActive, v.Status)

	_, err := p.Vendors.Create(&CreateVendorRequest{Name: "x", Status: "banned"})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestAddResponse_AutoBlocksRiskyIPs(t *testing.T) {
	p := newTestPanel(t)
	var vendors []string
	for i := 0; i < 4; i++ {
		vendors = append(vendors, mustVendor(t, p, CreateVendorRequest{}).ID)
	}
	project := mustProject(t, p, CreateProjectRequest{TotalQuota: 100})

	// one uid across four vendors from one address scores 9 of 10
	for i := 0; i < 11; i++ {
		addResponse(t, p, project.ID, vendors[i%4], models.ResponseStatusTerminate, withIP("6.6.6.6"), withUID("farm"))
	}

	_, err := p.Settings.Merge(map[string]json.RawMessage{SettingAutoBlockIPs: json.RawMessage(`true`)})
	require.NoError(t, err)

	_, err = p.Responses.Add(&CreateResponseRequest{ProjectID: project.ID, VendorID: vendors[0], Status: models.ResponseStatusComplete, IP: "6.6.6.6"})
	assert.ErrorIs(t, err, ErrIPBlocked)

	addResponse(t, p, project.ID, vendors[0], models.ResponseStatusComplete, withIP("7.7.7.7"))
	addResponse(t, p, project.ID, vendors[0], models.ResponseStatusComplete)

	got, err := p.Projects.GetByID(project.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Completes, "the rejected response left no trace")
}
