package services

import (
	"fmt"

	"github.com/huangang/panelsentry/internal/models"
	"github.com/huangang/panelsentry/pkg/logger"
	"gorm.io/gorm"
)

// Seeder loads the fixture panel through the regular store operations so
// counters and edges are built exactly as live traffic would build them.
type Seeder struct {
	db        *gorm.DB
	projects  *ProjectService
	vendors   *VendorService
	responses *ResponseService
}

func NewSeeder(db *gorm.DB, projects *ProjectService, vendors *VendorService, responses *ResponseService) *Seeder {
	return &Seeder{db: db, projects: projects, vendors: vendors, responses: responses}
}

type fixtureResponse struct {
	project, vendor int
	uid, status, ip string
	country, city   string
	duration        int
}

// Seed creates the fixtures unless the panel already holds projects. It
// reports whether anything was created.
func (s *Seeder) Seed() (bool, error) {
	var n int64
	if err := s.db.Model(&models.Project{}).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}

	vendorReqs := []CreateVendorRequest{
		{
			Name: "Global Survey Network", Email: "ops@globalsurvey.example", Company: "GSN Ltd",
			CompletionRate: 68, TerminateRate: 22, FraudScore: 1.2, PaymentMethod: "wire",
			RedirectURLs: &models.RedirectURLs{
				Complete:    "https://gsn.example/return?status=1&uid={uid}",
				Terminate:   "https://gsn.example/return?status=2&uid={uid}",
				QuotaFull:   "https://gsn.example/return?status=3&uid={uid}",
				StudyClosed: "https://gsn.example/return?status=4&uid={uid}",
			},
		},
		{
			Name: "Panel Direct", Email: "support@paneldirect.example", Company: "Panel Direct Inc",
			CompletionRate: 55, TerminateRate: 30, FraudScore: 2.6, PaymentMethod: "paypal",
			RedirectURLs: &models.RedirectURLs{
				Complete:  "https://paneldirect.example/cb/complete?pid={pid}&rid={uid}",
				Terminate: "https://paneldirect.example/cb/term?pid={pid}&rid={uid}",
			},
		},
		{
			Name: "QuickSample", Email: "team@quicksample.example", Company: "QuickSample LLC",
			Status: models.VendorStatusSuspended, CompletionRate: 41, TerminateRate: 44, FraudScore: 4.2,
			PaymentMethod: "wire", Notes: "Under review for duplicate traffic",
		},
	}
	var vendorIDs []string
	for i := range vendorReqs {
		v, err := s.vendors.Create(&vendorReqs[i])
		if err != nil {
			return false, fmt.Errorf("seed vendor %q: %w", vendorReqs[i].Name, err)
		}
		vendorIDs = append(vendorIDs, v.ID)
	}

	projectReqs := []CreateProjectRequest{
		{
			Name: "Consumer Electronics Tracker", ClientName: "Acme Research", ClientLink: "https://acme.example/s/ce?rid=",
			Description: "Quarterly purchase intent tracker", TotalQuota: 40, EstimatedDuration: 12, Incentive: "$2.50",
			Quotas: &models.QuotaTargets{
				Gender: map[string]int{"female": 20, "male": 20},
				Age:    map[string]int{"18-34": 15, "35-54": 15, "55+": 10},
			},
			Vendors: []string{vendorIDs[0], vendorIDs[1], vendorIDs[2]},
		},
		{
			Name: "Healthcare Professionals Study", ClientName: "MedInsight", ClientLink: "https://medinsight.example/hcp?id=",
			Description: "B2B study among practicing physicians", TotalQuota: 10, EstimatedDuration: 25, Incentive: "$12.00",
			Quotas: &models.QuotaTargets{
				Location: map[string]int{"US": 6, "UK": 4},
			},
			Vendors: []string{vendorIDs[1]},
		},
		{
			Name: "Brand Awareness Pilot", ClientName: "Northwind", ClientLink: "https://northwind.example/pilot?uid=",
			Status: models.ProjectStatusPaused, TotalQuota: 100, EstimatedDuration: 8, Incentive: "$1.25",
			Vendors: []string{vendorIDs[0]},
		},
	}
	var projectIDs []string
	for i := range projectReqs {
		p, err := s.projects.Create(&projectReqs[i])
		if err != nil {
			return false, fmt.Errorf("seed project %q: %w", projectReqs[i].Name, err)
		}
		projectIDs = append(projectIDs, p.ID)
	}

	fixtures := []fixtureResponse{
		{0, 0, "gsn-1001", models.ResponseStatusComplete, "198.51.100.10", "US", "Chicago", 640},
		{0, 0, "gsn-1002", models.ResponseStatusComplete, "198.51.100.11", "US", "Denver", 702},
		{0, 0, "gsn-1003", models.ResponseStatusTerminate, "198.51.100.12", "US", "Austin", 95},
		{0, 0, "gsn-1004", models.ResponseStatusComplete, "198.51.100.13", "CA", "Toronto", 811},
		{0, 1, "pd-2001", models.ResponseStatusComplete, "192.0.2.20", "US", "Boston", 590},
		{0, 1, "pd-2002", models.ResponseStatusQuotaFull, "192.0.2.21", "US", "Miami", 40},
		{0, 1, "pd-2003", models.ResponseStatusTerminate, "192.0.2.22", "US", "Seattle", 120},
		{0, 2, "qs-3001", models.ResponseStatusComplete, "203.0.113.7", "US", "Newark", 180},
		{0, 2, "qs-3002", models.ResponseStatusTerminate, "203.0.113.7", "US", "Newark", 60},
		{0, 2, "qs-3003", models.ResponseStatusComplete, "203.0.113.7", "US", "Newark", 175},
		{0, 2, "qs-3003", models.ResponseStatusTerminate, "203.0.113.7", "US", "Newark", 58},
		{0, 2, "qs-3004", models.ResponseStatusTerminate, "203.0.113.7", "US", "Newark", 61},
		{1, 1, "pd-2101", models.ResponseStatusComplete, "192.0.2.40", "US", "Houston", 1500},
		{1, 1, "pd-2102", models.ResponseStatusTerminate, "192.0.2.41", "UK", "Leeds", 210},
		{1, 1, "pd-2103", models.ResponseStatusComplete, "192.0.2.42", "UK", "London", 1620},
		{2, 0, "gsn-1101", models.ResponseStatusStudyClosed, "198.51.100.30", "US", "Portland", 0},
	}
	for _, f := range fixtures {
		d := f.duration
		req := &CreateResponseRequest{
			ProjectID: projectIDs[f.project],
			VendorID:  vendorIDs[f.vendor],
			UID:       f.uid,
			ClientUID: "C-" + f.uid,
			Status:    f.status,
			IP:        f.ip,
			Country:   f.country,
			City:      f.city,
			Duration:  &d,
		}
		if _, err := s.responses.Add(req); err != nil {
			return false, fmt.Errorf("seed response %s: %w", f.uid, err)
		}
	}

	logger.Info().
		Int("projects", len(projectIDs)).
		Int("vendors", len(vendorIDs)).
		Int("responses", len(fixtures)).
		Msg("fixture panel seeded")
	return true, nil
}
