package services

import (
	"gorm.io/gorm"
)

// ReportService serves the derived read models: vendor performance, project
// analytics and the fraud report. Everything is recomputed per call.
type ReportService struct {
	db *gorm.DB
	th FraudThresholds
}

func NewReportService(db *gorm.DB, th FraudThresholds) *ReportService {
	return &ReportService{db: db, th: th}
}

func (s *ReportService) Thresholds() FraudThresholds {
	return s.th
}

func (s *ReportService) VendorPerformance(vendorID string) (*VendorPerformance, error) {
	data, err := loadPanel(s.db)
	if err != nil {
		return nil, err
	}
	v := data.vendor(vendorID)
	if v == nil {
		return nil, ErrVendorNotFound
	}
	perf := ComputeVendorPerformance(v, data.Responses, data.Projects)
	return &perf, nil
}

func (s *ReportService) AllVendorPerformance() ([]VendorPerformance, error) {
	data, err := loadPanel(s.db)
	if err != nil {
		return nil, err
	}
	return allVendorPerformance(data), nil
}

func allVendorPerformance(data *panelData) []VendorPerformance {
	out := make([]VendorPerformance, 0, len(data.Vendors))
	for i := range data.Vendors {
		out = append(out, ComputeVendorPerformance(&data.Vendors[i], data.Responses, data.Projects))
	}
	return out
}

func (s *ReportService) ProjectAnalytics(projectID string) (*ProjectAnalytics, error) {
	data, err := loadPanel(s.db)
	if err != nil {
		return nil, err
	}
	p := data.project(projectID)
	if p == nil {
		return nil, ErrProjectNotFound
	}
	a := ComputeProjectAnalytics(p, data.assignedVendors(p), data.Responses)
	return &a, nil
}

func allProjectAnalytics(data *panelData) []ProjectAnalytics {
	out := make([]ProjectAnalytics, 0, len(data.Projects))
	for i := range data.Projects {
		p := &data.Projects[i]
		out = append(out, ComputeProjectAnalytics(p, data.assignedVendors(p), data.Responses))
	}
	return out
}

// AnalyticsSnapshot is the analytics export document.
type AnalyticsSnapshot struct {
	GeneratedAt string              `json:"generated_at"`
	Stats       PanelStats          `json:"stats"`
	Vendors     []VendorPerformance `json:"vendors"`
	Projects    []ProjectAnalytics  `json:"projects"`
}

func (s *ReportService) AnalyticsSnapshot() (*AnalyticsSnapshot, error) {
	data, err := loadPanel(s.db)
	if err != nil {
		return nil, err
	}
	return &AnalyticsSnapshot{
		GeneratedAt: nowFunc().UTC().Format("2006-01-02T15:04:05Z"),
		Stats:       ComputePanelStats(data.Projects, data.Vendors, int64(len(data.Responses))),
		Vendors:     allVendorPerformance(data),
		Projects:    allProjectAnalytics(data),
	}, nil
}

func (s *ReportService) FraudReport() (*FraudReport, error) {
	data, err := loadPanel(s.db)
	if err != nil {
		return nil, err
	}
	report := BuildFraudReport(data.Vendors, data.Responses, s.th, nowFunc())
	return &report, nil
}

// FraudAlerts returns every alert, untruncated, in report order.
func (s *ReportService) FraudAlerts() ([]FraudAlert, error) {
	data, err := loadPanel(s.db)
	if err != nil {
		return nil, err
	}
	return DetectFraudAlerts(data.Responses, data.Vendors, s.th), nil
}

func (s *ReportService) IPMonitoring() ([]IPMonitoring, error) {
	data, err := loadPanel(s.db)
	if err != nil {
		return nil, err
	}
	return ComputeIPMonitoring(data.Responses, s.th), nil
}

func (s *ReportService) VendorFraudScores() ([]VendorFraudScore, error) {
	data, err := loadPanel(s.db)
	if err != nil {
		return nil, err
	}
	return ComputeVendorFraudScores(data.Vendors, data.Responses, s.th), nil
}
