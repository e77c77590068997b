package services

import (
	"github.com/huangang/panelsentry/internal/models"
	"gorm.io/gorm"
)

type DashboardService struct {
	db *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{db: db}
}

// GetStats recomputes the global aggregates from current rows.
func (s *DashboardService) GetStats() (*PanelStats, error) {
	var projects []models.Project
	if err := s.db.Find(&projects).Error; err != nil {
		return nil, err
	}
	var vendors []models.Vendor
	if err := s.db.Find(&vendors).Error; err != nil {
		return nil, err
	}
	var responses int64
	if err := s.db.Model(&models.Response{}).Count(&responses).Error; err != nil {
		return nil, err
	}

	stats := ComputePanelStats(projects, vendors, responses)
	return &stats, nil
}
