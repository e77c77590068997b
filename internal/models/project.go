package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	ProjectStatusActive    = "active"
	ProjectStatusPaused    = "paused"
	ProjectStatusCompleted = "completed"
	ProjectStatusArchived  = "archived"
)

// QuotaTargets are the nested demographic targets of a project.
type QuotaTargets struct {
	Age      map[string]int `json:"age,omitempty"`      // "18-24": 100
	Gender   map[string]int `json:"gender,omitempty"`   // "female": 250
	Location map[string]int `json:"location,omitempty"` // "US": 400
}

// Project represents a client survey campaign
type Project struct {
	ID                string                           `gorm:"primaryKey;size:16" json:"id"`
	Name              string                           `gorm:"size:200;not null" json:"name"`
	ClientName        string                           `gorm:"size:200" json:"client_name"`
	ClientLink        string                           `gorm:"size:1000" json:"client_link"`
	Description       string                           `gorm:"type:text" json:"description"`
	Status            string                           `gorm:"size:20;index;not null" json:"status"` // active, paused, completed, archived
	CreatedDate       string                           `gorm:"size:10" json:"created_date"`          // YYYY-MM-DD
	Completes         int                              `gorm:"not null;default:0" json:"completes"`
	Terminates        int                              `gorm:"not null;default:0" json:"terminates"`
	QuotaFull         int                              `gorm:"not null;default:0" json:"quota_full"`
	TotalQuota        int                              `gorm:"not null;default:0" json:"total_quota"`
	Quotas            datatypes.JSONType[QuotaTargets] `json:"quotas"`
	EstimatedDuration int                              `json:"estimated_duration"`        // minutes
	Incentive         string                           `gorm:"size:32" json:"incentive"` // "$2.50"
	Vendors           []string                         `gorm:"-" json:"vendors"`        // filled from project_vendors
	CreatedAt         time.Time                        `json:"created_at"`
	UpdatedAt         time.Time                        `json:"updated_at"`
}

func (Project) TableName() string { return "projects" }

// IsValidProjectStatus reports whether s is a known project status.
func IsValidProjectStatus(s string) bool {
	switch s {
	case ProjectStatusActive, ProjectStatusPaused, ProjectStatusCompleted, ProjectStatusArchived:
		return true
	}
	return false
}
