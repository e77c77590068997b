package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	VendorStatusActive    = "active"
	VendorStatusInactive  = "inactive"
	VendorStatusSuspended = "suspended"
)

// RedirectURLs are the vendor endpoints a respondent is sent back to. Each may
// contain {uid} and {pid} placeholders.
type RedirectURLs struct {
	Complete    string `json:"complete"`
	Terminate   string `json:"terminate"`
	QuotaFull   string `json:"quota_full"`
	StudyClosed string `json:"study_closed"`
}

type RedirectSettings struct {
	AutoRedirect    bool   `json:"auto_redirect"`
	RedirectDelay   int    `json:"redirect_delay"` // seconds
	CustomMessage   string `json:"custom_message,omitempty"`
	TrackingEnabled bool   `json:"tracking_enabled"`
}

// Vendor represents a traffic supplier
type Vendor struct {
	ID               string                               `gorm:"primaryKey;size:16" json:"id"`
	Name             string                               `gorm:"size:200;not null" json:"name"`
	Email            string                               `gorm:"size:255" json:"email"`
	Phone            string                               `gorm:"size:50" json:"phone"`
	Company          string                               `gorm:"size:200" json:"company"`
	Status           string                               `gorm:"size:20;index;not null" json:"status"` // active, inactive, suspended
	CreatedDate      string                               `gorm:"size:10" json:"created_date"`
	CompletionRate   float64                              `json:"completion_rate"`
	TerminateRate    float64                              `json:"terminate_rate"`
	FraudScore       float64                              `json:"fraud_score"` // 0-5
	TotalSent        int                                  `gorm:"not null;default:0" json:"total_sent"`
	TotalCompletes   int                                  `gorm:"not null;default:0" json:"total_completes"`
	RedirectURLs     datatypes.JSONType[RedirectURLs]     `gorm:"column:redirect_urls" json:"redirect_urls"`
	RedirectSettings datatypes.JSONType[RedirectSettings] `json:"redirect_settings"`
	AssignedProjects []string                             `gorm:"-" json:"assigned_projects"` // filled from project_vendors
	PaymentMethod    string                               `gorm:"size:50" json:"payment_method"`
	Notes            string                               `gorm:"type:text" json:"notes"`
	CreatedAt        time.Time                            `json:"created_at"`
	UpdatedAt        time.Time                            `json:"updated_at"`
}

func (Vendor) TableName() string { return "vendors" }

func IsValidVendorStatus(s string) bool {
	switch s {
	case VendorStatusActive, VendorStatusInactive, VendorStatusSuspended:
		return true
	}
	return false
}
