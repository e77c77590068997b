package models

import "time"

// ProjectVendor is the single edge set behind Project.Vendors and
// Vendor.AssignedProjects. Insertion order (ID) is the assignment order.
type ProjectVendor struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ProjectID  string    `gorm:"size:16;uniqueIndex:idx_project_vendor;not null" json:"project_id"`
	VendorID   string    `gorm:"size:16;uniqueIndex:idx_project_vendor;index;not null" json:"vendor_id"`
	Paused     bool      `gorm:"default:false" json:"paused"` // set by enforced quota actions
	Completes  int       `gorm:"not null;default:0" json:"completes"`
	AssignedAt time.Time `json:"assigned_at"`
}

func (ProjectVendor) TableName() string { return "project_vendors" }
