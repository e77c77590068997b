package models

import "time"

const (
	ResponseStatusComplete    = "complete"
	ResponseStatusTerminate   = "terminate"
	ResponseStatusQuotaFull   = "quota-full"
	ResponseStatusStudyClosed = "study-closed"
)

// Response is one respondent outcome for a project/vendor pair
type Response struct {
	ID         string    `gorm:"primaryKey;size:24" json:"id"`
	ProjectID  string    `gorm:"size:16;index;not null" json:"project_id"`
	VendorID   string    `gorm:"size:16;index;not null" json:"vendor_id"`
	UID        string    `gorm:"column:uid;size:200;index" json:"uid"` // vendor-supplied respondent id
	ClientUID  string    `gorm:"size:200" json:"client_uid"`
	Status     string    `gorm:"size:20;index;not null" json:"status"` // complete, terminate, quota-full, study-closed
	IP         string    `gorm:"column:ip;size:64;index" json:"ip"`
	Country    string    `gorm:"size:64" json:"country"`
	City       string    `gorm:"size:100" json:"city"`
	Timestamp  time.Time `gorm:"index" json:"timestamp"`
	Duration   *int      `json:"duration,omitempty"` // seconds
	FraudScore *float64  `json:"fraud_score,omitempty"`
}

func (Response) TableName() string { return "responses" }

func IsValidResponseStatus(s string) bool {
	switch s {
	case ResponseStatusComplete, ResponseStatusTerminate, ResponseStatusQuotaFull, ResponseStatusStudyClosed:
		return true
	}
	return false
}
