package services

import (
	"encoding/json"
	"sync/atomic"

	"github.com/huangang/panelsentry/internal/models"
	"github.com/huangang/panelsentry/pkg/logger"
	"gorm.io/gorm"
)

var auditDB atomic.Pointer[gorm.DB]

// InitSystemLogger points the package-level audit writers at db.
func InitSystemLogger(db *gorm.DB) {
	auditDB.Store(db)
}

// AuditEntry carries the request context of an audited action.
type AuditEntry struct {
	Module    string
	Action    string
	EntityID  string
	Message   string
	IP        string
	UserAgent string
	Extra     interface{}
}

func LogInfo(e AuditEntry) {
	writeLog("info", e)
}

func LogWarning(e AuditEntry) {
	writeLog("warning", e)
}

func LogError(e AuditEntry) {
	writeLog("error", e)
}

func writeLog(level string, e AuditEntry) {
	db := auditDB.Load()
	if db == nil {
		return
	}

	var extra string
	if e.Extra != nil {
		if b, err := json.Marshal(e.Extra); err == nil {
			extra = string(b)
		}
	}

	entry := &models.SystemLog{
		Level:     level,
		Module:    e.Module,
		Action:    e.Action,
		EntityID:  e.EntityID,
		Message:   e.Message,
		IP:        e.IP,
		UserAgent: e.UserAgent,
		Extra:     extra,
		CreatedAt: nowFunc(),
	}
	if err := db.Create(entry).Error; err != nil {
		logger.Warn().Err(err).Str("action", e.Action).Msg("failed to write system log")
	}
}

type SystemLogService struct {
	db *gorm.DB
}

func NewSystemLogService(db *gorm.DB) *SystemLogService {
	return &SystemLogService{db: db}
}

type SystemLogListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	Level     string `form:"level"`
	Module    string `form:"module"`
	Action    string `form:"action"`
	EntityID  string `form:"entity_id"`
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
	Search    string `form:"search"`
}

type SystemLogListResponse struct {
	Total    int64              `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
	Items    []models.SystemLog `json:"items"`
}

func (s *SystemLogService) List(req *SystemLogListRequest) (*SystemLogListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var logs []models.SystemLog
	var total int64

	query := s.db.Model(&models.SystemLog{})

	if req.Level != "" {
		query = query.Where("level = ?", req.Level)
	}
	if req.Module != "" {
		query = query.Where("module = ?", req.Module)
	}
	if req.Action != "" {
		query = query.Where("action LIKE ?", "%"+req.Action+"%")
	}
	if req.EntityID != "" {
		query = query.Where("entity_id = ?", req.EntityID)
	}
	if req.StartDate != "" {
		query = query.Where("created_at >= ?", req.StartDate)
	}
	if req.EndDate != "" {
		query = query.Where("created_at <= ?", req.EndDate+" 23:59:59")
	}
	if req.Search != "" {
		query = query.Where("message LIKE ?", "%"+req.Search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&logs).Error; err != nil {
		return nil, err
	}

	return &SystemLogListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    logs,
	}, nil
}

func (s *SystemLogService) GetModules() ([]string, error) {
	var modules []string
	if err := s.db.Model(&models.SystemLog{}).Distinct("module").Pluck("module", &modules).Error; err != nil {
		return nil, err
	}
	return modules, nil
}

// CleanupOldLogs deletes logs older than retentionDays and returns the number
// of deleted records. A non-positive retention disables cleanup.
func (s *SystemLogService) CleanupOldLogs(retentionDays int) (int64, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	cutoff := nowFunc().AddDate(0, 0, -retentionDays)
	result := s.db.Where("created_at < ?", cutoff).Delete(&models.SystemLog{})
	if result.Error != nil {
		return 0, result.Error
	}
	if result.RowsAffected > 0 {
		logger.Info().Int64("deleted", result.RowsAffected).Int("retention_days", retentionDays).Msg("system logs cleaned up")
	}
	return result.RowsAffected, nil
}
