package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/huangang/panelsentry/internal/models"
	"github.com/huangang/panelsentry/pkg/logger"
	"gorm.io/gorm"
)

// ErrIPBlocked is returned by Add when auto-blocking is on and the sender IP
// already scores as blocked.
var ErrIPBlocked = errors.New("ip is blocked")

// ResponseTally holds the counters as the recording transaction left them,
// read after its own increments.
type ResponseTally struct {
	ProjectFound     bool
	ProjectCompletes int
	TotalQuota       int
	Assigned         bool
	AssignedVendors  int
	VendorCompletes  int // completes of the vendor on this project
	// Diverted marks a complete stored as quota-full because its assignment
	// was paused.
	Diverted bool
}

// ResponseObserver is notified after a response has been committed.
type ResponseObserver func(resp *models.Response, tally *ResponseTally)

// IngestPolicy gates Add.
type IngestPolicy struct {
	// EnforceQuota stores completes arriving on a paused assignment as
	// quota-full.
	EnforceQuota bool
	// BlockIPs reports whether senders with a blocking IP risk score are
	// rejected. Nil never blocks.
	BlockIPs   func() bool
	Thresholds FraudThresholds
}

type ResponseService struct {
	db        *gorm.DB
	ids       IDGenerator
	policy    IngestPolicy
	observers []ResponseObserver
}

func NewResponseService(db *gorm.DB, ids IDGenerator) *ResponseService {
	return &ResponseService{db: db, ids: ids, policy: IngestPolicy{Thresholds: DefaultFraudThresholds()}}
}

// SetPolicy replaces the ingest policy. Wire it at startup.
func (s *ResponseService) SetPolicy(p IngestPolicy) {
	s.policy = p
}

// Observe registers fn to run after every successful Add. Not safe to call
// concurrently with Add; wire observers at startup.
func (s *ResponseService) Observe(fn ResponseObserver) {
	s.observers = append(s.observers, fn)
}

type CreateResponseRequest struct {
	ProjectID  string   `json:"project_id" binding:"required"`
	VendorID   string   `json:"vendor_id" binding:"required"`
	UID        string   `json:"uid"`
	ClientUID  string   `json:"client_uid"`
	Status     string   `json:"status" binding:"required,oneof=complete terminate quota-full study-closed"`
	IP         string   `json:"ip"`
	Country    string   `json:"country"`
	City       string   `json:"city"`
	Duration   *int     `json:"duration" binding:"omitempty,min=0"`
	FraudScore *float64 `json:"fraud_score" binding:"omitempty,min=0,max=5"`
}

// ResponseFilter selects responses for lists and exports. Empty fields match
// everything.
type ResponseFilter struct {
	ProjectID string    `form:"project_id"`
	VendorID  string    `form:"vendor_id"`
	Status    string    `form:"status"`
	IP        string    `form:"ip"`
	UID       string    `form:"uid"`
	Search    string    `form:"search"`
	From      time.Time `form:"from" time_format:"2006-01-02"`
	To        time.Time `form:"to" time_format:"2006-01-02"`
}

type ResponseListRequest struct {
	ResponseFilter
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=500"`
}

type ResponseListResponse struct {
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
	Items    []models.Response `json:"items"`
}

// projectCounterColumn maps a response status to the project counter it
// increments. study-closed has none.
func projectCounterColumn(status string) string {
	switch status {
	case models.ResponseStatusComplete:
		return "completes"
	case models.ResponseStatusTerminate:
		return "terminates"
	case models.ResponseStatusQuotaFull:
		return "quota_full"
	}
	return ""
}

// Add records a response and bumps the counters of the project and vendor it
// names. Missing references are not rejected; only rows that exist are
// updated.
func (s *ResponseService) Add(req *CreateResponseRequest) (*models.Response, error) {
	resp, _, err := s.Record(req)
	return resp, err
}

// Record is Add returning the counters the response produced as well.
func (s *ResponseService) Record(req *CreateResponseRequest) (*models.Response, *ResponseTally, error) {
	if !models.IsValidResponseStatus(req.Status) {
		return nil, nil, ErrInvalidStatus
	}
	blocked, err := s.ipBlocked(req.IP)
	if err != nil {
		return nil, nil, err
	}
	if blocked {
		logger.Warn().Str("ip", req.IP).Str("vendor_id", req.VendorID).Msg("response rejected from blocked ip")
		return nil, nil, fmt.Errorf("%w: %s", ErrIPBlocked, req.IP)
	}

	resp := models.Response{
		ProjectID:  req.ProjectID,
		VendorID:   req.VendorID,
		UID:        req.UID,
		ClientUID:  req.ClientUID,
		Status:     req.Status,
		IP:         req.IP,
		Country:    req.Country,
		City:       req.City,
		Timestamp:  nowFunc(),
		Duration:   req.Duration,
		FraudScore: req.FraudScore,
	}

	var tally ResponseTally
	err = s.db.Transaction(func(tx *gorm.DB) error {
		var edge models.ProjectVendor
		if err := tx.Where("project_id = ? AND vendor_id = ?", resp.ProjectID, resp.VendorID).
			Limit(1).Find(&edge).Error; err != nil {
			return err
		}
		tally.Assigned = edge.ID != 0
		if tally.Assigned && edge.Paused && s.policy.EnforceQuota && resp.Status == models.ResponseStatusComplete {
			resp.Status = models.ResponseStatusQuotaFull
			tally.Diverted = true
		}

		id, err := uniqueID(tx, &models.Response{}, s.ids.ResponseID)
		if err != nil {
			return err
		}
		resp.ID = id
		if err := tx.Create(&resp).Error; err != nil {
			return err
		}

		if col := projectCounterColumn(resp.Status); col != "" {
			if err := tx.Model(&models.Project{}).Where("id = ?", resp.ProjectID).
				UpdateColumn(col, gorm.Expr(col+" + ?", 1)).Error; err != nil {
				return err
			}
		}

		vendorUpdates := map[string]interface{}{
			"total_sent": gorm.Expr("total_sent + ?", 1),
		}
		if resp.Status == models.ResponseStatusComplete {
			vendorUpdates["total_completes"] = gorm.Expr("total_completes + ?", 1)
		}
		if err := tx.Model(&models.Vendor{}).Where("id = ?", resp.VendorID).
			UpdateColumns(vendorUpdates).Error; err != nil {
			return err
		}

		if resp.Status != models.ResponseStatusComplete {
			return nil
		}
		return readTally(tx, &resp, &edge, &tally)
	})
	if err != nil {
		return nil, nil, err
	}

	logger.Debug().
		Str("response_id", resp.ID).
		Str("project_id", resp.ProjectID).
		Str("vendor_id", resp.VendorID).
		Str("status", resp.Status).
		Bool("diverted", tally.Diverted).
		Msg("response recorded")

	for _, fn := range s.observers {
		fn(&resp, &tally)
	}
	return &resp, &tally, nil
}

// readTally bumps the assignment counter and reads back the counters this
// complete produced. The row updates serialize concurrent completes, so each
// one sees a distinct count.
func readTally(tx *gorm.DB, resp *models.Response, edge *models.ProjectVendor, tally *ResponseTally) error {
	if tally.Assigned {
		if err := tx.Model(&models.ProjectVendor{}).Where("id = ?", edge.ID).
			UpdateColumn("completes", gorm.Expr("completes + ?", 1)).Error; err != nil {
			return err
		}
		if err := tx.Select("completes").Where("id = ?", edge.ID).First(edge).Error; err != nil {
			return err
		}
		tally.VendorCompletes = edge.Completes

		var n int64
		if err := tx.Model(&models.ProjectVendor{}).Where("project_id = ?", resp.ProjectID).Count(&n).Error; err != nil {
			return err
		}
		tally.AssignedVendors = int(n)
	}

	var project models.Project
	if err := tx.Select("id", "completes", "total_quota").Where("id = ?", resp.ProjectID).
		Limit(1).Find(&project).Error; err != nil {
		return err
	}
	tally.ProjectFound = project.ID != ""
	tally.ProjectCompletes = project.Completes
	tally.TotalQuota = project.TotalQuota
	return nil
}

// ipBlocked scores the responses already recorded from ip.
func (s *ResponseService) ipBlocked(ip string) (bool, error) {
	if ip == "" || s.policy.BlockIPs == nil || !s.policy.BlockIPs() {
		return false, nil
	}
	var seen []models.Response
	if err := s.db.Where("ip = ?", ip).Find(&seen).Error; err != nil {
		return false, err
	}
	rows := ComputeIPMonitoring(seen, s.policy.Thresholds)
	return len(rows) > 0 && rows[0].IsBlocked, nil
}

func (s *ResponseService) GetByID(id string) (*models.Response, error) {
	var resp models.Response
	if err := s.db.Where("id = ?", id).First(&resp).Error; err != nil {
		return nil, err
	}
	return &resp, nil
}

func (s *ResponseService) filtered(f *ResponseFilter) *gorm.DB {
	query := s.db.Model(&models.Response{})
	if f.ProjectID != "" {
		query = query.Where("project_id = ?", f.ProjectID)
	}
	if f.VendorID != "" {
		query = query.Where("vendor_id = ?", f.VendorID)
	}
	if f.Status != "" {
		query = query.Where("status = ?", f.Status)
	}
	if f.IP != "" {
		query = query.Where("ip = ?", f.IP)
	}
	if f.UID != "" {
		query = query.Where("uid = ?", f.UID)
	}
	if f.Search != "" {
		like := "%" + f.Search + "%"
		query = query.Where("uid LIKE ? OR client_uid LIKE ? OR ip LIKE ? OR id LIKE ?", like, like, like, like)
	}
	if !f.From.IsZero() {
		query = query.Where("timestamp >= ?", f.From)
	}
	if !f.To.IsZero() {
		// inclusive end date
		query = query.Where("timestamp < ?", f.To.AddDate(0, 0, 1))
	}
	return query
}

// List returns paginated responses, newest first.
func (s *ResponseService) List(req *ResponseListRequest) (*ResponseListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 50
	}

	var total int64
	if err := s.filtered(&req.ResponseFilter).Count(&total).Error; err != nil {
		return nil, err
	}

	var items []models.Response
	offset := (req.Page - 1) * req.PageSize
	if err := s.filtered(&req.ResponseFilter).
		Order("timestamp DESC, id DESC").
		Offset(offset).Limit(req.PageSize).
		Find(&items).Error; err != nil {
		return nil, err
	}

	return &ResponseListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    items,
	}, nil
}

// Find returns every response matching f in recording order.
func (s *ResponseService) Find(f *ResponseFilter) ([]models.Response, error) {
	var items []models.Response
	if err := s.filtered(f).Order("timestamp ASC, id ASC").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *ResponseService) ByProject(projectID string) ([]models.Response, error) {
	return s.Find(&ResponseFilter{ProjectID: projectID})
}

func (s *ResponseService) ByVendor(vendorID string) ([]models.Response, error) {
	return s.Find(&ResponseFilter{VendorID: vendorID})
}

func (s *ResponseService) Count() (int64, error) {
	var n int64
	err := s.db.Model(&models.Response{}).Count(&n).Error
	return n, err
}
