package services

import (
	"errors"

	"github.com/huangang/panelsentry/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type VendorService struct {
	db  *gorm.DB
	ids IDGenerator
}

func NewVendorService(db *gorm.DB, ids IDGenerator) *VendorService {
	return &VendorService{db: db, ids: ids}
}

type VendorListRequest struct {
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=200"`
	Name      string `form:"name"`
	Status    string `form:"status" binding:"omitempty,oneof=active inactive suspended"`
	ProjectID string `form:"project_id"`
}

type VendorListResponse struct {
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"page_size"`
	Items    []models.Vendor `json:"items"`
}

type CreateVendorRequest struct {
	Name             string                   `json:"name" binding:"required"`
	Email            string                   `json:"email" binding:"omitempty,email"`
	Phone            string                   `json:"phone"`
	Company          string                   `json:"company"`
	Status           string                   `json:"status" binding:"omitempty,oneof=active inactive suspended"`
	CompletionRate   float64                  `json:"completion_rate" binding:"min=0,max=100"`
	TerminateRate    float64                  `json:"terminate_rate" binding:"min=0,max=100"`
	FraudScore       float64                  `json:"fraud_score" binding:"min=0,max=5"`
	RedirectURLs     *models.RedirectURLs     `json:"redirect_urls"`
	RedirectSettings *models.RedirectSettings `json:"redirect_settings"`
	PaymentMethod    string                   `json:"payment_method"`
	Notes            string                   `json:"notes"`
}

// UpdateVendorRequest is a partial update. total_sent and total_completes
// only move through recorded responses.
type UpdateVendorRequest struct {
	Name             *string                  `json:"name"`
	Email            *string                  `json:"email" binding:"omitempty,email"`
	Phone            *string                  `json:"phone"`
	Company          *string                  `json:"company"`
	Status           *string                  `json:"status" binding:"omitempty,oneof=active inactive suspended"`
	CompletionRate   *float64                 `json:"completion_rate" binding:"omitempty,min=0,max=100"`
	TerminateRate    *float64                 `json:"terminate_rate" binding:"omitempty,min=0,max=100"`
	FraudScore       *float64                 `json:"fraud_score" binding:"omitempty,min=0,max=5"`
	RedirectURLs     *models.RedirectURLs     `json:"redirect_urls"`
	RedirectSettings *models.RedirectSettings `json:"redirect_settings"`
	PaymentMethod    *string                  `json:"payment_method"`
	Notes            *string                  `json:"notes"`
}

// List returns paginated vendors, newest first.
func (s *VendorService) List(req *VendorListRequest) (*VendorListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var vendors []models.Vendor
	var total int64

	query := s.db.Model(&models.Vendor{})
	if req.Name != "" {
		query = query.Where("name LIKE ? OR company LIKE ?", "%"+req.Name+"%", "%"+req.Name+"%")
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.ProjectID != "" {
		query = query.Where("id IN (?)", s.db.Model(&models.ProjectVendor{}).Select("vendor_id").Where("project_id = ?", req.ProjectID))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&vendors).Error; err != nil {
		return nil, err
	}
	if err := attachVendorProjects(s.db, vendors); err != nil {
		return nil, err
	}

	return &VendorListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    vendors,
	}, nil
}

// All returns every vendor in creation order.
func (s *VendorService) All() ([]models.Vendor, error) {
	var vendors []models.Vendor
	if err := s.db.Order("created_at ASC, id ASC").Find(&vendors).Error; err != nil {
		return nil, err
	}
	if err := attachVendorProjects(s.db, vendors); err != nil {
		return nil, err
	}
	return vendors, nil
}

func (s *VendorService) GetByID(id string) (*models.Vendor, error) {
	var vendor models.Vendor
	if err := s.db.Where("id = ?", id).First(&vendor).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrVendorNotFound
		}
		return nil, err
	}
	list := []models.Vendor{vendor}
	if err := attachVendorProjects(s.db, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// Create stores a new vendor with zeroed traffic counters.
func (s *VendorService) Create(req *CreateVendorRequest) (*models.Vendor, error) {
	status := req.Status
	if status == "" {
		status = models.VendorStatusActive
	}
	if !models.IsValidVendorStatus(status) {
		return nil, ErrInvalidStatus
	}

	vendor := models.Vendor{
		Name:           req.Name,
		Email:          req.Email,
		Phone:          req.Phone,
		Company:        req.Company,
		Status:         status,
		CreatedDate:    today(),
		CompletionRate: req.CompletionRate,
		TerminateRate:  req.TerminateRate,
		FraudScore:     req.FraudScore,
		PaymentMethod:  req.PaymentMethod,
		Notes:          req.Notes,
	}
	if req.RedirectURLs != nil {
		vendor.RedirectURLs = datatypes.NewJSONType(*req.RedirectURLs)
	}
	if req.RedirectSettings != nil {
		vendor.RedirectSettings = datatypes.NewJSONType(*req.RedirectSettings)
	} else {
		vendor.RedirectSettings = datatypes.NewJSONType(models.RedirectSettings{
			AutoRedirect:    true,
			RedirectDelay:   3,
			TrackingEnabled: true,
		})
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		id, err := uniqueID(tx, &models.Vendor{}, s.ids.VendorID)
		if err != nil {
			return err
		}
		vendor.ID = id
		return tx.Create(&vendor).Error
	})
	if err != nil {
		return nil, err
	}

	vendor.AssignedProjects = []string{}
	return &vendor, nil
}

// Update applies the non-nil fields of req.
func (s *VendorService) Update(id string, req *UpdateVendorRequest) (*models.Vendor, error) {
	if _, err := s.GetByID(id); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Email != nil {
		updates["email"] = *req.Email
	}
	if req.Phone != nil {
		updates["phone"] = *req.Phone
	}
	if req.Company != nil {
		updates["company"] = *req.Company
	}
	if req.Status != nil {
		if !models.IsValidVendorStatus(*req.Status) {
			return nil, ErrInvalidStatus
		}
		updates["status"] = *req.Status
	}
	if req.CompletionRate != nil {
		updates["completion_rate"] = *req.CompletionRate
	}
	if req.TerminateRate != nil {
		updates["terminate_rate"] = *req.TerminateRate
	}
	if req.FraudScore != nil {
		updates["fraud_score"] = *req.FraudScore
	}
	if req.RedirectURLs != nil {
		updates["redirect_urls"] = datatypes.NewJSONType(*req.RedirectURLs)
	}
	if req.RedirectSettings != nil {
		updates["redirect_settings"] = datatypes.NewJSONType(*req.RedirectSettings)
	}
	if req.PaymentMethod != nil {
		updates["payment_method"] = *req.PaymentMethod
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.Vendor{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return s.GetByID(id)
}

type statusCount struct {
	ProjectID string
	Status    string
	N         int
}

// Delete removes a vendor, its assignment edges and its responses. Project
// counters are reduced by the removed responses so they keep matching the
// surviving rows.
func (s *VendorService) Delete(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&models.Vendor{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVendorNotFound
		}
		if err := tx.Where("vendor_id = ?", id).Delete(&models.ProjectVendor{}).Error; err != nil {
			return err
		}

		var counts []statusCount
		if err := tx.Model(&models.Response{}).
			Select("project_id, status, COUNT(*) AS n").
			Where("vendor_id = ?", id).
			Group("project_id, status").
			Scan(&counts).Error; err != nil {
			return err
		}
		for _, c := range counts {
			col := projectCounterColumn(c.Status)
			if col == "" {
				continue
			}
			if err := tx.Model(&models.Project{}).Where("id = ?", c.ProjectID).
				UpdateColumn(col, gorm.Expr(col+" - ?", c.N)).Error; err != nil {
				return err
			}
		}
		return tx.Where("vendor_id = ?", id).Delete(&models.Response{}).Error
	})
}

// ListProjects returns the projects a vendor is assigned to in assignment order.
func (s *VendorService) ListProjects(vendorID string) ([]models.Project, error) {
	if _, err := s.GetByID(vendorID); err != nil {
		return nil, err
	}
	edges, err := edgesFor(s.db, "vendor_id", vendorID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.ProjectID)
	}

	var found []models.Project
	if len(ids) > 0 {
		if err := s.db.Where("id IN ?", ids).Find(&found).Error; err != nil {
			return nil, err
		}
	}
	byID := make(map[string]models.Project, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	projects := make([]models.Project, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			projects = append(projects, p)
		}
	}
	if err := attachProjectVendors(s.db, projects); err != nil {
		return nil, err
	}
	return projects, nil
}
