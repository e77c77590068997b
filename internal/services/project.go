package services

import (
	"errors"

	"github.com/huangang/panelsentry/internal/models"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ProjectService struct {
	db  *gorm.DB
	ids IDGenerator
}

func NewProjectService(db *gorm.DB, ids IDGenerator) *ProjectService {
	return &ProjectService{db: db, ids: ids}
}

type ProjectListRequest struct {
	Page       int    `form:"page" binding:"omitempty,min=1"`
	PageSize   int    `form:"page_size" binding:"omitempty,min=1,max=200"`
	Name       string `form:"name"`
	ClientName string `form:"client_name"`
	Status     string `form:"status" binding:"omitempty,oneof=active paused completed archived"`
	VendorID   string `form:"vendor_id"`
}

type ProjectListResponse struct {
	Total    int64            `json:"total"`
	Page     int              `json:"page"`
	PageSize int              `json:"page_size"`
	Items    []models.Project `json:"items"`
}

type CreateProjectRequest struct {
	Name              string               `json:"name" binding:"required"`
	ClientName        string               `json:"client_name"`
	ClientLink        string               `json:"client_link"`
	Description       string               `json:"description"`
	Status            string               `json:"status" binding:"omitempty,oneof=active paused completed archived"`
	TotalQuota        int                  `json:"total_quota" binding:"min=0"`
	Quotas            *models.QuotaTargets `json:"quotas"`
	EstimatedDuration int                  `json:"estimated_duration" binding:"min=0"`
	Incentive         string               `json:"incentive"`
	Vendors           []string             `json:"vendors"`
}

// UpdateProjectRequest is a partial update. Counters and the created date are
// not patchable.
type UpdateProjectRequest struct {
	Name              *string              `json:"name"`
	ClientName        *string              `json:"client_name"`
	ClientLink        *string              `json:"client_link"`
	Description       *string              `json:"description"`
	Status            *string              `json:"status" binding:"omitempty,oneof=active paused completed archived"`
	TotalQuota        *int                 `json:"total_quota" binding:"omitempty,min=0"`
	Quotas            *models.QuotaTargets `json:"quotas"`
	EstimatedDuration *int                 `json:"estimated_duration" binding:"omitempty,min=0"`
	Incentive         *string              `json:"incentive"`
}

// List returns paginated projects, newest first.
func (s *ProjectService) List(req *ProjectListRequest) (*ProjectListResponse, error) {
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	var projects []models.Project
	var total int64

	query := s.db.Model(&models.Project{})
	if req.Name != "" {
		query = query.Where("name LIKE ?", "%"+req.Name+"%")
	}
	if req.ClientName != "" {
		query = query.Where("client_name LIKE ?", "%"+req.ClientName+"%")
	}
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if req.VendorID != "" {
		query = query.Where("id IN (?)", s.db.Model(&models.ProjectVendor{}).Select("project_id").Where("vendor_id = ?", req.VendorID))
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	offset := (req.Page - 1) * req.PageSize
	if err := query.Offset(offset).Limit(req.PageSize).Order("created_at DESC, id DESC").Find(&projects).Error; err != nil {
		return nil, err
	}
	if err := attachProjectVendors(s.db, projects); err != nil {
		return nil, err
	}

	return &ProjectListResponse{
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
		Items:    projects,
	}, nil
}

// All returns every project in creation order.
func (s *ProjectService) All() ([]models.Project, error) {
	var projects []models.Project
	if err := s.db.Order("created_at ASC, id ASC").Find(&projects).Error; err != nil {
		return nil, err
	}
	if err := attachProjectVendors(s.db, projects); err != nil {
		return nil, err
	}
	return projects, nil
}

// GetByID returns a project with its assigned vendor ids.
func (s *ProjectService) GetByID(id string) (*models.Project, error) {
	var project models.Project
	if err := s.db.Where("id = ?", id).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}
	list := []models.Project{project}
	if err := attachProjectVendors(s.db, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

// Create stores a new project with zeroed counters and today's date. Vendor
// ids in req.Vendors that exist are assigned in the given order.
func (s *ProjectService) Create(req *CreateProjectRequest) (*models.Project, error) {
	status := req.Status
	if status == "" {
		status = models.ProjectStatusActive
	}
	if !models.IsValidProjectStatus(status) {
		return nil, ErrInvalidStatus
	}

	project := models.Project{
		Name:              req.Name,
		ClientName:        req.ClientName,
		ClientLink:        req.ClientLink,
		Description:       req.Description,
		Status:            status,
		CreatedDate:       today(),
		TotalQuota:        req.TotalQuota,
		EstimatedDuration: req.EstimatedDuration,
		Incentive:         req.Incentive,
	}
	if req.Quotas != nil {
		project.Quotas = datatypes.NewJSONType(*req.Quotas)
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		id, err := uniqueID(tx, &models.Project{}, s.ids.ProjectID)
		if err != nil {
			return err
		}
		project.ID = id
		if err := tx.Create(&project).Error; err != nil {
			return err
		}
		for _, vid := range req.Vendors {
			if err := assign(tx, project.ID, vid); err != nil && !errors.Is(err, ErrVendorNotFound) {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return s.GetByID(project.ID)
}

// Update applies the non-nil fields of req.
func (s *ProjectService) Update(id string, req *UpdateProjectRequest) (*models.Project, error) {
	if _, err := s.GetByID(id); err != nil {
		return nil, err
	}

	updates := make(map[string]interface{})
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.ClientName != nil {
		updates["client_name"] = *req.ClientName
	}
	if req.ClientLink != nil {
		updates["client_link"] = *req.ClientLink
	}
	if req.Description != nil {
		updates["description"] = *req.Description
	}
	if req.Status != nil {
		if !models.IsValidProjectStatus(*req.Status) {
			return nil, ErrInvalidStatus
		}
		updates["status"] = *req.Status
	}
	if req.TotalQuota != nil {
		updates["total_quota"] = *req.TotalQuota
	}
	if req.Quotas != nil {
		updates["quotas"] = datatypes.NewJSONType(*req.Quotas)
	}
	if req.EstimatedDuration != nil {
		updates["estimated_duration"] = *req.EstimatedDuration
	}
	if req.Incentive != nil {
		updates["incentive"] = *req.Incentive
	}

	if len(updates) > 0 {
		if err := s.db.Model(&models.Project{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return nil, err
		}
	}

	return s.GetByID(id)
}

// UpdateStatus sets only the status field.
func (s *ProjectService) UpdateStatus(id, status string) (*models.Project, error) {
	return s.Update(id, &UpdateProjectRequest{Status: &status})
}

// Delete removes a project together with its assignment edges and responses.
func (s *ProjectService) Delete(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ?", id).Delete(&models.Project{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrProjectNotFound
		}
		if err := tx.Where("project_id = ?", id).Delete(&models.ProjectVendor{}).Error; err != nil {
			return err
		}
		return tx.Where("project_id = ?", id).Delete(&models.Response{}).Error
	})
}

// AssignVendor links a vendor to a project. Assigning an existing pair is a
// no-op, so both sides always hold the pair exactly once.
func (s *ProjectService) AssignVendor(projectID, vendorID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.Project{}, projectID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrProjectNotFound
		}
		return assign(tx, projectID, vendorID)
	})
}

func assign(tx *gorm.DB, projectID, vendorID string) error {
	ok, err := exists(tx, &models.Vendor{}, vendorID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrVendorNotFound
	}

	var n int64
	if err := tx.Model(&models.ProjectVendor{}).
		Where("project_id = ? AND vendor_id = ?", projectID, vendorID).
		Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	var completes int64
	if err := tx.Model(&models.Response{}).
		Where("project_id = ? AND vendor_id = ? AND status = ?", projectID, vendorID, models.ResponseStatusComplete).
		Count(&completes).Error; err != nil {
		return err
	}
	return tx.Create(&models.ProjectVendor{
		ProjectID:  projectID,
		VendorID:   vendorID,
		Completes:  int(completes),
		AssignedAt: nowFunc(),
	}).Error
}

// RemoveVendor unlinks a vendor from a project. Removing an absent pair is a
// no-op.
func (s *ProjectService) RemoveVendor(projectID, vendorID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		ok, err := exists(tx, &models.Project{}, projectID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrProjectNotFound
		}
		return tx.Where("project_id = ? AND vendor_id = ?", projectID, vendorID).
			Delete(&models.ProjectVendor{}).Error
	})
}

// ListVendors returns the vendors assigned to a project in assignment order.
func (s *ProjectService) ListVendors(projectID string) ([]models.Vendor, error) {
	if _, err := s.GetByID(projectID); err != nil {
		return nil, err
	}
	edges, err := edgesFor(s.db, "project_id", projectID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.VendorID)
	}

	var found []models.Vendor
	if len(ids) > 0 {
		if err := s.db.Where("id IN ?", ids).Find(&found).Error; err != nil {
			return nil, err
		}
	}
	byID := make(map[string]models.Vendor, len(found))
	for _, v := range found {
		byID[v.ID] = v
	}
	vendors := make([]models.Vendor, 0, len(ids))
	for _, id := range ids {
		if v, ok := byID[id]; ok {
			vendors = append(vendors, v)
		}
	}
	if err := attachVendorProjects(s.db, vendors); err != nil {
		return nil, err
	}
	return vendors, nil
}
