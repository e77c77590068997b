package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/panelsentry/internal/services"
	"github.com/huangang/panelsentry/pkg/response"
)

type ProjectHandler struct {
	projectService  *services.ProjectService
	responseService *services.ResponseService
	reportService   *services.ReportService
	quotaService    *services.QuotaService
}

func NewProjectHandler(p *services.Panel) *ProjectHandler {
	return &ProjectHandler{
		projectService:  p.Projects,
		responseService: p.Responses,
		reportService:   p.Reports,
		quotaService:    p.Quota,
	}
}

// List returns paginated projects
// GET /api/projects
func (h *ProjectHandler) List(c *gin.Context) {
	var req services.ProjectListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.projectService.List(&req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, resp)
}

// GetByID returns a project by ID
// GET /api/projects/:id
func (h *ProjectHandler) GetByID(c *gin.Context) {
	project, err := h.projectService.GetByID(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, project)
}

// Create creates a new project
// POST /api/projects
func (h *ProjectHandler) Create(c *gin.Context) {
	var req services.CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Create(&req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Created(c, project)
}

// Update patches a project
// PUT /api/projects/:id
func (h *ProjectHandler) Update(c *gin.Context) {
	var req services.UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.Update(c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, project)
}

type updateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// UpdateStatus moves a project to another status
// PUT /api/projects/:id/status
func (h *ProjectHandler) UpdateStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	project, err := h.projectService.UpdateStatus(c.Param("id"), req.Status)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, project)
}

// Delete removes a project with its assignments and responses
// DELETE /api/projects/:id
func (h *ProjectHandler) Delete(c *gin.Context) {
	if err := h.projectService.Delete(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// ListVendors returns the vendors assigned to a project
// GET /api/projects/:id/vendors
func (h *ProjectHandler) ListVendors(c *gin.Context) {
	vendors, err := h.projectService.ListVendors(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, vendors)
}

// AssignVendor adds a vendor to a project
// POST /api/projects/:id/vendors/:vendor_id
func (h *ProjectHandler) AssignVendor(c *gin.Context) {
	if err := h.projectService.AssignVendor(c.Param("id"), c.Param("vendor_id")); err != nil {
		fail(c, err)
		return
	}
	h.GetByID(c)
}

// RemoveVendor drops a vendor from a project
// DELETE /api/projects/:id/vendors/:vendor_id
func (h *ProjectHandler) RemoveVendor(c *gin.Context) {
	if err := h.projectService.RemoveVendor(c.Param("id"), c.Param("vendor_id")); err != nil {
		fail(c, err)
		return
	}
	h.GetByID(c)
}

// ListResponses returns paginated responses of one project
// GET /api/projects/:id/responses
func (h *ProjectHandler) ListResponses(c *gin.Context) {
	var req services.ResponseListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if _, err := h.projectService.GetByID(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	req.ProjectID = c.Param("id")

	resp, err := h.responseService.List(&req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, resp)
}

// Analytics returns the derived analytics of a project
// GET /api/projects/:id/analytics
func (h *ProjectHandler) Analytics(c *gin.Context) {
	analytics, err := h.reportService.ProjectAnalytics(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, analytics)
}

// Quota returns the evaluated quota rules of a project
// GET /api/projects/:id/quota
func (h *ProjectHandler) Quota(c *gin.Context) {
	quota, err := h.quotaService.ForProject(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, quota)
}
