package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/panelsentry/internal/services"
	"github.com/huangang/panelsentry/pkg/response"
)

type VendorHandler struct {
	vendorService   *services.VendorService
	responseService *services.ResponseService
	reportService   *services.ReportService
}

func NewVendorHandler(p *services.Panel) *VendorHandler {
	return &VendorHandler{
		vendorService:   p.Vendors,
		responseService: p.Responses,
		reportService:   p.Reports,
	}
}

// List returns paginated vendors
// GET /api/vendors
func (h *VendorHandler) List(c *gin.Context) {
	var req services.VendorListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.vendorService.List(&req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, resp)
}

// GetByID returns a vendor by ID
// GET /api/vendors/:id
func (h *VendorHandler) GetByID(c *gin.Context) {
	vendor, err := h.vendorService.GetByID(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, vendor)
}

// Create creates a new vendor
// POST /api/vendors
func (h *VendorHandler) Create(c *gin.Context) {
	var req services.CreateVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	vendor, err := h.vendorService.Create(&req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Created(c, vendor)
}

// Update patches a vendor
// PUT /api/vendors/:id
func (h *VendorHandler) Update(c *gin.Context) {
	var req services.UpdateVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	vendor, err := h.vendorService.Update(c.Param("id"), &req)
	if err != nil {
		fail(c, err)
		return
	}

	response.Success(c, vendor)
}

// Delete removes a vendor with its assignments and responses
// DELETE /api/vendors/:id
func (h *VendorHandler) Delete(c *gin.Context) {
	if err := h.vendorService.Delete(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, nil)
}

// ListProjects returns the projects a vendor is assigned to
// GET /api/vendors/:id/projects
func (h *VendorHandler) ListProjects(c *gin.Context) {
	projects, err := h.vendorService.ListProjects(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, projects)
}

// ListResponses returns paginated responses sent by a vendor
// GET /api/vendors/:id/responses
func (h *VendorHandler) ListResponses(c *gin.Context) {
	var req services.ResponseListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if _, err := h.vendorService.GetByID(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	req.VendorID = c.Param("id")

	resp, err := h.responseService.List(&req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, resp)
}

// Performance returns the derived performance of a vendor
// GET /api/vendors/:id/performance
func (h *VendorHandler) Performance(c *gin.Context) {
	perf, err := h.reportService.VendorPerformance(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, perf)
}

// Redirects expands the vendor's redirect templates for one respondent
// GET /api/vendors/:id/redirects?pid=&uid=
func (h *VendorHandler) Redirects(c *gin.Context) {
	vendor, err := h.vendorService.GetByID(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, services.VendorRedirects(vendor, c.Query("pid"), c.Query("uid")))
}
