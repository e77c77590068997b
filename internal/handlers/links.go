package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/panelsentry/internal/services"
	"github.com/huangang/panelsentry/pkg/response"
)

type LinkHandler struct {
	links *services.LinkBuilder
}

func NewLinkHandler(p *services.Panel) *LinkHandler {
	return &LinkHandler{links: p.Links}
}

type startLinkRequest struct {
	ProjectID string `form:"project_id" binding:"required"`
	VendorID  string `form:"vendor_id" binding:"required"`
}

// Start returns the entry link for a project/vendor pair
// GET /api/links/start
func (h *LinkHandler) Start(c *gin.Context) {
	var req startLinkRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, gin.H{"url": h.links.StartLink(req.ProjectID, req.VendorID)})
}

type redirectLinkRequest struct {
	Outcome string `form:"outcome"`
	PID     string `form:"pid"`
	UID     string `form:"uid"`
}

// Redirect returns one redirect link, or the link of every outcome when no
// outcome is given
// GET /api/links/redirect
func (h *LinkHandler) Redirect(c *gin.Context) {
	var req redirectLinkRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.Outcome == "" {
		response.Success(c, h.links.RedirectLinks(req.PID, req.UID))
		return
	}
	if !services.IsValidOutcome(req.Outcome) {
		response.BadRequest(c, "invalid outcome")
		return
	}
	response.Success(c, gin.H{"url": h.links.RedirectLink(req.Outcome, req.PID, req.UID)})
}
