package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/panelsentry/internal/services"
	"github.com/huangang/panelsentry/pkg/response"
)

type DashboardHandler struct {
	dashboardService *services.DashboardService
}

func NewDashboardHandler(p *services.Panel) *DashboardHandler {
	return &DashboardHandler{dashboardService: p.Dashboard}
}

// GetStats returns the global panel stats
// GET /api/dashboard/stats
func (h *DashboardHandler) GetStats(c *gin.Context) {
	stats, err := h.dashboardService.GetStats()
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, stats)
}
