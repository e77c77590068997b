package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/panelsentry/internal/services"
	"github.com/huangang/panelsentry/pkg/response"
)

// FraudHandler serves the fraud heuristics. Every call recomputes them from
// the current responses.
type FraudHandler struct {
	reportService *services.ReportService
}

func NewFraudHandler(p *services.Panel) *FraudHandler {
	return &FraudHandler{reportService: p.Reports}
}

// Report returns summary, alerts, vendor scores and IP table in one document
// GET /api/fraud/report
func (h *FraudHandler) Report(c *gin.Context) {
	report, err := h.reportService.FraudReport()
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, report)
}

// Alerts returns the top alerts, or all of them with ?all=true
// GET /api/fraud/alerts
func (h *FraudHandler) Alerts(c *gin.Context) {
	alerts, err := h.reportService.FraudAlerts()
	if err != nil {
		fail(c, err)
		return
	}
	if c.Query("all") != "true" {
		alerts = services.TopAlerts(alerts, h.reportService.Thresholds())
	}
	response.Success(c, alerts)
}

// IPs returns per-IP monitoring rows
// GET /api/fraud/ips
func (h *FraudHandler) IPs(c *gin.Context) {
	ips, err := h.reportService.IPMonitoring()
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, ips)
}

// Vendors returns per-vendor fraud scores
// GET /api/fraud/vendors
func (h *FraudHandler) Vendors(c *gin.Context) {
	scores, err := h.reportService.VendorFraudScores()
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, scores)
}
