package handlers

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/huangang/panelsentry/internal/services"
	"github.com/huangang/panelsentry/pkg/response"
)

type ExportHandler struct {
	exportService *services.ExportService
	reportService *services.ReportService
}

func NewExportHandler(p *services.Panel) *ExportHandler {
	return &ExportHandler{exportService: p.Export, reportService: p.Reports}
}

func exportName(prefix, ext string) string {
	return fmt.Sprintf("%s-%s.%s", prefix, time.Now().Format("2006-01-02"), ext)
}

// ResponsesCSV downloads filtered responses as CSV
// GET /api/export/responses.csv
func (h *ExportHandler) ResponsesCSV(c *gin.Context) {
	var filter services.ResponseFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	data, err := h.exportService.ResponsesCSV(&filter)
	if err != nil {
		fail(c, err)
		return
	}
	response.CSV(c, exportName("responses", "csv"), data)
}

// Analytics downloads the analytics snapshot
// GET /api/export/analytics
func (h *ExportHandler) Analytics(c *gin.Context) {
	snapshot, err := h.reportService.AnalyticsSnapshot()
	if err != nil {
		fail(c, err)
		return
	}
	response.JSONFile(c, exportName("analytics", "json"), snapshot)
}

// Fraud downloads the fraud report
// GET /api/export/fraud
func (h *ExportHandler) Fraud(c *gin.Context) {
	report, err := h.reportService.FraudReport()
	if err != nil {
		fail(c, err)
		return
	}
	response.JSONFile(c, exportName("fraud-report", "json"), report)
}

// Backup downloads the full panel backup
// GET /api/export/backup
func (h *ExportHandler) Backup(c *gin.Context) {
	backup, err := h.exportService.Backup()
	if err != nil {
		fail(c, err)
		return
	}
	response.JSONFile(c, exportName("panel-backup", "json"), backup)
}

// Restore replaces all panel data with an uploaded backup
// POST /api/backup/restore
func (h *ExportHandler) Restore(c *gin.Context) {
	backup, err := services.ReadBackup(c.Request.Body)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if err := h.exportService.RestoreBackup(backup); err != nil {
		fail(c, err)
		return
	}
	response.Success(c, gin.H{
		"projects":  len(backup.Projects),
		"vendors":   len(backup.Vendors),
		"responses": len(backup.Responses),
	})
}
