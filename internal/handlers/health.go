package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/panelsentry/internal/models"
	"github.com/huangang/panelsentry/internal/services"
)

// HealthHandler reports the state of the database and background subsystems.
type HealthHandler struct {
	panel *services.Panel
}

func NewHealthHandler(p *services.Panel) *HealthHandler {
	return &HealthHandler{panel: p}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"
	code := 200

	dbStatus := "ok"
	sqlDB, err := h.panel.DB.DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall, code = "unhealthy", 503
	} else if err := sqlDB.PingContext(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
		overall, code = "unhealthy", 503
	}

	queueMode := "sync"
	if h.panel.Queue != nil && h.panel.Queue.IsAsync() {
		queueMode = "async (Redis)"
	}

	var responses int64
	if code == 200 {
		h.panel.DB.Model(&models.Response{}).Count(&responses)
	}

	c.JSON(code, gin.H{
		"status":  overall,
		"service": "panelsentry",
		"components": gin.H{
			"database":      dbStatus,
			"queue_mode":    queueMode,
			"sse_clients":   h.panel.Hub.ClientCount(),
			"notifications": h.panel.Notifier.Enabled(),
			"responses":     responses,
		},
	})
}
