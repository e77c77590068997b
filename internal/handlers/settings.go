package handlers

import (
	"encoding/json"
	"io"

	"github.com/gin-gonic/gin"
	"github.com/huangang/panelsentry/internal/services"
	"github.com/huangang/panelsentry/pkg/response"
)

type SettingsHandler struct {
	settingsService *services.SettingsService
}

func NewSettingsHandler(p *services.Panel) *SettingsHandler {
	return &SettingsHandler{settingsService: p.Settings}
}

// Get returns the settings document
// GET /api/settings
func (h *SettingsHandler) Get(c *gin.Context) {
	settings, err := h.settingsService.Get()
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, settings)
}

// Update shallow-merges the body into the settings
// PUT /api/settings
func (h *SettingsHandler) Update(c *gin.Context) {
	var patch map[string]json.RawMessage
	if err := c.ShouldBindJSON(&patch); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	settings, err := h.settingsService.Merge(patch)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, settings)
}

// Import merges an uploaded settings file
// POST /api/settings/import
func (h *SettingsHandler) Import(c *gin.Context) {
	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	settings, err := h.settingsService.Import(data)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, settings)
}
