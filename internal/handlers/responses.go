package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/huangang/panelsentry/internal/services"
	"github.com/huangang/panelsentry/pkg/response"
)

type ResponseHandler struct {
	responseService *services.ResponseService
}

func NewResponseHandler(p *services.Panel) *ResponseHandler {
	return &ResponseHandler{responseService: p.Responses}
}

// List returns filtered, paginated responses
// GET /api/responses
func (h *ResponseHandler) List(c *gin.Context) {
	var req services.ResponseListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	resp, err := h.responseService.List(&req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Success(c, resp)
}

// Create records one respondent outcome and updates the counters
// POST /api/responses
func (h *ResponseHandler) Create(c *gin.Context) {
	var req services.CreateResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if req.IP == "" {
		req.IP = c.ClientIP()
	}

	resp, err := h.responseService.Add(&req)
	if err != nil {
		fail(c, err)
		return
	}
	response.Created(c, resp)
}
