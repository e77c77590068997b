package handlers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/huangang/panelsentry/internal/services"
	"github.com/huangang/panelsentry/pkg/response"
	"gorm.io/gorm"
)

// appError translates service errors into the API error envelope.
func appError(err error) *response.AppError {
	switch {
	case errors.Is(err, services.ErrProjectNotFound),
		errors.Is(err, services.ErrVendorNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return response.NewNotFound(err.Error())
	case errors.Is(err, services.ErrInvalidStatus),
		errors.Is(err, services.ErrInvalidSettings),
		errors.Is(err, services.ErrUnsupportedBackup):
		return response.NewBadRequest(err.Error())
	case errors.Is(err, services.ErrIPBlocked):
		return response.NewForbidden(err.Error())
	}
	return response.NewServerError(err.Error())
}

func fail(c *gin.Context, err error) {
	response.Error(c, appError(err))
}
