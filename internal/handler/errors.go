package handler

import (
	"log"
	"net/http"

	"collector/internal/service"
	"collector/pkg/response"

	"github.com/gin-gonic/gin"
)

// statusFor maps a service error kind to an HTTP status.
func statusFor(err error) int {
	switch service.KindOf(err) {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindPermission:
		return http.StatusForbidden
	case service.KindState:
		return http.StatusConflict
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindDependency:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Printf("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	}
	c.JSON(status, response.Error(status, err.Error()))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, msg))
}
