package http

import (
	"ReelSage/pkg/back"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	appName string
}

func NewHealthHandler(appName string) *HealthHandler {
	return &HealthHandler{appName: appName}
}

func (h *HealthHandler) Health(c *gin.Context) {
	back.Success(c, gin.H{
		"app":    h.appName,
		"status": "ok",
	})
}
