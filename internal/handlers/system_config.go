package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/coursekit/evalserver/internal/services"
	"gorm.io/gorm"
)

type SystemConfigHandler struct {
	configService *services.SystemConfigService
}

func NewSystemConfigHandler(db *gorm.DB) *SystemConfigHandler {
	return &SystemConfigHandler{
		configService: services.NewSystemConfigService(db),
	}
}

func (h *SystemConfigHandler) GetEmailConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.configService.GetEmailConfig())
}

func (h *SystemConfigHandler) UpdateEmailConfig(c *gin.Context) {
	var req services.UpdateEmailConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.configService.UpdateEmailConfig(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.configService.GetEmailConfig())
}

func (h *SystemConfigHandler) GetDeliveryConfig(c *gin.Context) {
	c.JSON(http.StatusOK, h.configService.GetDeliveryConfig())
}

func (h *SystemConfigHandler) UpdateDeliveryConfig(c *gin.Context) {
	var req services.UpdateDeliveryConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.configService.UpdateDeliveryConfig(&req); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, h.configService.GetDeliveryConfig())
}
