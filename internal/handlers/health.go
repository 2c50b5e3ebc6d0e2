package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/coursekit/evalserver/internal/models"
	"github.com/coursekit/evalserver/internal/services"
)

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	emailService *services.SingleEmailService
}

func NewHealthHandler(emailService *services.SingleEmailService) *HealthHandler {
	return &HealthHandler{emailService: emailService}
}

// CheckHealth returns the health status of all subsystems.
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	// Database check
	dbStatus := "ok"
	sqlDB, err := models.GetDB().DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	// Queue mode
	taskQueue := services.GetTaskQueue()
	queueMode := "sync"
	if taskQueue != nil && taskQueue.IsAsync() {
		queueMode = "async (Redis)"
	}

	// Pending delivery work
	components := gin.H{
		"database":   dbStatus,
		"queue_mode": queueMode,
	}
	if status, err := h.emailService.Status(); err == nil {
		components["pending_groups"] = status.PendingGroups
		components["pending_emails"] = status.PendingEmails
	}

	c.JSON(200, gin.H{
		"status":     overall,
		"service":    "evalserver",
		"components": components,
	})
}
