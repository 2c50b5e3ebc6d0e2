package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/coursekit/evalserver/internal/models"
	"github.com/coursekit/evalserver/internal/services"
	"github.com/coursekit/evalserver/pkg/response"
)

// QueueHandler exposes the delivery queue for inspection and manual runs.
type QueueHandler struct {
	emailService *services.SingleEmailService
	evalService  *services.EvaluationService
}

func NewQueueHandler(emailService *services.SingleEmailService, evalService *services.EvaluationService) *QueueHandler {
	return &QueueHandler{emailService: emailService, evalService: evalService}
}

func (h *QueueHandler) Status(c *gin.Context) {
	status, err := h.emailService.Status()
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, status)
}

func (h *QueueHandler) ListGroups(c *gin.Context) {
	var groups []models.QueuedGroup
	if err := models.GetDB().Order("id ASC").Limit(200).Find(&groups).Error; err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, groups)
}

func (h *QueueHandler) ListEmails(c *gin.Context) {
	var emails []models.QueuedEmail
	if err := models.GetDB().Order("id ASC").Limit(200).Find(&emails).Error; err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, emails)
}

// RunCycle triggers one delivery cycle outside the schedule.
func (h *QueueHandler) RunCycle(c *gin.Context) {
	go h.emailService.RunCycle()
	response.Accepted(c, "cycle started")
}

type queueEmailsRequest struct {
	EmailType models.EmailType `json:"email_type" binding:"required"`
}

// QueueEmails files group work rows for one evaluation on demand.
func (h *QueueHandler) QueueEmails(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req queueEmailsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	queued, err := h.evalService.QueueEmails(id, req.EmailType)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, gin.H{"queued": queued})
}
