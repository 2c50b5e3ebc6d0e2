package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/coursekit/evalserver/internal/middleware"
	"github.com/coursekit/evalserver/internal/models"
	"github.com/coursekit/evalserver/internal/services"
)

type EvaluationHandler struct {
	evalService *services.EvaluationService
}

func NewEvaluationHandler(evalService *services.EvaluationService) *EvaluationHandler {
	return &EvaluationHandler{evalService: evalService}
}

func parseID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return uint(id), true
}

func (h *EvaluationHandler) Create(c *gin.Context) {
	var req services.CreateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eval, err := h.evalService.Create(&req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, eval)
}

func (h *EvaluationHandler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	eval, err := h.evalService.GetByID(id)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "evaluation not found"})
		return
	}
	c.JSON(http.StatusOK, eval)
}

func (h *EvaluationHandler) List(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	state := c.Query("state")

	evals, total, err := h.evalService.List(state, page, pageSize)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items": evals,
		"total": total,
		"page":  page,
	})
}

func (h *EvaluationHandler) Update(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req services.UpdateEvaluationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	eval, err := h.evalService.Update(id, &req)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, eval)
}

func (h *EvaluationHandler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.evalService.Delete(id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "deleted"})
}

type assignGroupsRequest struct {
	Groups []models.AssignGroup `json:"groups" binding:"required"`
}

func (h *EvaluationHandler) AssignGroups(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req assignGroupsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.evalService.AssignGroups(id, req.Groups); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "groups assigned"})
}

func (h *EvaluationHandler) Activate(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	if err := h.evalService.Activate(id); err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "activated"})
}

type recordResponseRequest struct {
	GroupID string `json:"group_id" binding:"required"`
}

// RecordResponse marks the authenticated user's submission.
func (h *EvaluationHandler) RecordResponse(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}

	var req recordResponseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ownerID := middleware.GetUsername(c)
	if err := h.evalService.RecordResponse(id, ownerID, req.GroupID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "response recorded"})
}
