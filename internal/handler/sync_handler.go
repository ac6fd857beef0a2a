package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"actions-service/internal/service/sync"
)

// SyncHandler exposes the two ingestion entry points: the pull sync and the
// push webhook.
type SyncHandler struct {
	svc    *sync.Service
	logger *zap.Logger
}

func NewSyncHandler(svc *sync.Service, logger *zap.Logger) *SyncHandler {
	return &SyncHandler{svc: svc, logger: logger}
}

// Sync handles POST /sync?user_id=. The owner identifier may be numeric or an
// opaque string.
func (h *SyncHandler) Sync(c *gin.Context) {
	owner := c.Query("user_id")
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}

	result := h.svc.SyncForOwner(c.Request.Context(), owner)
	c.JSON(http.StatusOK, result)
}

// TaskBatch handles POST /tasks/batch?user_id=, the bulk task intake: every
// non-noise message in the batch becomes a task. Responds with the created
// tasks; per-message failures are logged and skipped.
func (h *SyncHandler) TaskBatch(c *gin.Context) {
	owner := c.Query("user_id")
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}

	var messages []json.RawMessage
	if err := c.ShouldBindJSON(&messages); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON array"})
		return
	}
	if len(messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no messages provided"})
		return
	}

	items, errs := h.svc.ProcessTaskBatch(c.Request.Context(), messages, owner)
	if len(errs) > 0 {
		h.logger.Warn("Task batch completed with per-message errors",
			zap.String("owner", owner),
			zap.Strings("errors", errs),
		)
	}
	c.JSON(http.StatusCreated, items)
}

// Webhook handles POST /classifications/webhook?user_id= with a JSON array of
// pre-classified messages.
func (h *SyncHandler) Webhook(c *gin.Context) {
	owner := c.Query("user_id")
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id required"})
		return
	}

	var messages []json.RawMessage
	if err := c.ShouldBindJSON(&messages); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "request body must be a JSON array"})
		return
	}
	if len(messages) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no messages provided"})
		return
	}

	result := h.svc.ProcessBatch(c.Request.Context(), messages, owner)
	c.JSON(http.StatusOK, gin.H{
		"message": "classifications processed",
		"created": result.Created,
		"items":   result.Items,
		"errors":  result.Errors,
	})
}
