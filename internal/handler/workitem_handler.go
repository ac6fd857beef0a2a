package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"actions-service/internal/model"
	"actions-service/internal/repository"
	"actions-service/internal/storage"
)

// WorkItemHandler serves the CRUD surface for one entity type. The same
// handler type backs /tasks, /todos and /followups.
type WorkItemHandler struct {
	repo   *repository.WorkItemRepository
	entity string
	logger *zap.Logger
}

func NewWorkItemHandler(repo *repository.WorkItemRepository, entity string, logger *zap.Logger) *WorkItemHandler {
	return &WorkItemHandler{repo: repo, entity: entity, logger: logger}
}

func (h *WorkItemHandler) Create(c *gin.Context) {
	var in model.WorkItemCreate
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := in.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	id, err := h.repo.Create(c.Request.Context(), &in)
	if err != nil {
		h.respondRepoError(c, err, "failed to create "+h.entity)
		return
	}

	created, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Created item could not be fetched back",
			zap.String("entity", h.entity),
			zap.Int("id", id),
			zap.Error(err),
		)
		c.JSON(http.StatusCreated, gin.H{"id": id})
		return
	}
	c.JSON(http.StatusCreated, created)
}

func (h *WorkItemHandler) Get(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	item, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": h.entity + " not found"})
			return
		}
		h.respondRepoError(c, err, "failed to fetch "+h.entity)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *WorkItemHandler) List(c *gin.Context) {
	filter, err := h.parseListFilter(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	items, total, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		h.respondRepoError(c, err, "failed to list "+h.entity)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"items":  items,
		"total":  total,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

func (h *WorkItemHandler) Update(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	var upd model.WorkItemUpdate
	if err := c.ShouldBindJSON(&upd); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if upd.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no fields to update"})
		return
	}
	if err := upd.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.repo.Update(c.Request.Context(), id, &upd)
	if err != nil {
		h.respondRepoError(c, err, "failed to update "+h.entity)
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, gin.H{"error": h.entity + " not found"})
		return
	}

	item, err := h.repo.GetByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"updated": true})
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *WorkItemHandler) Delete(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	deleted, err := h.repo.Delete(c.Request.Context(), id)
	if err != nil {
		h.respondRepoError(c, err, "failed to delete "+h.entity)
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, gin.H{"error": h.entity + " not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *WorkItemHandler) pathID(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return 0, false
	}
	return id, true
}

func (h *WorkItemHandler) parseListFilter(c *gin.Context) (repository.ListFilter, error) {
	var filter repository.ListFilter

	if v := c.Query("owner_id"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, &model.ValidationError{Field: "owner_id", Reason: "must be an integer"}
		}
		filter.OwnerID = &n
	}
	if v := c.Query("status"); v != "" {
		status, err := model.ParseStatus(v)
		if err != nil {
			return filter, err
		}
		filter.Status = &status
	}
	if v := c.Query("message_type"); v != "" {
		mt, err := model.ParseMessageType(v)
		if err != nil {
			return filter, err
		}
		filter.MessageType = &mt
	}
	if v := c.Query("sender"); v != "" {
		filter.Sender = &v
	}
	if v := c.Query("source_msg_id"); v != "" {
		filter.SourceMsgID = &v
	}
	if v := c.Query("min_priority"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 5 {
			return filter, &model.ValidationError{Field: "min_priority", Reason: "must be in [1,5]"}
		}
		filter.MinPriority = &n
	}
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, &model.ValidationError{Field: "limit", Reason: "must be an integer"}
		}
		filter.Limit = n
	}
	if v := c.Query("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return filter, &model.ValidationError{Field: "offset", Reason: "must be an integer"}
		}
		filter.Offset = n
	}
	return filter, nil
}

func (h *WorkItemHandler) respondRepoError(c *gin.Context, err error, msg string) {
	if errors.Is(err, storage.ErrStoreUnavailable) {
		h.logger.Error("Store unavailable",
			zap.String("entity", h.entity),
			zap.String("path", c.Request.URL.Path),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "store unavailable"})
		return
	}
	if errors.Is(err, repository.ErrConstraintViolation) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.logger.Error(msg,
		zap.String("entity", h.entity),
		zap.Error(err),
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
