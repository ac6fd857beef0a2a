package httpserver

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"actions-service/internal/handler"
	"actions-service/internal/storage"
	"actions-service/pkg/metrics"
)

func NewRouter(
	taskHandler *handler.WorkItemHandler,
	todoHandler *handler.WorkItemHandler,
	followupHandler *handler.WorkItemHandler,
	syncHandler *handler.SyncHandler,
	logger *zap.Logger,
	store *storage.Store,
) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.Use(func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		c.Next()

		latency := time.Since(start)
		metrics.RecordHTTPRequestDuration(c.Request.Method, path, strconv.Itoa(c.Writer.Status()), latency)
		logger.Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "service": "actions-service"})
	})
	r.HEAD("/health", func(c *gin.Context) {
		c.Status(200)
	})
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.HEAD("/healthz", func(c *gin.Context) {
		c.Status(200)
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c, 1*time.Second)
		defer cancel()

		if err := store.Ping(ctx); err != nil {
			c.JSON(500, gin.H{"status": "db_not_ready", "error": err.Error()})
			return
		}
		c.JSON(200, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	registerCRUD(r, "/tasks", taskHandler)
	registerCRUD(r, "/todos", todoHandler)
	registerCRUD(r, "/followups", followupHandler)

	r.POST("/tasks/batch", syncHandler.TaskBatch)

	r.POST("/sync", syncHandler.Sync)
	r.POST("/classifications/webhook", syncHandler.Webhook)

	return r
}

func registerCRUD(r *gin.Engine, prefix string, h *handler.WorkItemHandler) {
	r.POST(prefix, h.Create)
	r.GET(prefix, h.List)
	r.GET(prefix+"/:id", h.Get)
	r.PUT(prefix+"/:id", h.Update)
	r.DELETE(prefix+"/:id", h.Delete)
}
