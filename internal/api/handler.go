// Package api exposes the engine's projections over HTTP for headless
// display clients. It is a read-mostly adapter: rendering stays in the
// displays, state stays in the engine.
package api

import (
	"net/http"
	"strconv"
	"time"

	"boardsync/internal/engine"
	"boardsync/internal/model"
	"boardsync/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler contains HTTP handlers
type Handler struct {
	engine *engine.Engine
}

// NewHandler creates a new HTTP handler
func NewHandler(eng *engine.Engine) *Handler {
	return &Handler{engine: eng}
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine) {
	router.Use(gin.Recovery())
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := router.Group("/api/v1")
	{
		v1.GET("/orders", h.ordersByStatus)
		v1.GET("/tables", h.tables)
		v1.GET("/counts", h.counts)
		v1.GET("/summary", h.summary)
		v1.GET("/history", h.history)
		v1.GET("/connection", h.connection)
		v1.POST("/refresh", h.refresh)
		v1.POST("/orders/:id/:action", h.orderAction)
		v1.PUT("/tables/:id", h.updateTable)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// ordersByStatus returns the projection for one status, newest first
func (h *Handler) ordersByStatus(c *gin.Context) {
	status := model.OrderStatus(c.Query("status"))
	if status == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status query parameter is required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"orders": h.engine.OrdersByStatus(status),
	})
}

// tables returns all tables sorted by code
func (h *Handler) tables(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"tables": h.engine.Tables(),
	})
}

// counts returns the per-bucket counters
func (h *Handler) counts(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Counts())
}

// summary returns the dashboard KPI block
func (h *Handler) summary(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.Summary())
}

// history returns the bounded recently-delivered list
func (h *Handler) history(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"orders": h.engine.RecentlyDelivered(),
	})
}

// connection reports the push channel's health
func (h *Handler) connection(c *gin.Context) {
	c.JSON(http.StatusOK, h.engine.ConnectionState())
}

// refresh schedules a manual snapshot reload
func (h *Handler) refresh(c *gin.Context) {
	h.engine.Refresh()
	c.JSON(http.StatusAccepted, gin.H{"status": "refresh scheduled"})
}

// orderAction runs an operator action against an order
func (h *Handler) orderAction(c *gin.Context) {
	orderID := c.Param("id")
	action := engine.Action(c.Param("action"))

	if err := h.engine.PerformAction(c.Request.Context(), action, orderID); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Action failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "applied"})
}

// updateTable sets a table's occupancy state
func (h *Handler) updateTable(c *gin.Context) {
	var req struct {
		Status model.TableStatus `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request body",
			"details": err.Error(),
		})
		return
	}

	if err := h.engine.SetTableStatus(c.Request.Context(), c.Param("id"), req.Status); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"error":   "Table update failed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "applied"})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		elapsed := time.Since(start).Seconds()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(elapsed)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}
