package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"task-tracker/backend/internal/cache"
	"task-tracker/backend/internal/middleware"
)

type CacheHandler struct {
	Cache cache.Cache
}

func NewCacheHandler(cacheInstance cache.Cache) *CacheHandler {
	return &CacheHandler{Cache: cacheInstance}
}

// GetCacheStats reports hit rates, breaker state and backend pool stats.
// GET /cache/stats
func (h *CacheHandler) GetCacheStats(c *gin.Context) {
	if !requireManager(c) {
		return
	}

	stats := h.Cache.Stats()
	status := "healthy"
	if err := h.Cache.Health(); err != nil {
		status = "degraded"
		stats["health_error"] = err.Error()
	}

	c.JSON(http.StatusOK, gin.H{
		"status": status,
		"stats":  stats,
	})
}

// InvalidateCache drops cached keys matching pattern, or everything.
// POST /cache/invalidate
func (h *CacheHandler) InvalidateCache(c *gin.Context) {
	if !requireManager(c) {
		return
	}

	var req struct {
		Pattern string `json:"pattern"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}
	if req.Pattern == "" {
		req.Pattern = "*"
	}

	if err := h.Cache.DeletePattern(req.Pattern); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to invalidate cache",
			"message": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "success",
		"pattern": req.Pattern,
	})
}

func requireManager(c *gin.Context) bool {
	if !middleware.MustActor(c).IsManager() {
		c.JSON(http.StatusForbidden, gin.H{"error": "only managers may manage the cache"})
		return false
	}
	return true
}
