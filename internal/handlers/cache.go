package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/muandane/special-stack/jobcache/internal/cache"
)

// CacheHandler exposes invalidation of the shared cache.
type CacheHandler struct {
	cache  *cache.Store
	logger *slog.Logger
}

func NewCacheHandler(store *cache.Store, logger *slog.Logger) *CacheHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CacheHandler{cache: store, logger: logger}
}

// Clear handles DELETE /cache, used for full invalidation such as logout.
func (h *CacheHandler) Clear(c *gin.Context) {
	h.cache.Clear()
	h.logger.Info("cache cleared by request", "remote_addr", c.ClientIP())
	c.Status(http.StatusNoContent)
}

// Remove handles DELETE /cache/:key
func (h *CacheHandler) Remove(c *gin.Context) {
	key := c.Param("key")
	h.cache.Remove(key)
	h.logger.Info("cache entry removed", "key", key, "remote_addr", c.ClientIP())
	c.Status(http.StatusNoContent)
}

// Lookup handles HEAD /cache/:key
func (h *CacheHandler) Lookup(c *gin.Context) {
	if h.cache.Has(c.Param("key")) {
		c.Status(http.StatusOK)
		return
	}
	c.Status(http.StatusNotFound)
}
