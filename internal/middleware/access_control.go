package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/muandane/special-stack/jobcache/internal/config"
)

// WithResourcePolicy checks the request method against the access level
// configured for resource ("jobs", "applications", "profiles").
func WithResourcePolicy(resource string, access map[string]string) gin.HandlerFunc {
	return func(c *gin.Context) {
		policy, exists := access[resource]
		if !exists {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "resource access not configured"})
			return
		}

		switch c.Request.Method {
		case http.MethodGet, http.MethodHead:
			if policy == config.AccessRead || policy == config.AccessAll {
				c.Next()
				return
			}
		case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
			if policy == config.AccessWrite || policy == config.AccessAll {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
	}
}

// WithAdminAccess limits a route group to clients whose IP starts with one of
// the allowed prefixes.
func WithAdminAccess(allowedIPs []string, logger *slog.Logger) gin.HandlerFunc {
	if len(allowedIPs) == 0 {
		logger.Warn("admin access has no allowed IPs, cache management is disabled")
	}
	return func(c *gin.Context) {
		if !isIPAllowed(allowedIPs, c.ClientIP()) {
			logger.Warn("admin access denied", "remote_addr", c.ClientIP(), "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "access denied"})
			return
		}
		c.Next()
	}
}

func isIPAllowed(allowedIPs []string, clientIP string) bool {
	for _, ipPrefix := range allowedIPs {
		if strings.HasPrefix(clientIP, ipPrefix) {
			return true
		}
	}
	return false
}
