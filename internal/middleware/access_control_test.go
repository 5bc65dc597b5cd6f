package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/muandane/special-stack/jobcache/internal/config"
)

func TestWithResourcePolicy(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name   string
		policy string
		method string
		want   int
	}{
		{"read allows get", config.AccessRead, http.MethodGet, http.StatusOK},
		{"read denies post", config.AccessRead, http.MethodPost, http.StatusForbidden},
		{"write allows delete", config.AccessWrite, http.MethodDelete, http.StatusOK},
		{"write denies get", config.AccessWrite, http.MethodGet, http.StatusForbidden},
		{"all allows put", config.AccessAll, http.MethodPut, http.StatusOK},
		{"write allows patch", config.AccessWrite, http.MethodPatch, http.StatusOK},
		{"all denies options", config.AccessAll, http.MethodOptions, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(WithResourcePolicy("jobs", map[string]string{"jobs": tt.policy}))
			r.Handle(tt.method, "/jobs", func(c *gin.Context) { c.Status(http.StatusOK) })

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(tt.method, "/jobs", nil))
			assert.Equal(t, tt.want, w.Code)
		})
	}
}

func TestWithResourcePolicyUnconfigured(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(WithResourcePolicy("profiles", map[string]string{"jobs": config.AccessAll}))
	r.GET("/profiles/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/profiles/1", nil))
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), "resource access not configured")
}
