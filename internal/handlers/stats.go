package handlers

import (
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"

	"github.com/muandane/special-stack/jobcache/internal/cache"
)

type CacheStats struct {
	cache.Stats
	CurrentSizeHuman string  `json:"current_size"`
	MaxSizeHuman     string  `json:"max_size"`
	Utilization      float64 `json:"utilization"`
	Uptime           string  `json:"uptime"`
}

type StatsHandler struct {
	cache   *cache.Store
	started time.Time
}

func NewStatsHandler(store *cache.Store) *StatsHandler {
	return &StatsHandler{cache: store, started: time.Now()}
}

// Stats handles GET /stats
func (h *StatsHandler) Stats(c *gin.Context) {
	st := h.cache.Stats()

	var utilization float64
	if st.MaxBytes > 0 {
		utilization = float64(st.TotalBytes) / float64(st.MaxBytes) * 100
	}

	c.JSON(http.StatusOK, CacheStats{
		Stats:            st,
		CurrentSizeHuman: humanize.IBytes(uint64(max(st.TotalBytes, 0))),
		MaxSizeHuman:     humanize.IBytes(uint64(st.MaxBytes)),
		Utilization:      utilization,
		Uptime:           time.Since(h.started).Round(time.Second).String(),
	})
}
