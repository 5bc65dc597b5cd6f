package middleware

import (
	"fmt"
	"strconv"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/gin-gonic/gin"

	"github.com/muandane/special-stack/jobcache/internal/cache"
)

type Metrics struct {
	set              *metrics.Set
	requestCounter   *metrics.Counter
	responseTimeHist *metrics.Histogram
	requestSizeHist  *metrics.Histogram
	responseSizeHist *metrics.Histogram
}

func NewMetrics() *Metrics {
	set := metrics.NewSet()
	return &Metrics{
		set:              set,
		requestCounter:   set.NewCounter("http_requests_total"),
		responseTimeHist: set.NewHistogram("http_response_time_seconds"),
		requestSizeHist:  set.NewHistogram("http_request_size_bytes"),
		responseSizeHist: set.NewHistogram("http_response_size_bytes"),
	}
}

// RegisterCache exposes the store's counters as gauges.
func (m *Metrics) RegisterCache(store *cache.Store) {
	gauge := func(name string, f func(cache.Stats) float64) {
		m.set.NewGauge(name, func() float64 { return f(store.Stats()) })
	}
	gauge("cache_entries", func(s cache.Stats) float64 { return float64(s.EntryCount) })
	gauge("cache_size_bytes", func(s cache.Stats) float64 { return float64(s.TotalBytes) })
	gauge("cache_max_size_bytes", func(s cache.Stats) float64 { return float64(s.MaxBytes) })
	gauge("cache_hits_total", func(s cache.Stats) float64 { return float64(s.Hits) })
	gauge("cache_misses_total", func(s cache.Stats) float64 { return float64(s.Misses) })
	gauge("cache_evictions_total", func(s cache.Stats) float64 { return float64(s.Evictions) })
	gauge("cache_expirations_total", func(s cache.Stats) float64 { return float64(s.Expirations) })
}

func (m *Metrics) WithMetrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		if c.Request.ContentLength > 0 {
			m.requestSizeHist.Update(float64(c.Request.ContentLength))
		}

		m.requestCounter.Inc()
		c.Next()

		m.responseTimeHist.Update(time.Since(start).Seconds())
		if size := c.Writer.Size(); size > 0 {
			m.responseSizeHist.Update(float64(size))
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.set.GetOrCreateCounter(fmt.Sprintf(
			`http_response_status_total{code=%q,method=%q,route=%q}`,
			strconv.Itoa(c.Writer.Status()), c.Request.Method, route,
		)).Inc()
	}
}

// Handler serves the Prometheus exposition format.
func (m *Metrics) Handler(c *gin.Context) {
	c.Header("Content-Type", "text/plain; version=0.0.4")
	m.set.WritePrometheus(c.Writer)
	metrics.WriteProcessMetrics(c.Writer)
}
