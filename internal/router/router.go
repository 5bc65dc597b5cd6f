package router

import (
	"log/slog"

	"github.com/benbjohnson/clock"
	"github.com/gin-gonic/gin"

	"github.com/muandane/special-stack/jobcache/internal/cache"
	"github.com/muandane/special-stack/jobcache/internal/config"
	"github.com/muandane/special-stack/jobcache/internal/handlers"
	"github.com/muandane/special-stack/jobcache/internal/jobs"
	"github.com/muandane/special-stack/jobcache/internal/middleware"
)

type Router struct {
	engine  *gin.Engine
	logger  *slog.Logger
	clock   clock.Clock
	limiter *middleware.RateLimiter
}

func NewRouter(logger *slog.Logger) *Router {
	engine := gin.New()
	engine.Use(gin.Recovery())
	return &Router{
		engine: engine,
		logger: logger,
		clock:  clock.New(),
	}
}

// Close stops background work started by Setup.
func (r *Router) Close() {
	if r.limiter != nil {
		r.limiter.Close()
	}
}

// Setup registers every route and returns the engine ready to serve.
func (r *Router) Setup(cfg *config.ServerConfig, svc *jobs.Service, store *cache.Store) (*gin.Engine, error) {
	jobsHandler, err := handlers.NewJobsHandler(svc, r.logger)
	if err != nil {
		return nil, err
	}
	cacheHandler := handlers.NewCacheHandler(store, r.logger)
	statsHandler := handlers.NewStatsHandler(store)

	metricsMiddleware := middleware.NewMetrics()
	metricsMiddleware.RegisterCache(store)
	r.limiter = middleware.NewRateLimiter(cfg.RateLimit, cfg.RateBurst, r.clock)
	r.limiter.Start()

	r.engine.Use(
		middleware.WithLogging(r.logger),
		metricsMiddleware.WithMetrics(),
	)

	// Operational routes are exempt from rate limiting and resource policy.
	r.engine.GET("/health", handlers.HealthCheck)
	r.engine.GET("/metrics", metricsMiddleware.Handler)
	r.engine.GET("/stats", statsHandler.Stats)

	api := r.engine.Group("/", r.limiter.WithRateLimit())

	listings := api.Group("/jobs", middleware.WithResourcePolicy("jobs", cfg.AllowedResources))
	listings.GET("", jobsHandler.SearchJobs)
	listings.POST("", jobsHandler.CreateJob)
	listings.GET("/:id", jobsHandler.GetJob)
	listings.PUT("/:id", jobsHandler.PutJob)
	listings.DELETE("/:id", jobsHandler.DeleteJob)

	applications := api.Group("/jobs/:id/applications", middleware.WithResourcePolicy("applications", cfg.AllowedResources))
	applications.GET("", jobsHandler.ListApplications)
	applications.POST("", jobsHandler.SubmitApplication)
	applications.PATCH("/:appID", jobsHandler.UpdateApplication)

	profiles := api.Group("/profiles", middleware.WithResourcePolicy("profiles", cfg.AllowedResources))
	profiles.GET("/:id", jobsHandler.GetProfile)
	profiles.PUT("/:id", jobsHandler.PutProfile)

	admin := r.engine.Group("/cache", middleware.WithAdminAccess(cfg.AdminIPs, r.logger))
	admin.DELETE("", cacheHandler.Clear)
	admin.DELETE("/:key", cacheHandler.Remove)
	admin.HEAD("/:key", cacheHandler.Lookup)

	return r.engine, nil
}
