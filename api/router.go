package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/use-agent/chapterwatch/api/handler"
	"github.com/use-agent/chapterwatch/api/middleware"
	"github.com/use-agent/chapterwatch/config"
	"github.com/use-agent/chapterwatch/metrics"
	"github.com/use-agent/chapterwatch/tracker"
)

// Deps are the services the routes need.
type Deps struct {
	Engines       []string
	ActiveRenders func() int
	Store         tracker.Store
	Checker       handler.Checker
	Runs          *handler.Runs
	Metrics       *metrics.Metrics
	StartTime     time.Time
}

// NewRouter creates a configured Gin engine with all routes and middleware.
// ctx bounds the rate limiter's background cleanup.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health and /metrics stay outside auth so monitoring probes always work.
func NewRouter(ctx context.Context, cfg *config.Config, d Deps) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(d.Engines, d.ActiveRenders, d.Runs, d.StartTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	protected.GET("/series", handler.ListSeries(d.Store))
	protected.POST("/check", handler.Check(d.Checker))
	protected.POST("/runs", handler.PostRun(d.Runs))
	protected.GET("/runs/:id", handler.GetRun(d.Runs))

	return r
}
