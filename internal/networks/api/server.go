// Package api exposes the enriched dataset and its aggregations over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bikeshare-dashboard/internal/common/logger"
	"github.com/bikeshare-dashboard/internal/networks/pipeline"
	"github.com/bikeshare-dashboard/pkg/networks/models"
)

// DashboardSource is satisfied by *pipeline.Pipeline.
type DashboardSource interface {
	Current() *pipeline.Dashboard
	Load(ctx context.Context) *pipeline.Dashboard
}

// RunHistory is satisfied by *db.RunStore.
type RunHistory interface {
	LatestRun(ctx context.Context) (*models.RunRecord, error)
}

// CleanupStatus is satisfied by *maintenance.CleanupScheduler.
type CleanupStatus interface {
	GetStatus() map[string]interface{}
}

// Server bundles router and dependencies for the REST API.
type Server struct {
	addr    string
	source  DashboardSource
	logger  logger.Logger
	engine  *gin.Engine
	timeout time.Duration
	runs    RunHistory
	cleanup CleanupStatus
}

// New constructs a server with routes and middleware.
func New(addr string, source DashboardSource, log logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))

	s := &Server{
		addr:    addr,
		source:  source,
		logger:  log,
		engine:  engine,
		timeout: 10 * time.Minute,
	}
	s.registerRoutes()
	return s
}

// WithRunHistory adds the latest recorded run to /api/v1/status.
func (s *Server) WithRunHistory(runs RunHistory) *Server {
	s.runs = runs
	return s
}

// WithCleanupStatus adds the cleanup scheduler state to /api/v1/status.
func (s *Server) WithCleanupStatus(cleanup CleanupStatus) *Server {
	s.cleanup = cleanup
	return s
}

// Engine exposes the underlying gin engine (for tests).
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", s.addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.engine.Group("/api/v1")
	v1.GET("/status", s.handleStatus)
	v1.GET("/dashboard", s.handleDashboard)
	v1.GET("/networks", s.handleNetworks)
	v1.GET("/networks/top", s.handleTopNetworks)
	v1.GET("/countries", s.handleCountries)
	v1.GET("/countries/top", s.handleTopCountries)
	v1.POST("/refresh", s.handleRefresh)
}

func requestLogger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("HTTP request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}
