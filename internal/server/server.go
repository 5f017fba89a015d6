// Package server exposes the operational HTTP endpoints: health and metrics.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"cricket-prediction-bot/internal/metrics"
	"cricket-prediction-bot/internal/pkg/db"
)

const healthTimeout = 2 * time.Second

// HealthChecker reports whether the database is reachable and how its
// connection pool is doing. *db.Pool satisfies it.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	Stats() db.PoolStats
}

// Server serves /health and /metrics.
type Server struct {
	httpServer *http.Server
}

// New creates a server listening on addr.
func New(addr string, checker HealthChecker) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           NewRouter(checker),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

// NewRouter builds the gin engine with the ops routes.
func NewRouter(checker HealthChecker) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
		defer cancel()

		pool := checker.Stats()
		if err := checker.HealthCheck(ctx); err != nil {
			log.Warn().Err(err).Int32("acquired_conns", pool.AcquiredConns).Msg("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unavailable",
				"database":  err.Error(),
				"pool":      pool,
				"timestamp": time.Now(),
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"database":  "ok",
			"pool":      pool,
			"timestamp": time.Now(),
		})
	})

	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	return r
}

// Start serves until Shutdown is called. It runs in its own goroutine.
func (s *Server) Start() {
	go func() {
		log.Info().Str("addr", s.httpServer.Addr).Msg("Ops server listening")
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Ops server stopped")
		}
	}()
}

// Shutdown stops the server, waiting for in-flight requests until ctx ends.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
