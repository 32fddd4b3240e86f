package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/OldStager01/qps-autoscaler/api/handlers"
	"github.com/OldStager01/qps-autoscaler/internal/controller"
	"github.com/OldStager01/qps-autoscaler/internal/logger"
	"github.com/OldStager01/qps-autoscaler/pkg/config"
)

// Server is the HTTP invocation surface: one event endpoint, health, and
// optional Prometheus exposition.
type Server struct {
	cfg    config.APIConfig
	router *gin.Engine
	srv    *http.Server
	health controller.HealthChecker
}

func NewServer(cfg config.APIConfig, mode string, events *handlers.EventHandler, health controller.HealthChecker, promEnabled bool) *Server {
	if mode != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{cfg: cfg, router: router, health: health}

	router.POST("/v1/events", events.Handle)
	router.GET("/health", s.handleHealth)
	if promEnabled {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Start blocks until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	logger.Infof("HTTP server listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down HTTP server")
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	status := http.StatusOK
	body := gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if s.health != nil {
		if err := s.health.HealthCheck(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "degraded"
			body["error"] = err.Error()
		}
	}
	c.JSON(status, body)
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		logger.WithFields(map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"duration_ms": time.Since(started).Milliseconds(),
		}).Debug("Request handled")
	}
}
