// Package server exposes cleaning sessions over HTTP. Every upload gets its
// own pipeline.Session; actions are applied through correlation tokens so a
// stale browser tab cannot act on a newer step.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/KaramelBytes/cleanloom/internal/ingest"
)

// Config holds the server settings that are not per-session.
type Config struct {
	PresetsDir     string
	Ingest         ingest.Options
	MaxUploadBytes int64
}

const defaultMaxUpload = 32 << 20

// Server holds the gin engine and the session registry.
type Server struct {
	router *gin.Engine
	reg    *Registry
	cfg    Config
	logger *zap.Logger
}

// New builds a server with its routes registered.
func New(reg *Registry, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.Ingest.DatetimeRatio == 0 {
		cfg.Ingest = ingest.DefaultOptions()
	}
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))
	router.MaxMultipartMemory = cfg.MaxUploadBytes

	s := &Server{router: router, reg: reg, cfg: cfg, logger: logger}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.reg.Len()})
	})

	api := s.router.Group("/api/v1")
	{
		api.GET("/presets", s.handleListPresets)
		api.POST("/sessions", s.handleCreateSession)
		api.GET("/sessions/:id", s.handleGetSession)
		api.DELETE("/sessions/:id", s.handleDeleteSession)
		api.POST("/sessions/:id/actions", s.handleAction)
		api.GET("/sessions/:id/log", s.handleLog)
		api.GET("/sessions/:id/summary", s.handleSummary)
		api.GET("/sessions/:id/chart.png", s.handleChart)
		api.GET("/sessions/:id/export/csv", s.handleExportCSV)
	}
}

// Handler returns the routed engine, mainly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.logger.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errCh
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}
