// Package server exposes the symcanon tools over HTTP.
//
// Routes:
//
//	POST /tool    run one ToolRequest
//	GET  /schema  MCP tool schema for agent registration
//	GET  /health  liveness and canonicalizer counters
//	GET  /metrics Prometheus metrics
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/njchilds90/symcanon"
	"github.com/njchilds90/symcanon/internal/config"
	"github.com/njchilds90/symcanon/internal/logging"
)

// Server wraps the HTTP router and its dependencies.
type Server struct {
	router  *gin.Engine
	http    *http.Server
	config  *config.Config
	logger  *logging.Logger
	metrics *Metrics
	started time.Time
}

// New builds a server from cfg. A nil logger discards logs.
func New(cfg *config.Config, logger *logging.Logger) *Server {
	if logger == nil {
		logger = &logging.Logger{Logger: zap.NewNop()}
	}
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		router:  gin.New(),
		config:  cfg,
		logger:  logger,
		metrics: NewMetrics(),
		started: time.Now(),
	}

	s.router.Use(gin.Recovery())
	s.router.Use(RequestID())
	s.router.Use(Instrument(s.metrics))
	s.router.Use(RequestLogger(logger.Logger))
	s.router.Use(CORS())
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		s.router.Use(RateLimit(RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			MaxClients:        cfg.RateLimit.MaxClients,
		}, s.metrics))
	}

	s.router.POST("/tool", s.handleTool)
	s.router.GET("/schema", s.handleSchema)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	s.http = &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Metrics() *Metrics { return s.metrics }

// Run serves until ctx is cancelled, then shuts down gracefully within the
// configured timeout.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down server...")
	timeout := time.Duration(s.config.Server.ShutdownTimeout) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	_ = s.logger.Sync()
	return nil
}

func (s *Server) handleTool(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.config.Server.MaxBodyBytes)

	var req symcanon.ToolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start := time.Now()
	resp := symcanon.HandleToolCall(req)
	outcome := "ok"
	if resp.Error != "" {
		outcome = "error"
		s.logger.Debug("tool call failed",
			zap.String("tool", req.Tool),
			zap.String("error", resp.Error),
			zap.String("request_id", c.GetString(requestIDKey)),
		)
	}
	tool := req.Tool
	if strings.HasPrefix(resp.Error, "unknown tool") {
		tool = "unknown"
	}
	s.metrics.RecordToolCall(tool, outcome, time.Since(start))
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleSchema(c *gin.Context) {
	c.Data(http.StatusOK, "application/json", []byte(symcanon.MCPToolSpec()))
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"uptime":        time.Since(s.started).Round(time.Second).String(),
		"canonicalizer": symcanon.Default().Stats(),
	})
}
