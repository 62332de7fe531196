// Package server exposes the transformation pipeline over HTTP.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/tablemorph/tablemorph/internal/common"
	"github.com/tablemorph/tablemorph/internal/orchestrator"
)

// Config tunes the HTTP server.
type Config struct {
	Addr      string
	UploadDir string
}

// Server wires gin routes to the orchestrator.
type Server struct {
	cfg    Config
	orch   *orchestrator.Orchestrator
	router *gin.Engine
	http   *http.Server
	logger *slog.Logger
}

func New(cfg Config, orch *orchestrator.Orchestrator, logger *slog.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if logger == nil {
		logger = slog.Default()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(requestID(), gin.Recovery(), requestLogger(logger))

	s := &Server{
		cfg:    cfg,
		orch:   orch,
		router: router,
		logger: logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().Format(time.RFC3339)})
	})

	api := s.router.Group("/api")
	{
		api.POST("/transform", s.handleTransform)
		api.GET("/status/:job_id", s.handleStatus)
		api.GET("/question/:job_id", s.handleQuestions)
		api.POST("/answer/:job_id", s.handleAnswer)
		api.POST("/select/:job_id", s.handleSelectTable)
		api.GET("/jobs", s.handleListJobs)
		api.GET("/download/:job_id", s.handleDownload)
		api.GET("/report/:job_id", s.handleReport)
		api.GET("/schemas", s.handleSchemas)
	}
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler { return s.router }

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.http = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	s.logger.Info("server.start", "addr", s.cfg.Addr)
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	s.logger.Info("server.shutdown")
	return s.http.Shutdown(ctx)
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("req_id", id)
		c.Request = c.Request.WithContext(common.WithRequestID(c.Request.Context(), id))
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http.request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"req_id", c.GetString("req_id"),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}
