// Package http exposes the claim desk over a JSON API.
// It translates requests into application service calls and nothing more.
package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/autoclaim/internal/application/port"
	"github.com/garyjia/autoclaim/internal/application/service"
)

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string
	Port           int
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxUploadBytes int64
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:           "0.0.0.0",
		Port:           8080,
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   120 * time.Second,
		MaxUploadBytes: 64 << 20,
	}
}

// HealthFunc reports overall health and a component breakdown
type HealthFunc func() (bool, interface{})

// Dependencies are the services the HTTP layer drives
type Dependencies struct {
	Sessions service.SessionService
	Drafts   service.DraftService
	Claims   service.ClaimService
	Exporter port.ClaimExporter
	Health   HealthFunc // optional
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	httpServer *http.Server
	router     *gin.Engine
	deps       Dependencies
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	if config.MaxUploadBytes > 0 {
		router.MaxMultipartMemory = config.MaxUploadBytes
	}

	server := &Server{
		config: config,
		router: router,
		deps:   deps,
		logger: logger,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(corsMiddleware())
	if s.config.MaxUploadBytes > 0 {
		s.router.Use(bodyLimitMiddleware(s.config.MaxUploadBytes))
	}
}

// loggingMiddleware creates a logging middleware
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		keysAndValues := []interface{}{
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"client_ip", c.ClientIP(),
		}
		if status >= http.StatusInternalServerError {
			s.logger.Error("HTTP request", keysAndValues...)
			return
		}
		s.logger.Info("HTTP request", keysAndValues...)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, "+sessionHeader)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// bodyLimitMiddleware caps request bodies so oversized uploads fail early
func bodyLimitMiddleware(limit int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)
		c.Next()
	}
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	h := NewHandlers(s.deps, s.logger)

	s.router.GET("/health", h.HealthCheck)

	api := s.router.Group("/api")
	{
		api.POST("/session/login", h.Login)
		api.GET("/preferences/theme", h.GetTheme)
		api.PUT("/preferences/theme", h.SetTheme)
		api.POST("/reset", h.Reset)

		authed := api.Group("", sessionMiddleware(s.deps.Sessions))
		authed.POST("/session/logout", h.Logout)
		authed.GET("/session", h.CurrentSession)

		employee := authed.Group("", requireRole(roleEmployee))
		{
			employee.GET("/draft", h.GetDraft)
			employee.DELETE("/draft", h.ResetDraft)
			employee.POST("/draft/files", h.AddDraftFiles)
			employee.DELETE("/draft/files/:index", h.RemoveDraftFile)
			employee.POST("/draft/months/:month", h.ToggleDraftMonth)
			employee.PUT("/draft/type", h.SetDraftType)
			employee.POST("/claims/submit", h.SubmitDraft)
			employee.GET("/claims/mine", h.ListMyClaims)
		}

		admin := authed.Group("/admin", requireRole(roleAdmin))
		{
			admin.GET("/claims", h.ListClaims)
			admin.DELETE("/claims", h.ClearClaims)
			admin.GET("/claims/export", h.ExportClaims)
			admin.GET("/claims/:id", h.GetClaim)
			admin.POST("/claims/:id/approve", h.ApproveClaim)
			admin.POST("/claims/:id/reject", h.RejectClaim)
			admin.DELETE("/claims/:id", h.DeleteClaim)
			admin.GET("/stats", h.Stats)
		}
	}
}

// Start starts the HTTP server and blocks until ctx is cancelled or the listener fails
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
