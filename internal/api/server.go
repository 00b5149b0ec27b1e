// Package api serves a read-only status view of the feed pipeline.
package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/blockfeed/blockfeed/internal/config"
	"github.com/blockfeed/blockfeed/internal/sequencer"
	"github.com/blockfeed/blockfeed/pkg/logger"
)

// Version is set at build time via -ldflags.
var Version = "dev"

// StatusProvider exposes the sequencer's cursor snapshot to handlers.
type StatusProvider interface {
	Snapshot() sequencer.Snapshot
}

// Server is the HTTP status API.
type Server struct {
	router *gin.Engine
	server *http.Server
	logger *logger.Logger
	host   string
	port   int

	// provider is swapped on pipeline restarts while handlers read it.
	mu       sync.RWMutex
	provider StatusProvider
}

// NewServer creates the status API server. The provider may be nil
// until SetProvider is called; /ready reports unavailable meanwhile.
func NewServer(cfg config.APIConfig, provider StatusProvider, log *logger.Logger) *Server {
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(log))

	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:  origins,
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	s := &Server{
		router:   router,
		logger:   log,
		provider: provider,
		host:     cfg.Host,
		port:     cfg.Port,
	}
	s.setupRoutes(cfg)

	return s
}

// SetProvider binds or replaces the status provider. Safe to call
// while the server is running.
func (s *Server) SetProvider(provider StatusProvider) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = provider
}

func (s *Server) getProvider() StatusProvider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}

func (s *Server) setupRoutes(cfg config.APIConfig) {
	// Probes stay open; only the versioned API is auth-gated.
	s.router.GET("/health", s.getHealth)
	s.router.GET("/ready", s.getReady)

	v1 := s.router.Group("/api/v1")
	if cfg.AuthEnabled {
		auth := NewAuthMiddleware(cfg.JWTSecret, s.logger)
		v1.Use(auth.Authenticate())
	}
	v1.GET("/status", s.getStatus)
	v1.GET("/version", s.getVersion)
}

// Start begins serving in the background.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		s.logger.Info("starting status API", zap.String("addr", s.server.Addr))

		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("status API error", zap.Error(err))
		}
	}()

	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown status API: %w", err)
	}

	s.logger.Info("status API stopped")
	return nil
}

func (s *Server) getHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (s *Server) getReady(c *gin.Context) {
	if s.getProvider() == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "not_ready",
			"message": "pipeline not started",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}

func (s *Server) getStatus(c *gin.Context) {
	provider := s.getProvider()
	if provider == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "pipeline not started"})
		return
	}
	c.JSON(http.StatusOK, provider.Snapshot())
}

func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": Version})
}

func ginLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}
		log.Debug("API request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("ip", c.ClientIP()))
	}
}
