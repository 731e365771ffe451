// Package api serves the status of running and stored searches over HTTP
// and streams their progress over WebSocket.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/ajitpratap0/paramsearch/internal/metrics"
	"github.com/ajitpratap0/paramsearch/internal/store"
)

// Server represents the status API server
type Server struct {
	router  *gin.Engine
	tracker *Tracker
	store   store.Store
	hub     *Hub
	addr    string
	server  *http.Server
}

// Config contains server configuration
type Config struct {
	Host    string
	Port    int
	Tracker *Tracker
	// Store is optional; stored-run endpoints answer 503 without it
	Store store.Store
	// Hub must already be running; a private one is started when nil
	Hub *Hub
}

// NewServer creates a new API server
func NewServer(config Config) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware())
	router.Use(metrics.GinMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	tracker := config.Tracker
	if tracker == nil {
		tracker = NewTracker()
	}
	hub := config.Hub
	if hub == nil {
		hub = NewHub()
		go hub.Run()
	}

	server := &Server{
		router:  router,
		tracker: tracker,
		store:   config.Store,
		hub:     hub,
		addr:    fmt.Sprintf("%s:%d", config.Host, config.Port),
	}

	server.setupRoutes()

	return server
}

// Handler exposes the router, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server and blocks until it stops
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info().Str("addr", s.addr).Msg("Starting API server")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server and disconnects stream clients
func (s *Server) Stop(ctx context.Context) error {
	log.Info().Msg("Stopping API server")

	s.hub.Close()
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("failed to stop server: %w", err)
		}
	}

	return nil
}

// LoggerMiddleware logs each request at debug level
func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		logEvent := log.Debug().
			Str("method", c.Request.Method).
			Str("path", path).
			Str("query", query).
			Int("status", c.Writer.Status()).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP())

		if len(c.Errors) > 0 {
			logEvent.Str("errors", c.Errors.String())
		}

		logEvent.Msg("API request")
	}
}
