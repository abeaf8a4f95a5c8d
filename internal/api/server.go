package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"ark-trading-engine/internal/auth"
	"ark-trading-engine/internal/cache"
	"ark-trading-engine/internal/database"
	"ark-trading-engine/internal/events"
	"ark-trading-engine/internal/patterns"
	"ark-trading-engine/internal/pipeline"
)

// RateLimiter provides simple in-memory rate limiting per endpoint
type RateLimiter struct {
	requests map[string][]time.Time
	mu       sync.Mutex
	limit    int           // max requests
	window   time.Duration // time window
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
	}
}

// Allow checks if a request is allowed for the given key
func (r *RateLimiter) Allow(key string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	windowStart := now.Add(-r.window)

	var recent []time.Time
	for _, t := range r.requests[key] {
		if t.After(windowStart) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= r.limit {
		r.requests[key] = recent
		return false
	}

	r.requests[key] = append(recent, now)
	return true
}

// Credentials is the single operator login when auth is enabled.
type Credentials struct {
	Username     string
	PasswordHash string // bcrypt hash
}

// Server represents the HTTP API server
type Server struct {
	router      *gin.Engine
	httpServer  *http.Server
	pipe        *pipeline.Pipeline
	library     *patterns.Library
	db          *database.DB        // nil when persistence is disabled
	signalCache *cache.SignalCache  // nil when Redis is disabled
	eventBus    *events.EventBus
	hub         *WSHub
	jwtManager  *auth.JWTManager // nil when auth is disabled
	passwords   *auth.PasswordManager
	credentials Credentials
	config      ServerConfig
	rateLimiter *RateLimiter
	logger      zerolog.Logger
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Host           string
	AllowedOrigins string
	ReadTimeout    int // seconds, 15 when unset
	WriteTimeout   int // seconds, 15 when unset
	ProductionMode bool
}

// NewServer creates a new API server. db, signalCache and jwtManager may
// be nil; the matching features degrade or disable themselves.
func NewServer(
	config ServerConfig,
	pipe *pipeline.Pipeline,
	library *patterns.Library,
	db *database.DB,
	signalCache *cache.SignalCache,
	eventBus *events.EventBus,
	jwtManager *auth.JWTManager,
	credentials Credentials,
	logger zerolog.Logger,
) *Server {
	if config.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	corsConfig := cors.DefaultConfig()
	if config.AllowedOrigins == "" || config.AllowedOrigins == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(config.AllowedOrigins, ",")
		corsConfig.AllowCredentials = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	server := &Server{
		router:      router,
		pipe:        pipe,
		library:     library,
		db:          db,
		signalCache: signalCache,
		eventBus:    eventBus,
		jwtManager:  jwtManager,
		passwords:   auth.NewPasswordManager(auth.DefaultBcryptCost, auth.MinPasswordLength),
		credentials: credentials,
		config:      config,
		rateLimiter: NewRateLimiter(120, time.Minute),
		logger:      logger,
	}

	if eventBus != nil {
		server.hub = NewWSHub(logger)
		go server.hub.Run()
		eventBus.SubscribeAll(func(event events.Event) {
			server.hub.BroadcastEvent(event)
		})
	}

	server.setupRoutes()

	return server
}

// rateLimitMiddleware rate limits requests by endpoint path
func (s *Server) rateLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		if !s.rateLimiter.Allow(path) {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": "Too many requests to this endpoint",
				"path":    path,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleWebSocket)

	v1 := s.router.Group("/api/v1")
	v1.Use(s.rateLimitMiddleware())

	if s.jwtManager != nil {
		v1.POST("/auth/login", s.handleLogin)
		v1.Use(auth.Middleware(s.jwtManager))
	}

	v1.POST("/setups/evaluate", s.handleEvaluateSetup)
	v1.GET("/patterns", s.handleListPatterns)
	v1.GET("/patterns/:id", s.handleGetPattern)
	v1.GET("/signals/recent", s.handleRecentSignals)
	v1.GET("/signals/:id", s.handleGetSignal)
}

// buildHTTPServer applies the configured read/write timeouts, falling
// back to 15s when unset.
func (s *Server) buildHTTPServer(addr string) *http.Server {
	readTimeout := s.config.ReadTimeout
	if readTimeout <= 0 {
		readTimeout = 15
	}
	writeTimeout := s.config.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 15
	}

	return &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  time.Duration(readTimeout) * time.Second,
		WriteTimeout: time.Duration(writeTimeout) * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// Start runs the HTTP server and blocks until shutdown
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.httpServer = s.buildHTTPServer(addr)

	s.logger.Info().Str("addr", addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server")

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

// Router exposes the gin engine, used by tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// handleHealth returns server health status
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	health := gin.H{
		"status":   "healthy",
		"patterns": s.library.Len(),
	}

	if s.db != nil {
		if err := s.db.Pool.Ping(ctx); err != nil {
			health["status"] = "unhealthy"
			health["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, health)
			return
		}
		health["database"] = "healthy"
	}
	if s.signalCache != nil {
		if s.signalCache.IsHealthy() {
			health["cache"] = "healthy"
		} else {
			health["cache"] = "degraded"
		}
	}

	c.JSON(http.StatusOK, health)
}

// errorResponse is a helper to send error responses
func errorResponse(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, gin.H{
		"error":   true,
		"message": message,
	})
}

// successResponse is a helper to send success responses
func successResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    data,
	})
}
