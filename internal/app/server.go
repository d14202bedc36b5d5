// File: internal/app/server.go
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"redsocial_backend/internal/config"
	"redsocial_backend/internal/jobs"
	"redsocial_backend/internal/middleware"
	"redsocial_backend/internal/session"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Server struct holds the dependencies for the HTTP server.
type Server struct {
	httpServer *http.Server
	router     *gin.Engine
	cfg        *config.Config
	logger     *zap.Logger

	// Handlers
	sessionHandler *session.Handler

	// Controller, needed at startup to restore the persisted session.
	controller *session.Controller

	// Jobs
	guestCleanupJob *jobs.GuestCleanupJob
}

// NewServer creates a new instance of our application server.
func NewServer(
	cfg *config.Config,
	logger *zap.Logger,
	sessionHandler *session.Handler,
	controller *session.Controller,
	guestCleanupJob *jobs.GuestCleanupJob,
) (*Server, error) {
	gin.SetMode(cfg.GinMode)
	router := gin.New()

	// --- Global Middleware ---
	router.Use(middleware.ZapLogger(logger, cfg))
	router.Use(middleware.ErrorHandler(logger))
	router.Use(gin.Recovery())

	// CORS Middleware
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.ExposeHeaders = []string{"Content-Length", middleware.RequestIDHeader}
	router.Use(cors.New(corsConfig))

	// --- Setup Routes ---
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP", "message": "RedSocial API is healthy!"})
	})

	v1 := router.Group("/api/v1")
	sessionHandler.RegisterRoutes(v1)

	addr := fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer:      httpServer,
		router:          router,
		cfg:             cfg,
		logger:          logger,
		sessionHandler:  sessionHandler,
		controller:      controller,
		guestCleanupJob: guestCleanupJob,
	}, nil
}

func (s *Server) Start() error {
	// Re-derive the session state for any persisted principal before
	// serving traffic, mirroring an app-launch auth check.
	startupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	s.controller.CheckAuthState(startupCtx)
	cancel()

	if s.guestCleanupJob != nil {
		err := s.guestCleanupJob.SetupAndStart()
		if err != nil {
			s.logger.Error("Failed to setup and start guest cleanup job", zap.Error(err))
		}
	} else {
		s.logger.Info("Guest cleanup job is not configured, skipping start.")
	}

	s.logger.Info("HTTP Server starting",
		zap.String("address", s.httpServer.Addr),
		zap.String("gin_mode", s.cfg.GinMode),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.logger.Error("Failed to start HTTP server", zap.Error(err))
		return err
	}
	s.logger.Info("HTTP Server stopped gracefully or an error occurred")
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Attempting graceful server shutdown...")
	if s.guestCleanupJob != nil {
		s.guestCleanupJob.Stop()
	}
	return s.httpServer.Shutdown(ctx)
}
