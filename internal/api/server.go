// Package api wires the HTTP surface: service construction, middleware
// and route registration.
package api

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/streamweld/streamweld/internal/config"
	"github.com/streamweld/streamweld/internal/database"
	"github.com/streamweld/streamweld/internal/epg"
	"github.com/streamweld/streamweld/internal/events"
	"github.com/streamweld/streamweld/internal/ingest"
	"github.com/streamweld/streamweld/internal/reconcile"
	"github.com/streamweld/streamweld/internal/scheduler"
	"github.com/streamweld/streamweld/internal/source"
	"github.com/streamweld/streamweld/internal/store"
)

// Server handles HTTP requests for the StreamWeld API.
type Server struct {
	echo   *echo.Echo
	db     *database.DB
	hub    *events.Hub
	logger zerolog.Logger
	cfg    *config.Config
	sched  *scheduler.Scheduler

	// Services
	sourceService    *source.Service
	storeService     *store.Service
	reconcileService *reconcile.Service
	ingestService    *ingest.Service
	coordinator      *ingest.Coordinator
	epgManager       *epg.Manager
}

// NewServer creates a new API server instance. The guide fetcher is
// injected because its transport lives outside this process's control.
func NewServer(db *database.DB, hub *events.Hub, sched *scheduler.Scheduler, fetcher epg.Fetcher, cfg *config.Config, logger zerolog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	s := &Server{
		echo:   e,
		db:     db,
		hub:    hub,
		logger: logger,
		cfg:    cfg,
		sched:  sched,
	}

	writer := database.NewWriter(db, logger)

	// Initialize services
	s.sourceService = source.NewService(writer, logger)
	s.storeService = store.NewService(writer, logger)
	s.reconcileService = reconcile.NewService(s.storeService, s.sourceService, logger)
	s.ingestService = ingest.NewService(s.storeService, s.sourceService, hub, logger)
	s.coordinator = ingest.NewCoordinator(s.ingestService, s.sourceService, logger)

	s.epgManager = epg.NewManager(writer, fetcher, epg.Config{
		TTL:       cfg.EPG.TTL,
		Retention: cfg.EPG.Retention,
	}, logger)

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures Echo middleware.
func (s *Server) setupMiddleware() {
	// Recovery middleware
	s.echo.Use(middleware.Recover())

	// Request ID
	s.echo.Use(middleware.RequestID())

	// Request body size limit (2MB covers the largest playlist batches)
	s.echo.Use(middleware.BodyLimit("2M"))

	// CORS
	s.echo.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	// Request logging
	s.echo.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogMethod:   true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				s.logger.Error().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Err(v.Error).
					Msg("request error")
			} else {
				s.logger.Info().
					Str("method", v.Method).
					Str("uri", v.URI).
					Int("status", v.Status).
					Dur("latency", v.Latency).
					Msg("request")
			}
			return nil
		},
	}))

	// Gzip compression
	s.echo.Use(middleware.GzipWithConfig(middleware.GzipConfig{
		Level: 5,
		Skipper: func(c echo.Context) bool {
			// Skip compression for WebSocket
			return c.Request().Header.Get("Upgrade") == "websocket"
		},
	}))
}

// setupRoutes configures API routes.
func (s *Server) setupRoutes() {
	// Health check
	s.echo.GET("/health", s.healthCheck)

	// Event stream
	s.echo.GET("/ws", s.hub.HandleWebSocket)

	// API v1 group
	api := s.echo.Group("/api/v1")

	api.GET("/status", s.getStatus)

	// Source registry routes
	sourceHandlers := source.NewHandlers(s.sourceService)
	sourceHandlers.RegisterRoutes(api.Group("/sources"))

	// Ingestion routes share the /sources prefix
	ingestHandlers := ingest.NewHandlers(s.ingestService, s.coordinator)
	ingestHandlers.RegisterRoutes(api.Group("/sources"))

	// Catalog routes
	storeHandlers := store.NewHandlers(s.storeService)
	storeHandlers.RegisterRoutes(api.Group("/catalog"))

	// Reconciliation routes
	reconcileHandlers := reconcile.NewHandlers(s.reconcileService)
	reconcileHandlers.RegisterRoutes(api.Group("/groups"))

	// Guide routes
	epgHandlers := epg.NewHandlers(s.epgManager)
	epgHandlers.RegisterRoutes(api.Group("/epg"))

	// Scheduler routes
	api.GET("/scheduler/tasks", s.listTasks)
	api.POST("/scheduler/tasks/:id/run", s.runTask)
}

// Echo returns the underlying Echo instance.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// SourceService returns the source registry service.
func (s *Server) SourceService() *source.Service {
	return s.sourceService
}

// StoreService returns the catalog store service.
func (s *Server) StoreService() *store.Service {
	return s.storeService
}

// ReconcileService returns the reconciliation service.
func (s *Server) ReconcileService() *reconcile.Service {
	return s.reconcileService
}

// Coordinator returns the source sync coordinator.
func (s *Server) Coordinator() *ingest.Coordinator {
	return s.coordinator
}

// EPGManager returns the guide cache manager.
func (s *Server) EPGManager() *epg.Manager {
	return s.epgManager
}

// Start starts the HTTP server.
func (s *Server) Start(address string) error {
	return s.echo.Start(address)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
