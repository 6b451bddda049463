package main

import (
	"tenant-config-service/internal/access"
	"tenant-config-service/internal/handler"
	"tenant-config-service/internal/middleware"
	"tenant-config-service/internal/onboarding"
	"tenant-config-service/internal/registry"
	"tenant-config-service/internal/store"
	"tenant-config-service/internal/usage"
	"tenant-config-service/pkg/config"
	"tenant-config-service/pkg/database"
	"tenant-config-service/pkg/jwtutil"
	"tenant-config-service/pkg/logger"
	"tenant-config-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: "tenant-config-service",
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting tenant config service...", cfg.LogConfig()...)

	// Initialize JWT with configuration
	jwtutil.Initialize(&cfg.JWT)

	// Select the document store backend
	var docs store.DocumentStore
	var sessions store.SessionStore
	switch cfg.Store.Driver {
	case "memory":
		log.Warn("Using in-memory store, data will not survive restarts")
		docs = store.NewMemoryStore()
		sessions = store.NewMemorySessionStore()
	default:
		// Initialize database (includes migrations automatically)
		if err := database.Init(cfg); err != nil {
			log.Fatal("Failed to initialize database", zap.Error(err))
		}
		log.Info("Database connection established and migrations completed")
		docs = store.NewGormStore(database.GetDB())
		sessions = store.NewGormSessionStore(database.GetDB())
	}

	// Build the engine services and wire the handlers
	resolver := access.NewResolver(docs)
	flow := onboarding.New(docs, sessions, nil, cfg.Onboarding.TTL, cfg.Onboarding.BaseURL)
	handler.Init(docs, resolver, flow, registry.New(docs), usage.New(docs))

	if cfg.Admin.APIKey == "" {
		log.Warn("ADMIN_API_KEY is not set, administrator routes are disabled")
	}

	// Initialize Echo framework
	e := echo.New()

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Authentication routes
	auth := e.Group("/auth")
	auth.POST("/login", handler.Login)

	// Token-holder onboarding routes, authenticated by the token itself
	ob := e.Group("/onboarding/:token")
	ob.GET("", handler.OpenSession)
	ob.PUT("", handler.SaveDraft)
	ob.POST("/submit", handler.SubmitSession)

	// Administrator routes guarded by the static API key
	admin := e.Group("/admin", middleware.AdminMiddleware(cfg.Admin.APIKey))
	admin.POST("/invitations", handler.CreateInvitation)
	admin.GET("/sessions", handler.ListSessions)
	admin.POST("/sessions/:token/approve", handler.ApproveSession)
	admin.POST("/sessions/:token/request-changes", handler.RequestChanges)
	admin.POST("/manual", handler.ManualEntry)
	admin.GET("/tenants", handler.ListTenants)
	admin.PATCH("/tenants/:id/status", handler.SetTenantStatus)

	// Tenant API routes require a valid JWT
	api := e.Group("/api", middleware.AuthMiddleware)
	api.GET("/me/tenants", handler.ListMyTenants)
	api.POST("/tenants/:id/password", handler.ChangePassword)
	api.GET("/tenants/:id/permissions", handler.ListPermissions)
	api.GET("/tenants/:id/documents/:kind", handler.ReadDocument)
	api.PUT("/tenants/:id/documents/:kind", handler.WriteDocument)
	api.GET("/tenants/:id/documents/:kind/history", handler.DocumentHistory)
	api.GET("/tenants/:id/documents/:kind/revisions/:rev", handler.ReadDocumentAt)
	api.POST("/tenants/:id/access", handler.GrantAccess)
	api.DELETE("/tenants/:id/access/:email", handler.RevokeAccess)
	api.GET("/tenants/:id/usage/:item", handler.CheckUsage)
	api.POST("/tenants/:id/usage", handler.MarkUsed)

	// Start server
	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
