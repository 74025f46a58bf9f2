// Package api wires together all HTTP routes for PlatformHub.
//
// Route groups:
//   - /auth/register and /auth/login are public and rate limited.
//   - /catalog is public.
//   - /requests and /auth/me require a bearer token.
//   - /admin requires a bearer token and the approver or admin role; role
//     management additionally requires admin.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/platformhub/platformhub/internal/api/accounts"
	"github.com/platformhub/platformhub/internal/api/admin"
	"github.com/platformhub/platformhub/internal/api/catalogs"
	"github.com/platformhub/platformhub/internal/api/requests"
	"github.com/platformhub/platformhub/internal/audit"
	"github.com/platformhub/platformhub/internal/auth"
	"github.com/platformhub/platformhub/internal/config"
	"github.com/platformhub/platformhub/internal/db/models"
	"github.com/platformhub/platformhub/internal/db/repositories"
	"github.com/platformhub/platformhub/internal/middleware"
	"github.com/platformhub/platformhub/internal/services"
	"github.com/platformhub/platformhub/internal/storage"
)

// auditQueueSize bounds post-commit audit events waiting for the shippers.
const auditQueueSize = 1000

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Dependencies are the collaborators the HTTP layer is built from.
type Dependencies struct {
	DB       Pinger
	Storage  storage.Storage // nil when manifest archiving is disabled
	Auth     *services.AuthService
	Requests *services.RequestService
	Reviews  *services.ReviewService
	Limiter  middleware.Limiter // nil disables rate limiting
}

// BackgroundServices holds resources that must be released during graceful
// shutdown, after the HTTP server has drained.
type BackgroundServices struct {
	shipper audit.Shipper
	limiter middleware.Limiter
}

// Shutdown flushes queued audit events and closes the rate limiter.
func (bg *BackgroundServices) Shutdown() {
	slog.Info("stopping background services")
	if bg.shipper != nil {
		if err := bg.shipper.Close(); err != nil {
			slog.Error("failed to close audit shipper", "error", err)
		}
	}
	if bg.limiter != nil {
		if err := bg.limiter.Close(); err != nil {
			slog.Error("failed to close rate limiter", "error", err)
		}
	}
	slog.Info("all background services stopped")
}

// NewRouter builds repositories, storage, audit shipping and services from
// cfg and db, and returns the configured engine.
func NewRouter(cfg *config.Config, db *sqlx.DB) (*gin.Engine, *BackgroundServices, error) {
	tokens, err := auth.NewTokenManager(cfg.Auth.SecretKey, cfg.Auth.Algorithm, cfg.Auth.TokenLifetime())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize token manager: %w", err)
	}

	var (
		store    storage.Storage
		archiver services.ManifestArchiver
	)
	store, err = storage.NewStorage(cfg)
	switch {
	case errors.Is(err, storage.ErrDisabled):
		store = nil
		slog.Info("manifest archiving disabled")
	case err != nil:
		return nil, nil, fmt.Errorf("failed to initialize storage backend: %w", err)
	default:
		archiver = storage.NewArchiver(store, cfg.Storage.Prefix)
		slog.Info("initialized storage backend", "backend", cfg.Storage.DefaultBackend)
	}

	multi, err := audit.NewMultiShipper(cfg.Audit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize audit shippers: %w", err)
	}
	var shipper audit.Shipper
	if multi.Len() > 0 {
		shipper = audit.NewAsyncShipper(multi, auditQueueSize)
		slog.Info("audit shipping enabled", "destinations", multi.Len())
	}

	var limiter middleware.Limiter
	if cfg.Security.RateLimiting.Enabled {
		limiter, err = middleware.NewLimiter(cfg.Security.RateLimiting)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
		}
	}

	userRepo := repositories.NewUserRepository(db)
	requestRepo := repositories.NewRequestRepository(db)
	auditRepo := repositories.NewAuditRepository(db)

	authSvc := services.NewAuthService(userRepo, tokens)
	deps := Dependencies{
		DB:       db,
		Storage:  store,
		Auth:     authSvc,
		Requests: services.NewRequestService(requestRepo, auditRepo, shipper),
		Reviews:  services.NewReviewService(requestRepo, shipper, archiver),
		Limiter:  limiter,
	}
	return NewEngine(cfg, deps), &BackgroundServices{shipper: shipper, limiter: limiter}, nil
}

// NewEngine registers middleware and routes over deps.
func NewEngine(cfg *config.Config, deps Dependencies) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.LoggerMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware(middleware.APISecurityHeadersConfig()))
	if cors := middleware.CORSMiddleware(cfg.Security.CORS); cors != nil {
		router.Use(cors)
	}

	router.GET("/health", healthCheckHandler(deps.DB, cfg.App.Version))
	router.GET("/ready", readinessHandler(deps.DB, deps.Storage))

	authn := middleware.AuthMiddleware(deps.Auth)

	accountHandler := accounts.NewHandler(deps.Auth)
	authGroup := router.Group("/auth")
	{
		public := authGroup.Group("")
		if deps.Limiter != nil {
			public.Use(middleware.RateLimitMiddleware(deps.Limiter))
		}
		public.POST("/register", accountHandler.Register)
		public.POST("/login", accountHandler.Login)
		authGroup.GET("/me", authn, accountHandler.Me)
	}

	router.GET("/catalog", catalogs.List)
	router.GET("/catalog/:type", catalogs.Get)

	requestHandler := requests.NewHandler(deps.Requests)
	requestGroup := router.Group("/requests", authn)
	{
		requestGroup.POST("", requestHandler.Create)
		requestGroup.GET("", requestHandler.List)
		requestGroup.GET("/:id", requestHandler.Get)
		requestGroup.GET("/:id/audit", requestHandler.Audit)
		requestGroup.GET("/:id/manifest", requestHandler.Manifest)
	}

	adminHandler := admin.NewHandler(deps.Reviews, deps.Auth)
	adminGroup := router.Group("/admin", authn, middleware.RequireRole(auth.ReviewerRoles...))
	{
		adminGroup.GET("/pending", adminHandler.Pending)
		adminGroup.POST("/:id/review", adminHandler.Review)
		adminGroup.PUT("/users/:username/role", middleware.RequireRole(models.RoleAdmin), adminHandler.SetRole)
	}

	return router
}

// healthCheckHandler reports liveness and the running version. A failed
// database ping yields 503.
func healthCheckHandler(db Pinger, version string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "unhealthy",
				"error":  "database connection failed",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"version": version,
		})
	}
}

// readinessHandler also probes the archive storage backend, when one is
// configured, with a known-absent sentinel path.
func readinessHandler(db Pinger, store storage.Storage) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()
		checks := gin.H{}

		if err := db.PingContext(ctx); err != nil {
			checks["database"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "database not ready",
			})
			return
		}
		checks["database"] = "healthy"

		if store == nil {
			checks["storage"] = "disabled"
		} else if _, err := store.Exists(ctx, ".readiness-probe"); err != nil {
			checks["storage"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"ready":  false,
				"checks": checks,
				"error":  "storage backend not ready",
			})
			return
		} else {
			checks["storage"] = "healthy"
		}

		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"checks": checks,
			"time":   time.Now().UTC().Format(time.RFC3339),
		})
	}
}
