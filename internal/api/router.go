package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hugh/agricoop/internal/api/handlers"
	"github.com/hugh/agricoop/internal/api/middleware"
	"github.com/hugh/agricoop/internal/audit"
	"github.com/hugh/agricoop/internal/auth"
	"github.com/hugh/agricoop/internal/database"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/registry"
	"github.com/hugh/agricoop/pkg/config"
	"github.com/hugh/agricoop/pkg/crypto"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Router struct {
	chi.Router
}

type RouterConfig struct {
	DB             *gorm.DB
	Redis          redis.UniversalClient
	Logger         *slog.Logger
	JWTService     *auth.JWTService
	AuthService    *auth.Service
	Registry       *registry.Service
	Sealer         *crypto.Sealer
	Events         audit.Publisher
	Tenancy        config.TenancyConfig
	AdminKey       string
	AllowedOrigins []string // CORS allowed origins
	RateLimitReqs  int      // Rate limit requests per window
	RateLimitSecs  int      // Rate limit window in seconds
}

func NewRouter(cfg RouterConfig) *Router {
	r := chi.NewRouter()

	// Global middleware
	// Logging sits outside Recovery so a recovered panic still gets its
	// request line with status 500.
	r.Use(chimw.RequestID)
	r.Use(middleware.Logging(cfg.Logger))
	r.Use(middleware.Recovery(cfg.Logger))

	// Rate limiting - applied globally to prevent abuse
	if cfg.RateLimitReqs > 0 {
		r.Use(middleware.RateLimit(cfg.RateLimitReqs, cfg.RateLimitSecs))
	}

	// CORS - restrict to configured origins, or allow all in development
	allowedOrigins := cfg.AllowedOrigins
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"http://localhost:3000", "http://localhost:8080"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{
			"Accept", "Authorization", "Content-Type",
			cfg.Tenancy.Header,
			middleware.AdminKeyHeader, middleware.AdminActorHeader, middleware.AdminReasonHeader,
		},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Every request is resolved before routing; public paths may pass unbound.
	r.Use(middleware.ResolveTenant(cfg.Registry, cfg.Tenancy, cfg.Logger))

	// Repositories
	partners := database.NewScopedRepository[models.Partner](cfg.DB, cfg.Events)
	products := database.NewScopedRepository[models.Product](cfg.DB, cfg.Events)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(cfg.DB, cfg.Redis)
	authHandler := handlers.NewAuthHandler(cfg.AuthService)
	orgHandler := handlers.NewOrganizationHandler(cfg.Registry)
	partnerHandler := handlers.NewPartnerHandler(partners, cfg.Sealer)
	productHandler := handlers.NewProductHandler(products)
	adminHandler := handlers.NewAdminHandler(cfg.Registry, cfg.DB, cfg.Events)

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/register", orgHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		// Tenant-bound routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireTenant(cfg.Tenancy))
			r.Use(middleware.Auth(cfg.JWTService))
			r.Use(middleware.RequireMembership(cfg.Registry, cfg.Logger))
			if cfg.RateLimitReqs > 0 {
				r.Use(middleware.RateLimitByTenant(cfg.RateLimitReqs, cfg.RateLimitSecs))
			}

			r.Get("/me", authHandler.Me)

			r.Route("/organization", func(r chi.Router) {
				r.Get("/", orgHandler.Get)
				r.Get("/members", orgHandler.Members)
				r.With(middleware.RequireRole(models.RoleOwner, models.RoleAdmin)).
					Post("/members", orgHandler.AddMember)
			})

			r.Route("/partners", func(r chi.Router) {
				r.Get("/", partnerHandler.List)
				r.Post("/", partnerHandler.Create)
				r.Get("/{id}", partnerHandler.Get)
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(models.RoleOwner, models.RoleAdmin))
					r.Put("/{id}", partnerHandler.Update)
					r.Delete("/{id}", partnerHandler.Delete)
				})
			})

			r.Route("/products", func(r chi.Router) {
				r.Get("/", productHandler.List)
				r.Post("/", productHandler.Create)
				r.Get("/{id}", productHandler.Get)
			})
		})

		// Operator routes, unscoped
		r.Route("/admin/organizations", func(r chi.Router) {
			r.Use(middleware.AdminOnly(cfg.AdminKey, cfg.Logger))

			r.Get("/", adminHandler.List)
			r.Post("/", adminHandler.Provision)
			r.Get("/{id}", adminHandler.Get)
			r.Delete("/{id}", adminHandler.Delete)
			r.Post("/{id}/activate", adminHandler.Activate)
			r.Post("/{id}/suspend", adminHandler.Suspend)
			r.Post("/{id}/reactivate", adminHandler.Reactivate)
			r.Post("/{id}/cancel", adminHandler.Cancel)
			r.Put("/{id}/limits", adminHandler.UpdateLimits)
			r.Put("/{id}/plan", adminHandler.ChangePlan)
			r.Get("/{id}/partners", adminHandler.Partners)
			r.Post("/{id}/merge", adminHandler.Merge)
		})
	})

	return &Router{r}
}
