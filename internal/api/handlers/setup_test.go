package handlers_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hugh/agricoop/internal/api/handlers"
	"github.com/hugh/agricoop/internal/api/middleware"
	"github.com/hugh/agricoop/internal/archive"
	"github.com/hugh/agricoop/internal/auth"
	"github.com/hugh/agricoop/internal/database"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/registry"
	"github.com/hugh/agricoop/internal/testutil"
	"github.com/hugh/agricoop/pkg/config"
	"github.com/hugh/agricoop/pkg/crypto"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const adminKey = "test-admin-key"

// twoCoops is coopa (ana owns it, carla is a plain member) and coopb (bob
// owns it), served through a router wired like production.
type twoCoops struct {
	db       *gorm.DB
	jwt      *auth.JWTService
	registry *registry.Service
	router   *chi.Mux

	coopA, coopB    *models.Organization
	ana, bob, carla *models.User
	anaTok, bobTok  string
	carlaTok        string
}

func tenancyConfig() config.TenancyConfig {
	return config.TenancyConfig{
		BaseDomain:    "agricoop.test",
		ReservedNames: []string{"www", "api", "admin"},
		Header:        "X-Tenant-Subdomain",
		QueryParam:    "tenant",
		PublicPaths:   []string{"/health", "/ready", "/api/v1/register", "/api/v1/auth/login", "/api/v1/admin"},
	}
}

func setupTwoCoops(t *testing.T) *twoCoops {
	t.Helper()

	db := testutil.SetupTestDB(t)
	jwtService := testutil.CreateTestJWTService()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := tenancyConfig()

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	sealer, err := crypto.NewSealer(key)
	require.NoError(t, err)

	reg := registry.New(db, registry.Options{
		Archiver:    archive.NewMemory(),
		Sealer:      sealer,
		TrialPeriod: 14 * 24 * time.Hour,
		Reserved:    cfg.IsReserved,
		Logger:      logger,
	})

	tc := &twoCoops{db: db, jwt: jwtService, registry: reg}
	tc.coopA = testutil.CreateTestOrg(t, db, "coopa")
	tc.coopB = testutil.CreateTestOrg(t, db, "coopb")
	tc.ana = testutil.CreateTestUser(t, db)
	tc.bob = testutil.CreateTestUser(t, db)
	tc.carla = testutil.CreateTestUser(t, db)
	testutil.AddTestMembership(t, db, tc.coopA, tc.ana, models.RoleOwner)
	testutil.AddTestMembership(t, db, tc.coopB, tc.bob, models.RoleOwner)
	testutil.AddTestMembership(t, db, tc.coopA, tc.carla, models.RoleMember)
	tc.anaTok = testutil.GenerateTestToken(t, jwtService, tc.ana)
	tc.bobTok = testutil.GenerateTestToken(t, jwtService, tc.bob)
	tc.carlaTok = testutil.GenerateTestToken(t, jwtService, tc.carla)

	authHandler := handlers.NewAuthHandler(auth.NewService(db, jwtService))
	orgHandler := handlers.NewOrganizationHandler(reg)
	partnerHandler := handlers.NewPartnerHandler(database.NewScopedRepository[models.Partner](db, nil), sealer)
	productHandler := handlers.NewProductHandler(database.NewScopedRepository[models.Product](db, nil))
	adminHandler := handlers.NewAdminHandler(reg, db, nil)

	r := chi.NewRouter()
	r.Use(middleware.ResolveTenant(reg, cfg, logger))
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/register", orgHandler.Register)
		r.Post("/auth/login", authHandler.Login)

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireTenant(cfg))
			r.Use(middleware.Auth(jwtService))
			r.Use(middleware.RequireMembership(reg, logger))

			r.Get("/me", authHandler.Me)
			r.Get("/organization", orgHandler.Get)
			r.Get("/organization/members", orgHandler.Members)
			r.With(middleware.RequireRole(models.RoleOwner, models.RoleAdmin)).
				Post("/organization/members", orgHandler.AddMember)

			r.Get("/partners", partnerHandler.List)
			r.Post("/partners", partnerHandler.Create)
			r.Get("/partners/{id}", partnerHandler.Get)
			r.With(middleware.RequireRole(models.RoleOwner, models.RoleAdmin)).
				Put("/partners/{id}", partnerHandler.Update)
			r.With(middleware.RequireRole(models.RoleOwner, models.RoleAdmin)).
				Delete("/partners/{id}", partnerHandler.Delete)

			r.Get("/products", productHandler.List)
			r.Post("/products", productHandler.Create)
			r.Get("/products/{id}", productHandler.Get)
		})

		r.Route("/admin/organizations", func(r chi.Router) {
			r.Use(middleware.AdminOnly(adminKey, logger))
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
	tc.router = r

	return tc
}

func (tc *twoCoops) serve(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	tc.router.ServeHTTP(rec, req)
	return rec
}

// as sends an authenticated request addressed to subdomain.
func (tc *twoCoops) as(t *testing.T, token, subdomain, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return tc.serve(testutil.TenantRequest(t, method, path, body, token, subdomain))
}

func (tc *twoCoops) admin(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.UnauthenticatedRequest(t, method, path, body)
	req.Header.Set(middleware.AdminKeyHeader, adminKey)
	req.Header.Set(middleware.AdminActorHeader, "ops")
	return tc.serve(req)
}
