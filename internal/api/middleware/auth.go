package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/agricoop/internal/api/dto"
	"github.com/hugh/agricoop/internal/auth"
	"github.com/hugh/agricoop/internal/database"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/tenancy"
)

type contextKey string

const (
	UserIDKey    contextKey = "user_id"
	UserEmailKey contextKey = "user_email"
	UserRoleKey  contextKey = "user_role"
)

// Auth validates the bearer token. It identifies the user only; access to
// the bound organization is decided by RequireMembership.
func Auth(tokens auth.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			token := strings.TrimPrefix(authHeader, "Bearer ")
			if token == "" || token == authHeader {
				writeError(w, http.StatusUnauthorized, dto.CodeUnauthorized, "Unauthorized")
				return
			}

			claims, err := tokens.ValidateToken(token)
			if err != nil {
				writeError(w, http.StatusUnauthorized, dto.CodeUnauthorized, "Unauthorized")
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
			ctx = tenancy.WithActor(ctx, "user:"+claims.Email)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// MembershipLookup is satisfied by *registry.Service.
type MembershipLookup interface {
	Membership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error)
}

// RequireMembership admits the authenticated user only if they hold an active
// membership in the bound organization, and records their role there.
func RequireMembership(members MembershipLookup, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenant, ok := tenancy.Current(r.Context())
			if !ok {
				writeError(w, http.StatusBadRequest, dto.CodeTenantNotResolved, "organization not found or inactive")
				return
			}
			userID := GetUserID(r.Context())

			m, err := members.Membership(r.Context(), tenant.ID, userID)
			if err != nil {
				if errors.Is(err, database.ErrNotFound) {
					writeError(w, http.StatusForbidden, dto.CodeNotMember, "not a member of this organization")
					return
				}
				logger.Error("membership lookup failed", "error", err, "org_id", tenant.ID, "user_id", userID)
				writeError(w, http.StatusInternalServerError, dto.CodeInternal, "internal server error")
				return
			}

			Annotate(r.Context(), "user_id", userID)
			ctx := context.WithValue(r.Context(), UserRoleKey, m.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Helper functions to extract values from context
func GetUserID(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(UserIDKey).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

func GetUserEmail(ctx context.Context) string {
	if email, ok := ctx.Value(UserEmailKey).(string); ok {
		return email
	}
	return ""
}

func GetUserRole(ctx context.Context) models.Role {
	if role, ok := ctx.Value(UserRoleKey).(models.Role); ok {
		return role
	}
	return ""
}

// RequireRole middleware ensures the member holds one of roles in the bound
// organization.
func RequireRole(roles ...models.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userRole := GetUserRole(r.Context())

			for _, role := range roles {
				if userRole == role {
					next.ServeHTTP(w, r)
					return
				}
			}

			writeError(w, http.StatusForbidden, dto.CodeForbidden, "Forbidden")
		})
	}
}
