package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hugh/agricoop/internal/api/dto"
	"github.com/hugh/agricoop/internal/tenancy"
)

const (
	AdminKeyHeader    = "X-Admin-Key"
	AdminActorHeader  = "X-Admin-Actor"
	AdminReasonHeader = "X-Admin-Reason"
)

type grantKey struct{}

// AdminOnly guards the unscoped admin routes with a shared key and issues the
// AdminGrant the handlers need. An empty key disables the routes.
func AdminOnly(key string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				writeError(w, http.StatusForbidden, dto.CodeAdminDisabled, "admin access is disabled")
				return
			}
			presented := r.Header.Get(AdminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(presented), []byte(key)) != 1 {
				logger.Warn("admin key rejected", "path", r.URL.Path, "ip", getClientIP(r))
				writeError(w, http.StatusUnauthorized, dto.CodeUnauthorized, "Unauthorized")
				return
			}

			actor := strings.TrimSpace(r.Header.Get(AdminActorHeader))
			if actor == "" {
				actor = "admin-key"
			}
			reason := strings.TrimSpace(r.Header.Get(AdminReasonHeader))
			if reason == "" {
				reason = r.Method + " " + r.URL.Path
			}
			grant, err := tenancy.GrantAdmin(logger, actor, reason)
			if err != nil {
				writeError(w, http.StatusBadRequest, dto.CodeValidation, err.Error())
				return
			}

			Annotate(r.Context(), "admin_actor", actor)
			ctx := context.WithValue(r.Context(), grantKey{}, grant)
			ctx = tenancy.WithActor(ctx, "admin:"+actor)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminGrant returns the grant issued by AdminOnly.
func GetAdminGrant(ctx context.Context) (tenancy.AdminGrant, bool) {
	g, ok := ctx.Value(grantKey{}).(tenancy.AdminGrant)
	return g, ok && g.Valid()
}
