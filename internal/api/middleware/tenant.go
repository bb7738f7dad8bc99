package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/hugh/agricoop/internal/api/dto"
	"github.com/hugh/agricoop/internal/tenancy"
	"github.com/hugh/agricoop/pkg/config"
)

// Resolver finds a servable tenant by subdomain. *registry.Service satisfies it.
type Resolver interface {
	Resolve(ctx context.Context, subdomain string) (tenancy.Tenant, error)
}

// Resolution methods, in precedence order.
const (
	MethodHost   = "host"
	MethodHeader = "header"
	MethodQuery  = "query"
)

// TenantCandidate returns the single subdomain a request addresses and how it
// was found. The first source present wins; later sources are not consulted.
func TenantCandidate(r *http.Request, cfg config.TenancyConfig) (string, string) {
	if sub := hostSubdomain(r.Host, cfg); sub != "" {
		return sub, MethodHost
	}
	if sub := strings.TrimSpace(r.Header.Get(cfg.Header)); sub != "" {
		return strings.ToLower(sub), MethodHeader
	}
	if cfg.AllowQueryParam && cfg.QueryParam != "" {
		if sub := strings.TrimSpace(r.URL.Query().Get(cfg.QueryParam)); sub != "" {
			return strings.ToLower(sub), MethodQuery
		}
	}
	return "", ""
}

// hostSubdomain extracts the label left of the base domain. Reserved names
// and nested labels are not tenant hosts.
func hostSubdomain(host string, cfg config.TenancyConfig) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	base := strings.ToLower(strings.Trim(cfg.BaseDomain, "."))
	if base == "" || !strings.HasSuffix(host, "."+base) {
		return ""
	}
	label := strings.TrimSuffix(host, "."+base)
	if label == "" || strings.Contains(label, ".") || cfg.IsReserved(label) {
		return ""
	}
	return label
}

// ResolveTenant binds the addressed organization to the request context for
// the duration of the handler. Requests that do not resolve are rejected
// unless their path is public; public paths then run unbound.
func ResolveTenant(resolver Resolver, cfg config.TenancyConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			public := cfg.IsPublic(r.URL.Path)

			subdomain, method := TenantCandidate(r, cfg)
			if subdomain == "" {
				if public {
					next.ServeHTTP(w, r)
					return
				}
				logger.Debug("tenant not resolved", "reason", "no candidate", "path", r.URL.Path)
				rejectUnresolved(w, cfg)
				return
			}

			tenant, err := resolver.Resolve(r.Context(), subdomain)
			if err != nil {
				switch {
				case errors.Is(err, tenancy.ErrUnresolvedTenant), errors.Is(err, tenancy.ErrInactiveTenant):
					// unknown and inactive look the same to the client
					logger.Debug("tenant not resolved", "subdomain", subdomain, "method", method, "reason", err)
					if public {
						next.ServeHTTP(w, r)
						return
					}
					rejectUnresolved(w, cfg)
				default:
					logger.Error("tenant lookup failed", "subdomain", subdomain, "error", err)
					writeError(w, http.StatusServiceUnavailable, dto.CodeTenantLookup, "tenant lookup unavailable")
				}
				return
			}

			ctx, release, err := tenancy.Bind(r.Context(), tenant)
			if err != nil {
				logger.Error("binding tenant", "subdomain", subdomain, "error", err)
				writeError(w, http.StatusInternalServerError, dto.CodeInternal, "internal server error")
				return
			}
			defer release()

			Annotate(ctx, "tenant", tenant.Subdomain)
			Annotate(ctx, "tenant_method", method)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireTenant rejects requests that reached a tenant route unbound.
func RequireTenant(cfg config.TenancyConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := tenancy.Current(r.Context()); !ok {
				rejectUnresolved(w, cfg)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func rejectUnresolved(w http.ResponseWriter, cfg config.TenancyConfig) {
	hint := fmt.Sprintf("address the API through the host <subdomain>.%s, the %s header, or the ?%s=<subdomain> query parameter",
		cfg.BaseDomain, cfg.Header, cfg.QueryParam)
	if !cfg.AllowQueryParam {
		hint += " (query parameter disabled on this server)"
	}
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error: "organization not found or inactive",
		Code:  dto.CodeTenantNotResolved,
		Hint:  hint,
	})
}
