// Package tenancy carries the organization a unit of work is acting for.
//
// The binding lives in the request's context.Context, so it is scoped to the
// goroutine tree serving that request and never shared between requests.
package tenancy

import (
	"context"
	"sync/atomic"

	"github.com/google/uuid"
)

// Tenant is the snapshot of an organization taken at resolution time.
type Tenant struct {
	ID        uuid.UUID
	Subdomain string
	Name      string
	Plan      string
	Status    string
}

type contextKey struct{}

type binding struct {
	tenant   Tenant
	released atomic.Bool
}

// Bind publishes tenant into a child of ctx. The returned release func clears
// the binding; it is idempotent and must be deferred by the caller. After
// release, Current reports no tenant even for goroutines that still hold the
// returned context.
func Bind(ctx context.Context, tenant Tenant) (context.Context, func(), error) {
	if tenant.ID == uuid.Nil {
		return ctx, func() {}, ErrUnresolvedTenant
	}
	if _, ok := Current(ctx); ok {
		return ctx, func() {}, ErrAlreadyBound
	}

	b := &binding{tenant: tenant}
	return context.WithValue(ctx, contextKey{}, b), func() { b.released.Store(true) }, nil
}

// Current returns the bound tenant, or false when none is bound.
func Current(ctx context.Context) (Tenant, bool) {
	if ctx == nil {
		return Tenant{}, false
	}
	b, ok := ctx.Value(contextKey{}).(*binding)
	if !ok || b.released.Load() {
		return Tenant{}, false
	}
	return b.tenant, true
}

// CurrentID returns the bound organization id or uuid.Nil.
func CurrentID(ctx context.Context) uuid.UUID {
	t, ok := Current(ctx)
	if !ok {
		return uuid.Nil
	}
	return t.ID
}

// MustCurrent is for code that only runs behind the resolver.
func MustCurrent(ctx context.Context) (Tenant, error) {
	t, ok := Current(ctx)
	if !ok {
		return Tenant{}, ErrUnresolvedTenant
	}
	return t, nil
}
