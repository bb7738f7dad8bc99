package tenancy

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Owner is the organization a new tenant-scoped entity belongs to. The zero
// value is unusable; obtain one from OwnerFrom or, on administrative paths,
// from AdminGrant.OwnerOf.
type Owner struct {
	id uuid.UUID
}

// ID returns the owning organization id.
func (o Owner) ID() uuid.UUID { return o.id }

// IsZero reports whether o was never assigned.
func (o Owner) IsZero() bool { return o.id == uuid.Nil }

// OwnerFrom returns the owner bound to ctx, or ErrOrphanWrite.
func OwnerFrom(ctx context.Context) (Owner, error) {
	t, ok := Current(ctx)
	if !ok {
		return Owner{}, ErrOrphanWrite
	}
	return Owner{id: t.ID}, nil
}

// AdminGrant authorizes unscoped data access. Every grant names an actor and
// a reason, and is logged when issued; grep for GrantAdmin to find every
// cross-tenant code path.
//
// The fields are unexported so a grant cannot be assembled as a literal
// outside this package.
type AdminGrant struct {
	actor    string
	reason   string
	issuedAt time.Time
}

// Actor names who holds the grant.
func (g AdminGrant) Actor() string { return g.actor }

// Reason is the stated purpose of the grant.
func (g AdminGrant) Reason() string { return g.reason }

// IssuedAt is when GrantAdmin issued the grant.
func (g AdminGrant) IssuedAt() time.Time { return g.issuedAt }

// GrantAdmin issues a grant for an administrative operation.
func GrantAdmin(logger *slog.Logger, actor, reason string) (AdminGrant, error) {
	actor = strings.TrimSpace(actor)
	reason = strings.TrimSpace(reason)
	if actor == "" || reason == "" {
		return AdminGrant{}, ErrAdminGrantIncomplete
	}
	g := AdminGrant{actor: actor, reason: reason, issuedAt: time.Now().UTC()}
	if logger != nil {
		logger.Warn("admin grant issued", "actor", actor, "reason", reason)
	}
	return g, nil
}

// Valid reports whether g came from GrantAdmin.
func (g AdminGrant) Valid() bool {
	return g.actor != "" && g.reason != "" && !g.issuedAt.IsZero()
}

// OwnerOf returns an explicit owner for administrative provisioning and merges.
func (g AdminGrant) OwnerOf(orgID uuid.UUID) (Owner, error) {
	if !g.Valid() {
		return Owner{}, ErrAdminGrantIncomplete
	}
	if orgID == uuid.Nil {
		return Owner{}, ErrOrphanWrite
	}
	return Owner{id: orgID}, nil
}
