package tenancy

import "errors"

var (
	// ErrUnresolvedTenant means no valid organization was determined.
	ErrUnresolvedTenant = errors.New("tenant not resolved")
	// ErrInactiveTenant means the organization exists but may not be served.
	ErrInactiveTenant = errors.New("tenant inactive")
	// ErrOrphanWrite is a scoped create with neither a bound nor an explicit organization.
	ErrOrphanWrite = errors.New("tenant-scoped write without organization")
	// ErrCrossTenant is an operation aimed at a row owned by another organization.
	// Callers outside the data layer must see it as a plain not-found.
	ErrCrossTenant = errors.New("cross-tenant access denied")
	// ErrDuplicateKey is a business-key collision inside one organization.
	ErrDuplicateKey = errors.New("already exists")
	// ErrAlreadyBound is returned when a context is bound twice.
	ErrAlreadyBound = errors.New("tenant already bound for this request")
)

// ErrAdminGrantIncomplete rejects grants without an actor or reason.
var ErrAdminGrantIncomplete = errors.New("admin grant requires actor and reason")
