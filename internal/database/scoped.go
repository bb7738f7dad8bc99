package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agricoop/internal/audit"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/tenancy"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Scope narrows a list query (filters, ordering).
type Scope = func(*gorm.DB) *gorm.DB

// ListOptions controls pagination of List.
type ListOptions struct {
	Offset int
	Limit  int
	Order  string
}

// ScopedRepository is the default accessor for tenant-scoped entities. Every
// statement it issues is filtered by the organization bound to the context;
// with nothing bound, every call fails.
type ScopedRepository[T any, PT interface {
	*T
	models.TenantOwned
}] struct {
	db     *gorm.DB
	events audit.Publisher
	table  string
}

func NewScopedRepository[T any, PT interface {
	*T
	models.TenantOwned
}](db *gorm.DB, events audit.Publisher) *ScopedRepository[T, PT] {
	if events == nil {
		events = audit.Nop{}
	}
	return &ScopedRepository[T, PT]{
		db:     db,
		events: events,
		table:  PT(new(T)).TableName(),
	}
}

func (r *ScopedRepository[T, PT]) orgColumn() clause.Column {
	return clause.Column{Table: r.table, Name: "organization_id"}
}

// scoped returns a session already restricted to the bound organization.
func (r *ScopedRepository[T, PT]) scoped(ctx context.Context) (*gorm.DB, uuid.UUID, error) {
	orgID := tenancy.CurrentID(ctx)
	if orgID == uuid.Nil {
		return nil, uuid.Nil, tenancy.ErrUnresolvedTenant
	}
	return r.db.WithContext(ctx).Where(clause.Eq{Column: r.orgColumn(), Value: orgID}), orgID, nil
}

// Create persists e for the bound organization. An entity without an owner
// is stamped with it; an entity owned by another organization is refused.
func (r *ScopedRepository[T, PT]) Create(ctx context.Context, e PT) error {
	orgID := tenancy.CurrentID(ctx)
	switch {
	case orgID == uuid.Nil && e.Owner() == uuid.Nil:
		return tenancy.ErrOrphanWrite
	case orgID == uuid.Nil:
		return tenancy.ErrUnresolvedTenant
	case e.Owner() != uuid.Nil && e.Owner() != orgID:
		return tenancy.ErrCrossTenant
	}
	if err := e.StampOwner(orgID); err != nil {
		return err
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := reserveRecord(tx, orgID); err != nil {
			return err
		}
		return tx.Create(e).Error
	})
	if err != nil {
		return translate(err)
	}

	r.emit(ctx, audit.ActionCreated, e.PrimaryKey(), orgID)
	return nil
}

// Get loads one row by primary key. Rows of other organizations are
// reported as ErrNotFound.
func (r *ScopedRepository[T, PT]) Get(ctx context.Context, id uuid.UUID) (PT, error) {
	q, _, err := r.scoped(ctx)
	if err != nil {
		return nil, err
	}
	e := PT(new(T))
	if err := q.Where(clause.Eq{Column: clause.Column{Table: r.table, Name: "id"}, Value: id}).First(e).Error; err != nil {
		return nil, translate(err)
	}
	return e, nil
}

// FindBy loads the first row whose column equals value, typically a
// business key.
func (r *ScopedRepository[T, PT]) FindBy(ctx context.Context, column string, value any) (PT, error) {
	q, _, err := r.scoped(ctx)
	if err != nil {
		return nil, err
	}
	e := PT(new(T))
	if err := q.Where(clause.Eq{Column: clause.Column{Table: r.table, Name: column}, Value: value}).First(e).Error; err != nil {
		return nil, translate(err)
	}
	return e, nil
}

// List returns one page of rows plus the total matching count.
func (r *ScopedRepository[T, PT]) List(ctx context.Context, opts ListOptions, scopes ...Scope) ([]T, int64, error) {
	q, _, err := r.scoped(ctx)
	if err != nil {
		return nil, 0, err
	}
	q = q.Model(PT(new(T))).Scopes(scopes...)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := opts.Order
	if order == "" {
		order = "created_at DESC"
	}
	q = q.Order(order)
	if opts.Limit > 0 {
		q = q.Offset(opts.Offset).Limit(opts.Limit)
	}

	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// Count returns the number of rows the bound organization owns.
func (r *ScopedRepository[T, PT]) Count(ctx context.Context, scopes ...Scope) (int64, error) {
	q, _, err := r.scoped(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	err = q.Model(PT(new(T))).Scopes(scopes...).Count(&n).Error
	return n, err
}

// Update writes every column of e except its identity and owner.
func (r *ScopedRepository[T, PT]) Update(ctx context.Context, e PT) error {
	q, orgID, err := r.scoped(ctx)
	if err != nil {
		return err
	}
	if e.Owner() != uuid.Nil && e.Owner() != orgID {
		return ErrNotFound
	}
	if err := e.StampOwner(orgID); err != nil {
		return err
	}

	res := q.Model(e).
		Select("*").
		Omit("id", "organization_id", "created_at").
		Updates(e)
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}

	r.emit(ctx, audit.ActionUpdated, e.PrimaryKey(), orgID)
	return nil
}

// Delete removes one row of the bound organization.
func (r *ScopedRepository[T, PT]) Delete(ctx context.Context, id uuid.UUID) error {
	_, orgID, err := r.scoped(ctx)
	if err != nil {
		return err
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where(clause.Eq{Column: r.orgColumn(), Value: orgID}).
			Where(clause.Eq{Column: clause.Column{Table: r.table, Name: "id"}, Value: id}).
			Delete(PT(new(T)))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return releaseRecords(tx, orgID, res.RowsAffected)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return translate(err)
	}

	r.emit(ctx, audit.ActionDeleted, id, orgID)
	return nil
}

func (r *ScopedRepository[T, PT]) emit(ctx context.Context, action audit.Action, id, orgID uuid.UUID) {
	r.events.Publish(ctx, audit.Event{
		Action:         action,
		Entity:         r.table,
		EntityID:       id,
		OrganizationID: orgID,
		Actor:          tenancy.ActorFrom(ctx),
		OccurredAt:     time.Now().UTC(),
	})
}
