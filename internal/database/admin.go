package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agricoop/internal/audit"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/tenancy"
	"gorm.io/gorm"
)

// ErrNoGrant is returned when unscoped access is attempted without a grant.
var ErrNoGrant = errors.New("unscoped access requires an admin grant")

// AdminRepository is the unscoped escape hatch. It ignores the tenant bound
// to the context and can only be built from a tenancy.AdminGrant, so every
// use is traceable to GrantAdmin.
type AdminRepository[T any, PT interface {
	*T
	models.TenantOwned
}] struct {
	db     *gorm.DB
	events audit.Publisher
	grant  tenancy.AdminGrant
	table  string
}

func NewAdminRepository[T any, PT interface {
	*T
	models.TenantOwned
}](db *gorm.DB, events audit.Publisher, grant tenancy.AdminGrant) (*AdminRepository[T, PT], error) {
	if !grant.Valid() {
		return nil, ErrNoGrant
	}
	if events == nil {
		events = audit.Nop{}
	}
	return &AdminRepository[T, PT]{
		db:     db,
		events: events,
		grant:  grant,
		table:  PT(new(T)).TableName(),
	}, nil
}

// Get loads a row of any organization.
func (r *AdminRepository[T, PT]) Get(ctx context.Context, id uuid.UUID) (PT, error) {
	e := PT(new(T))
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(e).Error; err != nil {
		return nil, translate(err)
	}
	return e, nil
}

// List returns rows of orgID, or of every organization when orgID is uuid.Nil.
func (r *AdminRepository[T, PT]) List(ctx context.Context, orgID uuid.UUID, opts ListOptions) ([]T, int64, error) {
	q := r.db.WithContext(ctx).Model(PT(new(T)))
	if orgID != uuid.Nil {
		q = q.Where("organization_id = ?", orgID)
	}

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

// Create persists e for an explicit owner, for provisioning scripts.
func (r *AdminRepository[T, PT]) Create(ctx context.Context, owner tenancy.Owner, e PT) error {
	if owner.IsZero() {
		return tenancy.ErrOrphanWrite
	}
	if err := e.StampOwner(owner.ID()); err != nil {
		return err
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := reserveRecord(tx, owner.ID()); err != nil {
			return err
		}
		return tx.Create(e).Error
	})
	if err != nil {
		return translate(err)
	}
	r.events.Publish(ctx, audit.Event{
		Action:         audit.ActionCreated,
		Entity:         r.table,
		EntityID:       e.PrimaryKey(),
		OrganizationID: owner.ID(),
		Actor:          r.grant.Actor(),
		OccurredAt:     time.Now().UTC(),
	})
	return nil
}

// ReassignTenantRows moves every tenant-scoped row from one organization to
// another inside tx. A business key present in both organizations aborts
// with tenancy.ErrDuplicateKey.
func ReassignTenantRows(tx *gorm.DB, grant tenancy.AdminGrant, from, to uuid.UUID) (map[string]int64, error) {
	if !grant.Valid() {
		return nil, ErrNoGrant
	}
	if from == to {
		return nil, fmt.Errorf("reassign: source and target are the same organization")
	}
	moved := make(map[string]int64)
	for _, m := range TenantModels() {
		res := tx.Table(m.TableName()).
			Where("organization_id = ?", from).
			Updates(map[string]any{"organization_id": to, "updated_at": time.Now().UTC()})
		if res.Error != nil {
			return nil, fmt.Errorf("reassigning %s: %w", m.TableName(), translate(res.Error))
		}
		moved[m.TableName()] = res.RowsAffected
	}
	return moved, nil
}

// DeleteTenantRows hard-deletes every tenant-owned row of orgID inside tx.
func DeleteTenantRows(tx *gorm.DB, grant tenancy.AdminGrant, orgID uuid.UUID) (map[string]int64, error) {
	if !grant.Valid() {
		return nil, ErrNoGrant
	}
	deleted := make(map[string]int64)
	tables := []string{(models.AuditLog{}).TableName()}
	for _, m := range TenantModels() {
		tables = append(tables, m.TableName())
	}
	for _, table := range tables {
		res := tx.Exec(fmt.Sprintf("DELETE FROM %s WHERE organization_id = ?", table), orgID)
		if res.Error != nil {
			return nil, fmt.Errorf("deleting %s: %w", table, res.Error)
		}
		deleted[table] = res.RowsAffected
	}
	return deleted, nil
}

// SnapshotTenantRows reads every tenant-owned row of orgID, keyed by table.
func SnapshotTenantRows(ctx context.Context, db *gorm.DB, grant tenancy.AdminGrant, orgID uuid.UUID) (map[string][]map[string]any, error) {
	if !grant.Valid() {
		return nil, ErrNoGrant
	}
	out := make(map[string][]map[string]any)
	for _, m := range TenantModels() {
		var rows []map[string]any
		if err := db.WithContext(ctx).Table(m.TableName()).Where("organization_id = ?", orgID).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("reading %s: %w", m.TableName(), err)
		}
		out[m.TableName()] = rows
	}
	return out, nil
}
