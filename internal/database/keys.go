package database

import (
	"fmt"
	"slices"
	"strings"

	"github.com/hugh/agricoop/internal/database/models"
	"gorm.io/gorm"
)

// BusinessKey declares a natural key of a tenant-scoped entity. The key is
// unique only together with organization_id.
type BusinessKey struct {
	Model   models.TenantOwned
	Columns []string
}

func (k BusinessKey) Table() string { return k.Model.TableName() }

func (k BusinessKey) IndexName() string {
	return fmt.Sprintf("uidx_%s_org_%s", k.Table(), strings.Join(k.Columns, "_"))
}

// TenantKeys is the per-entity checklist of business keys. Every
// tenant-scoped entity with a natural key must appear here; VerifyTenantKeys
// refuses to start on a schema that still enforces any of them globally.
var TenantKeys = []BusinessKey{
	{Model: &models.Partner{}, Columns: []string{"national_id"}},
	{Model: &models.Product{}, Columns: []string{"code"}},
}

// TenantModels lists every entity embedding models.TenantScoped.
func TenantModels() []models.TenantOwned {
	return []models.TenantOwned{
		&models.Partner{},
		&models.Product{},
	}
}

// EnsureTenantKeys creates the composite (organization_id, key) unique indexes.
func EnsureTenantKeys(db *gorm.DB) error {
	for _, k := range TenantKeys {
		stmt := fmt.Sprintf(
			"CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (organization_id, %s)",
			k.IndexName(), k.Table(), strings.Join(k.Columns, ", "),
		)
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("creating %s: %w", k.IndexName(), err)
		}
	}
	return nil
}

// KeyViolation describes a business key that is not tenant-scoped.
type KeyViolation struct {
	Table  string
	Index  string
	Reason string
}

func (v KeyViolation) String() string {
	return fmt.Sprintf("%s.%s: %s", v.Table, v.Index, v.Reason)
}

// VerifyTenantKeys inspects the live schema: each checklisted key must have
// its composite index, and no unique index may cover key columns without
// organization_id.
func VerifyTenantKeys(db *gorm.DB) ([]KeyViolation, error) {
	var violations []KeyViolation
	for _, k := range TenantKeys {
		indexes, err := db.Migrator().GetIndexes(k.Model)
		if err != nil {
			return nil, fmt.Errorf("reading indexes of %s: %w", k.Table(), err)
		}

		found := false
		for _, idx := range indexes {
			unique, ok := idx.Unique()
			if !ok || !unique {
				continue
			}
			if pk, ok := idx.PrimaryKey(); ok && pk {
				continue
			}
			cols := idx.Columns()
			if !overlaps(cols, k.Columns) {
				continue
			}
			if !slices.Contains(cols, "organization_id") {
				violations = append(violations, KeyViolation{
					Table:  k.Table(),
					Index:  idx.Name(),
					Reason: "unique across all organizations",
				})
				continue
			}
			if idx.Name() == k.IndexName() {
				found = true
			}
		}
		if !found {
			violations = append(violations, KeyViolation{
				Table:  k.Table(),
				Index:  k.IndexName(),
				Reason: "composite index missing",
			})
		}
	}
	return violations, nil
}

func overlaps(a, b []string) bool {
	for _, x := range a {
		if slices.Contains(b, x) {
			return true
		}
	}
	return false
}
