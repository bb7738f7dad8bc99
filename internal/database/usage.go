package database

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/agricoop/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrQuotaExceeded is returned when a write would pass an organization limit.
var ErrQuotaExceeded = errors.New("organization usage limit reached")

// reserveRecord takes one record from the organization's max_records budget.
func reserveRecord(tx *gorm.DB, orgID uuid.UUID) error {
	limit := tx.Session(&gorm.Session{NewDB: true}).
		Model(&models.Organization{}).
		Select("max_records").
		Where("id = ?", orgID)

	res := tx.Model(&models.UsageCounter{}).
		Where("organization_id = ? AND records < (?)", orgID, limit).
		Updates(map[string]any{"records": gorm.Expr("records + 1")})
	if res.Error != nil {
		return fmt.Errorf("reserving record quota: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrQuotaExceeded
	}
	return nil
}

func releaseRecords(tx *gorm.DB, orgID uuid.UUID, n int64) error {
	if n <= 0 {
		return nil
	}
	return tx.Model(&models.UsageCounter{}).
		Where("organization_id = ?", orgID).
		Updates(map[string]any{"records": gorm.Expr("CASE WHEN records >= ? THEN records - ? ELSE 0 END", n, n)}).
		Error
}

// RecountRecords recomputes the records counter from the tenant tables.
func RecountRecords(tx *gorm.DB, orgID uuid.UUID) (int64, error) {
	var total int64
	for _, m := range TenantModels() {
		var n int64
		if err := tx.Table(m.TableName()).Where("organization_id = ?", orgID).Count(&n).Error; err != nil {
			return 0, fmt.Errorf("counting %s: %w", m.TableName(), err)
		}
		total += n
	}
	err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"records", "updated_at"}),
	}).Create(&models.UsageCounter{OrganizationID: orgID, Records: int(total)}).Error
	if err != nil {
		return 0, fmt.Errorf("saving usage counter: %w", err)
	}
	return total, nil
}
