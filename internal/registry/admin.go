package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/agricoop/internal/archive"
	"github.com/hugh/agricoop/internal/audit"
	"github.com/hugh/agricoop/internal/database"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/dns"
	"github.com/hugh/agricoop/internal/tenancy"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ProvisionInput struct {
	Subdomain    string
	Name         string
	ContactEmail string
	ContactPhone string
	Plan         models.Plan

	// optional owner; an existing account is attached without a password check
	OwnerEmail    string
	OwnerName     string
	OwnerPassword string
}

// Provision creates an organization on behalf of an operator. Paid plans
// start ACTIVE, the trial plan starts TRIAL.
func (s *Service) Provision(ctx context.Context, grant tenancy.AdminGrant, in ProvisionInput) (*Registration, error) {
	if !grant.Valid() {
		return nil, database.ErrNoGrant
	}
	subdomain, err := s.checkSubdomain(in.Subdomain)
	if err != nil {
		return nil, err
	}
	if in.Plan == "" {
		in.Plan = models.PlanTrial
	}

	org := &models.Organization{
		Subdomain:    subdomain,
		Name:         strings.TrimSpace(in.Name),
		ContactEmail: in.ContactEmail,
		ContactPhone: in.ContactPhone,
		Status:       models.StatusActive,
		IsActive:     true,
	}
	if err := applyPlan(org, in.Plan); err != nil {
		return nil, err
	}
	if in.Plan == models.PlanTrial {
		trialEnds := s.now().Add(s.opts.TrialPeriod)
		org.Status = models.StatusTrial
		org.TrialEndsAt = &trialEnds
	}

	var owner *newOwner
	if in.OwnerEmail != "" {
		owner = &newOwner{email: in.OwnerEmail, name: in.OwnerName, password: in.OwnerPassword}
	}

	reg, err := s.create(ctx, org, owner)
	if err != nil {
		return nil, err
	}
	s.afterCreate(ctx, org, grant.Actor())
	return reg, nil
}

type MergeResult struct {
	Moved   map[string]int64 `json:"moved"`
	Members int              `json:"members"`
}

// Merge moves every tenant-scoped row and membership of source into target,
// then cancels source. A business key present in both aborts the merge and
// nothing changes.
func (s *Service) Merge(ctx context.Context, grant tenancy.AdminGrant, sourceID, targetID uuid.UUID) (*MergeResult, error) {
	if !grant.Valid() {
		return nil, database.ErrNoGrant
	}
	if sourceID == targetID {
		return nil, fmt.Errorf("%w: cannot merge an organization into itself", ErrInvalidTransition)
	}

	var source, target models.Organization
	result := &MergeResult{}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, o := range []struct {
			id  uuid.UUID
			dst *models.Organization
		}{{sourceID, &source}, {targetID, &target}} {
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(o.dst, "id = ?", o.id).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return database.ErrNotFound
				}
				return err
			}
			if o.dst.Status == models.StatusCancelled {
				return fmt.Errorf("%w: %s is cancelled", ErrInvalidTransition, o.dst.Subdomain)
			}
		}

		moved, err := database.ReassignTenantRows(tx, grant, sourceID, targetID)
		if err != nil {
			return err
		}
		result.Moved = moved

		members, err := moveMemberships(tx, sourceID, targetID)
		if err != nil {
			return err
		}
		result.Members = members

		if _, err := database.RecountRecords(tx, targetID); err != nil {
			return err
		}
		if err := recountUsers(tx, targetID); err != nil {
			return err
		}
		if err := tx.Model(&models.UsageCounter{}).
			Where("organization_id = ?", sourceID).
			Updates(map[string]any{"records": 0, "users": 0}).Error; err != nil {
			return err
		}

		source.Status = models.StatusCancelled
		source.IsActive = false
		source.SuspendedReason = "merged into " + target.Subdomain
		return tx.Save(&source).Error
	})
	if err != nil {
		return nil, err
	}

	s.opts.Cache.Invalidate(ctx, source.Subdomain)
	s.opts.Cache.Invalidate(ctx, target.Subdomain)
	s.publish(ctx, audit.ActionReassigned, targetID, grant.Actor())
	s.publish(ctx, audit.ActionStatusChange, sourceID, grant.Actor())

	s.opts.Logger.Warn("organizations merged",
		"source", source.Subdomain,
		"target", target.Subdomain,
		"actor", grant.Actor(),
		"moved", result.Moved,
		"members", result.Members,
	)
	return result, nil
}

// moveMemberships copies source memberships the target does not already have,
// then drops the source memberships.
func moveMemberships(tx *gorm.DB, sourceID, targetID uuid.UUID) (int, error) {
	var memberships []models.Membership
	if err := tx.Where("organization_id = ?", sourceID).Find(&memberships).Error; err != nil {
		return 0, err
	}

	moved := 0
	for _, m := range memberships {
		var n int64
		if err := tx.Model(&models.Membership{}).
			Where("organization_id = ? AND user_id = ?", targetID, m.UserID).
			Count(&n).Error; err != nil {
			return 0, err
		}
		if n > 0 {
			continue
		}
		joined := m
		joined.OrganizationID = targetID
		if joined.Role == models.RoleOwner {
			joined.Role = models.RoleAdmin
		}
		if err := tx.Create(&joined).Error; err != nil {
			return 0, fmt.Errorf("moving membership: %w", err)
		}
		moved++
	}

	if err := tx.Where("organization_id = ?", sourceID).Delete(&models.Membership{}).Error; err != nil {
		return 0, err
	}
	return moved, nil
}

func recountUsers(tx *gorm.DB, orgID uuid.UUID) error {
	var n int64
	if err := tx.Model(&models.Membership{}).
		Where("organization_id = ? AND is_active = ?", orgID, true).
		Count(&n).Error; err != nil {
		return err
	}
	return tx.Model(&models.UsageCounter{}).
		Where("organization_id = ?", orgID).
		Update("users", n).Error
}

type snapshot struct {
	Organization models.Organization         `json:"organization"`
	Memberships  []models.Membership         `json:"memberships"`
	Usage        *models.UsageCounter        `json:"usage,omitempty"`
	Rows         map[string][]map[string]any `json:"rows"`
}

// HardDelete archives a cancelled organization, sealed with age, and then
// removes it with everything it owns. It returns the archive location.
func (s *Service) HardDelete(ctx context.Context, grant tenancy.AdminGrant, id uuid.UUID) (string, error) {
	if !grant.Valid() {
		return "", database.ErrNoGrant
	}
	if err := s.archiveReady(); err != nil {
		return "", err
	}

	org, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if org.Status != models.StatusCancelled {
		return "", ErrNotCancelled
	}

	snap := snapshot{Organization: *org, Usage: org.Usage}
	if err := s.db.WithContext(ctx).Where("organization_id = ?", id).Find(&snap.Memberships).Error; err != nil {
		return "", err
	}
	if snap.Rows, err = database.SnapshotTenantRows(ctx, s.db, grant, id); err != nil {
		return "", err
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return "", fmt.Errorf("encoding snapshot: %w", err)
	}
	sealed, err := s.opts.Sealer.Seal(data)
	if err != nil {
		return "", fmt.Errorf("sealing snapshot: %w", err)
	}
	location, err := s.opts.Archiver.Put(ctx, archive.Key(s.opts.ArchivePrefix, org.ID, org.Subdomain, s.now()), sealed)
	if err != nil {
		return "", fmt.Errorf("archiving %s: %w", org.Subdomain, err)
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := database.DeleteTenantRows(tx, grant, id); err != nil {
			return err
		}
		if err := tx.Where("organization_id = ?", id).Delete(&models.Membership{}).Error; err != nil {
			return err
		}
		if err := tx.Where("organization_id = ?", id).Delete(&models.UsageCounter{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&models.Organization{}, "id = ?", id).Error
	})
	if err != nil {
		return "", fmt.Errorf("deleting %s: %w", org.Subdomain, err)
	}

	s.opts.Cache.Invalidate(ctx, org.Subdomain)
	s.enqueue(ctx, org, dns.NewDeprovisionTask)
	s.opts.Logger.Warn("organization hard-deleted",
		"org_id", org.ID,
		"subdomain", org.Subdomain,
		"actor", grant.Actor(),
		"reason", grant.Reason(),
		"archive", location,
	)
	return location, nil
}

// archiveReady refuses a hard delete whose snapshot could never be read back:
// no archive store, or a sealing key that dies with the process.
func (s *Service) archiveReady() error {
	if _, discard := s.opts.Archiver.(archive.Discard); discard {
		return fmt.Errorf("%w: no archive store configured", ErrArchiveUnavailable)
	}
	if s.opts.Sealer == nil || s.opts.Sealer.Ephemeral() {
		return fmt.Errorf("%w: no persistent encryption key", ErrArchiveUnavailable)
	}
	return nil
}
