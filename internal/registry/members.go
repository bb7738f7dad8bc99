package registry

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hugh/agricoop/internal/database"
	"github.com/hugh/agricoop/internal/database/models"
	"gorm.io/gorm"
)

type AddMemberInput struct {
	Email    string
	Name     string
	Password string // only used when the account does not exist yet
	Role     models.Role
}

// AddMember grants an account access to the organization, creating the
// account if needed. The organization's max_users is enforced.
func (s *Service) AddMember(ctx context.Context, orgID uuid.UUID, in AddMemberInput) (*models.Membership, error) {
	if in.Role == "" {
		in.Role = models.RoleMember
	}
	if !in.Role.Valid() {
		return nil, ErrInvalidRole
	}

	var membership models.Membership
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := reserveUser(tx, orgID); err != nil {
			return err
		}
		user, err := s.findOrCreateUser(tx, &newOwner{email: in.Email, name: in.Name, password: in.Password})
		if err != nil {
			return err
		}
		membership = models.Membership{
			OrganizationID: orgID,
			UserID:         user.ID,
			Role:           in.Role,
			IsActive:       true,
			JoinedAt:       s.now(),
		}
		if err := tx.Create(&membership).Error; err != nil {
			if database.IsDuplicate(err) {
				return ErrAlreadyMember
			}
			return fmt.Errorf("creating membership: %w", err)
		}
		membership.User = user
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.opts.Logger.Info("member added", "org_id", orgID, "user_id", membership.UserID, "role", membership.Role)
	return &membership, nil
}

// reserveUser takes one seat from max_users or fails with ErrUserLimitReached.
// A missing organization also fails here.
func reserveUser(tx *gorm.DB, orgID uuid.UUID) error {
	limit := tx.Session(&gorm.Session{NewDB: true}).
		Model(&models.Organization{}).
		Select("max_users").
		Where("id = ?", orgID)

	res := tx.Model(&models.UsageCounter{}).
		Where("organization_id = ? AND users < (?)", orgID, limit).
		Updates(map[string]any{"users": gorm.Expr("users + 1")})
	if res.Error != nil {
		return fmt.Errorf("reserving user seat: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := tx.Model(&models.Organization{}).Where("id = ?", orgID).Count(&n).Error; err != nil {
			return err
		}
		if n == 0 {
			return database.ErrNotFound
		}
		return ErrUserLimitReached
	}
	return nil
}

// Memberships lists the members of an organization with their accounts.
func (s *Service) Memberships(ctx context.Context, orgID uuid.UUID) ([]models.Membership, error) {
	var memberships []models.Membership
	if err := s.db.WithContext(ctx).
		Preload("User").
		Where("organization_id = ?", orgID).
		Order("joined_at ASC").
		Find(&memberships).Error; err != nil {
		return nil, err
	}
	return memberships, nil
}

// Membership returns the active membership of userID in orgID. Memberships in
// other organizations are irrelevant.
func (s *Service) Membership(ctx context.Context, orgID, userID uuid.UUID) (*models.Membership, error) {
	var m models.Membership
	err := s.db.WithContext(ctx).
		Preload("User").
		Where("organization_id = ? AND user_id = ? AND is_active = ?", orgID, userID, true).
		First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	if m.User == nil || !m.User.IsActive {
		return nil, database.ErrNotFound
	}
	return &m, nil
}
