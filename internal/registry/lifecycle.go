package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agricoop/internal/audit"
	"github.com/hugh/agricoop/internal/database"
	"github.com/hugh/agricoop/internal/database/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// update loads the organization under a row lock, applies fn and saves it.
// The cache entry is dropped after commit.
func (s *Service) update(ctx context.Context, id uuid.UUID, fn func(org *models.Organization) error) (*models.Organization, error) {
	var org models.Organization
	var from models.OrganizationStatus

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&org, "id = ?", id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return database.ErrNotFound
			}
			return err
		}
		from = org.Status
		if err := fn(&org); err != nil {
			return err
		}
		return tx.Save(&org).Error
	})
	if err != nil {
		return nil, err
	}

	s.opts.Cache.Invalidate(ctx, org.Subdomain)
	if org.Status != from {
		s.publish(ctx, audit.ActionStatusChange, org.ID, "")
		s.opts.Logger.Info("organization status changed",
			"org_id", org.ID,
			"subdomain", org.Subdomain,
			"from", from,
			"to", org.Status,
		)
	}
	return &org, nil
}

func transitionTo(org *models.Organization, to models.OrganizationStatus) error {
	if !models.CanTransition(org.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, org.Status, to)
	}
	org.Status = to
	return nil
}

func applyPlan(org *models.Organization, plan models.Plan) error {
	limits, ok := models.LimitsFor(plan)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	org.Plan = plan
	org.Limits = limits
	return nil
}

// Activate confirms a paid plan: TRIAL -> ACTIVE. An empty plan keeps the
// current one, which must not be the trial plan.
func (s *Service) Activate(ctx context.Context, id uuid.UUID, plan models.Plan, subscriptionEnds *time.Time) (*models.Organization, error) {
	return s.update(ctx, id, func(org *models.Organization) error {
		if org.Status != models.StatusTrial {
			return fmt.Errorf("%w: activate from %s", ErrInvalidTransition, org.Status)
		}
		if plan == "" {
			plan = org.Plan
		}
		if plan == models.PlanTrial {
			return fmt.Errorf("%w: activation needs a paid plan", ErrUnknownPlan)
		}
		if err := applyPlan(org, plan); err != nil {
			return err
		}
		if err := transitionTo(org, models.StatusActive); err != nil {
			return err
		}
		org.TrialEndsAt = nil
		org.SubscriptionEndsAt = subscriptionEnds
		return nil
	})
}

// Suspend blocks every protected request for the organization. Data is kept.
func (s *Service) Suspend(ctx context.Context, id uuid.UUID, reason string) (*models.Organization, error) {
	return s.update(ctx, id, func(org *models.Organization) error {
		if err := transitionTo(org, models.StatusSuspended); err != nil {
			return err
		}
		org.SuspendedReason = reason
		return nil
	})
}

// Reactivate lifts a suspension.
func (s *Service) Reactivate(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	return s.update(ctx, id, func(org *models.Organization) error {
		if org.Status != models.StatusSuspended {
			return fmt.Errorf("%w: reactivate from %s", ErrInvalidTransition, org.Status)
		}
		if err := transitionTo(org, models.StatusActive); err != nil {
			return err
		}
		org.SuspendedReason = ""
		if org.Plan == models.PlanTrial {
			// a trial suspended on expiry comes back on the basic plan
			if err := applyPlan(org, models.PlanBasic); err != nil {
				return err
			}
			org.TrialEndsAt = nil
		}
		return nil
	})
}

// Cancel is terminal.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*models.Organization, error) {
	return s.update(ctx, id, func(org *models.Organization) error {
		if err := transitionTo(org, models.StatusCancelled); err != nil {
			return err
		}
		org.IsActive = false
		org.SuspendedReason = reason
		return nil
	})
}

// ChangePlan switches plan and resets limits to the plan defaults.
func (s *Service) ChangePlan(ctx context.Context, id uuid.UUID, plan models.Plan) (*models.Organization, error) {
	return s.update(ctx, id, func(org *models.Organization) error {
		if org.Status == models.StatusCancelled {
			return fmt.Errorf("%w: organization is cancelled", ErrInvalidTransition)
		}
		return applyPlan(org, plan)
	})
}

// UpdateLimits overrides the plan limits of one organization.
func (s *Service) UpdateLimits(ctx context.Context, id uuid.UUID, limits models.Limits) (*models.Organization, error) {
	if limits.MaxUsers <= 0 || limits.MaxRecords <= 0 || limits.MaxStorageMB <= 0 {
		return nil, ErrInvalidLimits
	}
	return s.update(ctx, id, func(org *models.Organization) error {
		if org.Status == models.StatusCancelled {
			return fmt.Errorf("%w: organization is cancelled", ErrInvalidTransition)
		}
		org.Limits = limits
		return nil
	})
}

// ExpireLapsed suspends trials and subscriptions whose end date has passed.
// It returns how many organizations were suspended.
func (s *Service) ExpireLapsed(ctx context.Context) (int, error) {
	now := s.now()

	type lapsed struct {
		ID     uuid.UUID
		Reason string
	}
	var due []lapsed

	var trials []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.Organization{}).
		Where("status = ? AND trial_ends_at IS NOT NULL AND trial_ends_at < ?", models.StatusTrial, now).
		Pluck("id", &trials).Error; err != nil {
		return 0, fmt.Errorf("finding lapsed trials: %w", err)
	}
	for _, id := range trials {
		due = append(due, lapsed{ID: id, Reason: "trial expired"})
	}

	var subs []uuid.UUID
	if err := s.db.WithContext(ctx).Model(&models.Organization{}).
		Where("status = ? AND subscription_ends_at IS NOT NULL AND subscription_ends_at < ?", models.StatusActive, now).
		Pluck("id", &subs).Error; err != nil {
		return 0, fmt.Errorf("finding lapsed subscriptions: %w", err)
	}
	for _, id := range subs {
		due = append(due, lapsed{ID: id, Reason: "subscription expired"})
	}

	suspended := 0
	for _, d := range due {
		if _, err := s.Suspend(ctx, d.ID, d.Reason); err != nil {
			if errors.Is(err, ErrInvalidTransition) {
				// changed status since the scan
				continue
			}
			return suspended, err
		}
		suspended++
	}
	return suspended, nil
}
