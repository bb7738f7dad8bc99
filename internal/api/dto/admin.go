package dto

import (
	"strings"
	"time"

	"github.com/hugh/agricoop/internal/api/validation"
	"github.com/hugh/agricoop/internal/database/models"
)

type ProvisionRequest struct {
	RegisterRequest
	Plan string `json:"plan,omitempty"`
}

func (r ProvisionRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Subdomain == "" {
		errors["subdomain"] = "Subdomain is required"
	}
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.Plan != "" {
		if _, ok := models.LimitsFor(models.Plan(r.Plan)); !ok {
			errors["plan"] = "Unknown plan"
		}
	}
	// the owner is optional for operator provisioning
	if r.OwnerEmail != "" && !validation.IsValidEmail(r.OwnerEmail) {
		errors["owner_email"] = "Invalid email format"
	}

	return errors
}

type ActivateRequest struct {
	Plan               string     `json:"plan,omitempty"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at,omitempty"`
}

type ReasonRequest struct {
	Reason string `json:"reason"`
}

func (r ReasonRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if strings.TrimSpace(r.Reason) == "" {
		errors["reason"] = "Reason is required"
	}
	return errors
}

type PlanRequest struct {
	Plan string `json:"plan"`
}

type LimitsRequest LimitsDTO

func (r LimitsRequest) Validate() map[string]string {
	errors := make(map[string]string)
	if r.MaxUsers <= 0 {
		errors["max_users"] = "Must be positive"
	}
	if r.MaxRecords <= 0 {
		errors["max_records"] = "Must be positive"
	}
	if r.MaxStorageMB <= 0 {
		errors["max_storage_mb"] = "Must be positive"
	}
	return errors
}

type MergeRequest struct {
	TargetID string `json:"target_id"`
}

type MergeResponse struct {
	Source  string           `json:"source"`
	Target  string           `json:"target"`
	Moved   map[string]int64 `json:"moved"`
	Members int              `json:"members"`
}

type DeleteResponse struct {
	Deleted string `json:"deleted"`
	Archive string `json:"archive"`
}
