package dto

import (
	"strings"
	"time"

	"github.com/hugh/agricoop/internal/api/validation"
	"github.com/hugh/agricoop/internal/database/models"
)

type OrganizationDTO struct {
	ID                 string     `json:"id"`
	Subdomain          string     `json:"subdomain"`
	Name               string     `json:"name"`
	ContactEmail       string     `json:"contact_email,omitempty"`
	ContactPhone       string     `json:"contact_phone,omitempty"`
	Plan               string     `json:"plan"`
	Status             string     `json:"status"`
	IsActive           bool       `json:"is_active"`
	Limits             LimitsDTO  `json:"limits"`
	Usage              *UsageDTO  `json:"usage,omitempty"`
	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at,omitempty"`
	SuspendedReason    string     `json:"suspended_reason,omitempty"`
	CreatedAt          string     `json:"created_at"`
}

type LimitsDTO struct {
	MaxUsers     int `json:"max_users"`
	MaxRecords   int `json:"max_records"`
	MaxStorageMB int `json:"max_storage_mb"`
}

type UsageDTO struct {
	Users     int `json:"users"`
	Records   int `json:"records"`
	StorageMB int `json:"storage_mb"`
}

func OrganizationFromModel(o *models.Organization) OrganizationDTO {
	out := OrganizationDTO{
		ID:                 o.ID.String(),
		Subdomain:          o.Subdomain,
		Name:               o.Name,
		ContactEmail:       o.ContactEmail,
		ContactPhone:       o.ContactPhone,
		Plan:               string(o.Plan),
		Status:             string(o.Status),
		IsActive:           o.IsActive,
		Limits:             LimitsDTO(o.Limits),
		TrialEndsAt:        o.TrialEndsAt,
		SubscriptionEndsAt: o.SubscriptionEndsAt,
		SuspendedReason:    o.SuspendedReason,
		CreatedAt:          o.CreatedAt.Format(time.RFC3339),
	}
	if o.Usage != nil {
		out.Usage = &UsageDTO{Users: o.Usage.Users, Records: o.Usage.Records, StorageMB: o.Usage.StorageMB}
	}
	return out
}

type RegisterResponse struct {
	Organization OrganizationDTO `json:"organization"`
	Owner        *UserDTO        `json:"owner,omitempty"`
}

type MemberDTO struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
	Role     string `json:"role"`
	IsActive bool   `json:"is_active"`
	JoinedAt string `json:"joined_at"`
}

func MemberFromModel(m *models.Membership) MemberDTO {
	out := MemberDTO{
		UserID:   m.UserID.String(),
		Role:     string(m.Role),
		IsActive: m.IsActive,
		JoinedAt: m.JoinedAt.Format(time.RFC3339),
	}
	if m.User != nil {
		out.Email = m.User.Email
		out.Name = m.User.Name
	}
	return out
}

type AddMemberRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name,omitempty"`
	Password string `json:"password,omitempty"`
	Role     string `json:"role,omitempty"`
}

func (r AddMemberRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if !validation.IsValidEmail(strings.TrimSpace(r.Email)) {
		errors["email"] = "A valid email is required"
	}
	if r.Role != "" && !models.Role(strings.ToUpper(r.Role)).Valid() {
		errors["role"] = "Role must be OWNER, ADMIN or MEMBER"
	}
	if r.Password != "" {
		if ok, msg := validation.IsValidPassword(r.Password); !ok {
			errors["password"] = msg
		}
	}

	return errors
}
