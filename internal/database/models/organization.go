package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/hugh/agricoop/internal/tenancy"
)

type OrganizationStatus string

const (
	StatusTrial     OrganizationStatus = "TRIAL"
	StatusActive    OrganizationStatus = "ACTIVE"
	StatusSuspended OrganizationStatus = "SUSPENDED"
	StatusCancelled OrganizationStatus = "CANCELLED"
)

type Plan string

const (
	PlanTrial      Plan = "trial"
	PlanBasic      Plan = "basic"
	PlanPro        Plan = "pro"
	PlanEnterprise Plan = "enterprise"
)

// Limits are the usage ceilings of an organization.
type Limits struct {
	MaxUsers     int `gorm:"default:5" json:"max_users"`
	MaxRecords   int `gorm:"default:1000" json:"max_records"`
	MaxStorageMB int `gorm:"default:512" json:"max_storage_mb"`
}

var planLimits = map[Plan]Limits{
	PlanTrial:      {MaxUsers: 3, MaxRecords: 500, MaxStorageMB: 256},
	PlanBasic:      {MaxUsers: 10, MaxRecords: 10000, MaxStorageMB: 2048},
	PlanPro:        {MaxUsers: 50, MaxRecords: 100000, MaxStorageMB: 20480},
	PlanEnterprise: {MaxUsers: 500, MaxRecords: 1000000, MaxStorageMB: 204800},
}

// LimitsFor returns the default limits of a plan and whether the plan is known.
func LimitsFor(p Plan) (Limits, bool) {
	l, ok := planLimits[p]
	return l, ok
}

// Organization is the tenant. Subdomain is immutable after creation and is
// the only external handle used for resolution.
type Organization struct {
	Base
	Subdomain    string             `gorm:"uniqueIndex;not null;size:63" json:"subdomain"`
	Name         string             `gorm:"not null" json:"name"`
	ContactEmail string             `json:"contact_email,omitempty"`
	ContactPhone string             `json:"contact_phone,omitempty"`
	Plan         Plan               `gorm:"not null;default:'trial'" json:"plan"`
	Status       OrganizationStatus `gorm:"not null;index;default:'TRIAL'" json:"status"`
	Limits       `gorm:"embedded"`
	IsActive     bool `gorm:"not null;index" json:"is_active"`

	TrialEndsAt        *time.Time `json:"trial_ends_at,omitempty"`
	SubscriptionEndsAt *time.Time `json:"subscription_ends_at,omitempty"`
	SuspendedReason    string     `json:"suspended_reason,omitempty"`

	// Relationships
	Memberships []Membership  `gorm:"foreignKey:OrganizationID" json:"-"`
	Usage       *UsageCounter `gorm:"foreignKey:OrganizationID" json:"usage,omitempty"`
}

func (Organization) TableName() string {
	return "organizations"
}

// CanServe reports whether requests may be resolved to this organization.
func (o *Organization) CanServe() bool {
	if !o.IsActive {
		return false
	}
	return o.Status != StatusSuspended && o.Status != StatusCancelled
}

// Tenant snapshots the organization for the request context.
func (o *Organization) Tenant() tenancy.Tenant {
	return tenancy.Tenant{
		ID:        o.ID,
		Subdomain: o.Subdomain,
		Name:      o.Name,
		Plan:      string(o.Plan),
		Status:    string(o.Status),
	}
}

var transitions = map[OrganizationStatus][]OrganizationStatus{
	StatusTrial:     {StatusActive, StatusSuspended, StatusCancelled},
	StatusActive:    {StatusSuspended, StatusCancelled},
	StatusSuspended: {StatusActive, StatusCancelled},
}

// CanTransition reports whether the lifecycle allows from -> to.
// CANCELLED is terminal.
func CanTransition(from, to OrganizationStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type Role string

const (
	RoleOwner  Role = "OWNER"
	RoleAdmin  Role = "ADMIN"
	RoleMember Role = "MEMBER"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

// Membership links a user to an organization. A user may hold memberships in
// several organizations; each is evaluated on its own.
type Membership struct {
	OrganizationID uuid.UUID `gorm:"type:uuid;primaryKey" json:"organization_id"`
	UserID         uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Role           Role      `gorm:"not null;default:'MEMBER'" json:"role"`
	IsActive       bool      `gorm:"not null" json:"is_active"`
	JoinedAt       time.Time `json:"joined_at"`

	// Relationships
	Organization *Organization `gorm:"foreignKey:OrganizationID" json:"organization,omitempty"`
	User         *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

func (Membership) TableName() string {
	return "memberships"
}

// UsageCounter tracks consumption against Limits.
type UsageCounter struct {
	OrganizationID uuid.UUID `gorm:"type:uuid;primaryKey" json:"-"`
	Users          int       `gorm:"default:0" json:"users"`
	Records        int       `gorm:"default:0" json:"records"`
	StorageMB      int       `gorm:"default:0" json:"storage_mb"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (UsageCounter) TableName() string {
	return "usage_counters"
}
