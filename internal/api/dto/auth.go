package dto

import (
	"strings"

	"github.com/hugh/agricoop/internal/api/validation"
)

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r LoginRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Email == "" {
		errors["email"] = "Email is required"
	}
	if r.Password == "" {
		errors["password"] = "Password is required"
	}

	return errors
}

// RegisterRequest is the public signup of a new cooperative and its owner.
type RegisterRequest struct {
	Subdomain    string `json:"subdomain"`
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`

	OwnerEmail    string `json:"owner_email"`
	OwnerName     string `json:"owner_name"`
	OwnerPassword string `json:"owner_password"`
}

func (r *RegisterRequest) Normalize() {
	r.Subdomain = strings.ToLower(strings.TrimSpace(r.Subdomain))
	r.Name = validation.CleanName(r.Name, 200)
	r.OwnerName = validation.CleanName(r.OwnerName, 200)
	r.OwnerEmail = strings.ToLower(strings.TrimSpace(r.OwnerEmail))
	r.ContactEmail = strings.ToLower(strings.TrimSpace(r.ContactEmail))
}

func (r RegisterRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if r.Subdomain == "" {
		errors["subdomain"] = "Subdomain is required"
	}
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.ContactEmail != "" && !validation.IsValidEmail(r.ContactEmail) {
		errors["contact_email"] = "Invalid email format"
	}
	if r.ContactPhone != "" && !validation.IsValidPhone(r.ContactPhone) {
		errors["contact_phone"] = "Invalid phone number"
	}
	if !validation.IsValidEmail(r.OwnerEmail) {
		errors["owner_email"] = "A valid email is required"
	}
	if r.OwnerName == "" {
		errors["owner_name"] = "Owner name is required"
	}
	if ok, msg := validation.IsValidPassword(r.OwnerPassword); !ok {
		errors["owner_password"] = msg
	}

	return errors
}

type UserDTO struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// MembershipDTO is one organization the user can address.
type MembershipDTO struct {
	OrganizationID string `json:"organization_id"`
	Subdomain      string `json:"subdomain,omitempty"`
	Name           string `json:"name,omitempty"`
	Role           string `json:"role"`
}

type AuthResponse struct {
	Token       string          `json:"token"`
	User        UserDTO         `json:"user"`
	Memberships []MembershipDTO `json:"memberships"`
}

// MeResponse describes the caller inside the bound organization.
type MeResponse struct {
	User         UserDTO `json:"user"`
	Organization string  `json:"organization"`
	Role         string  `json:"role"`
}
