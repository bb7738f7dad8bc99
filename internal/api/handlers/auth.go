package handlers

import (
	"net/http"

	"github.com/hugh/agricoop/internal/api/dto"
	"github.com/hugh/agricoop/internal/api/middleware"
	"github.com/hugh/agricoop/internal/auth"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/tenancy"
)

type AuthHandler struct {
	authService auth.Authenticator
}

func NewAuthHandler(authService auth.Authenticator) *AuthHandler {
	return &AuthHandler{authService: authService}
}

func userDTO(u *models.User) dto.UserDTO {
	return dto.UserDTO{ID: u.ID.String(), Email: u.Email, Name: u.Name}
}

// Login is the cross-tenant bootstrap: it needs no tenant and returns every
// organization the account may address.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	resp, err := h.authService.Login(r.Context(), auth.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	memberships := make([]dto.MembershipDTO, 0, len(resp.Memberships))
	for _, m := range resp.Memberships {
		md := dto.MembershipDTO{OrganizationID: m.OrganizationID.String(), Role: string(m.Role)}
		if m.Organization != nil {
			if !m.Organization.CanServe() {
				continue
			}
			md.Subdomain = m.Organization.Subdomain
			md.Name = m.Organization.Name
		}
		memberships = append(memberships, md)
	}

	writeJSON(w, http.StatusOK, dto.AuthResponse{
		Token:       resp.Token,
		User:        userDTO(resp.User),
		Memberships: memberships,
	})
}

// Me handles GET /api/v1/me inside the bound organization.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.authService.GetUserByID(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, http.StatusNotFound, dto.CodeNotFound, "User not found")
		return
	}
	tenant, _ := tenancy.Current(r.Context())

	writeJSON(w, http.StatusOK, dto.MeResponse{
		User:         userDTO(user),
		Organization: tenant.Subdomain,
		Role:         string(middleware.GetUserRole(r.Context())),
	})
}
