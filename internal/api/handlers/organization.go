package handlers

import (
	"net/http"
	"strings"

	"github.com/hugh/agricoop/internal/api/dto"
	"github.com/hugh/agricoop/internal/api/middleware"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/registry"
	"github.com/hugh/agricoop/internal/tenancy"
)

// OrganizationHandler serves the bound organization's own record and
// memberships, plus public registration.
type OrganizationHandler struct {
	registry *registry.Service
}

func NewOrganizationHandler(reg *registry.Service) *OrganizationHandler {
	return &OrganizationHandler{registry: reg}
}

// Register handles POST /api/v1/register
func (h *OrganizationHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req dto.RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	req.Normalize()
	if validationFailed(w, req.Validate()) {
		return
	}

	reg, err := h.registry.Register(r.Context(), registry.RegisterInput{
		Subdomain:     req.Subdomain,
		Name:          req.Name,
		ContactEmail:  req.ContactEmail,
		ContactPhone:  req.ContactPhone,
		OwnerEmail:    req.OwnerEmail,
		OwnerName:     req.OwnerName,
		OwnerPassword: req.OwnerPassword,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	resp := dto.RegisterResponse{Organization: dto.OrganizationFromModel(reg.Organization)}
	if reg.Owner != nil {
		owner := userDTO(reg.Owner)
		resp.Owner = &owner
	}
	writeJSON(w, http.StatusCreated, resp)
}

// Get handles GET /api/v1/organization
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	org, err := h.registry.Get(r.Context(), tenancy.CurrentID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OrganizationFromModel(org))
}

// Members handles GET /api/v1/organization/members
func (h *OrganizationHandler) Members(w http.ResponseWriter, r *http.Request) {
	memberships, err := h.registry.Memberships(r.Context(), tenancy.CurrentID(r.Context()))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]dto.MemberDTO, 0, len(memberships))
	for i := range memberships {
		out = append(out, dto.MemberFromModel(&memberships[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// AddMember handles POST /api/v1/organization/members
func (h *OrganizationHandler) AddMember(w http.ResponseWriter, r *http.Request) {
	var req dto.AddMemberRequest
	if !decode(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}

	role := models.Role(strings.ToUpper(req.Role))
	if role == models.RoleOwner && middleware.GetUserRole(r.Context()) != models.RoleOwner {
		writeError(w, http.StatusForbidden, dto.CodeForbidden, "only owners can add owners")
		return
	}

	m, err := h.registry.AddMember(r.Context(), tenancy.CurrentID(r.Context()), registry.AddMemberInput{
		Email:    req.Email,
		Name:     req.Name,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.MemberFromModel(m))
}
