package handlers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/agricoop/internal/api/dto"
	"github.com/hugh/agricoop/internal/api/middleware"
	"github.com/hugh/agricoop/internal/audit"
	"github.com/hugh/agricoop/internal/database"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/registry"
	"gorm.io/gorm"
)

// AdminHandler serves the operator routes. They are unscoped: every handler
// works from the AdminGrant issued by middleware.AdminOnly.
type AdminHandler struct {
	registry *registry.Service
	db       *gorm.DB
	events   audit.Publisher
}

func NewAdminHandler(reg *registry.Service, db *gorm.DB, events audit.Publisher) *AdminHandler {
	return &AdminHandler{registry: reg, db: db, events: events}
}

func (h *AdminHandler) respondOrg(w http.ResponseWriter, r *http.Request, org *models.Organization, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.OrganizationFromModel(org))
}

// List handles GET /api/v1/admin/organizations
func (h *AdminHandler) List(w http.ResponseWriter, r *http.Request) {
	p := pagination(r)
	orgs, total, err := h.registry.List(r.Context(), registry.ListFilter{
		Status: models.OrganizationStatus(strings.ToUpper(r.URL.Query().Get("status"))),
		Search: strings.TrimSpace(r.URL.Query().Get("q")),
		Offset: p.Offset(),
		Limit:  p.PerPage,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]dto.OrganizationDTO, 0, len(orgs))
	for i := range orgs {
		out = append(out, dto.OrganizationFromModel(&orgs[i]))
	}
	writeJSON(w, http.StatusOK, dto.NewPaginated(out, total, p))
}

// Provision handles POST /api/v1/admin/organizations
func (h *AdminHandler) Provision(w http.ResponseWriter, r *http.Request) {
	grant, _ := middleware.GetAdminGrant(r.Context())

	var req dto.ProvisionRequest
	if !decode(w, r, &req) {
		return
	}
	req.Normalize()
	req.Plan = strings.ToLower(strings.TrimSpace(req.Plan))
	if validationFailed(w, req.Validate()) {
		return
	}

	reg, err := h.registry.Provision(r.Context(), grant, registry.ProvisionInput{
		Subdomain:     req.Subdomain,
		Name:          req.Name,
		ContactEmail:  req.ContactEmail,
		ContactPhone:  req.ContactPhone,
		Plan:          models.Plan(req.Plan),
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

// Get handles GET /api/v1/admin/organizations/{id}
func (h *AdminHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	org, err := h.registry.Get(r.Context(), id)
	h.respondOrg(w, r, org, err)
}

// Activate handles POST /api/v1/admin/organizations/{id}/activate
func (h *AdminHandler) Activate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.ActivateRequest
	if r.ContentLength != 0 && !decode(w, r, &req) {
		return
	}
	org, err := h.registry.Activate(r.Context(), id, models.Plan(strings.ToLower(req.Plan)), req.SubscriptionEndsAt)
	h.respondOrg(w, r, org, err)
}

// Suspend handles POST /api/v1/admin/organizations/{id}/suspend
func (h *AdminHandler) Suspend(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !decode(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}
	org, err := h.registry.Suspend(r.Context(), id, strings.TrimSpace(req.Reason))
	h.respondOrg(w, r, org, err)
}

// Reactivate handles POST /api/v1/admin/organizations/{id}/reactivate
func (h *AdminHandler) Reactivate(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	org, err := h.registry.Reactivate(r.Context(), id)
	h.respondOrg(w, r, org, err)
}

// Cancel handles POST /api/v1/admin/organizations/{id}/cancel
func (h *AdminHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.ReasonRequest
	if !decode(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}
	org, err := h.registry.Cancel(r.Context(), id, strings.TrimSpace(req.Reason))
	h.respondOrg(w, r, org, err)
}

// ChangePlan handles PUT /api/v1/admin/organizations/{id}/plan
func (h *AdminHandler) ChangePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.PlanRequest
	if !decode(w, r, &req) {
		return
	}
	org, err := h.registry.ChangePlan(r.Context(), id, models.Plan(strings.ToLower(strings.TrimSpace(req.Plan))))
	h.respondOrg(w, r, org, err)
}

// UpdateLimits handles PUT /api/v1/admin/organizations/{id}/limits
func (h *AdminHandler) UpdateLimits(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.LimitsRequest
	if !decode(w, r, &req) {
		return
	}
	if validationFailed(w, req.Validate()) {
		return
	}
	org, err := h.registry.UpdateLimits(r.Context(), id, models.Limits(req))
	h.respondOrg(w, r, org, err)
}

// Partners handles GET /api/v1/admin/organizations/{id}/partners. It reads
// through an AdminRepository, the only unscoped accessor for tenant rows.
func (h *AdminHandler) Partners(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	grant, _ := middleware.GetAdminGrant(r.Context())
	repo, err := database.NewAdminRepository[models.Partner](h.db, h.events, grant)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if _, err := h.registry.Get(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}

	p := pagination(r)
	partners, total, err := repo.List(r.Context(), id, database.ListOptions{
		Offset: p.Offset(),
		Limit:  p.PerPage,
		Order:  "name ASC",
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	out := make([]dto.PartnerDTO, 0, len(partners))
	for i := range partners {
		out = append(out, dto.PartnerFromModel(&partners[i]))
	}
	writeJSON(w, http.StatusOK, dto.NewPaginated(out, total, p))
}

// Merge handles POST /api/v1/admin/organizations/{id}/merge. The path
// organization is the source and ends up cancelled.
func (h *AdminHandler) Merge(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req dto.MergeRequest
	if !decode(w, r, &req) {
		return
	}
	target, err := uuid.Parse(req.TargetID)
	if err != nil {
		validationFailed(w, map[string]string{"target_id": "Invalid ID format"})
		return
	}

	grant, _ := middleware.GetAdminGrant(r.Context())
	res, err := h.registry.Merge(r.Context(), grant, id, target)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.MergeResponse{
		Source:  id.String(),
		Target:  target.String(),
		Moved:   res.Moved,
		Members: res.Members,
	})
}

// Delete handles DELETE /api/v1/admin/organizations/{id}
func (h *AdminHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	grant, _ := middleware.GetAdminGrant(r.Context())
	location, err := h.registry.HardDelete(r.Context(), grant, id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DeleteResponse{Deleted: id.String(), Archive: location})
}
