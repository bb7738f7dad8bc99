package handlers

import (
	"net/http"
	"strings"

	"github.com/hugh/agricoop/internal/api/dto"
	"github.com/hugh/agricoop/internal/api/middleware"
	"github.com/hugh/agricoop/internal/api/validation"
	"github.com/hugh/agricoop/internal/database"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/tenancy"
	"github.com/hugh/agricoop/pkg/crypto"
	"gorm.io/gorm"
)

type PartnerRepository = database.ScopedRepository[models.Partner, *models.Partner]

type PartnerHandler struct {
	repo   *PartnerRepository
	sealer *crypto.Sealer
}

// NewPartnerHandler builds the partner endpoints. Without a sealer, bank
// accounts are refused.
func NewPartnerHandler(repo *PartnerRepository, sealer *crypto.Sealer) *PartnerHandler {
	return &PartnerHandler{repo: repo, sealer: sealer}
}

func (h *PartnerHandler) sealBankAccount(w http.ResponseWriter, account string) ([]byte, bool) {
	if account == "" {
		return nil, true
	}
	if h.sealer == nil {
		writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
			Error:   "Validation failed",
			Code:    dto.CodeValidation,
			Details: map[string]string{"bank_account": "Bank account storage is not configured"},
		})
		return nil, false
	}
	sealed, err := h.sealer.SealField(account)
	if err != nil {
		writeError(w, http.StatusInternalServerError, dto.CodeInternal, "internal server error")
		return nil, false
	}
	return sealed, true
}

// List handles GET /api/v1/partners
func (h *PartnerHandler) List(w http.ResponseWriter, r *http.Request) {
	p := pagination(r)

	var scopes []database.Scope
	if kind := r.URL.Query().Get("kind"); kind != "" {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("kind = ?", kind)
		})
	}
	if q := strings.TrimSpace(r.URL.Query().Get("q")); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("(LOWER(name) LIKE ? OR national_id LIKE ?)", like, like)
		})
	}

	partners, total, err := h.repo.List(r.Context(), database.ListOptions{
		Offset: p.Offset(),
		Limit:  p.PerPage,
		Order:  "name ASC",
	}, scopes...)
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

// Create handles POST /api/v1/partners
func (h *PartnerHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.PartnerRequest
	if !decode(w, r, &req) {
		return
	}
	req.Normalize()
	if validationFailed(w, req.Validate()) {
		return
	}

	owner, err := tenancy.OwnerFrom(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	sealed, ok := h.sealBankAccount(w, req.BankAccount)
	if !ok {
		return
	}

	partner := models.NewPartner(owner, validation.NormalizeNationalID(req.NationalID), req.Name, models.PartnerKind(req.Kind))
	partner.Phone = req.Phone
	partner.SealedBankAccount = sealed

	if err := h.repo.Create(r.Context(), partner); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.PartnerFromModel(partner))
}

// Get handles GET /api/v1/partners/{id}. Owners and admins also see the
// bank account.
func (h *PartnerHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	partner, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := dto.PartnerFromModel(partner)
	role := middleware.GetUserRole(r.Context())
	if h.sealer != nil && (role == models.RoleOwner || role == models.RoleAdmin) {
		account, err := h.sealer.OpenField(partner.SealedBankAccount)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		out.BankAccount = account
	}
	writeJSON(w, http.StatusOK, out)
}

// Update handles PUT /api/v1/partners/{id}. An empty bank_account keeps the
// stored one.
func (h *PartnerHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req dto.PartnerRequest
	if !decode(w, r, &req) {
		return
	}
	req.Normalize()
	if validationFailed(w, req.Validate()) {
		return
	}

	partner, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	partner.NationalID = validation.NormalizeNationalID(req.NationalID)
	partner.Name = req.Name
	partner.Phone = req.Phone
	if req.Kind != "" {
		partner.Kind = models.PartnerKind(req.Kind)
	}
	if req.BankAccount != "" {
		sealed, ok := h.sealBankAccount(w, req.BankAccount)
		if !ok {
			return
		}
		partner.SealedBankAccount = sealed
	}

	if err := h.repo.Update(r.Context(), partner); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.PartnerFromModel(partner))
}

// Delete handles DELETE /api/v1/partners/{id}
func (h *PartnerHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.repo.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
