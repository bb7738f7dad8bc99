package handlers

import (
	"net/http"

	"github.com/hugh/agricoop/internal/api/dto"
	"github.com/hugh/agricoop/internal/database"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/tenancy"
	"gorm.io/gorm"
)

type ProductRepository = database.ScopedRepository[models.Product, *models.Product]

type ProductHandler struct {
	repo *ProductRepository
}

func NewProductHandler(repo *ProductRepository) *ProductHandler {
	return &ProductHandler{repo: repo}
}

// List handles GET /api/v1/products
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	p := pagination(r)

	var scopes []database.Scope
	if category := r.URL.Query().Get("category"); category != "" {
		scopes = append(scopes, func(db *gorm.DB) *gorm.DB {
			return db.Where("category = ?", category)
		})
	}

	products, total, err := h.repo.List(r.Context(), database.ListOptions{
		Offset: p.Offset(),
		Limit:  p.PerPage,
		Order:  "code ASC",
	}, scopes...)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	out := make([]dto.ProductDTO, 0, len(products))
	for i := range products {
		out = append(out, dto.ProductFromModel(&products[i]))
	}
	writeJSON(w, http.StatusOK, dto.NewPaginated(out, total, p))
}

// Create handles POST /api/v1/products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req dto.ProductRequest
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
	product := models.NewProduct(owner, req.Code, req.Name, req.Unit)
	product.Category = req.Category

	if err := h.repo.Create(r.Context(), product); err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.ProductFromModel(product))
}

// Get handles GET /api/v1/products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	product, err := h.repo.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ProductFromModel(product))
}
