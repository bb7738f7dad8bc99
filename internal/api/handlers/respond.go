package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/hugh/agricoop/internal/api/dto"
	"github.com/hugh/agricoop/internal/auth"
	"github.com/hugh/agricoop/internal/database"
	"github.com/hugh/agricoop/internal/registry"
	"github.com/hugh/agricoop/internal/tenancy"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, dto.ErrorResponse{Error: msg, Code: code})
}

// decode reads a JSON body; it writes the 400 itself and reports false on
// failure.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, dto.CodeValidation, "Invalid request body")
		return false
	}
	return true
}

func validationFailed(w http.ResponseWriter, details map[string]string) bool {
	if len(details) == 0 {
		return false
	}
	writeJSON(w, http.StatusBadRequest, dto.ErrorResponse{
		Error:   "Validation failed",
		Code:    dto.CodeValidation,
		Details: details,
	})
	return true
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, dto.CodeValidation, "Invalid ID format")
		return uuid.Nil, false
	}
	return id, true
}

func pagination(r *http.Request) dto.PaginationParams {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))
	p := dto.PaginationParams{Page: page, PerPage: perPage}
	p.Normalize()
	return p
}

// writeServiceError maps domain errors onto HTTP. Rows of another
// organization and missing rows get the same 404.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, database.ErrNotFound), errors.Is(err, tenancy.ErrCrossTenant):
		writeError(w, http.StatusNotFound, dto.CodeNotFound, "not found")
	case errors.Is(err, tenancy.ErrDuplicateKey):
		writeError(w, http.StatusConflict, dto.CodeConflict, "already exists")
	case errors.Is(err, registry.ErrSubdomainTaken):
		writeError(w, http.StatusConflict, dto.CodeConflict, "subdomain already exists")
	case errors.Is(err, registry.ErrAlreadyMember):
		writeError(w, http.StatusConflict, dto.CodeConflict, "member already exists")
	case errors.Is(err, tenancy.ErrUnresolvedTenant), errors.Is(err, tenancy.ErrInactiveTenant):
		writeError(w, http.StatusBadRequest, dto.CodeTenantNotResolved, "organization not found or inactive")
	case errors.Is(err, database.ErrQuotaExceeded), errors.Is(err, registry.ErrUserLimitReached):
		writeError(w, http.StatusForbidden, dto.CodeQuotaExceeded, err.Error())
	case errors.Is(err, registry.ErrInvalidSubdomain),
		errors.Is(err, registry.ErrReservedSubdomain),
		errors.Is(err, registry.ErrUnknownPlan),
		errors.Is(err, registry.ErrInvalidLimits),
		errors.Is(err, registry.ErrInvalidRole),
		errors.Is(err, registry.ErrPasswordRequired):
		writeError(w, http.StatusBadRequest, dto.CodeValidation, err.Error())
	case errors.Is(err, registry.ErrInvalidTransition), errors.Is(err, registry.ErrNotCancelled):
		writeError(w, http.StatusConflict, dto.CodeInvalidState, err.Error())
	case errors.Is(err, auth.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, dto.CodeUnauthorized, "Invalid credentials")
	case errors.Is(err, auth.ErrInactiveUser):
		writeError(w, http.StatusForbidden, dto.CodeForbidden, "Account is inactive")
	case errors.Is(err, registry.ErrArchiveUnavailable):
		writeError(w, http.StatusForbidden, dto.CodeArchiveDisabled, err.Error())
	case errors.Is(err, database.ErrNoGrant):
		writeError(w, http.StatusForbidden, dto.CodeForbidden, "Forbidden")
	default:
		// ErrOrphanWrite lands here too: a write without an owner is a defect
		slog.Default().Error("request failed",
			"error", err,
			"method", r.Method,
			"path", r.URL.Path,
			"tenant", tenancy.CurrentID(r.Context()),
		)
		writeError(w, http.StatusInternalServerError, dto.CodeInternal, "internal server error")
	}
}
