package handlers_test

import (
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/hugh/agricoop/internal/api/dto"
	"github.com/hugh/agricoop/internal/database/models"
	"github.com/hugh/agricoop/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type partnerPage struct {
	Data  []dto.PartnerDTO `json:"data"`
	Total int64            `json:"total"`
}

func createPartner(t *testing.T, tc *twoCoops, token, subdomain string, body map[string]interface{}) dto.PartnerDTO {
	t.Helper()
	rec := tc.as(t, token, subdomain, "POST", "/api/v1/partners", body)
	testutil.AssertStatus(t, rec, http.StatusCreated)

	var p dto.PartnerDTO
	testutil.ParseJSONResponse(t, rec, &p)
	return p
}

func TestPartnerHandler_SameNationalIDInTwoCoops(t *testing.T) {
	tc := setupTwoCoops(t)

	a := createPartner(t, tc, tc.anaTok, "coopa", map[string]interface{}{"national_id": "12345678", "name": "Juan Pérez"})
	b := createPartner(t, tc, tc.bobTok, "coopb", map[string]interface{}{"national_id": "12345678", "name": "Juan Pérez"})

	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, tc.coopA.ID.String(), a.OrganizationID)
	assert.Equal(t, tc.coopB.ID.String(), b.OrganizationID)

	rec := tc.as(t, tc.anaTok, "coopa", "GET", "/api/v1/partners", nil)
	testutil.AssertStatus(t, rec, http.StatusOK)
	var page partnerPage
	testutil.ParseJSONResponse(t, rec, &page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, a.ID, page.Data[0].ID)
}

func TestPartnerHandler_CrossTenantIsNotFound(t *testing.T) {
	tc := setupTwoCoops(t)
	theirs := createPartner(t, tc, tc.bobTok, "coopb", map[string]interface{}{"national_id": "87654321", "name": "Ana Silva"})

	missing := tc.as(t, tc.anaTok, "coopa", "GET", "/api/v1/partners/"+uuid.NewString(), nil)
	testutil.AssertStatus(t, missing, http.StatusNotFound)

	tests := []struct {
		method string
		body   interface{}
	}{
		{"GET", nil},
		{"PUT", map[string]interface{}{"national_id": "87654321", "name": "Hijacked"}},
		{"DELETE", nil},
	}
	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			rec := tc.as(t, tc.anaTok, "coopa", tt.method, "/api/v1/partners/"+theirs.ID, tt.body)
			testutil.AssertStatus(t, rec, http.StatusNotFound)
			assert.Equal(t, missing.Body.String(), rec.Body.String())
		})
	}

	// still intact for its owner
	rec := tc.as(t, tc.bobTok, "coopb", "GET", "/api/v1/partners/"+theirs.ID, nil)
	testutil.AssertStatus(t, rec, http.StatusOK)
	var got dto.PartnerDTO
	testutil.ParseJSONResponse(t, rec, &got)
	assert.Equal(t, "Ana Silva", got.Name)
}

func TestPartnerHandler_DuplicateWithinCoop(t *testing.T) {
	tc := setupTwoCoops(t)
	createPartner(t, tc, tc.anaTok, "coopa", map[string]interface{}{"national_id": "12345678", "name": "First"})

	for _, id := range []string{"12345678", "12.345.678"} {
		rec := tc.as(t, tc.anaTok, "coopa", "POST", "/api/v1/partners", map[string]interface{}{"national_id": id, "name": "Second"})
		testutil.AssertStatus(t, rec, http.StatusConflict)

		var body dto.ErrorResponse
		testutil.ParseJSONResponse(t, rec, &body)
		assert.Equal(t, dto.CodeConflict, body.Code)
		assert.Equal(t, "already exists", body.Error)
	}
}

func TestPartnerHandler_TenantAndMembershipGate(t *testing.T) {
	tc := setupTwoCoops(t)

	tests := []struct {
		name       string
		token      string
		subdomain  string
		wantStatus int
		wantCode   string
	}{
		{"member of coopa", tc.anaTok, "coopa", http.StatusOK, ""},
		{"owner of coopb addressing coopa", tc.bobTok, "coopa", http.StatusForbidden, dto.CodeNotMember},
		{"unknown subdomain", tc.anaTok, "ghost", http.StatusBadRequest, dto.CodeTenantNotResolved},
		{"no subdomain", tc.anaTok, "", http.StatusBadRequest, dto.CodeTenantNotResolved},
		{"no token", "", "coopa", http.StatusUnauthorized, dto.CodeUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := testutil.AuthenticatedRequest(t, "GET", "/api/v1/partners", nil, tt.token)
			if tt.subdomain != "" {
				req.Header.Set("X-Tenant-Subdomain", tt.subdomain)
			}
			rec := tc.serve(req)
			testutil.AssertStatus(t, rec, tt.wantStatus)
			if tt.wantCode != "" {
				assert.Contains(t, rec.Body.String(), tt.wantCode)
			}
		})
	}
}

func TestPartnerHandler_SuspendedCoopIsRejected(t *testing.T) {
	tc := setupTwoCoops(t)
	_, err := tc.registry.Suspend(testutil.TestContext(t), tc.coopA.ID, "unpaid")
	require.NoError(t, err)

	rec := tc.as(t, tc.anaTok, "coopa", "GET", "/api/v1/partners", nil)
	testutil.AssertStatus(t, rec, http.StatusBadRequest)

	var body dto.ErrorResponse
	testutil.ParseJSONResponse(t, rec, &body)
	assert.Equal(t, "organization not found or inactive", body.Error)
	assert.Equal(t, dto.CodeTenantNotResolved, body.Code)
}

func TestPartnerHandler_BankAccountIsSealed(t *testing.T) {
	tc := setupTwoCoops(t)
	created := createPartner(t, tc, tc.anaTok, "coopa", map[string]interface{}{
		"national_id":  "20-11111111-3",
		"name":         "Finca Norte",
		"kind":         "supplier",
		"bank_account": "CBU 0110012345678901234567",
	})
	assert.True(t, created.HasBankAccount)
	assert.Empty(t, created.BankAccount)
	assert.Equal(t, "20111111113", created.NationalID)

	var stored models.Partner
	require.NoError(t, tc.db.First(&stored, "id = ?", created.ID).Error)
	assert.NotEmpty(t, stored.SealedBankAccount)
	assert.NotContains(t, string(stored.SealedBankAccount), "0110012345678901234567")

	var got dto.PartnerDTO
	rec := tc.as(t, tc.anaTok, "coopa", "GET", "/api/v1/partners/"+created.ID, nil)
	testutil.AssertStatus(t, rec, http.StatusOK)
	testutil.ParseJSONResponse(t, rec, &got)
	assert.Equal(t, "CBU 0110012345678901234567", got.BankAccount)

	// plain members see that one exists, not its value
	got = dto.PartnerDTO{}
	rec = tc.as(t, tc.carlaTok, "coopa", "GET", "/api/v1/partners/"+created.ID, nil)
	testutil.AssertStatus(t, rec, http.StatusOK)
	testutil.ParseJSONResponse(t, rec, &got)
	assert.True(t, got.HasBankAccount)
	assert.Empty(t, got.BankAccount)
}

func TestPartnerHandler_UpdateAndDelete(t *testing.T) {
	tc := setupTwoCoops(t)
	created := createPartner(t, tc, tc.anaTok, "coopa", map[string]interface{}{"national_id": "12345678", "name": "Old Name"})
	path := "/api/v1/partners/" + created.ID

	rec := tc.as(t, tc.carlaTok, "coopa", "PUT", path, map[string]interface{}{"national_id": "12345678", "name": "New Name"})
	testutil.AssertStatus(t, rec, http.StatusForbidden)

	rec = tc.as(t, tc.anaTok, "coopa", "PUT", path, map[string]interface{}{"national_id": "12345678", "name": "New Name", "kind": "customer"})
	testutil.AssertStatus(t, rec, http.StatusOK)
	var updated dto.PartnerDTO
	testutil.ParseJSONResponse(t, rec, &updated)
	assert.Equal(t, "New Name", updated.Name)
	assert.Equal(t, "customer", updated.Kind)
	assert.Equal(t, tc.coopA.ID.String(), updated.OrganizationID)

	rec = tc.as(t, tc.carlaTok, "coopa", "DELETE", path, nil)
	testutil.AssertStatus(t, rec, http.StatusForbidden)

	rec = tc.as(t, tc.anaTok, "coopa", "DELETE", path, nil)
	testutil.AssertStatus(t, rec, http.StatusNoContent)

	rec = tc.as(t, tc.anaTok, "coopa", "GET", path, nil)
	testutil.AssertStatus(t, rec, http.StatusNotFound)
}

func TestPartnerHandler_Validation(t *testing.T) {
	tc := setupTwoCoops(t)

	tests := []struct {
		name      string
		body      map[string]interface{}
		wantField string
	}{
		{"missing national id", map[string]interface{}{"name": "X"}, "national_id"},
		{"missing name", map[string]interface{}{"national_id": "12345678"}, "name"},
		{"unknown kind", map[string]interface{}{"national_id": "12345678", "name": "X", "kind": "broker"}, "kind"},
		{"bad phone", map[string]interface{}{"national_id": "12345678", "name": "X", "phone": "call me"}, "phone"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := tc.as(t, tc.anaTok, "coopa", "POST", "/api/v1/partners", tt.body)
			testutil.AssertStatus(t, rec, http.StatusBadRequest)

			var body dto.ErrorResponse
			testutil.ParseJSONResponse(t, rec, &body)
			assert.Equal(t, dto.CodeValidation, body.Code)
			assert.Contains(t, body.Details, tt.wantField)
		})
	}

	rec := tc.as(t, tc.anaTok, "coopa", "GET", "/api/v1/partners/not-a-uuid", nil)
	testutil.AssertStatus(t, rec, http.StatusBadRequest)
}

func TestPartnerHandler_ListFilters(t *testing.T) {
	tc := setupTwoCoops(t)
	createPartner(t, tc, tc.anaTok, "coopa", map[string]interface{}{"national_id": "11111111", "name": "Alfa", "kind": "member"})
	createPartner(t, tc, tc.anaTok, "coopa", map[string]interface{}{"national_id": "22222222", "name": "Beta", "kind": "supplier"})
	createPartner(t, tc, tc.anaTok, "coopa", map[string]interface{}{"national_id": "33333333", "name": "Gamma", "kind": "supplier"})
	createPartner(t, tc, tc.bobTok, "coopb", map[string]interface{}{"national_id": "44444444", "name": "Beta", "kind": "supplier"})

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"Alfa", "Beta", "Gamma"}},
		{"?kind=supplier", []string{"Beta", "Gamma"}},
		{"?q=bet", []string{"Beta"}},
		{"?q=3333", []string{"Gamma"}},
		{"?per_page=2&page=2", []string{"Gamma"}},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := tc.as(t, tc.anaTok, "coopa", "GET", "/api/v1/partners"+tt.query, nil)
			testutil.AssertStatus(t, rec, http.StatusOK)

			var page partnerPage
			testutil.ParseJSONResponse(t, rec, &page)
			names := make([]string, 0, len(page.Data))
			for _, p := range page.Data {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}
