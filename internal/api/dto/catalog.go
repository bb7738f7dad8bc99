package dto

import (
	"strings"
	"time"

	"github.com/hugh/agricoop/internal/api/validation"
	"github.com/hugh/agricoop/internal/database/models"
)

type PartnerRequest struct {
	NationalID  string `json:"national_id"`
	Name        string `json:"name"`
	Kind        string `json:"kind,omitempty"`
	Phone       string `json:"phone,omitempty"`
	BankAccount string `json:"bank_account,omitempty"`
}

var partnerKinds = map[string]bool{
	string(models.PartnerMember):   true,
	string(models.PartnerSupplier): true,
	string(models.PartnerCustomer): true,
}

func (r *PartnerRequest) Normalize() {
	r.NationalID = strings.TrimSpace(r.NationalID)
	r.Name = validation.CleanName(r.Name, 200)
	r.Kind = strings.ToLower(strings.TrimSpace(r.Kind))
	r.Phone = strings.TrimSpace(r.Phone)
	r.BankAccount = strings.TrimSpace(r.BankAccount)
}

func (r PartnerRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if !validation.IsValidNationalID(r.NationalID) {
		errors["national_id"] = "A valid national id is required"
	}
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if r.Kind != "" && !partnerKinds[r.Kind] {
		errors["kind"] = "Kind must be member, supplier or customer"
	}
	if r.Phone != "" && !validation.IsValidPhone(r.Phone) {
		errors["phone"] = "Invalid phone number"
	}

	return errors
}

type PartnerDTO struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	NationalID     string `json:"national_id"`
	Name           string `json:"name"`
	Kind           string `json:"kind"`
	Phone          string `json:"phone,omitempty"`
	HasBankAccount bool   `json:"has_bank_account"`
	BankAccount    string `json:"bank_account,omitempty"`
	CreatedAt      string `json:"created_at"`
}

// PartnerFromModel never includes the bank account; callers that may reveal
// it set BankAccount themselves.
func PartnerFromModel(p *models.Partner) PartnerDTO {
	return PartnerDTO{
		ID:             p.ID.String(),
		OrganizationID: p.OrganizationID.String(),
		NationalID:     p.NationalID,
		Name:           p.Name,
		Kind:           string(p.Kind),
		Phone:          p.Phone,
		HasBankAccount: len(p.SealedBankAccount) > 0,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
}

type ProductRequest struct {
	Code     string `json:"code"`
	Name     string `json:"name"`
	Unit     string `json:"unit,omitempty"`
	Category string `json:"category,omitempty"`
}

func (r *ProductRequest) Normalize() {
	r.Code = strings.ToUpper(strings.TrimSpace(r.Code))
	r.Name = validation.CleanName(r.Name, 200)
	r.Unit = strings.ToLower(strings.TrimSpace(r.Unit))
	r.Category = validation.CleanName(r.Category, 64)
}

func (r ProductRequest) Validate() map[string]string {
	errors := make(map[string]string)

	if !validation.IsValidProductCode(r.Code) {
		errors["code"] = "A valid product code is required"
	}
	if r.Name == "" {
		errors["name"] = "Name is required"
	}
	if len(r.Unit) > 16 {
		errors["unit"] = "Unit is too long"
	}

	return errors
}

type ProductDTO struct {
	ID             string `json:"id"`
	OrganizationID string `json:"organization_id"`
	Code           string `json:"code"`
	Name           string `json:"name"`
	Unit           string `json:"unit"`
	Category       string `json:"category,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func ProductFromModel(p *models.Product) ProductDTO {
	return ProductDTO{
		ID:             p.ID.String(),
		OrganizationID: p.OrganizationID.String(),
		Code:           p.Code,
		Name:           p.Name,
		Unit:           p.Unit,
		Category:       p.Category,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
	}
}
