package models

import "github.com/hugh/agricoop/internal/tenancy"

// Product is an item the cooperative stocks or sells. Code is unique per
// organization.
type Product struct {
	TenantScoped
	Code     string `gorm:"not null;size:64" json:"code"`
	Name     string `gorm:"not null" json:"name"`
	Unit     string `gorm:"not null;default:'kg'" json:"unit"`
	Category string `gorm:"index" json:"category,omitempty"`
}

func (Product) TableName() string {
	return "products"
}

func NewProduct(owner tenancy.Owner, code, name, unit string) *Product {
	if unit == "" {
		unit = "kg"
	}
	return &Product{
		TenantScoped: newTenantScoped(owner),
		Code:         code,
		Name:         name,
		Unit:         unit,
	}
}
