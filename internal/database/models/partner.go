package models

import "github.com/hugh/agricoop/internal/tenancy"

type PartnerKind string

const (
	PartnerMember   PartnerKind = "member"
	PartnerSupplier PartnerKind = "supplier"
	PartnerCustomer PartnerKind = "customer"
)

// Partner is a cooperative member, supplier or customer. NationalID is the
// business key, unique per organization.
type Partner struct {
	TenantScoped
	NationalID string      `gorm:"not null;size:32" json:"national_id"`
	Name       string      `gorm:"not null" json:"name"`
	Kind       PartnerKind `gorm:"not null;default:'member'" json:"kind"`
	Phone      string      `json:"phone,omitempty"`

	// age-sealed bank account, never serialized
	SealedBankAccount []byte `gorm:"type:bytea" json:"-"`
}

func (Partner) TableName() string {
	return "partners"
}

// NewPartner builds a partner owned by owner.
func NewPartner(owner tenancy.Owner, nationalID, name string, kind PartnerKind) *Partner {
	if kind == "" {
		kind = PartnerMember
	}
	return &Partner{
		TenantScoped: newTenantScoped(owner),
		NationalID:   nationalID,
		Name:         name,
		Kind:         kind,
	}
}
