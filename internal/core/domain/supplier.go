package domain

import "time"

type Supplier struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	TaxID               string    `json:"tax_id"`
	Email               string    `json:"email,omitempty"`
	Phone               string    `json:"phone,omitempty"`
	Address             string    `json:"address,omitempty"`
	Country             string    `json:"country,omitempty"`
	DefaultPaymentTerms string    `json:"default_payment_terms,omitempty"`
	IsActive            bool      `json:"is_active"`
	IsVerified          bool      `json:"is_verified"`
	RiskScore           int       `json:"risk_score"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type SupplierUpdate struct {
	Name     *string `json:"name,omitempty"`
	Email    *string `json:"email,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

func (u SupplierUpdate) Apply(s *Supplier) {
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Email != nil {
		s.Email = *u.Email
	}
	if u.Phone != nil {
		s.Phone = *u.Phone
	}
	if u.Address != nil {
		s.Address = *u.Address
	}
	if u.IsActive != nil {
		s.IsActive = *u.IsActive
	}
}
