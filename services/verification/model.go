package verification

import "time"

type IdentifierType string

const (
	IdentifierMarketplaceOrder IdentifierType = "marketplace_order_id"
	IdentifierSecretCode       IdentifierType = "secret_code"
)

type OrderSummary struct {
	OrderID      string     `json:"order_id"`
	Status       string     `json:"status"`
	Channel      string     `json:"channel"`
	ProductCodes []string   `json:"product_codes"`
	DisplayNames []string   `json:"display_names"`
	PaidAt       *time.Time `json:"paid_at,omitempty"`
	DeliveredAt  *time.Time `json:"delivered_at,omitempty"`
}

type KeyInfo struct {
	KeyID       string     `json:"key_id"`
	ProductCode string     `json:"product_code"`
	Redeemed    bool       `json:"redeemed"`
	RedeemedAt  *time.Time `json:"redeemed_at,omitempty"`
	IsActive    bool       `json:"is_active"`
}

type ComboInfo struct {
	ProductCode string   `json:"product_code"`
	DisplayName string   `json:"display_name"`
	Components  []string `json:"components"`
}

type WarrantyInfo struct {
	Registered      bool       `json:"registered"`
	Status          string     `json:"status,omitempty"`
	VerifiedAt      *time.Time `json:"verified_at,omitempty"`
	RejectionReason string     `json:"rejection_reason,omitempty"`
}

type ReplacementInfo struct {
	HasRequest   bool   `json:"has_request"`
	Status       string `json:"status,omitempty"`
	IsInstant    bool   `json:"is_instant"`
	HistoryCount int    `json:"history_count"`
}

// Snapshot is the full read-model answer for one verification lookup.
type Snapshot struct {
	Valid            bool             `json:"valid"`
	OrderFound       bool             `json:"order_found"`
	Identifier       string           `json:"identifier"`
	IdentifierType   IdentifierType   `json:"identifier_type,omitempty"`
	Order            *OrderSummary    `json:"order,omitempty"`
	LicenseKeys      []KeyInfo        `json:"license_keys"`
	Combos           []ComboInfo      `json:"combos,omitempty"`
	Warranty         *WarrantyInfo    `json:"warranty,omitempty"`
	Replacement      *ReplacementInfo `json:"replacement,omitempty"`
	Preactivated     bool             `json:"preactivated"`
	PhoneActivation  bool             `json:"phone_activation_used"`
	SuggestedActions []string         `json:"suggested_actions"`
}
