package asynq

const (
	TaskLicenseDelivery      = "notify:license_delivery"
	TaskWarrantyDecision     = "notify:warranty_decision"
	TaskResubmissionReminder = "notify:resubmission_reminder"
	TaskReplacementDecision  = "notify:replacement_decision"
)

type LicenseDeliveryPayload struct {
	OrderID      string   `json:"order_id"`
	Email        string   `json:"email"`
	LicenseKeys  []string `json:"license_keys"`
	SecretCodes  []string `json:"secret_codes"`
	ProductCodes []string `json:"product_codes"`
}

type WarrantyDecisionPayload struct {
	WarrantyID string `json:"warranty_id"`
	OrderID    string `json:"order_id"`
	Email      string `json:"email"`
	Status     string `json:"status"`
	Reason     string `json:"reason,omitempty"`
}

type ReplacementDecisionPayload struct {
	RequestID string `json:"request_id"`
	OrderID   string `json:"order_id"`
	Email     string `json:"email"`
	Status    string `json:"status"`
	NewKey    string `json:"new_key,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type ResubmissionReminderPayload struct {
	WarrantyID string `json:"warranty_id"`
	OrderID    string `json:"order_id"`
	Email      string `json:"email"`
}
