package replacement

import "time"

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Request is one replacement ask. Orders accumulate requests over
// time; the newest one is the active request, older ones are history.
type Request struct {
	ID            string     `gorm:"column:id;primaryKey"`
	OrderID       string     `gorm:"column:order_id;not null;index"`
	CustomerEmail string     `gorm:"column:customer_email"`
	ProductCode   string     `gorm:"column:product_code"`
	OriginalKeyID *string    `gorm:"column:original_key_id"`
	NewKeyID      *string    `gorm:"column:new_key_id"`
	ScreenshotURL string     `gorm:"column:screenshot_url"`
	Status        Status     `gorm:"column:status;default:'PENDING';not null;index"`
	IsInstant     bool       `gorm:"column:is_instant;default:false"`
	AdminNotes    string     `gorm:"column:admin_notes"`
	ReviewedBy    string     `gorm:"column:reviewed_by"`
	ReviewedAt    *time.Time `gorm:"column:reviewed_at"`
	CreatedAt     time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Request) TableName() string {
	return "replacement_requests"
}
