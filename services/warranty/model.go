package warranty

import "time"

type Status string

const (
	StatusProcessing        Status = "PROCESSING"
	StatusVerified          Status = "VERIFIED"
	StatusRejected          Status = "REJECTED"
	StatusNeedsResubmission Status = "NEEDS_RESUBMISSION"
)

// Registration is the warranty record for one order. The unique index
// on order_id keeps registrations one-per-order.
type Registration struct {
	ID                    string     `gorm:"column:id;primaryKey"`
	OrderID               string     `gorm:"column:order_id;uniqueIndex;not null"`
	Status                Status     `gorm:"column:status;default:'PROCESSING';not null;index"`
	Channel               string     `gorm:"column:channel;not null"`
	ContactEmail          string     `gorm:"column:contact_email"`
	ProofSellerFeedback   string     `gorm:"column:proof_seller_feedback"`
	ProofProductReview    string     `gorm:"column:proof_product_review"`
	MissingSellerFeedback bool       `gorm:"column:missing_seller_feedback;default:false"`
	MissingProductReview  bool       `gorm:"column:missing_product_review;default:false"`
	ResubmissionCount     int        `gorm:"column:resubmission_count;default:0"`
	ReminderCount         int        `gorm:"column:reminder_count;default:0"`
	RejectionReason       string     `gorm:"column:rejection_reason"`
	AdminNotes            string     `gorm:"column:admin_notes"`
	VerifiedAt            *time.Time `gorm:"column:verified_at"`
	CreatedAt             time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Registration) TableName() string {
	return "warranty_registrations"
}
