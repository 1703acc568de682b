package order

import (
	"time"

	"github.com/lib/pq"
)

type Status string

const (
	StatusCreated   Status = "created"
	StatusPaid      Status = "paid"
	StatusDelivered Status = "delivered"
)

// Order is the ledger record for one purchase. For marketplace orders
// the ID is the marketplace order id itself; website orders get a
// snowflake id.
type Order struct {
	ID                  string     `gorm:"column:id;primaryKey"`
	Status              Status     `gorm:"column:status;default:'created';not null;index"`
	Channel             string     `gorm:"column:channel;not null"`
	PaymentRef          string     `gorm:"column:payment_ref;index"`
	BillingEmail        string     `gorm:"column:billing_email"`
	BillingPhone        string     `gorm:"column:billing_phone"`
	ActiveLicenseKeyID  *string    `gorm:"column:active_license_key_id"`
	IsFraud             bool       `gorm:"column:is_fraud;default:false"`
	FraudReason         string     `gorm:"column:fraud_reason"`
	IsReturned          bool       `gorm:"column:is_returned;default:false"`
	HasActivationIssue  bool       `gorm:"column:has_activation_issue;default:false"`
	IssueStatus         string     `gorm:"column:issue_status"`
	PhoneActivationUsed bool       `gorm:"column:phone_activation_used;default:false"`
	InstallationID      string     `gorm:"column:installation_id"`
	PaidAt              *time.Time `gorm:"column:paid_at"`
	DeliveredAt         *time.Time `gorm:"column:delivered_at"`
	CreatedAt           time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string {
	return "orders"
}

type ItemStatus string

const (
	ItemStatusPending   ItemStatus = "pending"
	ItemStatusFulfilled ItemStatus = "fulfilled"
	ItemStatusShortfall ItemStatus = "shortfall"
)

type OrderItem struct {
	ID            string         `gorm:"column:id;primaryKey"`
	OrderID       string         `gorm:"column:order_id;not null;index"`
	ProductCode   string         `gorm:"column:product_code;not null"`
	Quantity      int            `gorm:"column:quantity;not null"`
	LicenseKeyIDs pq.StringArray `gorm:"column:license_key_ids;type:text[]"`
	SecretCodes   pq.StringArray `gorm:"column:secret_codes;type:text[]"`
	Status        ItemStatus     `gorm:"column:status;default:'pending';not null"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}

func (OrderItem) TableName() string {
	return "order_items"
}

// SecretCode maps a minted surrogate code back to its order. The
// unique index on code is what turns a random collision into an insert
// conflict instead of silent reuse.
type SecretCode struct {
	ID          string    `gorm:"column:id;primaryKey"`
	Code        string    `gorm:"column:code;uniqueIndex;not null"`
	OrderID     string    `gorm:"column:order_id;not null;index"`
	OrderItemID string    `gorm:"column:order_item_id;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (SecretCode) TableName() string {
	return "secret_codes"
}
