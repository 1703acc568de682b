package pool

import "time"

type KeyStatus string

const (
	KeyStatusAvailable KeyStatus = "available"
	KeyStatusSold      KeyStatus = "sold"
	KeyStatusBlocked   KeyStatus = "blocked"
)

// LicenseKey is one pre-minted activation key. A key is owned by at
// most one order; ownership is only ever taken through a conditional
// update guarded on status = available.
type LicenseKey struct {
	ID          string     `gorm:"column:id;primaryKey"`
	ProductCode string     `gorm:"column:product_code;not null;index"`
	KeyMaterial string     `gorm:"column:key_material;uniqueIndex;not null"`
	Status      KeyStatus  `gorm:"column:status;default:'available';not null;index"`
	OrderID     *string    `gorm:"column:order_id;index"`
	OrderItemID *string    `gorm:"column:order_item_id"`
	RedeemedAt  *time.Time `gorm:"column:redeemed_at"`
	CreatedAt   time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (LicenseKey) TableName() string {
	return "license_keys"
}
