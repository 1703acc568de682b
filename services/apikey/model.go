package apikey

import (
	"time"

	"github.com/lib/pq"
)

type APIKeyStatus string

const (
	APIKeyStatusActive  APIKeyStatus = "active"
	APIKeyStatusRevoked APIKeyStatus = "revoked"
	APIKeyStatusExpired APIKeyStatus = "expired"
)

type APIKey struct {
	ID         string         `gorm:"column:id;primaryKey"`
	KeyID      string         `gorm:"column:key_id;uniqueIndex;not null"` // e.g. lck_live_xxx
	SecretHash string         `gorm:"column:secret_hash;not null"`        // bcrypt hash, never the plaintext
	Scopes     pq.StringArray `gorm:"column:scopes;type:text[];not null"` // e.g. {'verify','admin'}
	Status     APIKeyStatus   `gorm:"column:status;default:'active';not null"`
	CreatedBy  *string        `gorm:"column:created_by"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
	ExpiresAt  *time.Time     `gorm:"column:expires_at"`
}

func (APIKey) TableName() string {
	return "api_keys"
}
