package notify

import (
	"context"
	"encoding/json"
	"time"

	"licensecore/pkg/repository"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type AuditLog struct {
	ID         string         `gorm:"column:id;primaryKey"`
	Action     string         `gorm:"column:action;not null;index"`
	ResourceID string         `gorm:"column:resource_id;index"`
	Actor      string         `gorm:"column:actor"`
	Detail     datatypes.JSON `gorm:"column:detail"`
	CreatedAt  time.Time      `gorm:"column:created_at;autoCreateTime"`
}

func (AuditLog) TableName() string {
	return "audit_logs"
}

type Auditor struct {
	node *snowflake.Node
	repo repository.Repository[AuditLog]
}

func NewAuditor(db *gorm.DB, node *snowflake.Node) *Auditor {
	return &Auditor{
		node: node,
		repo: repository.ProvideStore[AuditLog](db),
	}
}

// Record persists an audit entry. Failures are logged and swallowed;
// an audit miss must not fail the action it describes.
func (a *Auditor) Record(ctx context.Context, action, resourceID, actor string, detail any) {
	var raw datatypes.JSON
	if detail != nil {
		b, err := json.Marshal(detail)
		if err != nil {
			zap.L().Error("failed to marshal audit detail", zap.String("action", action), zap.Error(err))
		} else {
			raw = datatypes.JSON(b)
		}
	}

	if err := a.repo.Create(ctx, &AuditLog{
		ID:         a.node.Generate().String(),
		Action:     action,
		ResourceID: resourceID,
		Actor:      actor,
		Detail:     raw,
	}); err != nil {
		zap.L().Error("failed to persist audit log", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}
