package bootstrap

import (
	"licensecore/services/apikey"
	"licensecore/services/notify"
	"licensecore/services/order"
	"licensecore/services/pool"
	"licensecore/services/replacement"
	"licensecore/services/warranty"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db *gorm.DB
}

type ServiceParams struct {
	fx.In
	DB *gorm.DB
}

func NewService(p ServiceParams) *Service {
	return &Service{db: p.DB}
}

// Migrate brings the schema up to date for every persisted model.
func (s *Service) Migrate() error {
	if err := s.db.AutoMigrate(
		&pool.LicenseKey{},
		&order.Order{},
		&order.OrderItem{},
		&order.SecretCode{},
		&warranty.Registration{},
		&replacement.Request{},
		&apikey.APIKey{},
		&notify.AuditLog{},
	); err != nil {
		zap.L().Error("[bootstrap] migration failed", zap.Error(err))
		return err
	}

	zap.L().Info("[bootstrap] schema migrated")
	return nil
}
