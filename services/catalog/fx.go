package catalog

import (
	"licensecore/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("catalog.module",
	fx.Provide(provideCatalog),
)

func provideCatalog(cfg *config.Config) (*Catalog, error) {
	c, err := Load(cfg.Catalog.MappingFile)
	if err != nil {
		zap.L().Error("failed to load catalog mapping file", zap.String("path", cfg.Catalog.MappingFile), zap.Error(err))
		return nil, err
	}
	return c, nil
}
