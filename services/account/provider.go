package account

import (
	"github.com/tech-arch1tect/scanassist/config"
	"github.com/tech-arch1tect/scanassist/services/logging"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideAccountService(cfg *config.Config, db *gorm.DB, logger *logging.Service) *Service {
	return NewService(cfg, db, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideAccountService),
)
