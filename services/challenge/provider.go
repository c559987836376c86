package challenge

import (
	"github.com/tech-arch1tect/scanassist/config"
	"github.com/tech-arch1tect/scanassist/services/account"
	"github.com/tech-arch1tect/scanassist/services/logging"
	"github.com/tech-arch1tect/scanassist/services/token"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func ProvideDispatcher(accounts *account.Service, logger *logging.Service) Dispatcher {
	return NewFlowDispatcher(accounts, logger)
}

func ProvideService(db *gorm.DB, cfg *config.Config, codec *token.Codec, dispatcher Dispatcher, logger *logging.Service) *Service {
	return NewService(db, cfg, codec, dispatcher, logger)
}

var Module = fx.Options(
	fx.Provide(ProvideDispatcher),
	fx.Provide(ProvideService),
)
