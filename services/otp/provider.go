package otp

import (
	"github.com/tech-arch1tect/scanassist/config"
	"github.com/tech-arch1tect/scanassist/services/logging"
	"github.com/tech-arch1tect/scanassist/services/token"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(ProvideStore),
)

func ProvideStore(cfg *config.Config, codec *token.Codec, logger *logging.Service) *Store {
	return NewStore(Config{
		CodeLength:  cfg.OTP.CodeLength,
		Expiry:      cfg.OTP.Expiry,
		MaxAttempts: cfg.OTP.MaxAttempts,
	}, codec, logger)
}
