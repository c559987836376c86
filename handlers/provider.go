package handlers

import (
	"github.com/tech-arch1tect/scanassist/config"
	jwtmw "github.com/tech-arch1tect/scanassist/middleware/jwt"
	"github.com/tech-arch1tect/scanassist/middleware/ratelimit"
	"github.com/tech-arch1tect/scanassist/server"
	"github.com/tech-arch1tect/scanassist/services/jwt"
	"go.uber.org/fx"
)

func ProvideSubjectLimiter(cfg *config.Config, store ratelimit.Store) *ratelimit.Limiter {
	return ratelimit.NewLimiter(store, cfg.RateLimit.InitiateRate, cfg.RateLimit.InitiatePeriod)
}

// RegisterRoutes wires the API surface. Consume-style endpoints get a per-IP
// limit; initiate endpoints throttle per subject inside the handler.
func RegisterRoutes(srv *server.Server, cfg *config.Config, store ratelimit.Store, tokens *jwt.Service,
	verification *VerificationHandler, password *PasswordHandler, codes *OTPHandler,
	auth *AuthHandler, invitations *InvitationHandler) {

	consumeLimit := ratelimit.Middleware(&ratelimit.Config{
		Store:  store,
		Rate:   cfg.RateLimit.ConsumeRate,
		Period: cfg.RateLimit.ConsumePeriod,
	})

	api := srv.Group("/api")

	api.POST("/verify/initiate", verification.Initiate)
	api.POST("/verify/consume", verification.Consume, consumeLimit)

	api.POST("/password/forgot", password.Forgot)
	api.POST("/password/verify", password.Verify, consumeLimit)
	api.POST("/password/reset", password.Reset, consumeLimit)

	api.POST("/verify/otp/send", codes.Send)
	api.POST("/verify/otp/check", codes.Check, consumeLimit)

	api.POST("/auth/login", auth.Login)
	api.POST("/auth/logout", auth.Logout, jwtmw.RequireJWT(tokens))

	api.POST("/invitations", invitations.Create, jwtmw.RequireJWT(tokens), jwtmw.RequireRole("admin"))
}

var Module = fx.Options(
	fx.Provide(ProvideSubjectLimiter),
	fx.Provide(NewVerificationHandler),
	fx.Provide(NewPasswordHandler),
	fx.Provide(NewOTPHandler),
	fx.Provide(NewAuthHandler),
	fx.Provide(NewInvitationHandler),
	fx.Invoke(RegisterRoutes),
)
