package main

import (
	"github.com/tech-arch1tect/scanassist/config"
	"github.com/tech-arch1tect/scanassist/database"
	"github.com/tech-arch1tect/scanassist/handlers"
	"github.com/tech-arch1tect/scanassist/middleware/ratelimit"
	"github.com/tech-arch1tect/scanassist/server"
	"github.com/tech-arch1tect/scanassist/services/account"
	"github.com/tech-arch1tect/scanassist/services/challenge"
	"github.com/tech-arch1tect/scanassist/services/jwt"
	"github.com/tech-arch1tect/scanassist/services/logging"
	"github.com/tech-arch1tect/scanassist/services/mail"
	"github.com/tech-arch1tect/scanassist/services/otp"
	"github.com/tech-arch1tect/scanassist/services/token"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.NewProvider(nil),
		logging.Module,
		fx.Supply(database.WithModels(
			&challenge.Challenge{},
			&account.User{},
			&account.Invitation{},
			&account.WebAccount{},
		)),
		database.Module,
		token.Module,
		otp.Module,
		mail.Module,
		account.Module,
		challenge.Module,
		jwt.Module,
		ratelimit.Module,
		server.Module,
		handlers.Module,
	)

	app.Run()
}
