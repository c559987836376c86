package testutils

import (
	"time"

	"github.com/tech-arch1tect/scanassist/config"
	"golang.org/x/crypto/bcrypt"
)

func GetTestConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{
			Name: "scanassist test",
			URL:  "http://localhost:8080",
		},
		Auth: config.AuthConfig{
			MinLength:      8,
			RequireUpper:   true,
			RequireNumber:  true,
			RequireSpecial: true,
			BcryptCost:     bcrypt.MinCost,
		},
		Verification: config.VerificationConfig{
			TokenLength:         24,
			RegisterExpiry:      30 * time.Minute,
			ChangeEmailExpiry:   30 * time.Minute,
			DeleteAccountExpiry: 30 * time.Minute,
			LegacyWebExpiry:     30 * time.Minute,
			PasswordResetExpiry: 15 * time.Minute,
		},
		OTP: config.OTPConfig{
			CodeLength:  6,
			Expiry:      5 * time.Minute,
			MaxAttempts: 5,
		},
		JWT: config.JWTConfig{
			SecretKey:    "test-secret-key-32-chars-long!!!",
			AccessExpiry: 15 * time.Minute,
			Issuer:       "scanassist-test",
		},
		Database: config.DatabaseConfig{
			Driver: "sqlite",
			DSN:    ":memory:",
		},
	}
}

var TestPasswords = struct {
	Valid     string
	TooShort  string
	NoUpper   string
	NoNumber  string
	NoSpecial string
}{
	Valid:     "Password123!",
	TooShort:  "Pw1!",
	NoUpper:   "password123!",
	NoNumber:  "Password!",
	NoSpecial: "Password123",
}
