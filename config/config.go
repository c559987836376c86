package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	App          AppConfig          `envPrefix:"SCANASSIST_APP_"`
	Server       ServerConfig       `envPrefix:"SCANASSIST_SERVER_"`
	Log          LogConfig          `envPrefix:"SCANASSIST_LOG_"`
	Database     DatabaseConfig     `envPrefix:"SCANASSIST_DB_"`
	Auth         AuthConfig         `envPrefix:"SCANASSIST_AUTH_"`
	Verification VerificationConfig `envPrefix:"SCANASSIST_VERIFY_"`
	OTP          OTPConfig          `envPrefix:"SCANASSIST_OTP_"`
	Mail         MailConfig         `envPrefix:"SCANASSIST_MAIL_"`
	JWT          JWTConfig          `envPrefix:"SCANASSIST_JWT_"`
	RateLimit    RateLimitConfig    `envPrefix:"SCANASSIST_RATELIMIT_"`
}

type AppConfig struct {
	Name string `env:"NAME" envDefault:"scanassist"`
	URL  string `env:"URL" envDefault:"http://localhost:8080"`
}

type ServerConfig struct {
	Port string `env:"PORT" envDefault:"8080"`
	Host string `env:"HOST" envDefault:"localhost"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
	Output string `env:"OUTPUT" envDefault:"stdout"`
}

type DatabaseConfig struct {
	Driver      string `env:"DRIVER" envDefault:"sqlite"`
	DSN         string `env:"DSN" envDefault:"scanassist.db"`
	AutoMigrate bool   `env:"AUTO_MIGRATE" envDefault:"true"`
}

type AuthConfig struct {
	MinLength      int  `env:"MIN_LENGTH" envDefault:"8"`
	RequireUpper   bool `env:"REQUIRE_UPPER" envDefault:"true"`
	RequireNumber  bool `env:"REQUIRE_NUMBER" envDefault:"true"`
	RequireSpecial bool `env:"REQUIRE_SPECIAL" envDefault:"true"`
	BcryptCost     int  `env:"BCRYPT_COST" envDefault:"10"`
}

// VerificationConfig carries the per-flow TTLs of the challenge engine.
// Link tokens are opaque secrets; TokenLength is the entropy in bytes.
type VerificationConfig struct {
	TokenLength         int           `env:"TOKEN_LENGTH" envDefault:"24"`
	RegisterExpiry      time.Duration `env:"REGISTER_EXPIRY" envDefault:"30m"`
	ChangeEmailExpiry   time.Duration `env:"CHANGE_EMAIL_EXPIRY" envDefault:"30m"`
	DeleteAccountExpiry time.Duration `env:"DELETE_ACCOUNT_EXPIRY" envDefault:"30m"`
	LegacyWebExpiry     time.Duration `env:"LEGACY_WEB_EXPIRY" envDefault:"30m"`
	PasswordResetExpiry time.Duration `env:"PASSWORD_RESET_EXPIRY" envDefault:"15m"`
}

type OTPConfig struct {
	CodeLength  int           `env:"CODE_LENGTH" envDefault:"6"`
	Expiry      time.Duration `env:"EXPIRY" envDefault:"5m"`
	MaxAttempts int           `env:"MAX_ATTEMPTS" envDefault:"5"`
}

type MailConfig struct {
	Host         string        `env:"HOST" envDefault:"localhost"`
	Port         int           `env:"PORT" envDefault:"587"`
	Username     string        `env:"USERNAME"`
	Password     string        `env:"PASSWORD"`
	Encryption   string        `env:"ENCRYPTION" envDefault:"starttls"`
	FromAddress  string        `env:"FROM_ADDRESS"`
	FromName     string        `env:"FROM_NAME"`
	TemplatesDir string        `env:"TEMPLATES_DIR"`
	SendTimeout  time.Duration `env:"SEND_TIMEOUT" envDefault:"10s"`
}

type JWTConfig struct {
	SecretKey    string        `env:"SECRET_KEY"`
	AccessExpiry time.Duration `env:"ACCESS_EXPIRY" envDefault:"15m"`
	Issuer       string        `env:"ISSUER" envDefault:"scanassist"`
}

type RateLimitConfig struct {
	InitiateRate   int           `env:"INITIATE_RATE" envDefault:"5"`
	InitiatePeriod time.Duration `env:"INITIATE_PERIOD" envDefault:"15m"`
	ConsumeRate    int           `env:"CONSUME_RATE" envDefault:"30"`
	ConsumePeriod  time.Duration `env:"CONSUME_PERIOD" envDefault:"1m"`
}

func LoadConfig(cfg any) error {
	if err := godotenv.Load(); err != nil {
		log.Printf("No .env file found: %v", err)
	}

	return env.Parse(cfg)
}
