// Package config loads the auth-service configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
)

// AuthServiceConfig is the complete auth-service configuration.
type AuthServiceConfig struct {
	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
	Mongo    MongoConfig    `envPrefix:"MONGO_"`
	Token    TokenConfig    `envPrefix:"TOKEN_"`
	OTP      OTPConfig      `envPrefix:"OTP_"`
	Password PasswordConfig `envPrefix:"PASSWORD_"`
	Cookie   CookieConfig   `envPrefix:"COOKIE_"`
	Log      LogConfig      `envPrefix:"LOG_"`
}

type HTTPConfig struct {
	Addr            string        `env:"ADDR"             envDefault:":8080" validate:"required"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT"     envDefault:"10s"   validate:"gt=0"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT"    envDefault:"10s"   validate:"gt=0"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"   validate:"gt=0"`
}

type MongoConfig struct {
	URI      string        `env:"URI"      envDefault:"mongodb://localhost:27017" validate:"required"`
	Database string        `env:"DATABASE" envDefault:"lms"                       validate:"required"`
	// Timeout bounds every single store operation.
	Timeout time.Duration `env:"TIMEOUT" envDefault:"5s" validate:"gt=0"`
}

type TokenConfig struct {
	Issuer                      string        `env:"ISSUER"                          envDefault:"lms-auth-service" validate:"required"`
	AccessTokenSecret           string        `env:"ACCESS_SECRET,required"                                        validate:"min=32"`
	AccessTokenExpiresIn        time.Duration `env:"ACCESS_EXPIRES_IN"               envDefault:"15m"              validate:"gt=0"`
	RefreshTokenSecret          string        `env:"REFRESH_SECRET,required"                                       validate:"min=32,nefield=AccessTokenSecret"`
	RefreshTokenExpiresIn       time.Duration `env:"REFRESH_EXPIRES_IN"              envDefault:"168h"             validate:"gtfield=AccessTokenExpiresIn"`
	PasswordResetTokenSecret    string        `env:"PASSWORD_RESET_SECRET,required"                                validate:"min=32,nefield=AccessTokenSecret,nefield=RefreshTokenSecret"`
	PasswordResetTokenExpiresIn time.Duration `env:"PASSWORD_RESET_EXPIRES_IN"       envDefault:"10m"              validate:"gt=0"`
}

type OTPConfig struct {
	ExpiresIn time.Duration `env:"EXPIRES_IN" envDefault:"1m" validate:"gt=0"`
	// Retention keeps used and expired challenges around before the TTL index drops them.
	// A late verify can only report an expired code while the row still exists.
	Retention time.Duration `env:"RETENTION" envDefault:"24h" validate:"gte=1h"`
}

type PasswordConfig struct {
	Algorithm string `env:"ALGORITHM" envDefault:"bcrypt" validate:"oneof=bcrypt argon2id"`
	MinLength int    `env:"MIN_LENGTH" envDefault:"6"    validate:"gte=1,lte=72"`
}

type CookieConfig struct {
	Secure bool   `env:"SECURE" envDefault:"true"`
	Domain string `env:"DOMAIN"`
}

type LogConfig struct {
	Level  string `env:"LEVEL"  envDefault:"info" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `env:"FORMAT" envDefault:"json" validate:"oneof=json pretty"`
}

// Load parses the configuration from environment variables and validates it.
func Load() (*AuthServiceConfig, error) {
	cfg, err := env.ParseAs[AuthServiceConfig]()
	if err != nil {
		return nil, fmt.Errorf("failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks the configuration against its struct tags.
func (c *AuthServiceConfig) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid auth-service configuration: %w", err)
	}

	return nil
}
