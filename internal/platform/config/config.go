// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package config handles application-wide settings and environment parsing.

It leverages 'caarlos0/env' to map OS environment variables into a strongly-typed
Go struct, providing early validation and default values.

Usage:

	cfg, err := config.Load()
	if err != nil {
	    log.Fatal(err)
	}

Architecture:

  - Immutability: Once loaded, configuration is read-only.
  - DI-Friendly: Passed to core components (DB, Redis, NATS) via constructors.
  - Zero Hidden State: No global variables are used to store config.
*/
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// # Configuration Schema

// Config holds all runtime configuration for the Companion API server.
type Config struct {

	// Server settings
	ServerPort  string `env:"SERVER_PORT"  envDefault:"8080"`
	Environment string `env:"ENVIRONMENT"  envDefault:"development"`
	Debug       bool   `env:"DEBUG"        envDefault:"false"`

	// Relational Database (PostgreSQL)
	DatabaseURL string `env:"DATABASE_URL,required"`

	// MigrationPath is the filesystem path to the SQL migrations directory.
	MigrationPath string `env:"MIGRATION_PATH" envDefault:"./data/migrations"`

	// Key-Value Cache (Redis)
	RedisURL string `env:"REDIS_URL,required"`

	// Message bus used to hand outbound mail to the delivery worker.
	// Empty means notifications are only logged.
	NATSURL     string `env:"NATS_URL"`
	MailSubject string `env:"MAIL_SUBJECT" envDefault:"companion.mail.outbound"`

	// Token signing. RS256 is used when both key paths are set, HS256 with
	// TokenSecret otherwise.
	TokenSecret    string `env:"TOKEN_SECRET"`
	JWTPrivKeyPath string `env:"JWT_PRIVATE_KEY_PATH"`
	JWTPubKeyPath  string `env:"JWT_PUBLIC_KEY_PATH"`

	// Credential lifetimes
	AccessTokenTTL      time.Duration `env:"ACCESS_TOKEN_TTL"      envDefault:"15m"`
	RememberMeTTL       time.Duration `env:"REMEMBER_ME_TTL"       envDefault:"168h"`
	RefreshTokenTTL     time.Duration `env:"REFRESH_TOKEN_TTL"     envDefault:"168h"`
	SessionTombstoneTTL time.Duration `env:"SESSION_TOMBSTONE_TTL" envDefault:"168h"`

	// One-shot flows
	VerificationCodeTTL  time.Duration `env:"VERIFICATION_CODE_TTL"  envDefault:"5m"`
	VerificationCooldown time.Duration `env:"VERIFICATION_COOLDOWN"  envDefault:"5m"`
	ResetTokenTTL        time.Duration `env:"RESET_TOKEN_TTL"        envDefault:"30m"`
	ResetCooldown        time.Duration `env:"RESET_COOLDOWN"         envDefault:"5m"`

	// ExposeVerificationCode echoes the verification code in the HTTP response.
	// Development only; refused in production.
	ExposeVerificationCode bool `env:"EXPOSE_VERIFICATION_CODE" envDefault:"false"`

	// PublicBaseURL is the frontend origin used to build password reset links.
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:3000"`

	// DependencyTimeout bounds every call to Postgres, Redis and the notifier.
	DependencyTimeout time.Duration `env:"DEPENDENCY_TIMEOUT" envDefault:"3s"`

	// Cross-Origin Resource Sharing
	ExtraOrigins string `env:"EXTRA_ORIGINS"`
}

// # Configuration Loading

// Load parses environment variables into a [Config] struct.
func Load() (*Config, error) {

	// Initialize an empty config struct
	cfg := &Config{}

	// Use the 'env' package to map environment variables to struct fields.
	// This will fail if any field marked with 'required' is missing.
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks cross-field constraints that struct tags cannot express.
func (c *Config) Validate() error {
	hasKeyPair := c.JWTPrivKeyPath != "" && c.JWTPubKeyPath != ""
	if !hasKeyPair && c.TokenSecret == "" {
		return errors.New("config: either TOKEN_SECRET or both JWT key paths must be set")
	}

	if c.IsProduction() && c.ExposeVerificationCode {
		return errors.New("config: EXPOSE_VERIFICATION_CODE is not allowed in production")
	}

	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 {
		return errors.New("config: token lifetimes must be positive")
	}

	return nil
}

// UsesKeyPair reports whether tokens are signed with an RSA key pair.
func (c *Config) UsesKeyPair() bool {
	return c.JWTPrivKeyPath != "" && c.JWTPubKeyPath != ""
}

// IsDevelopment reports whether the server is running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction reports whether the server is running in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
