// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"time"

	"github.com/taibuivan/companion/internal/platform/config"
	"github.com/taibuivan/companion/internal/platform/constants"
)

// # Authentication Constraints

const (
	// VerificationCodeDigits is the length of the numeric email verification code.
	VerificationCodeDigits = 6

	// MaxVerificationAttempts is how many wrong codes burn the outstanding one.
	MaxVerificationAttempts = 5

	// sessionActive is the marker value of a live session. Anything else
	// stored under the marker key is a revocation.
	sessionActive = "active"

	// sessionRevoked is the tombstone written at logout.
	sessionRevoked = "revoked"
)

// Options holds the lifetimes and switches of the auth flows.
type Options struct {
	AccessTokenTTL  time.Duration
	RememberMeTTL   time.Duration
	RefreshTokenTTL time.Duration

	// SessionTombstoneTTL is a floor. Logout keeps the tombstone for at least
	// the longest token lifetime, see revocationTTL.
	SessionTombstoneTTL time.Duration

	VerificationCodeTTL  time.Duration
	VerificationCooldown time.Duration
	ResetTokenTTL        time.Duration
	ResetCooldown        time.Duration

	// ExposeVerificationCode returns the code to the HTTP caller. Development only.
	ExposeVerificationCode bool

	// PublicBaseURL is the frontend origin used to build reset links.
	PublicBaseURL string

	// DependencyTimeout bounds every call to the stores and the notifier.
	DependencyTimeout time.Duration
}

// DefaultOptions returns the production lifetimes.
func DefaultOptions() Options {
	return Options{
		AccessTokenTTL:       15 * time.Minute,
		RememberMeTTL:        7 * 24 * time.Hour,
		RefreshTokenTTL:      7 * 24 * time.Hour,
		SessionTombstoneTTL:  7 * 24 * time.Hour,
		VerificationCodeTTL:  5 * time.Minute,
		VerificationCooldown: 5 * time.Minute,
		ResetTokenTTL:        30 * time.Minute,
		ResetCooldown:        5 * time.Minute,
		PublicBaseURL:        "http://localhost:3000",
		DependencyTimeout:    3 * time.Second,
	}
}

// OptionsFromConfig maps the environment configuration onto [Options].
func OptionsFromConfig(cfg *config.Config) Options {
	options := Options{
		AccessTokenTTL:         cfg.AccessTokenTTL,
		RememberMeTTL:          cfg.RememberMeTTL,
		RefreshTokenTTL:        cfg.RefreshTokenTTL,
		SessionTombstoneTTL:    cfg.SessionTombstoneTTL,
		VerificationCodeTTL:    cfg.VerificationCodeTTL,
		VerificationCooldown:   cfg.VerificationCooldown,
		ResetTokenTTL:          cfg.ResetTokenTTL,
		ResetCooldown:          cfg.ResetCooldown,
		ExposeVerificationCode: cfg.ExposeVerificationCode && !cfg.IsProduction(),
		PublicBaseURL:          cfg.PublicBaseURL,
		DependencyTimeout:      cfg.DependencyTimeout,
	}

	options.SessionTombstoneTTL = options.revocationTTL()
	return options
}

// revocationTTL is the lifetime of a logout tombstone. A token issued before
// logout must expire before its tombstone does, since an absent marker passes.
func (options Options) revocationTTL() time.Duration {
	return max(options.SessionTombstoneTTL, options.RefreshTokenTTL, options.RememberMeTTL, options.AccessTokenTTL)
}

// # Cache Keys

func sessionKey(userID string) string          { return constants.RedisPrefixSession + userID }
func accessTokenKey(userID string) string      { return constants.RedisPrefixAccessToken + userID }
func verifyCodeKey(email string) string        { return constants.RedisPrefixVerifyCode + email }
func verifyThrottleKey(email string) string    { return constants.RedisPrefixVerifyThrottle + email }
func verifyAttemptsKey(email string) string    { return constants.RedisPrefixVerifyAttempts + email }
func resetThrottleKey(email string) string     { return constants.RedisPrefixResetThrottle + email }
func resetConsumedKey(tokenHash string) string { return constants.RedisPrefixResetConsumed + tokenHash }
