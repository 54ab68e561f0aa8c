// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/taibuivan/companion/internal/platform/apperr"
	"github.com/taibuivan/companion/internal/platform/sec"
)

// # Error Taxonomy
//
// Every failure an auth operation reports to its caller is one of the values
// below, a VALIDATION_ERROR, or a DEPENDENCY_UNAVAILABLE. Match them with
// errors.Is; the message may differ from the sentinel's.

var (
	ErrInvalidCredentials   = apperr.New("INVALID_CREDENTIALS", http.StatusUnauthorized, "Invalid email or password")
	ErrEmailNotVerified     = apperr.New("EMAIL_NOT_VERIFIED", http.StatusForbidden, "Email address has not been verified")
	ErrAccountDeleted       = apperr.New("ACCOUNT_DELETED", http.StatusForbidden, "This account has been deleted")
	ErrAccountBanned        = apperr.New("ACCOUNT_BANNED", http.StatusForbidden, "This account has been suspended")
	ErrTokenExpired         = apperr.New("TOKEN_EXPIRED", http.StatusUnauthorized, "Token has expired")
	ErrTokenMalformed       = apperr.New("TOKEN_MALFORMED", http.StatusUnauthorized, "Token is invalid")
	ErrSessionRevoked       = apperr.New("SESSION_REVOKED", http.StatusUnauthorized, "Session has been revoked, please log in again")
	ErrInvalidOrExpiredCode = apperr.New("INVALID_OR_EXPIRED_CODE", http.StatusBadRequest, "Verification code is invalid or has expired")
	ErrAccountNotFound      = apperr.NotFound("Account")
)

// # Store Sentinels

var (
	// ErrUserNotFound is returned by a [UserDirectory] when no row matches.
	ErrUserNotFound = errors.New("auth: user not found")

	// ErrDuplicateEmail is returned by [UserDirectory.Insert] on a unique violation.
	ErrDuplicateEmail = errors.New("auth: email already registered")

	// ErrCacheMiss is returned by [FlowCache.Get] when the key is absent or expired.
	ErrCacheMiss = errors.New("auth: cache miss")
)

// # Constructors

// errDuplicateEmail is the validation error both the pre-check and the unique
// constraint resolve to.
func errDuplicateEmail() error {
	return apperr.ValidationError("Validation failed", apperr.FieldError{
		Field:   FieldEmail,
		Message: "Email is already registered",
	})
}

// tooManyRequests reports a cooldown. retryAfter may be zero.
func tooManyRequests(message string, retryAfter time.Duration) error {
	return apperr.TooManyRequests(message, retryAfter)
}

// unavailable converts an infrastructure failure into DEPENDENCY_UNAVAILABLE,
// leaving errors that are already classified untouched.
func unavailable(dependency string, err error) error {
	if apperr.IsAppError(err) {
		return err
	}
	return apperr.DependencyUnavailable(dependency, err)
}

// tokenError maps Token Service failures onto the taxonomy.
func tokenError(err error) error {
	if errors.Is(err, sec.ErrTokenExpired) {
		return ErrTokenExpired.WithCause(err)
	}
	return ErrTokenMalformed.WithCause(err)
}

const (
	dependencyDirectory = "Account store"
	dependencyCache     = "Session cache"
	dependencyAudit     = "Session audit"
)
