// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/taibuivan/companion/internal/platform/apperr"
	"github.com/taibuivan/companion/internal/platform/constants"
	"github.com/taibuivan/companion/internal/platform/ctxutil"
	"github.com/taibuivan/companion/internal/platform/metrics"
	"github.com/taibuivan/companion/internal/platform/sec"
	"github.com/taibuivan/companion/internal/platform/validate"
)

const tracerName = "github.com/taibuivan/companion/internal/users/auth"

// # Contracts & Types

// TokenIssuer signs and verifies bearer tokens. [*sec.TokenService] satisfies it.
type TokenIssuer interface {
	Issue(subject string, kind sec.TokenKind, ttl time.Duration) (string, time.Time, error)
	Verify(token string, kind sec.TokenKind) (*sec.AuthClaims, error)
	VerifyToken(token string) (*sec.AuthClaims, error)
}

// TokenPair is the result of a successful login.
type TokenPair struct {
	UserID           string    `json:"user_id"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	TokenType        string    `json:"token_type"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
}

// AccessGrant is the result of a refresh.
type AccessGrant struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Authenticator implements the login, refresh, logout and request
// authentication use cases, plus the authenticated account operations.
//
// # Review Process
//
// This type is critical for security. Any change to the order of the login
// checks or to the session check in AuthenticateRequest must be reviewed.
type Authenticator struct {
	tokens    TokenIssuer
	directory UserDirectory
	sessions  *SessionManager
	activity  ActivityLog
	options   Options
	metrics   *metrics.Auth
	tracer    trace.Tracer
}

// NewAuthenticator constructs an [Authenticator]. Spans go to the global
// OpenTelemetry tracer provider.
func NewAuthenticator(
	tokens TokenIssuer,
	directory UserDirectory,
	sessions *SessionManager,
	activity ActivityLog,
	options Options,
	collector *metrics.Auth,
) *Authenticator {
	return &Authenticator{
		tokens:    tokens,
		directory: directory,
		sessions:  sessions,
		activity:  activity,
		options:   options,
		metrics:   collector,
		tracer:    otel.Tracer(tracerName),
	}
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
	Origin     Origin
}

/*
Login validates user credentials and issues an access and a refresh token.

Description: Unknown emails and wrong passwords both return
INVALID_CREDENTIALS after the same bcrypt work. Account status is only
revealed to a caller who knows the password.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *TokenPair: Transport-ready credentials
  - err: INVALID_CREDENTIALS, ACCOUNT_DELETED, ACCOUNT_BANNED, EMAIL_NOT_VERIFIED or DEPENDENCY_UNAVAILABLE
*/
func (authenticator *Authenticator) Login(context context.Context, input LoginInput) (pair *TokenPair, err error) {
	context, span := authenticator.tracer.Start(context, "auth.Login")
	defer authenticator.finish(span, "login", time.Now(), &err)

	email := validate.NormalizeEmail(input.Email)

	validator := &validate.Validator{}
	if err := validator.Required(FieldEmail, email).Required(FieldPassword, input.Password).Err(); err != nil {
		return nil, err
	}

	lookupCtx, cancel := withTimeout(context, authenticator.options.DependencyTimeout)
	user, err := authenticator.directory.FindByEmail(lookupCtx, email)
	cancel()

	// 1. Identity and password
	if errors.Is(err, ErrUserNotFound) {
		sec.BurnPasswordCheck(input.Password)
		authenticator.metrics.ObserveLogin(metrics.ResultInvalidCredentials)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		authenticator.metrics.ObserveLogin(metrics.ResultError)
		return nil, unavailable(dependencyDirectory, err)
	}

	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		authenticator.metrics.ObserveLogin(metrics.ResultInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	// 2. Account state
	if err := accountStateError(user); err != nil {
		authenticator.metrics.ObserveLogin(metrics.ResultInactive)
		return nil, err
	}

	if !user.IsVerified {
		authenticator.metrics.ObserveLogin(metrics.ResultNotVerified)
		return nil, ErrEmailNotVerified
	}

	span.SetAttributes(attribute.String("user.id", user.UserID), attribute.Bool("auth.remember_me", input.RememberMe))

	// 3. Session marker, then tokens
	if err := authenticator.sessions.Login(context, user.UserID); err != nil {
		authenticator.metrics.ObserveLogin(metrics.ResultError)
		return nil, err
	}

	accessTTL := authenticator.options.AccessTokenTTL
	if input.RememberMe {
		accessTTL = authenticator.options.RememberMeTTL
	}

	accessToken, accessExpiresAt, err := authenticator.tokens.Issue(user.UserID, sec.KindAccess, accessTTL)
	if err != nil {
		authenticator.metrics.ObserveLogin(metrics.ResultError)
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	refreshToken, refreshExpiresAt, err := authenticator.tokens.Issue(user.UserID, sec.KindRefresh, authenticator.options.RefreshTokenTTL)
	if err != nil {
		authenticator.metrics.ObserveLogin(metrics.ResultError)
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	recordActivity(context, authenticator.activity, newActivity(user.UserID, ActionLogin, input.Origin), authenticator.options.DependencyTimeout)

	authenticator.metrics.ObserveLogin(metrics.ResultSuccess)
	ctxutil.GetLogger(context).InfoContext(context, "login_succeeded", slog.String("user_id", user.UserID))

	return &TokenPair{
		UserID:           user.UserID,
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		TokenType:        constants.TokenTypeBearer,
		AccessExpiresAt:  accessExpiresAt,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}

/*
Refresh issues a new access token for a valid refresh token.

Description: The refresh token is not rotated and the session marker TTL is
not extended; the session ends when the refresh token does.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - *AccessGrant: The new access token
  - err: TOKEN_EXPIRED, TOKEN_MALFORMED, SESSION_REVOKED, ACCOUNT_DELETED, ACCOUNT_BANNED or DEPENDENCY_UNAVAILABLE
*/
func (authenticator *Authenticator) Refresh(context context.Context, refreshToken string) (grant *AccessGrant, err error) {
	context, span := authenticator.tracer.Start(context, "auth.Refresh")
	defer authenticator.finish(span, "refresh", time.Now(), &err)

	claims, err := authenticator.tokens.Verify(stripBearer(refreshToken), sec.KindRefresh)
	if err != nil {
		return nil, tokenError(err)
	}

	userID := claims.UserID()
	span.SetAttributes(attribute.String("user.id", userID))

	if err := authenticator.sessions.Refresh(context, userID); err != nil {
		return nil, err
	}

	user, err := authenticator.findByUserID(context, userID)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, ErrTokenMalformed
	}
	if err != nil {
		return nil, err
	}
	if err := accountStateError(user); err != nil {
		return nil, err
	}

	accessToken, expiresAt, err := authenticator.tokens.Issue(userID, sec.KindAccess, authenticator.options.AccessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_access_token_failed: %w", err)
	}

	return &AccessGrant{
		AccessToken: accessToken,
		TokenType:   constants.TokenTypeBearer,
		ExpiresAt:   expiresAt,
	}, nil
}

/*
Logout revokes the session of the user the access token belongs to.

Description: Idempotent. A token whose session is already revoked still
logs out successfully.

Parameters:
  - context: context.Context
  - accessToken: string
  - origin: Origin

Returns:
  - err: TOKEN_EXPIRED, TOKEN_MALFORMED or DEPENDENCY_UNAVAILABLE
*/
func (authenticator *Authenticator) Logout(context context.Context, accessToken string, origin Origin) (err error) {
	context, span := authenticator.tracer.Start(context, "auth.Logout")
	defer authenticator.finish(span, "logout", time.Now(), &err)

	claims, err := authenticator.tokens.Verify(stripBearer(accessToken), sec.KindAccess)
	if err != nil {
		return tokenError(err)
	}

	userID := claims.UserID()
	if err := authenticator.sessions.Logout(context, userID); err != nil {
		return err
	}

	recordActivity(context, authenticator.activity, newActivity(userID, ActionLogout, origin), authenticator.options.DependencyTimeout)
	ctxutil.GetLogger(context).InfoContext(context, "logout_succeeded", slog.String("user_id", userID))

	return nil
}

/*
AuthenticateRequest resolves a bearer credential into verified claims.

Description: The "Bearer " prefix is optional. The session marker is checked
for any well-signed token before its kind, so a revoked session reports
SESSION_REVOKED even for a refresh token presented by mistake. An absent
marker passes; an unreachable cache fails closed.

Parameters:
  - context: context.Context
  - bearer: string

Returns:
  - *sec.AuthClaims: Verified access-token claims
  - err: TOKEN_EXPIRED, TOKEN_MALFORMED, SESSION_REVOKED or DEPENDENCY_UNAVAILABLE
*/
func (authenticator *Authenticator) AuthenticateRequest(context context.Context, bearer string) (*sec.AuthClaims, error) {
	claims, err := authenticator.tokens.VerifyToken(stripBearer(bearer))
	if err != nil {
		return nil, tokenError(err)
	}

	if err := authenticator.sessions.Check(context, claims.UserID()); err != nil {
		return nil, err
	}

	if claims.Kind != sec.KindAccess {
		return nil, ErrTokenMalformed
	}

	return claims, nil
}

// # Account Operations

// ChangePasswordInput carries the fields of a password change.
type ChangePasswordInput struct {
	CurrentPassword string
	NewPassword     string
	ConfirmPassword string
}

/*
ChangePassword replaces the password of an authenticated user and revokes
their session so every device must log in again.

Parameters:
  - context: context.Context
  - userID: string
  - input: ChangePasswordInput
  - origin: Origin

Returns:
  - err: VALIDATION_ERROR, NOT_FOUND or DEPENDENCY_UNAVAILABLE
*/
func (authenticator *Authenticator) ChangePassword(context context.Context, userID string, input ChangePasswordInput, origin Origin) (err error) {
	context, span := authenticator.tracer.Start(context, "auth.ChangePassword", trace.WithAttributes(attribute.String("user.id", userID)))
	defer authenticator.finish(span, "change_password", time.Now(), &err)

	validator := &validate.Validator{}
	validator.Required(FieldCurrentPassword, input.CurrentPassword).
		Password(FieldNewPassword, input.NewPassword).
		Matches(FieldConfirmPassword, input.ConfirmPassword, input.NewPassword)

	if err := validator.Err(); err != nil {
		return err
	}

	user, err := authenticator.findByUserID(context, userID)
	if err != nil {
		return err
	}

	if !sec.CheckPasswordHash(input.CurrentPassword, user.PasswordHash) {
		return validate.RequiredError(FieldCurrentPassword, "Current password is incorrect")
	}

	hashedPassword, err := sec.HashPassword(input.NewPassword)
	if err != nil {
		return fmt.Errorf("auth_service_change_password_hash_failed: %w", err)
	}

	updateCtx, cancel := withTimeout(context, authenticator.options.DependencyTimeout)
	defer cancel()

	if err := authenticator.directory.UpdatePasswordHash(updateCtx, userID, hashedPassword); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrAccountNotFound
		}
		return unavailable(dependencyDirectory, err)
	}

	recordActivity(context, authenticator.activity, newActivity(userID, ActionPasswordChange, origin), authenticator.options.DependencyTimeout)

	// The new hash is committed; a retry would fail on the current password.
	if err := authenticator.sessions.Logout(context, userID); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "password_change_revoke_failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}

	return nil
}

/*
DeleteAccount soft-deletes the target account and revokes its session.

Description: Only the owner may delete an account. Both steps are idempotent,
so a failed revocation is returned for the caller to retry.

Parameters:
  - context: context.Context
  - actorID: string (the authenticated caller)
  - targetID: string
  - origin: Origin

Returns:
  - err: FORBIDDEN, NOT_FOUND or DEPENDENCY_UNAVAILABLE
*/
func (authenticator *Authenticator) DeleteAccount(context context.Context, actorID, targetID string, origin Origin) (err error) {
	context, span := authenticator.tracer.Start(context, "auth.DeleteAccount", trace.WithAttributes(attribute.String("user.id", targetID)))
	defer authenticator.finish(span, "delete_account", time.Now(), &err)

	if actorID != targetID {
		return apperr.Forbidden("You can only delete your own account")
	}

	updateCtx, cancel := withTimeout(context, authenticator.options.DependencyTimeout)
	defer cancel()

	if err := authenticator.directory.UpdateStatus(updateCtx, targetID, StatusDeleted); err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrAccountNotFound
		}
		return unavailable(dependencyDirectory, err)
	}

	if err := authenticator.sessions.Logout(context, targetID); err != nil {
		return err
	}

	recordActivity(context, authenticator.activity, newActivity(targetID, ActionDeleteAccount, origin), authenticator.options.DependencyTimeout)
	ctxutil.GetLogger(context).InfoContext(context, "account_deleted", slog.String("user_id", targetID))

	return nil
}

// Me returns the account of the authenticated user.
func (authenticator *Authenticator) Me(context context.Context, userID string) (*User, error) {
	return authenticator.findByUserID(context, userID)
}

// ActiveSessions returns the number of audit entries of the user.
func (authenticator *Authenticator) ActiveSessions(context context.Context, userID string) (int, error) {
	return authenticator.sessions.ActiveCount(context, userID)
}

// # Helpers

func (authenticator *Authenticator) findByUserID(context context.Context, userID string) (*User, error) {
	lookupCtx, cancel := withTimeout(context, authenticator.options.DependencyTimeout)
	defer cancel()

	user, err := authenticator.directory.FindByUserID(lookupCtx, userID)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, unavailable(dependencyDirectory, err)
	}
	return user, nil
}

// finish ends span, records the failure if any and observes the duration.
func (authenticator *Authenticator) finish(span trace.Span, operation string, start time.Time, err *error) {
	if *err != nil {
		span.RecordError(*err)
		if appError := apperr.As(*err); appError != nil {
			span.SetAttributes(attribute.String("error.code", appError.Code))
		}
		span.SetStatus(codes.Error, (*err).Error())
	}
	span.End()
	authenticator.metrics.ObserveDuration(operation, start)
}

// accountStateError reports why a non-active account may not hold a session.
func accountStateError(user *User) error {
	switch user.Status {
	case StatusDeleted:
		return ErrAccountDeleted
	case StatusBanned:
		return ErrAccountBanned
	default:
		return nil
	}
}

// stripBearer removes an optional, case-insensitive "Bearer " prefix.
func stripBearer(credential string) string {
	credential = strings.TrimSpace(credential)
	prefixLength := len(constants.BearerPrefix)

	if len(credential) >= prefixLength && strings.EqualFold(credential[:prefixLength], constants.BearerPrefix) {
		return strings.TrimSpace(credential[prefixLength:])
	}
	return credential
}
