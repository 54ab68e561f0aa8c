// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/taibuivan/companion/internal/platform/ctxutil"
	"github.com/taibuivan/companion/internal/platform/metrics"
	"github.com/taibuivan/companion/internal/platform/notify"
	"github.com/taibuivan/companion/internal/platform/sec"
	"github.com/taibuivan/companion/internal/platform/validate"
)

// PasswordResetFlow runs the forgot-password flow: a signed, time-boxed link
// is mailed to the account email and later exchanged for a new password.
type PasswordResetFlow struct {
	directory UserDirectory
	cache     FlowCache
	tokens    TokenIssuer
	sessions  *SessionManager
	activity  ActivityLog
	notifier  Notifier
	options   Options
	metrics   *metrics.Auth
}

// NewPasswordResetFlow constructs a [PasswordResetFlow].
func NewPasswordResetFlow(
	directory UserDirectory,
	cache FlowCache,
	tokens TokenIssuer,
	sessions *SessionManager,
	activity ActivityLog,
	notifier Notifier,
	options Options,
	collector *metrics.Auth,
) *PasswordResetFlow {
	return &PasswordResetFlow{
		directory: directory,
		cache:     cache,
		tokens:    tokens,
		sessions:  sessions,
		activity:  activity,
		notifier:  notifier,
		options:   options,
		metrics:   collector,
	}
}

/*
RequestReset mails a reset link to the account registered under email.

Description: The throttle marker is claimed first so only one link per email
is in flight per cooldown window. If signing fails the marker is released.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - err: VALIDATION_ERROR, NOT_FOUND, TOO_MANY_REQUESTS or DEPENDENCY_UNAVAILABLE
*/
func (flow *PasswordResetFlow) RequestReset(context context.Context, email string) error {
	email = validate.NormalizeEmail(email)

	validator := &validate.Validator{}
	if err := validator.Required(FieldEmail, email).Email(FieldEmail, email).Err(); err != nil {
		return err
	}

	if _, err := findLiveAccount(context, flow.directory, email, flow.options.DependencyTimeout); err != nil {
		return err
	}

	cacheCtx, cancel := withTimeout(context, flow.options.DependencyTimeout)
	defer cancel()

	claimed, err := flow.cache.SetNX(cacheCtx, resetThrottleKey(email), "1", flow.options.ResetCooldown)
	if err != nil {
		return unavailable(dependencyCache, err)
	}
	if !claimed {
		flow.metrics.ObserveRateLimited("password_reset")
		remaining, _ := flow.cache.TTL(cacheCtx, resetThrottleKey(email))
		return tooManyRequests("A reset link was sent recently, please wait before requesting another", remaining)
	}

	token, _, err := flow.tokens.Issue(email, sec.KindReset, flow.options.ResetTokenTTL)
	if err != nil {
		_ = flow.cache.Delete(cacheCtx, resetThrottleKey(email))
		return fmt.Errorf("auth_service_issue_reset_token_failed: %w", err)
	}

	notifyCtx, cancelNotify := withTimeout(context, flow.options.DependencyTimeout)
	err = flow.notifier.SendPasswordResetLink(notifyCtx, email, flow.resetLink(token))
	cancelNotify()
	reportDelivery(context, notify.KindPasswordResetLink, err, flow.metrics)

	return nil
}

// ResetInput carries the fields of a reset submission.
type ResetInput struct {
	Token           string
	Email           string
	NewPassword     string
	ConfirmPassword string
}

/*
Reset exchanges a reset token for a new password.

Description: Every check runs before the first write, so a rejected
submission leaves the stored hash untouched. Each token is accepted once: a
consumed marker keyed by the token hash is claimed with SET NX right before
the update and released if the update fails. A successful reset also revokes
the session.

Parameters:
  - context: context.Context
  - input: ResetInput
  - origin: Origin

Returns:
  - err: VALIDATION_ERROR, NOT_FOUND or DEPENDENCY_UNAVAILABLE
*/
func (flow *PasswordResetFlow) Reset(context context.Context, input ResetInput, origin Origin) error {
	email := validate.NormalizeEmail(input.Email)

	validator := &validate.Validator{}
	validator.Required(FieldToken, input.Token).
		Required(FieldEmail, email).
		Password(FieldNewPassword, input.NewPassword).
		Matches(FieldConfirmPassword, input.ConfirmPassword, input.NewPassword)

	if err := validator.Err(); err != nil {
		return err
	}

	// 1. Signature, expiry and kind
	claims, err := flow.tokens.Verify(input.Token, sec.KindReset)
	if errors.Is(err, sec.ErrTokenExpired) {
		return validate.RequiredError(FieldToken, "Reset link has expired")
	}
	if err != nil {
		return validate.RequiredError(FieldToken, "Reset link is invalid")
	}

	// 2. The link was issued for this email
	if claims.Subject != email {
		return validate.RequiredError(FieldEmail, "Email does not match the reset link")
	}

	user, err := findLiveAccount(context, flow.directory, email, flow.options.DependencyTimeout)
	if err != nil {
		return err
	}

	hashedPassword, err := sec.HashPassword(input.NewPassword)
	if err != nil {
		return fmt.Errorf("auth_service_reset_password_hash_failed: %w", err)
	}

	// 3. Single use
	cacheCtx, cancel := withTimeout(context, flow.options.DependencyTimeout)
	defer cancel()

	consumedKey := resetConsumedKey(sec.HashToken(input.Token))
	claimed, err := flow.cache.SetNX(cacheCtx, consumedKey, user.UserID, flow.options.ResetTokenTTL)
	if err != nil {
		return unavailable(dependencyCache, err)
	}
	if !claimed {
		return validate.RequiredError(FieldToken, "Reset link has already been used")
	}

	// 4. Store the new hash
	if err := flow.directory.UpdatePasswordHash(cacheCtx, user.UserID, hashedPassword); err != nil {
		_ = flow.cache.Delete(cacheCtx, consumedKey)
		if errors.Is(err, ErrUserNotFound) {
			return ErrAccountNotFound
		}
		return unavailable(dependencyDirectory, err)
	}

	recordActivity(context, flow.activity, newActivity(user.UserID, ActionPasswordReset, origin), flow.options.DependencyTimeout)

	if err := flow.sessions.Logout(context, user.UserID); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "password_reset_revoke_failed",
			slog.String("user_id", user.UserID),
			slog.Any("error", err),
		)
	}

	return nil
}

func (flow *PasswordResetFlow) resetLink(token string) string {
	return strings.TrimRight(flow.options.PublicBaseURL, "/") + "/reset-password?token=" + url.QueryEscape(token)
}
