// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taibuivan/companion/internal/platform/ctxutil"
	"github.com/taibuivan/companion/internal/platform/metrics"
	"github.com/taibuivan/companion/internal/platform/notify"
	"github.com/taibuivan/companion/internal/platform/sec"
	"github.com/taibuivan/companion/internal/platform/validate"
	"github.com/taibuivan/companion/pkg/uuid"
)

// RegistrationFlow provisions credentials and runs email verification.
type RegistrationFlow struct {
	directory UserDirectory
	cache     FlowCache
	activity  ActivityLog
	notifier  Notifier
	options   Options
	metrics   *metrics.Auth
}

// NewRegistrationFlow constructs a [RegistrationFlow].
func NewRegistrationFlow(
	directory UserDirectory,
	cache FlowCache,
	activity ActivityLog,
	notifier Notifier,
	options Options,
	collector *metrics.Auth,
) *RegistrationFlow {
	return &RegistrationFlow{
		directory: directory,
		cache:     cache,
		activity:  activity,
		notifier:  notifier,
		options:   options,
		metrics:   collector,
	}
}

// # Registration

// RegisterInput holds the data required to enroll a new member.
type RegisterInput struct {
	Email           string
	Password        string
	ConfirmPassword string
	Origin          Origin
}

/*
Register validates, hashes, and persists a brand new user account.

Description: Duplicate emails are caught twice: by a lookup for the common
case, and by the unique constraint for concurrent registrations. Both surface
as the same validation error. The welcome notification is sent after the row
is committed and its failure never undoes the registration.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *User: Created entity
  - err: VALIDATION_ERROR or storage errors
*/
func (flow *RegistrationFlow) Register(context context.Context, input RegisterInput) (*User, error) {
	email := validate.NormalizeEmail(input.Email)

	validator := &validate.Validator{}
	validator.Required(FieldEmail, email).
		Email(FieldEmail, email).
		Password(FieldPassword, input.Password).
		Matches(FieldConfirmPassword, input.ConfirmPassword, input.Password)

	if err := validator.Err(); err != nil {
		return nil, err
	}

	// Cheap duplicate check before paying for bcrypt
	lookupCtx, cancel := withTimeout(context, flow.options.DependencyTimeout)
	_, err := flow.directory.FindByEmail(lookupCtx, email)
	cancel()

	switch {
	case err == nil:
		return nil, errDuplicateEmail()
	case !errors.Is(err, ErrUserNotFound):
		return nil, unavailable(dependencyDirectory, err)
	}

	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	user := &User{
		UserID:       uuid.New(),
		Email:        email,
		PasswordHash: hashedPassword,
		IsVerified:   false,
		Status:       StatusActive,
	}

	insertCtx, cancelInsert := withTimeout(context, flow.options.DependencyTimeout)
	defer cancelInsert()

	err = flow.directory.Insert(insertCtx, user, newActivity(user.UserID, ActionRegister, input.Origin))
	if errors.Is(err, ErrDuplicateEmail) {
		return nil, errDuplicateEmail()
	}
	if err != nil {
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	ctxutil.GetLogger(context).InfoContext(context, "user_registered", slog.String("user_id", user.UserID))

	notifyCtx, cancelNotify := withTimeout(context, flow.options.DependencyTimeout)
	err = flow.notifier.SendWelcome(notifyCtx, user.Email)
	cancelNotify()
	reportDelivery(context, notify.KindWelcome, err, flow.metrics)

	return user, nil
}

// # Email Verification

/*
RequestVerificationCode issues a 6-digit code for email.

Description: One outstanding request per email: a throttle key is claimed with
SET NX for the cooldown window before anything else is written. If storing the
code fails, the throttle is released so the user can retry at once.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - string: The code, only when ExposeVerificationCode is enabled
  - err: VALIDATION_ERROR, NOT_FOUND, TOO_MANY_REQUESTS or DEPENDENCY_UNAVAILABLE
*/
func (flow *RegistrationFlow) RequestVerificationCode(context context.Context, email string) (string, error) {
	email = validate.NormalizeEmail(email)

	validator := &validate.Validator{}
	if err := validator.Required(FieldEmail, email).Email(FieldEmail, email).Err(); err != nil {
		return "", err
	}

	user, err := flow.findByEmail(context, email)
	if err != nil {
		return "", err
	}

	if user.IsVerified {
		return "", validate.RequiredError(FieldEmail, "Email is already verified")
	}

	cacheCtx, cancel := withTimeout(context, flow.options.DependencyTimeout)
	defer cancel()

	claimed, err := flow.cache.SetNX(cacheCtx, verifyThrottleKey(email), "1", flow.options.VerificationCooldown)
	if err != nil {
		return "", unavailable(dependencyCache, err)
	}
	if !claimed {
		flow.metrics.ObserveRateLimited("verification_code")
		remaining, _ := flow.cache.TTL(cacheCtx, verifyThrottleKey(email))
		return "", tooManyRequests("A verification code was sent recently, please wait before requesting another", remaining)
	}

	code, err := sec.GenerateNumericCode(VerificationCodeDigits)
	if err != nil {
		_ = flow.cache.Delete(cacheCtx, verifyThrottleKey(email))
		return "", fmt.Errorf("auth_service_generate_code_failed: %w", err)
	}

	if err := flow.cache.Set(cacheCtx, verifyCodeKey(email), code, flow.options.VerificationCodeTTL); err != nil {
		_ = flow.cache.Delete(cacheCtx, verifyThrottleKey(email))
		return "", unavailable(dependencyCache, err)
	}

	// A fresh code gets a fresh attempt budget
	_ = flow.cache.Delete(cacheCtx, verifyAttemptsKey(email))

	notifyCtx, cancelNotify := withTimeout(context, flow.options.DependencyTimeout)
	err = flow.notifier.SendVerificationCode(notifyCtx, email, code)
	cancelNotify()
	reportDelivery(context, notify.KindVerificationCode, err, flow.metrics)

	if flow.options.ExposeVerificationCode {
		return code, nil
	}
	return "", nil
}

/*
Verify confirms email ownership with a code.

Description: The stored code is consumed with compare-and-delete, so of two
concurrent correct submissions only one proceeds. If marking the account fails
afterwards, the code is put back for the rest of its lifetime. Wrong codes are
counted per email and MaxVerificationAttempts of them burn the code.

Parameters:
  - context: context.Context
  - email: string
  - code: string
  - origin: Origin

Returns:
  - err: INVALID_OR_EXPIRED_CODE, VALIDATION_ERROR or storage failures
*/
func (flow *RegistrationFlow) Verify(context context.Context, email, code string, origin Origin) error {
	email = validate.NormalizeEmail(email)

	validator := &validate.Validator{}
	if err := validator.Required(FieldEmail, email).Required(FieldCode, code).Err(); err != nil {
		return err
	}

	cacheCtx, cancel := withTimeout(context, flow.options.DependencyTimeout)
	defer cancel()

	stored, err := flow.cache.Get(cacheCtx, verifyCodeKey(email))
	if errors.Is(err, ErrCacheMiss) {
		return ErrInvalidOrExpiredCode
	}
	if err != nil {
		return unavailable(dependencyCache, err)
	}

	if !sec.EqualCodes(stored, code) {
		return flow.rejectAttempt(cacheCtx, email, stored)
	}

	remaining, err := flow.cache.TTL(cacheCtx, verifyCodeKey(email))
	if err != nil {
		return unavailable(dependencyCache, err)
	}

	consumed, err := flow.cache.CompareAndDelete(cacheCtx, verifyCodeKey(email), stored)
	if err != nil {
		return unavailable(dependencyCache, err)
	}
	if !consumed {
		return ErrInvalidOrExpiredCode
	}

	user, err := flow.findByEmail(context, email)
	if err == nil {
		err = flow.directory.MarkVerified(cacheCtx, user.UserID)
	}
	if errors.Is(err, ErrUserNotFound) {
		err = ErrAccountNotFound
	}
	if err != nil {
		if remaining > 0 {
			_ = flow.cache.Set(cacheCtx, verifyCodeKey(email), stored, remaining)
		}
		return unavailable(dependencyDirectory, err)
	}

	_ = flow.cache.Delete(cacheCtx, verifyAttemptsKey(email))

	recordActivity(context, flow.activity, newActivity(user.UserID, ActionVerifyEmail, origin), flow.options.DependencyTimeout)
	return nil
}

// # Helpers

// rejectAttempt counts a wrong code and burns the stored one once the budget is spent.
func (flow *RegistrationFlow) rejectAttempt(context context.Context, email, stored string) error {
	attempts, err := flow.cache.Incr(context, verifyAttemptsKey(email), flow.options.VerificationCodeTTL)
	if err != nil {
		return unavailable(dependencyCache, err)
	}

	if attempts >= MaxVerificationAttempts {
		flow.metrics.ObserveRateLimited("verification_attempts")
		if _, err := flow.cache.CompareAndDelete(context, verifyCodeKey(email), stored); err != nil {
			return unavailable(dependencyCache, err)
		}
		_ = flow.cache.Delete(context, verifyAttemptsKey(email))
	}

	return ErrInvalidOrExpiredCode
}

func (flow *RegistrationFlow) findByEmail(context context.Context, email string) (*User, error) {
	return findLiveAccount(context, flow.directory, email, flow.options.DependencyTimeout)
}
