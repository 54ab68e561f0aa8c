// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/companion/internal/platform/apperr"
	"github.com/taibuivan/companion/internal/users/auth"
)

/*
TestRegister_Validation rejects bad input before touching the directory.
*/
func TestRegister_Validation(t *testing.T) {
	tests := []struct {
		name      string
		input     auth.RegisterInput
		wantField string
	}{
		{"bad_email", auth.RegisterInput{Email: "not-an-email", Password: "Passw0rd!", ConfirmPassword: "Passw0rd!"}, auth.FieldEmail},
		{"weak_password", auth.RegisterInput{Email: "a@example.com", Password: "password", ConfirmPassword: "password"}, auth.FieldPassword},
		{"mismatch", auth.RegisterInput{Email: "a@example.com", Password: "Passw0rd!", ConfirmPassword: "Passw0rd?"}, auth.FieldConfirmPassword},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)

			_, err := f.registration.Register(context.Background(), tt.input)
			appError := apperr.As(err)
			require.NotNil(t, appError)
			assert.Equal(t, "VALIDATION_ERROR", appError.Code)
			assert.Equal(t, tt.wantField, appError.Details[0].Field)

			_, lookupErr := f.directory.FindByEmail(context.Background(), "a@example.com")
			assert.ErrorIs(t, lookupErr, auth.ErrUserNotFound)
		})
	}
}

/*
TestRegister_Success normalises the email, hashes the password and sends a
welcome message.
*/
func TestRegister_Success(t *testing.T) {
	f := newFixture(t)

	user, err := f.registration.Register(context.Background(), auth.RegisterInput{
		Email:           "  A@Example.com ",
		Password:        "Passw0rd!",
		ConfirmPassword: "Passw0rd!",
		Origin:          auth.Origin{IPAddress: "10.0.0.1"},
	})
	require.NoError(t, err)

	assert.Equal(t, "a@example.com", user.Email)
	assert.NotEqual(t, "Passw0rd!", user.PasswordHash)
	assert.False(t, user.IsVerified)
	assert.Equal(t, auth.StatusActive, user.Status)
	assert.Len(t, user.UserID, 36)

	_, sent := f.notifier.last("welcome")
	assert.True(t, sent)

	require.Len(t, f.directory.inserted, 1)
	assert.Equal(t, auth.ActionRegister, f.directory.inserted[0].Action)
}

/*
TestRegister_Duplicate rejects a second registration of the same email.
*/
func TestRegister_Duplicate(t *testing.T) {
	f := newFixture(t)
	input := auth.RegisterInput{Email: "a@example.com", Password: "Passw0rd!", ConfirmPassword: "Passw0rd!"}

	_, err := f.registration.Register(context.Background(), input)
	require.NoError(t, err)

	_, err = f.registration.Register(context.Background(), input)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusBadRequest, appError.HTTPStatus)
	assert.Equal(t, auth.FieldEmail, appError.Details[0].Field)
}

/*
TestRegister_ConcurrentDuplicate lets exactly one of two racing registrations win.
*/
func TestRegister_ConcurrentDuplicate(t *testing.T) {
	f := newFixture(t)
	input := auth.RegisterInput{Email: "race@example.com", Password: "Passw0rd!", ConfirmPassword: "Passw0rd!"}

	var wg sync.WaitGroup
	results := make([]error, 2)
	for i := range results {
		wg.Add(1)
		go func(slot int) {
			defer wg.Done()
			_, results[slot] = f.registration.Register(context.Background(), input)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
	}
	assert.Equal(t, 1, succeeded)
}

/*
TestRegister_NotifierFailure keeps the committed account.
*/
func TestRegister_NotifierFailure(t *testing.T) {
	f := newFixture(t)
	f.notifier.failWith = errors.New("nats: timeout")

	user, err := f.registration.Register(context.Background(), auth.RegisterInput{
		Email: "a@example.com", Password: "Passw0rd!", ConfirmPassword: "Passw0rd!",
	})
	require.NoError(t, err)

	stored, err := f.directory.FindByUserID(context.Background(), user.UserID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", stored.Email)
}

/*
TestRegister_DirectoryDown surfaces DEPENDENCY_UNAVAILABLE.
*/
func TestRegister_DirectoryDown(t *testing.T) {
	f := newFixture(t)
	f.directory.failWith = errStoreDown

	_, err := f.registration.Register(context.Background(), auth.RegisterInput{
		Email: "a@example.com", Password: "Passw0rd!", ConfirmPassword: "Passw0rd!",
	})
	assert.Equal(t, http.StatusServiceUnavailable, apperr.As(err).HTTPStatus)
}

/*
TestVerificationCode_Flow covers issue, cooldown, mismatch, success and reuse.
*/
func TestVerificationCode_Flow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registration.Register(ctx, auth.RegisterInput{Email: "a@example.com", Password: "Passw0rd!", ConfirmPassword: "Passw0rd!"})
	require.NoError(t, err)

	// 1. Issue
	code, err := f.registration.RequestVerificationCode(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Len(t, code, 6)

	message, sent := f.notifier.last("verification_code")
	require.True(t, sent)
	assert.Equal(t, code, message.value)
	assert.Equal(t, f.options.VerificationCodeTTL, f.redis.TTL("auth:verify_code:a@example.com"))

	// 2. Second request inside the cooldown
	_, err = f.registration.RequestVerificationCode(ctx, "a@example.com")
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, http.StatusTooManyRequests, appError.HTTPStatus)
	assert.Positive(t, appError.RetryAfter)

	// 3. Wrong code
	assert.ErrorIs(t, f.registration.Verify(ctx, "a@example.com", wrongCode(code), auth.Origin{}), auth.ErrInvalidOrExpiredCode)

	// 4. Correct code, then the code is gone
	require.NoError(t, f.registration.Verify(ctx, "a@example.com", code, auth.Origin{}))
	assert.ErrorIs(t, f.registration.Verify(ctx, "a@example.com", code, auth.Origin{}), auth.ErrInvalidOrExpiredCode)

	user, err := f.directory.FindByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsVerified)
	assert.Contains(t, f.activity.actions(user.UserID), auth.ActionVerifyEmail)

	// 5. Verified accounts cannot request another code
	f.redis.FastForward(f.options.VerificationCooldown)
	_, err = f.registration.RequestVerificationCode(ctx, "a@example.com")
	assert.Equal(t, "VALIDATION_ERROR", apperr.As(err).Code)
}

/*
TestVerificationCode_Expiry rejects a code after its lifetime.
*/
func TestVerificationCode_Expiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registration.Register(ctx, auth.RegisterInput{Email: "a@example.com", Password: "Passw0rd!", ConfirmPassword: "Passw0rd!"})
	require.NoError(t, err)

	code, err := f.registration.RequestVerificationCode(ctx, "a@example.com")
	require.NoError(t, err)

	f.redis.FastForward(f.options.VerificationCodeTTL + time.Second)
	assert.ErrorIs(t, f.registration.Verify(ctx, "a@example.com", code, auth.Origin{}), auth.ErrInvalidOrExpiredCode)

	// After the cooldown a fresh code can be requested
	_, err = f.registration.RequestVerificationCode(ctx, "a@example.com")
	assert.NoError(t, err)
}

// wrongCode returns a six digit code different from code.
func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

/*
TestVerificationCode_AttemptBudget burns the code after repeated wrong guesses.
*/
func TestVerificationCode_AttemptBudget(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.registration.Register(ctx, auth.RegisterInput{Email: "a@example.com", Password: "Passw0rd!", ConfirmPassword: "Passw0rd!"})
	require.NoError(t, err)

	code, err := f.registration.RequestVerificationCode(ctx, "a@example.com")
	require.NoError(t, err)

	// 1. Wrong guesses below the budget keep the code alive
	for range auth.MaxVerificationAttempts - 1 {
		assert.ErrorIs(t, f.registration.Verify(ctx, "a@example.com", wrongCode(code), auth.Origin{}), auth.ErrInvalidOrExpiredCode)
	}
	assert.True(t, f.redis.Exists("auth:verify_code:a@example.com"))
	assert.Equal(t, f.options.VerificationCodeTTL, f.redis.TTL("auth:verify_attempts:a@example.com"))

	// 2. The last allowed miss burns it, so the right code no longer works
	assert.ErrorIs(t, f.registration.Verify(ctx, "a@example.com", wrongCode(code), auth.Origin{}), auth.ErrInvalidOrExpiredCode)
	assert.False(t, f.redis.Exists("auth:verify_code:a@example.com"))
	assert.ErrorIs(t, f.registration.Verify(ctx, "a@example.com", code, auth.Origin{}), auth.ErrInvalidOrExpiredCode)

	// 3. A new code comes with a new budget
	f.redis.FastForward(f.options.VerificationCooldown)
	code, err = f.registration.RequestVerificationCode(ctx, "a@example.com")
	require.NoError(t, err)
	assert.False(t, f.redis.Exists("auth:verify_attempts:a@example.com"))

	assert.ErrorIs(t, f.registration.Verify(ctx, "a@example.com", wrongCode(code), auth.Origin{}), auth.ErrInvalidOrExpiredCode)
	require.NoError(t, f.registration.Verify(ctx, "a@example.com", code, auth.Origin{}))
	assert.False(t, f.redis.Exists("auth:verify_attempts:a@example.com"))
}

/*
TestVerificationCode_Hidden does not echo the code outside development.
*/
func TestVerificationCode_Hidden(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	options := f.options
	options.ExposeVerificationCode = false
	registration := auth.NewRegistrationFlow(f.directory, f.cache, f.activity, f.notifier, options, nil)

	_, err := registration.Register(ctx, auth.RegisterInput{Email: "a@example.com", Password: "Passw0rd!", ConfirmPassword: "Passw0rd!"})
	require.NoError(t, err)

	code, err := registration.RequestVerificationCode(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Empty(t, code)

	message, sent := f.notifier.last("verification_code")
	require.True(t, sent)
	assert.Len(t, message.value, 6)
}

/*
TestVerificationCode_UnknownEmail reports NOT_FOUND.
*/
func TestVerificationCode_UnknownEmail(t *testing.T) {
	f := newFixture(t)

	_, err := f.registration.RequestVerificationCode(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, auth.ErrAccountNotFound)
}
