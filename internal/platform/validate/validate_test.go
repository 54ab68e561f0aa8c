// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package validate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/companion/internal/platform/apperr"
	"github.com/taibuivan/companion/internal/platform/validate"
)

/*
TestValidator_Required tests the mandatory field validation logic.
*/
func TestValidator_Required(t *testing.T) {
	tests := []struct {
		name     string
		field    string
		value    string
		hasError bool
	}{
		{"valid_string", "email", "a@example.com", false},
		{"empty_string", "email", "", true},
		{"whitespace_only", "email", "   ", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Required(tt.field, tt.value)

			if tt.hasError {
				assert.True(t, v.HasErrors())
				err := v.Err()
				require.NotNil(t, err)

				ae := apperr.As(err)
				require.NotNil(t, ae)
				assert.Equal(t, "VALIDATION_ERROR", ae.Code)
				assert.Equal(t, tt.field, ae.Details[0].Field)
			} else {
				assert.False(t, v.HasErrors())
				assert.Nil(t, v.Err())
			}
		})
	}
}

/*
TestValidator_Email checks the email format validation rule.
*/
func TestValidator_Email(t *testing.T) {
	tests := []struct {
		name    string
		email   string
		isValid bool
	}{
		{"valid_email", "test@example.com", true},
		{"plus_tag", "first.last+tag@mail.example.co", true},
		{"invalid_format", "invalid-email", false},
		{"missing_domain", "test@", false},
		{"no_dot_in_domain", "test@localhost", false},
		{"display_name", "Test <test@example.com>", false},
		{"empty", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Email("email", tt.email)

			if tt.isValid {
				assert.False(t, v.HasErrors())
			} else {
				assert.True(t, v.HasErrors())
			}
		})
	}
}

/*
TestValidator_Password checks every complexity rule in isolation.
*/
func TestValidator_Password(t *testing.T) {
	tests := []struct {
		name     string
		password string
		isValid  bool
	}{
		{"too_short", "short1!", false},
		{"no_uppercase", "alllowercase1!", false},
		{"no_lowercase", "ALLUPPER1!", false},
		{"no_digit", "NoDigits!", false},
		{"no_symbol", "NoSymbol1", false},
		{"symbol_outside_set", "Valid123#", false},
		{"valid", "Valid123!", true},
		{"valid_scenario", "Passw0rd!", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &validate.Validator{}
			v.Password("password", tt.password)

			assert.Equal(t, !tt.isValid, v.HasErrors())
		})
	}
}

/*
TestValidator_Password_ReportsEveryRule verifies that all unmet rules are listed.
*/
func TestValidator_Password_ReportsEveryRule(t *testing.T) {
	err := (&validate.Validator{}).Password("password", "abc").Err()

	ae := apperr.As(err)
	require.NotNil(t, ae)

	// length, uppercase, digit, symbol
	assert.Len(t, ae.Details, 4)
}

/*
TestValidator_Matches and Code cover the confirmation and verification rules.
*/
func TestValidator_MatchesAndCode(t *testing.T) {
	assert.False(t, (&validate.Validator{}).Matches("confirm", "Valid123!", "Valid123!").HasErrors())
	assert.True(t, (&validate.Validator{}).Matches("confirm", "Valid123!", "Valid123?").HasErrors())

	assert.False(t, (&validate.Validator{}).Code("code", "012345").HasErrors())
	assert.True(t, (&validate.Validator{}).Code("code", "12345").HasErrors())
	assert.True(t, (&validate.Validator{}).Code("code", "12a456").HasErrors())
}

/*
TestValidator_Chain_Failure tests error accumulation in the chain.
*/
func TestValidator_Chain_Failure(t *testing.T) {
	v := &validate.Validator{}

	err := v.
		Required("email", "").                    // Fails
		Email("email", "not-an-email").           // Fails
		Matches("confirm_password", "a", "b").    // Fails
		Err()

	require.Error(t, err)
	ae := apperr.As(err)
	require.NotNil(t, ae)

	assert.Len(t, ae.Details, 3)
}

/*
TestNormalizeEmail verifies trimming, case folding and width normalisation.
*/
func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@example.com", validate.NormalizeEmail("  A@Example.COM "))
	assert.Equal(t, "a@example.com", validate.NormalizeEmail("ａ@example.com"))
}
