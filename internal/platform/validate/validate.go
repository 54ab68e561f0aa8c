// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package validate provides a chainable Validator that collects field-level
// errors before returning a single [apperr.AppError].
//
// # Architecture
//
// Handlers use it for request shape, services use it for business rules such
// as password complexity. Both produce the same VALIDATION_ERROR envelope.
package validate

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"

	"github.com/taibuivan/companion/internal/platform/apperr"
)

// PasswordSymbols is the punctuation set a password must draw at least one
// character from.
const PasswordSymbols = "@$!%*?&"

// PasswordMinLength is the minimum number of characters in a password.
const PasswordMinLength = 8

var (
	// emailRegex is deliberately conservative: no display names, no quoted
	// local parts, at least one dot in the domain.
	emailRegex = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

	// uuidRegex matches a UUIDv4 or UUIDv7 string.
	uuidRegex = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

	// codeRegex matches a 6-digit numeric verification code.
	codeRegex = regexp.MustCompile(`^[0-9]{6}$`)

	lowerCaser = cases.Lower(language.Und)

	// ErrInvalidJSON is returned when the request body cannot be decoded.
	ErrInvalidJSON = apperr.ValidationError("Invalid JSON payload")
)

// Validator collects field-level validation errors via a fluent, chainable API.
//
// # Concurrency
//
// Validator is not safe for concurrent use. A new instance must be created
// for every request/operation.
type Validator struct {
	errs []apperr.FieldError
}

// Required fails if the trimmed value is empty.
func (v *Validator) Required(field, value string) *Validator {
	if strings.TrimSpace(value) == "" {
		v.add(field, "This field is required")
	}
	return v
}

// MaxLen fails if the Unicode character count exceeds max.
func (v *Validator) MaxLen(field, value string, max int) *Validator {
	if utf8.RuneCountInString(value) > max {
		v.add(field, fmt.Sprintf("Maximum %d characters", max))
	}
	return v
}

// MinLen fails if the Unicode character count is below min.
func (v *Validator) MinLen(field, value string, min int) *Validator {
	if utf8.RuneCountInString(value) < min {
		v.add(field, fmt.Sprintf("Minimum %d characters", min))
	}
	return v
}

// Email fails if the value is not a plain mailbox address.
func (v *Validator) Email(field, value string) *Validator {
	if !emailRegex.MatchString(value) {
		v.add(field, "Must be a valid email address")
	}
	return v
}

// Password enforces the complexity rules. Each unmet rule adds its own message
// so the client can show all of them at once.
func (v *Validator) Password(field, value string) *Validator {
	if utf8.RuneCountInString(value) < PasswordMinLength {
		v.add(field, fmt.Sprintf("Minimum %d characters", PasswordMinLength))
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range value {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(PasswordSymbols, r):
			hasSymbol = true
		}
	}

	if !hasUpper {
		v.add(field, "Must contain an uppercase letter")
	}
	if !hasLower {
		v.add(field, "Must contain a lowercase letter")
	}
	if !hasDigit {
		v.add(field, "Must contain a digit")
	}
	if !hasSymbol {
		v.add(field, "Must contain one of "+PasswordSymbols)
	}
	return v
}

// Matches fails if two values differ, e.g. password and confirmation.
func (v *Validator) Matches(field, value, other string) *Validator {
	if value != other {
		v.add(field, "Does not match")
	}
	return v
}

// Code fails if the value is not a 6-digit numeric code.
func (v *Validator) Code(field, value string) *Validator {
	if !codeRegex.MatchString(value) {
		v.add(field, "Must be a 6-digit code")
	}
	return v
}

// UUID fails if the value is not a valid UUID string (case-insensitive).
func (v *Validator) UUID(field, value string) *Validator {
	lower := strings.ToLower(value)
	if !uuidRegex.MatchString(lower) {
		v.add(field, "Must be a valid UUID")
	}
	return v
}

// Custom adds a failure with a custom message if the condition is true.
//
// # Example
//
//	v.Custom("email", exists, "Email is already registered")
func (v *Validator) Custom(field string, failed bool, message string) *Validator {
	if failed {
		v.add(field, message)
	}
	return v
}

// Err returns a [apperr.AppError] (VALIDATION_ERROR) if any rules failed,
// or nil if all rules passed.
//
// This is the only output method. Call it at the end of the chain.
func (v *Validator) Err() error {
	if len(v.errs) == 0 {
		return nil
	}
	return apperr.ValidationError("Validation failed", v.errs...)
}

// HasErrors reports whether any validation rule has failed so far.
func (v *Validator) HasErrors() bool {
	return len(v.errs) > 0
}

// add appends a [apperr.FieldError] to the internal slice.
func (v *Validator) add(field, message string) {
	v.errs = append(v.errs, apperr.FieldError{Field: field, Message: message})
}

// RequiredError is a shortcut to create a single-field validation error.
func RequiredError(field, message string) *apperr.AppError {
	return apperr.ValidationError("Validation failed", apperr.FieldError{
		Field:   field,
		Message: message,
	})
}

// NormalizeEmail folds an address into the form used for storage and lookup:
// trimmed, NFKC-normalised and lower-cased.
func NormalizeEmail(email string) string {
	return lowerCaser.String(norm.NFKC.String(strings.TrimSpace(email)))
}
