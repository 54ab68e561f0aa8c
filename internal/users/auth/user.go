// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the authentication and session-lifecycle core.

It issues and verifies bearer credentials, keeps the durable user record, the
volatile session marker and the durable session audit consistent, and runs the
time-boxed one-shot flows (email verification codes, password reset links).

# Architecture

  - Authenticator: single entry point for login, refresh, logout and request authentication.
  - SessionManager: per-user session state machine over the flow cache and the audit store.
  - RegistrationFlow / PasswordResetFlow: one-shot flows over the flow cache and the directory.
  - Stores: narrow interfaces with Postgres and Redis implementations.

Chat, diary and emotion features consume this package through
[Authenticator.AuthenticateRequest]; they are not part of it.
*/
package auth

import (
	"time"
)

// # Domain Entities

// Status is the lifecycle state of an account.
type Status string

const (
	StatusActive  Status = "active"
	StatusBanned  Status = "banned"
	StatusDeleted Status = "deleted"
)

// User represents a registered member of the Companion product.
//
// ID is the internal storage key and never leaves the server; UserID is the
// opaque identifier carried in tokens and URLs.
type User struct {
	ID           int64      `json:"-"`
	UserID       string     `json:"user_id"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Explicitly omitted from JSON for security.
	IsVerified   bool       `json:"is_verified"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	DeletedAt    *time.Time `json:"deleted_at,omitempty"`
}

// CanAuthenticate reports whether the account status permits a login.
func (user *User) CanAuthenticate() bool {
	return user.Status == StatusActive
}

// Origin describes where a request came from, for the activity log.
type Origin struct {
	IPAddress string
	UserAgent string
}

// Activity is one line of the per-user activity log.
type Activity struct {
	UserID    string    `json:"user_id"`
	Action    Action    `json:"action"`
	IPAddress string    `json:"ip_address"`
	Device    string    `json:"device"`
	CreatedAt time.Time `json:"created_at"`
}

// Action names an entry in the activity log.
type Action string

const (
	ActionRegister       Action = "register"
	ActionVerifyEmail    Action = "verify_email"
	ActionLogin          Action = "login"
	ActionLogout         Action = "logout"
	ActionPasswordChange Action = "password_change"
	ActionPasswordReset  Action = "password_reset"
	ActionDeleteAccount  Action = "delete_account"
)

// # Field Identifiers

// JSON field names used in requests, responses and validation details.
const (
	FieldEmail           = "email"
	FieldPassword        = "password"
	FieldConfirmPassword = "confirm_password"
	FieldCurrentPassword = "current_password"
	FieldNewPassword     = "new_password"
	FieldCode            = "code"
	FieldToken           = "token"
	FieldRefreshToken    = "refresh_token"
	FieldRememberMe      = "remember_me"
	FieldUserID          = "user_id"
	FieldMessage         = "message"
)
