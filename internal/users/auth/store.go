// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"time"
)

// # Credential Store

// UserDirectory defines the data access contract for user accounts.
type UserDirectory interface {

	/*
		FindByEmail returns the account with the given normalised email,
		whatever its status.

		Returns:
		  - *User: Hydrated entity
		  - error: ErrUserNotFound or storage failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		FindByUserID returns the account with the given public identifier.

		Returns:
		  - *User: Hydrated entity
		  - error: ErrUserNotFound or storage failures
	*/
	FindByUserID(context context.Context, userID string) (*User, error)

	/*
		Insert persists a new account together with its registration activity
		line in one transaction. Neither is visible if either write fails.

		Parameters:
		  - context: context.Context
		  - user: *User (ID and timestamps are filled in on success)
		  - registration: Activity

		Returns:
		  - error: ErrDuplicateEmail or storage failures
	*/
	Insert(context context.Context, user *User, registration Activity) error

	/*
		UpdateStatus moves an account to status. Moving to StatusDeleted stamps
		deletedat.

		Returns:
		  - error: ErrUserNotFound or storage failures
	*/
	UpdateStatus(context context.Context, userID string, status Status) error

	/*
		UpdatePasswordHash replaces only the password hash.

		Returns:
		  - error: ErrUserNotFound or storage failures
	*/
	UpdatePasswordHash(context context.Context, userID, passwordHash string) error

	/*
		MarkVerified sets isverified = true.

		Returns:
		  - error: ErrUserNotFound or storage failures
	*/
	MarkVerified(context context.Context, userID string) error
}

// # Session Audit Store

// SessionAudit keeps one durable row per login that has not been logged out.
// It is observability only and never consulted for authorization.
type SessionAudit interface {
	RecordLogin(context context.Context, userID string) error
	ClearLogin(context context.Context, userID string) error
	CountActive(context context.Context, userID string) (int, error)
}

// ActivityLog appends lines to the per-user activity log.
type ActivityLog interface {
	Record(context context.Context, activity Activity) error
}

// # Notification Sender

// Notifier hands messages to the outbound mail pipeline. Each call may fail
// independently of the operation that triggered it.
type Notifier interface {
	SendVerificationCode(context context.Context, email, code string) error
	SendWelcome(context context.Context, email string) error
	SendPasswordResetLink(context context.Context, email, link string) error
}

// # Ephemeral Flow Cache

// FlowCache is a key-value store with per-key TTL.
//
// Every mutation must be atomic on the server side: concurrent writers for
// the same key converge to whichever write landed last.
type FlowCache interface {

	// Set stores value under key, replacing any previous value and TTL.
	Set(context context.Context, key, value string, ttl time.Duration) error

	// SetNX stores value only if key is absent. It reports whether it did.
	SetNX(context context.Context, key, value string, ttl time.Duration) (bool, error)

	// Get returns the value under key, or ErrCacheMiss.
	Get(context context.Context, key string) (string, error)

	// TTL returns the remaining lifetime of key, or zero if it has none.
	TTL(context context.Context, key string) (time.Duration, error)

	// Delete removes keys. Missing keys are not an error.
	Delete(context context.Context, keys ...string) error

	// CompareAndDelete removes key only if it currently holds expected.
	CompareAndDelete(context context.Context, key, expected string) (bool, error)

	// Incr increments the counter under key and returns the new value. The
	// TTL is set when the counter is created and never extended.
	Incr(context context.Context, key string, ttl time.Duration) (int64, error)
}
