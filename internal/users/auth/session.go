// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/companion/internal/platform/ctxutil"
	"github.com/taibuivan/companion/internal/platform/metrics"
)

// SessionState is the per-user session state as seen through the marker.
type SessionState int

const (
	// SessionNone means no marker exists: never logged in, expired or evicted.
	SessionNone SessionState = iota
	SessionActive
	SessionRevoked
)

func (state SessionState) String() string {
	switch state {
	case SessionActive:
		return "active"
	case SessionRevoked:
		return "revoked"
	default:
		return "none"
	}
}

// SessionManager owns the per-user session state machine
// NONE → ACTIVE → (EXPIRED | REVOKED).
//
// The marker in the flow cache is authoritative for revocation; the audit
// store is observability only. No transition assumes the two stores commit
// together, and every transition can be retried.
type SessionManager struct {
	cache   FlowCache
	audit   SessionAudit
	options Options
	metrics *metrics.Auth
}

// NewSessionManager constructs a [SessionManager].
func NewSessionManager(cache FlowCache, audit SessionAudit, options Options, collector *metrics.Auth) *SessionManager {
	return &SessionManager{
		cache:   cache,
		audit:   audit,
		options: options,
		metrics: collector,
	}
}

/*
Login marks the user's session active for the refresh lifetime and records an
audit entry.

Description: A marker write failure aborts the login. An audit failure is
logged and ignored because the audit store is not consulted for authorization.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: DEPENDENCY_UNAVAILABLE if the marker could not be written
*/
func (manager *SessionManager) Login(context context.Context, userID string) error {
	cacheCtx, cancel := manager.bounded(context)
	defer cancel()

	if err := manager.cache.Set(cacheCtx, sessionKey(userID), sessionActive, manager.options.RefreshTokenTTL); err != nil {
		return unavailable(dependencyCache, err)
	}

	auditCtx, cancelAudit := manager.bounded(context)
	defer cancelAudit()

	if err := manager.audit.RecordLogin(auditCtx, userID); err != nil {
		ctxutil.GetLogger(context).WarnContext(context, "session_audit_record_failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}

	return nil
}

/*
State reads the marker.

Returns:
  - SessionState: None when absent, Active for the active value, Revoked for any other value
  - error: DEPENDENCY_UNAVAILABLE when the cache cannot answer
*/
func (manager *SessionManager) State(context context.Context, userID string) (SessionState, error) {
	cacheCtx, cancel := manager.bounded(context)
	defer cancel()

	value, err := manager.cache.Get(cacheCtx, sessionKey(userID))
	switch {
	case errors.Is(err, ErrCacheMiss):
		return SessionNone, nil
	case err != nil:
		return SessionNone, unavailable(dependencyCache, err)
	case value == sessionActive:
		return SessionActive, nil
	default:
		return SessionRevoked, nil
	}
}

/*
Check passes for an active or absent marker and fails for anything else.

Description: Absence passes because the cache may evict a live session. An
unreachable cache fails closed since a tombstone could be hiding behind it.

Returns:
  - error: ErrSessionRevoked or DEPENDENCY_UNAVAILABLE
*/
func (manager *SessionManager) Check(context context.Context, userID string) error {
	state, err := manager.State(context, userID)
	if err != nil {
		return err
	}
	if state == SessionRevoked {
		return ErrSessionRevoked
	}
	return nil
}

// Refresh validates the session for a refresh. It never extends the marker TTL.
func (manager *SessionManager) Refresh(context context.Context, userID string) error {
	return manager.Check(context, userID)
}

/*
Logout revokes the session.

Description: Writes the tombstone, clears audit rows and drops the cached
access-token blob concurrently. Only the tombstone write decides the outcome;
the other two are logged on failure.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: DEPENDENCY_UNAVAILABLE if the tombstone could not be written
*/
func (manager *SessionManager) Logout(context context.Context, userID string) error {
	logger := ctxutil.GetLogger(context)
	group, groupCtx := errgroup.WithContext(context)

	group.Go(func() error {
		cacheCtx, cancel := manager.bounded(groupCtx)
		defer cancel()

		if err := manager.cache.Set(cacheCtx, sessionKey(userID), sessionRevoked, manager.options.revocationTTL()); err != nil {
			return unavailable(dependencyCache, err)
		}
		return nil
	})

	group.Go(func() error {
		auditCtx, cancel := manager.bounded(context)
		defer cancel()

		if err := manager.audit.ClearLogin(auditCtx, userID); err != nil {
			logger.WarnContext(context, "session_audit_clear_failed", slog.String("user_id", userID), slog.Any("error", err))
		}
		return nil
	})

	group.Go(func() error {
		cacheCtx, cancel := manager.bounded(context)
		defer cancel()

		if err := manager.cache.Delete(cacheCtx, accessTokenKey(userID)); err != nil {
			logger.WarnContext(context, "session_token_blob_delete_failed", slog.String("user_id", userID), slog.Any("error", err))
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		return err
	}

	manager.metrics.ObserveSessionRevoked()
	return nil
}

// ActiveCount returns the number of audit entries for userID.
func (manager *SessionManager) ActiveCount(context context.Context, userID string) (int, error) {
	auditCtx, cancel := manager.bounded(context)
	defer cancel()

	count, err := manager.audit.CountActive(auditCtx, userID)
	if err != nil {
		return 0, unavailable(dependencyAudit, err)
	}
	return count, nil
}

func (manager *SessionManager) bounded(parent context.Context) (context.Context, context.CancelFunc) {
	return withTimeout(parent, manager.options.DependencyTimeout)
}

// withTimeout applies timeout when it is positive.
func withTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
