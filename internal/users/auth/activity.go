// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/mssola/useragent"

	"github.com/taibuivan/companion/internal/platform/ctxutil"
	"github.com/taibuivan/companion/internal/platform/metrics"
	"github.com/taibuivan/companion/internal/platform/notify"
)

// # Activity Log

// newActivity builds an activity line stamped with the current time.
func newActivity(userID string, action Action, origin Origin) Activity {
	return Activity{
		UserID:    userID,
		Action:    action,
		IPAddress: origin.IPAddress,
		Device:    DeviceName(origin.UserAgent),
		CreatedAt: time.Now().UTC(),
	}
}

// DeviceName turns a User-Agent header into a short label such as
// "Chrome 120 on Windows 10". Empty or unparseable headers yield "unknown".
func DeviceName(userAgent string) string {
	if strings.TrimSpace(userAgent) == "" {
		return "unknown"
	}

	agent := useragent.New(userAgent)
	if agent.Bot() {
		name, _ := agent.Browser()
		return "bot " + name
	}

	name, version := agent.Browser()
	if major, _, found := strings.Cut(version, "."); found {
		version = major
	}

	label := strings.TrimSpace(name + " " + version)
	if os := agent.OS(); os != "" {
		label += " on " + os
	}
	if label == "" {
		return "unknown"
	}
	return label
}

// recordActivity appends a line to the activity log. Failures are logged
// and never fail the caller's operation.
func recordActivity(ctx context.Context, log ActivityLog, activity Activity, timeout time.Duration) {
	recordCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	if err := log.Record(recordCtx, activity); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "activity_log_write_failed",
			slog.String("user_id", activity.UserID),
			slog.String("action", string(activity.Action)),
			slog.Any("error", err),
		)
	}
}

// # Notifications

// reportDelivery logs and counts a failed notification. The triggering
// operation has already committed and is never rolled back.
func reportDelivery(ctx context.Context, kind notify.Kind, err error, collector *metrics.Auth) {
	if err == nil {
		return
	}

	collector.ObserveNotificationFailed(string(kind))
	ctxutil.GetLogger(ctx).WarnContext(ctx, "notification_failed",
		slog.String("kind", string(kind)),
		slog.Any("error", err),
	)
}

// # Lookups

// findLiveAccount resolves email to an account that has not been deleted.
//
// Missing and deleted accounts both map to ErrAccountNotFound; any other
// failure maps to DEPENDENCY_UNAVAILABLE.
func findLiveAccount(ctx context.Context, directory UserDirectory, email string, timeout time.Duration) (*User, error) {
	lookupCtx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	user, err := directory.FindByEmail(lookupCtx, email)
	if errors.Is(err, ErrUserNotFound) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, unavailable(dependencyDirectory, err)
	}
	if user.Status == StatusDeleted {
		return nil, ErrAccountNotFound
	}
	return user, nil
}
