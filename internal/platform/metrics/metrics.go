// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package metrics exposes Prometheus collectors for the auth core.
//
// Collectors are registered on an injected [prometheus.Registerer] so tests can
// use a private registry. A nil *Auth is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "companion"

// Login results.
const (
	ResultSuccess            = "success"
	ResultInvalidCredentials = "invalid_credentials"
	ResultNotVerified        = "not_verified"
	ResultInactive           = "inactive"
	ResultError              = "error"
)

// Auth groups the collectors updated by the auth flows.
type Auth struct {
	logins              *prometheus.CounterVec
	rateLimited         *prometheus.CounterVec
	sessionsRevoked     prometheus.Counter
	notificationsFailed *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	httpRequests        *prometheus.CounterVec
}

// New registers the auth collectors on registerer.
func New(registerer prometheus.Registerer) *Auth {
	factory := promauto.With(registerer)

	return &Auth{
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_logins_total",
			Help:      "Login attempts by result",
		}, []string{"result"}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_rate_limited_total",
			Help:      "Requests rejected by a flow cooldown",
		}, []string{"flow"}),
		sessionsRevoked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_sessions_revoked_total",
			Help:      "Sessions revoked by logout, password change or account deletion",
		}),
		notificationsFailed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_notifications_failed_total",
			Help:      "Notifications that could not be handed to the mail pipeline",
		}, []string{"kind"}),
		operationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "auth_operation_duration_seconds",
			Help:      "Latency of auth operations",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"operation"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method and status class",
		}, []string{"method", "status"}),
	}
}

// ObserveLogin counts a login attempt.
func (m *Auth) ObserveLogin(result string) {
	if m == nil {
		return
	}
	m.logins.WithLabelValues(result).Inc()
}

// ObserveRateLimited counts a cooldown rejection for flow.
func (m *Auth) ObserveRateLimited(flow string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(flow).Inc()
}

// ObserveSessionRevoked counts a revocation.
func (m *Auth) ObserveSessionRevoked() {
	if m == nil {
		return
	}
	m.sessionsRevoked.Inc()
}

// ObserveNotificationFailed counts a swallowed notifier error.
func (m *Auth) ObserveNotificationFailed(kind string) {
	if m == nil {
		return
	}
	m.notificationsFailed.WithLabelValues(kind).Inc()
}

// ObserveDuration records how long operation took since start.
func (m *Auth) ObserveDuration(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// ObserveHTTPRequest counts a finished request by status class (2xx, 4xx...).
func (m *Auth) ObserveHTTPRequest(method string, status int) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, statusClass(status)).Inc()
}

func statusClass(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}
