// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/companion/internal/api"
	"github.com/taibuivan/companion/internal/platform/config"
	"github.com/taibuivan/companion/internal/platform/metrics"
	"github.com/taibuivan/companion/internal/platform/middleware"
	"github.com/taibuivan/companion/internal/users/account"
	"github.com/taibuivan/companion/internal/users/auth"
)

var quietLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func healthy(context.Context) error { return nil }

func newTestRouter(t *testing.T, deps api.HealthDependencies, limiter *middleware.IPRateLimiter) http.Handler {
	t.Helper()

	registry := prometheus.NewRegistry()
	liveness, readiness := api.NewHealthHandlers(deps, quietLogger)

	return api.NewRouter(&config.Config{Environment: "test"}, quietLogger,
		api.Dependencies{Limiter: limiter, Collector: metrics.New(registry)},
		api.Handlers{
			Liveness:  liveness,
			Readiness: readiness,
			Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
			Auth:      auth.NewHandler(nil, nil, nil),
			Account:   account.NewHandler(nil),
		})
}

func get(handler http.Handler, path string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, path, nil))
	return recorder
}

/*
TestReadiness reports each dependency and degrades when one fails.
*/
func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		deps       api.HealthDependencies
		wantStatus int
		wantState  string
		wantChecks int
	}{
		{
			name:       "all_healthy",
			deps:       api.HealthDependencies{CheckDatabase: healthy, CheckCache: healthy, CheckBroker: healthy},
			wantStatus: http.StatusOK,
			wantState:  "ready",
			wantChecks: 3,
		},
		{
			name:       "broker_not_configured",
			deps:       api.HealthDependencies{CheckDatabase: healthy, CheckCache: healthy},
			wantStatus: http.StatusOK,
			wantState:  "ready",
			wantChecks: 2,
		},
		{
			name: "cache_down",
			deps: api.HealthDependencies{
				CheckDatabase: healthy,
				CheckCache:    func(context.Context) error { return errors.New("connection refused") },
			},
			wantStatus: http.StatusServiceUnavailable,
			wantState:  "degraded",
			wantChecks: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newTestRouter(t, tt.deps, nil)

			recorder := get(router, "/ready")
			require.Equal(t, tt.wantStatus, recorder.Code)

			var body struct {
				Data struct {
					Status string `json:"status"`
					Checks []struct {
						Name string `json:"name"`
						OK   bool   `json:"ok"`
					} `json:"checks"`
				} `json:"data"`
			}
			require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
			assert.Equal(t, tt.wantState, body.Data.Status)
			assert.Len(t, body.Data.Checks, tt.wantChecks)
		})
	}
}

/*
TestRouter covers probes, metrics exposure and route protection.
*/
func TestRouter(t *testing.T) {
	router := newTestRouter(t, api.HealthDependencies{CheckDatabase: healthy}, nil)

	// 1. Liveness
	assert.Equal(t, http.StatusOK, get(router, "/health").Code)

	// 2. Protected routes refuse anonymous callers
	assert.Equal(t, http.StatusUnauthorized, get(router, "/api/v1/account/me").Code)
	assert.Equal(t, http.StatusUnauthorized, get(router, "/api/v1/auth/sessions").Code)

	logout := httptest.NewRecorder()
	router.ServeHTTP(logout, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))
	assert.Equal(t, http.StatusUnauthorized, logout.Code)

	// 3. Unknown routes
	assert.Equal(t, http.StatusNotFound, get(router, "/api/v1/characters").Code)

	// 4. Request counters are exposed
	recorder := get(router, "/metrics")
	require.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), `companion_http_requests_total{method="GET",status="4xx"}`)
}

/*
TestRouter_RateLimit rejects callers past their burst.
*/
func TestRouter_RateLimit(t *testing.T) {
	limiter := middleware.NewIPRateLimiter(0, 1, nil)
	router := newTestRouter(t, api.HealthDependencies{}, limiter)

	assert.Equal(t, http.StatusOK, get(router, "/health").Code)

	recorder := get(router, "/health")
	assert.Equal(t, http.StatusTooManyRequests, recorder.Code)
	assert.NotEmpty(t, recorder.Header().Get("Retry-After"))
}
