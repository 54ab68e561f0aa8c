// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/companion/internal/platform/respond"
)

// readinessTimeout bounds the whole /ready probe.
const readinessTimeout = 2 * time.Second

// CheckFunc pings one dependency.
type CheckFunc func(ctx context.Context) error

// HealthDependencies holds the injectable dependency checkers for the /ready endpoint.
// A nil checker is skipped.
type HealthDependencies struct {
	// CheckDatabase pings the PostgreSQL pool.
	CheckDatabase CheckFunc

	// CheckCache pings the Redis client.
	CheckCache CheckFunc

	// CheckBroker pings the NATS connection when mail goes over the bus.
	CheckBroker CheckFunc
}

type healthHandler struct {
	dependencies HealthDependencies
	logger       *slog.Logger
}

type checkResult struct {
	Name  string `json:"name"`
	IsOK  bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// NewHealthHandlers creates the /health and /ready http.HandlerFuncs.
func NewHealthHandlers(deps HealthDependencies, logger *slog.Logger) (liveness, readiness http.HandlerFunc) {
	handler := &healthHandler{dependencies: deps, logger: logger}
	return handler.liveness, handler.readiness
}

// liveness handles GET /health (Liveness probe).
func (handler *healthHandler) liveness(writer http.ResponseWriter, _ *http.Request) {
	respond.OK(writer, map[string]string{"status": "ok"})
}

// readiness handles GET /ready (Readiness probe). Checks run concurrently.
func (handler *healthHandler) readiness(writer http.ResponseWriter, request *http.Request) {
	probeContext, cancel := context.WithTimeout(request.Context(), readinessTimeout)
	defer cancel()

	checks := []struct {
		name  string
		check CheckFunc
	}{
		{"postgres", handler.dependencies.CheckDatabase},
		{"redis", handler.dependencies.CheckCache},
		{"nats", handler.dependencies.CheckBroker},
	}

	// Each goroutine owns one slot, so no locking is needed
	results := make([]*checkResult, len(checks))
	var group errgroup.Group

	for index, entry := range checks {
		if entry.check == nil {
			continue
		}
		group.Go(func() error {
			result := &checkResult{Name: entry.name, IsOK: true}
			if err := entry.check(probeContext); err != nil {
				result.IsOK = false
				result.Error = err.Error()
				handler.logger.Error("readiness_check_failed", slog.String("dependency", entry.name), slog.Any("error", err))
			}
			results[index] = result
			return nil
		})
	}
	_ = group.Wait()

	report := make([]checkResult, 0, len(checks))
	isSystemReady := true
	for _, result := range results {
		if result == nil {
			continue
		}
		isSystemReady = isSystemReady && result.IsOK
		report = append(report, *result)
	}

	responseStatus, httpStatus := "ready", http.StatusOK
	if !isSystemReady {
		responseStatus, httpStatus = "degraded", http.StatusServiceUnavailable
	}

	respond.JSON(writer, httpStatus, respond.SuccessEnvelope{Data: map[string]any{
		"status": responseStatus,
		"checks": report,
	}})
}
