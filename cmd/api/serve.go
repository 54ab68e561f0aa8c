// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/taibuivan/companion/internal/api"
	"github.com/taibuivan/companion/internal/platform/config"
	"github.com/taibuivan/companion/internal/platform/constants"
	"github.com/taibuivan/companion/internal/platform/metrics"
	"github.com/taibuivan/companion/internal/platform/middleware"
	"github.com/taibuivan/companion/internal/platform/migration"
	"github.com/taibuivan/companion/internal/platform/notify"
	pgstore "github.com/taibuivan/companion/internal/platform/postgres"
	redisstore "github.com/taibuivan/companion/internal/platform/redis"
	"github.com/taibuivan/companion/internal/platform/sec"
	"github.com/taibuivan/companion/internal/users/account"
	"github.com/taibuivan/companion/internal/users/auth"
)

// startupTimeout bounds connecting to every dependency, so misconfiguration
// is caught quickly rather than hanging indefinitely.
const startupTimeout = 30 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg, log)
		},
	}
}

// serve follows the startup sequence:
//
//  1. Connect to PostgreSQL (pgxpool) and Redis.
//  2. Run database migrations (idempotent).
//  3. Build the token signer, notifier and metrics registry.
//  4. Wire stores, flows and HTTP handlers.
//  5. Serve until SIGINT/SIGTERM, then shut down gracefully.
func serve(parent context.Context, cfg *config.Config, log *slog.Logger) error {
	if parent == nil {
		parent = context.Background()
	}

	startupCtx, startupCancel := context.WithTimeout(parent, startupTimeout)
	defer startupCancel()

	// ── 1. Storage ────────────────────────────────────────────────────────
	pool, err := pgstore.NewPool(startupCtx, cfg.DatabaseURL, pgstore.Options{StatementTimeout: cfg.DependencyTimeout}, log)
	if err != nil {
		return fail(log, err, "connect to postgres")
	}
	defer func() {
		log.Info("postgres_pool_closing")
		pool.Close()
	}()

	rdb, err := redisstore.NewClient(startupCtx, cfg.RedisURL, cfg.DependencyTimeout, log)
	if err != nil {
		return fail(log, err, "connect to redis")
	}
	defer func() {
		log.Info("redis_client_closing")
		if cerr := rdb.Close(); cerr != nil {
			log.Error("redis_close_failed", slog.Any("error", cerr))
		}
	}()

	// ── 2. Migrations ─────────────────────────────────────────────────────
	if err := migration.RunUp(cfg.DatabaseURL, cfg.MigrationPath, log); err != nil {
		return fail(log, err, "run migrations")
	}

	// ── 3. Signing, notification and metrics ──────────────────────────────
	tokens, err := newTokenService(cfg)
	if err != nil {
		return fail(log, err, "initialize token service")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.New(registry)

	var notifier auth.Notifier = notify.NewLogNotifier(log)
	var checkBroker api.CheckFunc
	if cfg.NATSURL != "" {
		natsNotifier, err := notify.NewNATSNotifier(cfg.NATSURL, cfg.MailSubject)
		if err != nil {
			return fail(log, err, "connect to nats")
		}
		defer natsNotifier.Close()
		notifier, checkBroker = natsNotifier, natsNotifier.Ping
	}

	// ── 4. Domain wiring ──────────────────────────────────────────────────
	options := auth.OptionsFromConfig(cfg)
	directory := auth.NewUserDirectory(pool)
	activity := auth.NewActivityLog(pool)
	cache := auth.NewRedisFlowCache(rdb)

	sessions := auth.NewSessionManager(cache, auth.NewSessionAudit(pool), options, collector)
	registration := auth.NewRegistrationFlow(directory, cache, activity, notifier, options, collector)
	passwordReset := auth.NewPasswordResetFlow(directory, cache, tokens, sessions, activity, notifier, options, collector)
	authenticator := auth.NewAuthenticator(tokens, directory, sessions, activity, options, collector)

	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func(ctx context.Context) error { return pgstore.Ping(ctx, pool) },
		CheckCache:    func(ctx context.Context) error { return redisstore.Ping(ctx, rdb) },
		CheckBroker:   checkBroker,
	}, log)

	limiter := middleware.NewIPRateLimiter(constants.DefaultRateLimitRPS, constants.DefaultRateLimitBurst, func(*http.Request) {
		collector.ObserveRateLimited("ip")
	})

	server := api.NewServer(cfg, log, api.Dependencies{Limiter: limiter, Collector: collector}, api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Metrics:   promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Auth:      auth.NewHandler(authenticator, registration, passwordReset),
		Account:   account.NewHandler(authenticator),
	})

	// ── 5. Serve until signalled ──────────────────────────────────────────
	runCtx, stop := signal.NotifyContext(parent, syscall.SIGTERM, syscall.SIGINT, os.Interrupt)
	defer stop()

	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		limiter.Cleanup(groupCtx, constants.RateLimitCleanupInterval, constants.RateLimitClientTTL)
		return nil
	})

	group.Go(func() error {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen_failed: %w", err)
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		log.Info("server_shutting_down", slog.Duration("timeout", constants.ShutdownTimeout))
		return server.Shutdown(constants.ShutdownTimeout)
	})

	if err := group.Wait(); err != nil {
		log.Error("server_stopped_with_error", slog.Any("error", err))
		return err
	}

	log.Info("server_stopped_cleanly")
	return nil
}

// newTokenService picks RS256 when a key pair is configured and HS256 otherwise.
func newTokenService(cfg *config.Config) (*sec.TokenService, error) {
	if cfg.UsesKeyPair() {
		return sec.NewTokenService(cfg.JWTPrivKeyPath, cfg.JWTPubKeyPath, constants.AuthIssuer)
	}
	return sec.NewHMACTokenService([]byte(cfg.TokenSecret), constants.AuthIssuer)
}
