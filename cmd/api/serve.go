package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/cimillas/giftlink/internal/app"
	"github.com/cimillas/giftlink/internal/config"
	"github.com/cimillas/giftlink/internal/payments"
	"github.com/cimillas/giftlink/internal/ratelimit"
	"github.com/cimillas/giftlink/internal/session"
	transporthttp "github.com/cimillas/giftlink/internal/transport/http"
	"github.com/cimillas/giftlink/migrations"
	"github.com/spf13/cobra"
)

const (
	shutdownTimeout  = 10 * time.Second
	evictionInterval = time.Minute
	expiryInterval   = time.Hour
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var skipMigrations bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			return serve(cmd.Context(), cfg, logger, !skipMigrations)
		},
	}
	cmd.Flags().BoolVar(&skipMigrations, "skip-migrations", false, "do not apply migrations at startup")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger, migrate bool) error {
	pool, err := connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer pool.Close()

	if migrate {
		applied, err := migrations.Apply(ctx, pool)
		if err != nil {
			return fmt.Errorf("apply migrations: %w", err)
		}
		if len(applied) > 0 {
			logger.Info("migrations applied", "names", applied)
		}
	}

	svc, err := buildServices(cfg, pool, logger)
	if err != nil {
		return err
	}

	auth, err := session.NewAuthenticator(cfg.Admin.Password, cfg.Admin.Secret, svc.clock, session.WithMaxAge(cfg.Admin.SessionTTL))
	if err != nil {
		return err
	}
	admin := app.NewAdminService(auth, svc.orders, svc.catalog, svc.audit, svc.notifier, svc.fulfillment, cfg.BaseURL, svc.clock, logger)

	pingers := []transporthttp.Pinger{pool}
	var limiter ratelimit.Checker
	bg, stopBackground := context.WithCancel(context.WithoutCancel(ctx))
	defer stopBackground()

	switch cfg.RateLimit.Store {
	case "redis":
		client := ratelimit.NewRedisClient(cfg.RateLimit.RedisAddr, cfg.RateLimit.RedisPassword, cfg.RateLimit.RedisDB)
		defer client.Close()
		store := ratelimit.NewRedisStore(client, "")
		pingCtx, cancel := context.WithTimeout(ctx, startupTimeout)
		err := store.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
		limiter = store
		pingers = append(pingers, store)
	default:
		mem := ratelimit.New(svc.clock)
		go mem.Run(bg, evictionInterval)
		limiter = mem
	}

	dispatcherDone := make(chan struct{})
	go func() {
		svc.dispatcher.Run(bg)
		close(dispatcherDone)
	}()
	go drainDispatchErrors(bg, svc.dispatcher, logger)
	go expireLoop(bg, svc.gifts, logger)

	handler := transporthttp.NewRouter(transporthttp.Deps{
		Gifts:       svc.gifts,
		Claims:      svc.claims,
		Remainder:   svc.fulfillment,
		Admin:       admin,
		Verifier:    payments.NewVerifier(cfg.Payments.WebhookSecret, payments.DefaultTolerance),
		Limiter:     limiter,
		Recorder:    svc.telemetry,
		Pingers:     pingers,
		CORSOrigins: cfg.CORSOrigins,
		Cookie:      transporthttp.SessionCookie{MaxAge: auth.MaxAge(), Secure: cfg.SecureCookies()},
		Clock:       svc.clock,
		Logger:      logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("api listening", "port", cfg.Port, "payment_mode", cfg.Payments.Mode, "rate_limit_store", cfg.RateLimit.Store)

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", "err", err)
	}

	stopBackground()
	select {
	case <-dispatcherDone:
	case <-shutdownCtx.Done():
		logger.Warn("fulfillment still in flight at shutdown deadline")
	}
	logger.Info("server stopped", "queued_orders", svc.dispatcher.Pending())
	return runErr
}

func drainDispatchErrors(ctx context.Context, d *app.Dispatcher, logger *slog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-d.Errors():
			logger.Warn("order left for operator retry", "order_id", e.OrderID, "err", e.Err)
		}
	}
}

func expireLoop(ctx context.Context, gifts *app.GiftService, logger *slog.Logger) {
	ticker := time.NewTicker(expiryInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := gifts.ExpireStale(ctx)
			if err != nil {
				logger.Error("expire stale orders", "err", err)
				continue
			}
			if n > 0 {
				logger.Info("expired stale orders", "count", n)
			}
		}
	}
}
