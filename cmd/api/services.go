package main

import (
	"fmt"
	"log/slog"

	"github.com/cimillas/giftlink/internal/app"
	"github.com/cimillas/giftlink/internal/clock"
	"github.com/cimillas/giftlink/internal/config"
	"github.com/cimillas/giftlink/internal/fulfillment"
	"github.com/cimillas/giftlink/internal/notify"
	"github.com/cimillas/giftlink/internal/storage/postgres"
	"github.com/jackc/pgx/v5/pgxpool"
)

// services is the application layer wired to Postgres.
type services struct {
	clock       clock.Clock
	orders      *postgres.OrderRepository
	catalog     *postgres.CatalogRepository
	audit       *app.AuditLog
	notifier    *app.NotificationService
	telemetry   *app.Telemetry
	fulfillment *app.FulfillmentService
	dispatcher  *app.Dispatcher
	claims      *app.ClaimService
	gifts       *app.GiftService
}

func buildServices(cfg config.Config, pool *pgxpool.Pool, logger *slog.Logger) (*services, error) {
	clk := clock.NewSystem()

	provider, err := fulfillment.NewProvider(cfg.Providers.Gift, logger)
	if err != nil {
		return nil, err
	}
	sender, err := notify.NewSender(cfg.Providers.Email, logger)
	if err != nil {
		return nil, err
	}
	telemetry, err := app.NewTelemetry(nil, nil)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	s := &services{
		clock:     clk,
		orders:    postgres.NewOrderRepository(pool),
		catalog:   postgres.NewCatalogRepository(pool),
		telemetry: telemetry,
	}
	s.audit = app.NewAuditLog(postgres.NewAuditRepository(pool), clk, logger)
	s.notifier = app.NewNotificationService(postgres.NewOutboxRepository(pool), sender, s.audit, clk, logger)
	s.fulfillment = app.NewFulfillmentService(s.orders, s.catalog, s.audit, provider, clk, logger, telemetry)
	s.dispatcher = app.NewDispatcher(s.fulfillment, app.DispatcherConfig{
		Workers:        cfg.Fulfillment.Workers,
		QueueSize:      cfg.Fulfillment.QueueSize,
		RatePerSecond:  cfg.Fulfillment.RatePerSecond,
		AttemptTimeout: cfg.Fulfillment.Timeout,
	}, logger)
	s.claims = app.NewClaimService(s.orders, s.catalog, s.audit, s.dispatcher, clk, logger, telemetry)
	s.gifts = app.NewGiftService(s.orders, s.catalog, s.audit, s.notifier, app.GiftConfig{
		BaseURL:     cfg.BaseURL,
		PaymentMode: app.PaymentMode(cfg.Payments.Mode),
		ClaimTTL:    cfg.ClaimTTL,
	}, clk, logger)
	return s, nil
}
