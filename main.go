package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	appinv "github.com/mallkit/storefront/internal/application/inventory"
	"github.com/mallkit/storefront/internal/application/notify"
	apporder "github.com/mallkit/storefront/internal/application/order"
	apptracking "github.com/mallkit/storefront/internal/application/tracking"
	"github.com/mallkit/storefront/internal/config"
	"github.com/mallkit/storefront/internal/infrastructure/mailgw"
	"github.com/mallkit/storefront/internal/infrastructure/memory"
	infraobs "github.com/mallkit/storefront/internal/infrastructure/observability"
	"github.com/mallkit/storefront/internal/infrastructure/observability/oteltrace"
	"github.com/mallkit/storefront/internal/infrastructure/observability/prometrics"
	"github.com/mallkit/storefront/internal/infrastructure/observability/zaplogger"
	"github.com/mallkit/storefront/internal/infrastructure/outbox"
	"github.com/mallkit/storefront/internal/infrastructure/postgres"
	"github.com/mallkit/storefront/internal/infrastructure/rediscache"
	"github.com/mallkit/storefront/internal/infrastructure/stream"
	"github.com/mallkit/storefront/internal/observability"
	httptransport "github.com/mallkit/storefront/internal/presentation/http"
)

func main() {
	cfg := config.Load()

	logger := zaplogger.New(
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)

	registry := prometrics.New(cfg.ServiceName, "")
	counters := map[observability.MetricKey]observability.Counter{
		observability.MUsecaseRequests: registry.Counter(
			string(observability.MUsecaseRequests),
			"Total number of use case invocations.",
			"use_case", "outcome",
		),
		observability.MHTTPRequests: registry.Counter(
			string(observability.MHTTPRequests),
			"Total number of HTTP requests served.",
			"method", "route", "status",
		),
		observability.MStockReservations: registry.Counter(
			string(observability.MStockReservations),
			"Stock reservation attempts by outcome.",
			"outcome",
		),
		observability.MNotificationsSent: registry.Counter(
			string(observability.MNotificationsSent),
			"Notifications handed to the mail gateway.",
			"template", "outcome",
		),
		observability.MExternalRequests: registry.Counter(
			string(observability.MExternalRequests),
			"Requests to external services.",
			"target", "outcome",
		),
	}
	histograms := map[observability.MetricKey]observability.Histogram{
		observability.MUsecaseDuration: registry.Histogram(
			string(observability.MUsecaseDuration),
			"Duration of use case execution in seconds.",
			prometheus.DefBuckets,
			"use_case",
		),
		observability.MHTTPRequestDuration: registry.Histogram(
			string(observability.MHTTPRequestDuration),
			"Duration of HTTP request handling in seconds.",
			prometheus.DefBuckets,
			"method", "route", "status",
		),
		observability.MExternalRequestDuration: registry.Histogram(
			string(observability.MExternalRequestDuration),
			"Duration of external service calls in seconds.",
			prometheus.DefBuckets,
			"target",
		),
	}
	obs := infraobs.New(oteltrace.New(cfg.ServiceName), logger, counters, histograms)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("postgres_connect_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()
	if err := postgres.Migrate(ctx, pool); err != nil {
		logger.Error("postgres_migrate_failed", observability.F("error", err.Error()))
		os.Exit(1)
	}

	ledger := postgres.NewInventoryStore(pool)
	orderStore := postgres.NewOrderStore(pool)
	trackingStore := postgres.NewTrackingStore(pool)
	auditStore := postgres.NewAuditStore(pool)

	var statusCache apporder.StatusCache
	if rdb, err := rediscache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB); err != nil {
		// The cache is an accelerator; polling falls back to the repository.
		logger.Warn("redis_connect_failed", observability.F("error", err.Error()))
	} else {
		defer func() { _ = rdb.Close() }()
		statusCache = rediscache.NewOrderStatusCache(rdb)
	}

	bus := outbox.NewBus(logger)
	bus.Start(ctx)
	defer bus.Stop(context.Background())

	publisher := stream.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, logger)
	publisher.Attach(bus)
	defer func() { _ = publisher.Close() }()

	notifier := mailgw.New(cfg.MailGatewayURL, cfg.MailGatewayKey, obs)
	notify.New(bus, notifier, obs).Start()

	// Address and cart management live in the storefront frontend service;
	// until its client lands these in-process stand-ins keep placement working.
	addresses := memory.NewAddressBook()
	cart := memory.NewCart()

	orderService := apporder.NewService(orderStore, addresses, cart, statusCache, bus, obs)
	trackingService := apptracking.NewService(trackingStore, orderStore, auditStore, obs)
	inventoryService := appinv.NewService(ledger, obs)

	handler := httptransport.NewHandler(orderService, trackingService, inventoryService, cfg.JWTSecret, obs)
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/", handler.Router())

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http_server_start", observability.F("addr", server.Addr))
		err := server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_server_error", observability.F("error", err.Error()))
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_server_shutdown_error", observability.F("error", err.Error()))
	} else {
		logger.Info("http_server_stopped")
	}
}
