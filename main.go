package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcart "github.com/Zhima-Mochi/marketplace-saga/internal/application/cart"
	appcustomer "github.com/Zhima-Mochi/marketplace-saga/internal/application/customer"
	apporder "github.com/Zhima-Mochi/marketplace-saga/internal/application/order"
	apppayment "github.com/Zhima-Mochi/marketplace-saga/internal/application/payment"
	appseller "github.com/Zhima-Mochi/marketplace-saga/internal/application/seller"
	appshipment "github.com/Zhima-Mochi/marketplace-saga/internal/application/shipment"
	appstock "github.com/Zhima-Mochi/marketplace-saga/internal/application/stock"
	"github.com/Zhima-Mochi/marketplace-saga/internal/config"
	domcart "github.com/Zhima-Mochi/marketplace-saga/internal/domain/cart"
	domorder "github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
	dompayment "github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	domstock "github.com/Zhima-Mochi/marketplace-saga/internal/domain/stock"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/kafka"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/memory"
	infraobs "github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/outbox"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/paymentgw"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/postgres"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/redisstore"
	"github.com/Zhima-Mochi/marketplace-saga/internal/infrastructure/sqlstore"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"
	httppresentation "github.com/Zhima-Mochi/marketplace-saga/internal/presentation/http"
	workerpresentation "github.com/Zhima-Mochi/marketplace-saga/internal/presentation/worker"
	"go.uber.org/zap"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// stores holds the participant stores picked for this process plus whatever must be closed on exit.
type stores struct {
	stock    domstock.Store
	order    domorder.Store
	replicas domcart.ReplicaStore
	intents  paymentgw.IntentStore
	closers  []func()
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	baseLogger, err := zaplogger.New(zaplogger.Options{Level: cfg.Log.Level, File: cfg.Log.File, Development: cfg.Env == "dev"},
		observability.F("service", cfg.ServiceName),
		observability.F("env", cfg.Env),
	)
	if err != nil {
		return err
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger.Zap())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Env,
		Endpoint:       cfg.Trace.Endpoint,
		SampleRatio:    cfg.Trace.SampleRatio,
	})
	if err != nil {
		return err
	}

	registry := prometrics.New("marketplace")
	counters, histograms := prometrics.Standard(registry)
	tel := infraobs.New(oteltrace.New(cfg.ServiceName, oteltrace.WithVersion(cfg.Version)), baseLogger, infraobs.Instruments{
		Counters:   counters,
		Histograms: histograms,
	})
	systemLogger := baseLogger.With(observability.F("component", "system"))

	bus := outbox.NewBus(baseLogger, tel, outbox.Options{
		Concurrency:    cfg.Bus.Concurrency,
		HandlerTimeout: cfg.Bus.HandlerTimeout,
	})
	dispatcher := workerpresentation.NewDispatcher(bus, bus, tel)

	st, err := openStores(ctx, cfg, systemLogger)
	if err != nil {
		return err
	}
	defer func() {
		for _, c := range st.closers {
			c()
		}
	}()

	provider := paymentgw.NewProvider(st.intents, cfg.Payment.FailPercentage, baseLogger)
	var gateway dompayment.Gateway = provider
	if cfg.Payment.ProviderURL != "" {
		gateway = paymentgw.NewClient(paymentgw.ClientOptions{
			BaseURL: cfg.Payment.ProviderURL,
			Timeout: cfg.Payment.Timeout,
		}, baseLogger)
	}

	cartService := appcart.NewService(memory.NewCartStore(), st.replicas, bus, appcart.Options{
		Streaming:        cfg.Cart.Streaming,
		ControllerChecks: cfg.Cart.ControllerChecks,
	}, tel)
	stockService := appstock.NewService(st.stock, bus, appstock.Options{
		RaiseStockFailed: cfg.Stock.RaiseStockFailed,
		DefaultInventory: cfg.Stock.DefaultInventory,
	}, tel)
	orderService := apporder.NewService(st.order, bus, tel)
	paymentService := apppayment.NewService(memory.NewPaymentStore(), gateway, bus, tel)
	shipmentService := appshipment.NewService(memory.NewShipmentStore(), bus, appshipment.Options{
		DeliveryConcurrency: cfg.Shipment.DeliveryConcurrency,
	}, tel)
	sellerService := appseller.NewService(memory.NewSellerStore(), tel)
	customerService := appcustomer.NewService(memory.NewCustomerStore(), tel)

	appcart.NewWorker(cartService, dispatcher).Start()
	appstock.NewWorker(stockService, dispatcher).Start()
	apporder.NewWorker(orderService, dispatcher).Start()
	apppayment.NewWorker(paymentService, dispatcher).Start()
	appshipment.NewWorker(shipmentService, dispatcher).Start()
	appseller.NewWorker(sellerService, dispatcher).Start()
	appcustomer.NewWorker(customerService, dispatcher).Start()

	monitor := workerpresentation.NewMonitor(cfg.Bus.MarkCapacity, tel)
	monitor.Start(bus)

	kc := kafka.NewClient(cfg.Kafka.Brokers, cfg.Kafka.TopicPrefix)
	consumerDone := make(chan struct{})
	if kc.Enabled() {
		writer := kc.NewWriter()
		defer func() { _ = writer.Close() }()
		kafka.NewForwarder(writer, kc.TopicPrefix, tel).Attach(bus, kafka.SagaEvents()...)

		reader := kc.NewReader(cfg.Kafka.GroupID, kafka.CatalogEvents()...)
		defer func() { _ = reader.Close() }()
		go func() {
			defer close(consumerDone)
			if err := kafka.NewConsumer(reader, bus, kc.TopicPrefix, tel).Run(ctx); err != nil {
				systemLogger.Error("kafka_consumer_stopped", observability.Err(err))
			}
		}()
		systemLogger.Info("kafka_bridge_started", observability.F("brokers", kc.Brokers))
	} else {
		close(consumerDone)
	}

	bus.Start(context.WithoutCancel(ctx))

	handler := httppresentation.NewHandler(httppresentation.Deps{
		Cart:        cartService,
		Stock:       stockService,
		Order:       orderService,
		Payment:     paymentService,
		Shipment:    shipmentService,
		Seller:      sellerService,
		Customer:    customerService,
		Compensator: dispatcher,
		Marks:       monitor,
		Catalog:     bus,
		Provider:    provider.Routes(),
		Metrics:     registry.Handler(),
	}, baseLogger, tel)

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		systemLogger.Info("http_server_start", observability.F("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		if err != nil {
			systemLogger.Error("http_server_error", observability.Err(err))
		}
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		systemLogger.Error("http_server_shutdown_error", observability.Err(err))
	} else {
		systemLogger.Info("http_server_stopped")
	}
	<-consumerDone
	bus.Stop(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		systemLogger.Error("tracer_shutdown_error", observability.Err(err))
	}
	return nil
}

// openStores keeps every participant in memory unless DATABASE_URL or REDIS_URL point
// somewhere durable.
func openStores(ctx context.Context, cfg config.Config, logger observability.Logger) (*stores, error) {
	st := &stores{
		stock:    memory.NewStockStore(),
		order:    memory.NewOrderStore(),
		replicas: memory.NewReplicaStore(),
		intents:  memory.NewIntentStore(),
	}
	fail := func(err error) (*stores, error) {
		for _, c := range st.closers {
			c()
		}
		return nil, err
	}

	if cfg.DatabaseURL != "" {
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(err)
		}
		st.closers = append(st.closers, pool.Close)
		stockStore := postgres.NewStockStore(pool)
		if err := stockStore.InitSchema(ctx); err != nil {
			return fail(err)
		}
		st.stock = stockStore

		db, err := sqlstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fail(err)
		}
		st.closers = append(st.closers, func() { _ = db.Close() })
		orderStore := sqlstore.NewOrderStore(db)
		if err := orderStore.InitSchema(ctx); err != nil {
			return fail(err)
		}
		st.order = orderStore
		logger.Info("postgres_stores_ready")
	}

	if cfg.RedisURL != "" {
		client, err := redisstore.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return fail(err)
		}
		st.closers = append(st.closers, func() { _ = client.Close() })
		st.replicas = redisstore.NewReplicaStore(client)
		st.intents = redisstore.NewIntentStore(client, cfg.Payment.IntentTTL)
		logger.Info("redis_stores_ready")
	}
	return st, nil
}
