package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/checkout-service/pkg/auth"
	"github.com/dmehra2102/checkout-service/pkg/config"
	"github.com/dmehra2102/checkout-service/pkg/database"
	"github.com/dmehra2102/checkout-service/pkg/health"
	"github.com/dmehra2102/checkout-service/pkg/idempotency"
	"github.com/dmehra2102/checkout-service/pkg/logging"
	"github.com/dmehra2102/checkout-service/pkg/outbox"
	"github.com/dmehra2102/checkout-service/pkg/shutdown"
	"github.com/dmehra2102/checkout-service/pkg/tracing"

	catalogapp "github.com/dmehra2102/checkout-service/internal/catalog/application"
	cataloghttp "github.com/dmehra2102/checkout-service/internal/catalog/infrastructure/http"
	catalogpg "github.com/dmehra2102/checkout-service/internal/catalog/infrastructure/postgres"
	orderapp "github.com/dmehra2102/checkout-service/internal/order/application"
	orderhttp "github.com/dmehra2102/checkout-service/internal/order/infrastructure/http"
	orderpg "github.com/dmehra2102/checkout-service/internal/order/infrastructure/postgres"
	paymentapp "github.com/dmehra2102/checkout-service/internal/payment/application"
	"github.com/dmehra2102/checkout-service/internal/payment/infrastructure/gateway"
	paymenthttp "github.com/dmehra2102/checkout-service/internal/payment/infrastructure/http"
	paymentpg "github.com/dmehra2102/checkout-service/internal/payment/infrastructure/postgres"
	reportingapp "github.com/dmehra2102/checkout-service/internal/reporting/application"
	reportinghttp "github.com/dmehra2102/checkout-service/internal/reporting/infrastructure/http"
	reportingpg "github.com/dmehra2102/checkout-service/internal/reporting/infrastructure/postgres"
	"github.com/dmehra2102/checkout-service/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel).With("service", cfg.ServiceName)

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	tp, err := tracing.Init(ctx, cfg.ServiceName, cfg.OTLPEndpoint, log)
	if err != nil {
		log.Error("otel init failed", "err", err)
		os.Exit(1)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	// Postgres setup
	pool, err := database.Connect(ctx, log, cfg.PGURL)
	if err != nil {
		log.Error("pg connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := database.Migrate(ctx, pool); err != nil {
		log.Error("schema migration failed", "err", err)
		os.Exit(1)
	}

	// Event sink
	publisher, closePublisher, err := newPublisher(ctx, cfg, log)
	if err != nil {
		log.Error("event sink init failed", "err", err)
		os.Exit(1)
	}
	defer closePublisher()

	// Repositories, outbox and services
	tx := database.NewTxManager(log, pool)
	events := outbox.NewPGStore(log, pool, cfg.ServiceName)
	items := catalogpg.NewRepository(log, pool)
	orders := orderpg.NewRepository(log, pool)
	payments := paymentpg.NewRepository(log, pool)

	catalogSvc := catalogapp.NewService(log, items)
	pricer := orderapp.NewPricer(catalogSvc, cfg.DefaultTaxPercentage, cfg.DefaultShippingCharge)
	orderSvc := orderapp.NewService(log, tx, pricer, orders, payments, events)
	paymentSvc := paymentapp.NewService(log, tx, orders, payments, gateway.NewStub(log), events)
	reportingSvc := reportingapp.NewService(log, reportingpg.NewRepository(log, pool), cfg.SalesWindowDays)

	var writeMW []func(http.Handler) http.Handler
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn("redis unreachable, idempotency keys will pass through until it recovers", "addr", cfg.RedisAddr, "err", err)
		}
		writeMW = append(writeMW, idempotency.Middleware(log, idempotency.NewStore(rdb, cfg.IdempotencyTTL, idempotency.WithPendingTTL(cfg.IdempotencyPendingTTL))))
	}

	authn := auth.NewAuthenticator(log, cfg.JWTSecret)
	router := server.NewRouter(log, authn, server.Handlers{
		Catalog:   cataloghttp.NewHandler(log, catalogSvc),
		Orders:    orderhttp.NewHandler(log, orderSvc),
		Payments:  paymenthttp.NewHandler(log, paymentSvc),
		Reporting: reportinghttp.NewHandler(log, reportingSvc),
	}, writeMW...)

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// gRPC health
	hs := health.NewServer(log, cfg.ServiceName)
	if err := hs.Run(cfg.GRPCAddr); err != nil {
		log.Error("grpc health listen failed", "err", err)
		os.Exit(1)
	}
	go hs.Watch(ctx, pool, 10*time.Second)

	// Run relay
	relay := outbox.NewRelay(log, events, publisher, "checkout-relay-"+uuid.NewString(),
		outbox.WithBatchSize(cfg.RelayBatchSize),
		outbox.WithInterval(cfg.RelayInterval),
		outbox.WithMaxRetries(cfg.RelayMaxRetries),
	)
	go func() {
		if err := relay.Run(ctx); err != nil {
			log.Error("relay stopped with error", "err", err)
		}
	}()

	// Run HTTP
	go func() {
		log.Info("http listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	_ = srv.Shutdown(shutdownCtx)
	hs.Stop()
	log.Info("checkout-service shutdown complete")
}

func newPublisher(ctx context.Context, cfg *config.Config, log *slog.Logger) (outbox.Publisher, func(), error) {
	switch cfg.EventSink {
	case "kafka":
		writer := outbox.NewKafkaWriter(cfg.KafkaBrokers)
		log.Info("event sink kafka", "brokers", cfg.KafkaBrokers, "topic", cfg.EventTopic)
		return outbox.NewKafkaPublisher(writer, cfg.EventTopic), func() { _ = writer.Close() }, nil
	case "sns":
		client, err := outbox.NewSNSClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		log.Info("event sink sns", "topic_arn", cfg.SNSTopicARN)
		return outbox.NewSNSPublisher(client, cfg.SNSTopicARN), func() {}, nil
	default:
		log.Info("event sink disabled")
		return outbox.NopPublisher{Log: log}, func() {}, nil
	}
}
