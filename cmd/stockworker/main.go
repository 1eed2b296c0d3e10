package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"shop/internal/application/factories/infrastructure"
	"shop/internal/config"
	"shop/internal/consumer"
	"shop/internal/domain/event"
	"shop/internal/infrastructure/kafka"
	"shop/internal/infrastructure/postgres"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		logger.Info("stock worker metrics listening on :9093")
		http.ListenAndServe(":9093", mux)
	}()

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	productRepo := postgres.NewProductRepository(pgPool)
	inboxRepo := postgres.NewInboxRepository(pgPool)
	parkedRepo := postgres.NewParkedRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)

	broker := kafka.NewConsumer(
		cfg.Kafka.Brokers,
		[]string{cfg.Kafka.Topics.OrderCreated, cfg.Kafka.Topics.OrderDeleted},
		cfg.Consumer.StockGroupID,
		cfg.Kafka.StartOffset,
	)
	defer broker.Close()

	producer := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
	defer producer.Close()

	handler := consumer.NewStockHandler(productRepo, logger)

	rt := consumer.NewRuntime(consumer.Options{
		Name:            "product-service",
		Broker:          broker,
		Tx:              txManager,
		Inbox:           inboxRepo,
		Parked:          parkedRepo,
		DeadLetters:     producer,
		DeadLetterTopic: cfg.Kafka.Topics.DeadLetter,
		Registry: consumer.Registry{
			event.TypeOrderCreated: handler.HandleOrderCreated,
			event.TypeOrderDeleted: handler.HandleOrderDeleted,
		},
		MaxPoisonRetries: cfg.Consumer.MaxPoisonRetries,
		RetryBackoff:     cfg.Consumer.RetryBackoff,
		MaxBackoff:       cfg.Consumer.MaxBackoff,
		Logger:           logger,
	})

	if err := rt.Run(ctx); err != nil {
		logger.Error("stock worker stopped with error", "error", err)
	}

	logger.Info("stock worker exited")
}
