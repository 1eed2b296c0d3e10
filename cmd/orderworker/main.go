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
		logger.Info("order worker metrics listening on :9092")
		http.ListenAndServe(":9092", mux)
	}()

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	orderRepo := postgres.NewOrderRepository(pgPool)
	outboxRepo := postgres.NewOutboxRepository(pgPool)
	inboxRepo := postgres.NewInboxRepository(pgPool)
	parkedRepo := postgres.NewParkedRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)

	broker := kafka.NewConsumer(
		cfg.Kafka.Brokers,
		[]string{cfg.Kafka.Topics.BasketCheckedOut},
		cfg.Consumer.OrderGroupID,
		cfg.Kafka.StartOffset,
	)
	defer broker.Close()

	producer := kafka.NewProducer(kafka.Config{Brokers: cfg.Kafka.Brokers})
	defer producer.Close()

	handler := consumer.NewOrderHandler(orderRepo, outboxRepo, cfg.Kafka.Topics.OrderCreated, logger)

	rt := consumer.NewRuntime(consumer.Options{
		Name:             "order-service",
		Broker:           broker,
		Tx:               txManager,
		Inbox:            inboxRepo,
		Parked:           parkedRepo,
		DeadLetters:      producer,
		DeadLetterTopic:  cfg.Kafka.Topics.DeadLetter,
		Registry:         consumer.Registry{event.TypeBasketCheckedOut: handler.HandleBasketCheckedOut},
		MaxPoisonRetries: cfg.Consumer.MaxPoisonRetries,
		RetryBackoff:     cfg.Consumer.RetryBackoff,
		MaxBackoff:       cfg.Consumer.MaxBackoff,
		Logger:           logger,
	})

	if err := rt.Run(ctx); err != nil {
		logger.Error("order worker stopped with error", "error", err)
	}

	logger.Info("order worker exited")
}
