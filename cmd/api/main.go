package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop/internal/api"
	"shop/internal/application/factories/infrastructure"
	"shop/internal/config"
	"shop/internal/infrastructure/postgres"
	"shop/internal/usecase"
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

	infraFactory := infrastructure.NewFactory(cfg)
	defer infraFactory.Close()

	pgPool, err := infraFactory.Postgres(ctx)
	if err != nil {
		logger.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}

	redisClient, err := infraFactory.Redis(ctx)
	if err != nil {
		logger.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}

	basketRepo := postgres.NewBasketRepository(pgPool)
	orderRepo := postgres.NewOrderRepository(pgPool)
	outboxRepo := postgres.NewOutboxRepository(pgPool)
	inboxRepo := postgres.NewInboxRepository(pgPool)
	txManager := postgres.NewTxManager(pgPool)

	checkoutUC := usecase.NewCheckoutBasket(txManager, basketRepo, outboxRepo, cfg.Kafka.Topics.BasketCheckedOut)
	deleteOrderUC := usecase.NewDeleteOrder(txManager, orderRepo, outboxRepo, cfg.Kafka.Topics.OrderDeleted)
	getOrderUC := usecase.NewGetOrder(redisClient, orderRepo)
	getTraceUC := usecase.NewGetTrace(orderRepo, outboxRepo, inboxRepo, getOrderUC)

	handlers := api.NewHandlers(checkoutUC, deleteOrderUC, getOrderUC, getTraceUC)

	srv := &http.Server{
		Addr:    ":" + cfg.HTTP.Port,
		Handler: api.NewRouter(handlers, redisClient),
	}

	go func() {
		logger.Info("api server starting", "port", cfg.HTTP.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("listen failed", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down api server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("api server exited")
}
