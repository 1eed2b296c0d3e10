package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"shop/internal/config"

	"github.com/jackc/pgx/v5"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS baskets (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'OPEN',
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS basket_items (
		basket_id UUID NOT NULL REFERENCES baskets(id),
		product_id TEXT NOT NULL,
		quantity INT NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(12,2) NOT NULL,
		PRIMARY KEY (basket_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id UUID PRIMARY KEY,
		basket_id UUID NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		total_amount NUMERIC(12,2) NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS order_items (
		order_id UUID NOT NULL REFERENCES orders(id),
		product_id TEXT NOT NULL,
		quantity INT NOT NULL CHECK (quantity > 0),
		unit_price NUMERIC(12,2) NOT NULL,
		PRIMARY KEY (order_id, product_id)
	)`,
	`CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		stock INT NOT NULL CHECK (stock >= 0),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE TABLE IF NOT EXISTS stock_movements (
		id UUID PRIMARY KEY,
		order_id UUID NOT NULL,
		product_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		quantity INT NOT NULL,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (order_id, product_id, direction)
	)`,
	`CREATE TABLE IF NOT EXISTS outbox (
		id UUID PRIMARY KEY,
		message_type TEXT NOT NULL,
		destination TEXT NOT NULL,
		payload JSONB NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		correlation_id TEXT,
		causation_id TEXT,
		producer TEXT,
		created_at TIMESTAMPTZ NOT NULL,
		sent_at TIMESTAMPTZ
	)`,
	`CREATE INDEX IF NOT EXISTS outbox_pending_idx
		ON outbox (destination, created_at) WHERE status = 'pending'`,
	`CREATE TABLE IF NOT EXISTS inbox_events (
		consumer TEXT NOT NULL,
		message_id UUID NOT NULL,
		message_type TEXT NOT NULL,
		correlation_id TEXT,
		processed_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (consumer, message_id)
	)`,
	`CREATE TABLE IF NOT EXISTS parked_messages (
		id UUID PRIMARY KEY,
		consumer TEXT NOT NULL,
		message_id UUID NOT NULL,
		message_type TEXT NOT NULL,
		reason TEXT NOT NULL,
		payload JSONB NOT NULL,
		parked_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		UNIQUE (consumer, message_id)
	)`,
}

func main() {
	resetStuck := flag.Bool("reset-stuck", false, "release outbox rows stuck in publishing back to pending")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.New()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	connStr := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		cfg.Postgres.User, cfg.Postgres.Password, cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.DBName)

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, connStr)
	if err != nil {
		logger.Error("unable to connect to database", "error", err)
		os.Exit(1)
	}
	defer conn.Close(ctx)

	for _, stmt := range schema {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			logger.Error("migration statement failed", "error", err)
			os.Exit(1)
		}
	}
	logger.Info("schema applied", "statements", len(schema))

	if *resetStuck {
		// A dispatcher crash between claim and mark-sent leaves rows in
		// publishing; re-sending is safe because message IDs are stable.
		tag, err := conn.Exec(ctx, `UPDATE outbox SET status = 'pending' WHERE status = 'publishing'`)
		if err != nil {
			logger.Error("reset stuck outbox rows failed", "error", err)
			os.Exit(1)
		}
		logger.Info("released stuck outbox rows", "count", tag.RowsAffected())
	}
}
