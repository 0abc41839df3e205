package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/iliyamo/store-rating/internal/config"
	"github.com/iliyamo/store-rating/internal/logger"
	"github.com/iliyamo/store-rating/internal/queue"
)

func main() {
	logg := logger.New(logger.Options{Service: "rating-consumer"})

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		Service: "rating-consumer",
		Level:   logger.ParseLevel(cfg.App.LogLevel),
		Format:  cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{"queue": cfg.AMQP.Queue, "audit_log": cfg.AMQP.AuditLog})

	logg.Info(ctx, "rating consumer starting")
	err = queue.StartRatingConsumer(ctx, queue.ConsumerOptions{
		AMQP:    cfg.AMQP,
		LogPath: cfg.AMQP.AuditLog,
		Log:     logg,
	})
	switch {
	case errors.Is(err, queue.ErrPublisherDisabled):
		logg.Error(ctx, "RABBITMQ_URL is required", err)
		os.Exit(1)
	case err != nil && !errors.Is(err, context.Canceled):
		logg.Error(ctx, "rating consumer stopped", err)
		os.Exit(1)
	}
	logg.Info(ctx, "rating consumer stopped")
}
