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
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/iliyamo/store-rating/internal/config"
	"github.com/iliyamo/store-rating/internal/database"
	"github.com/iliyamo/store-rating/internal/handler"
	"github.com/iliyamo/store-rating/internal/logger"
	"github.com/iliyamo/store-rating/internal/metrics"
	"github.com/iliyamo/store-rating/internal/queue"
	"github.com/iliyamo/store-rating/internal/repository"
	"github.com/iliyamo/store-rating/internal/router"
	"github.com/iliyamo/store-rating/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logg := logger.New(logger.Options{Service: "api"})

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		Service: "api",
		Level:   logger.ParseLevel(cfg.App.LogLevel),
		Format:  cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB)
	requireResource(ctx, logg, "database", err)
	defer func() {
		if err := db.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()
	if cfg.DB.AutoMigrate {
		requireResource(ctx, logg, "migrations", database.Migrate(ctx, db))
		logg.Info(ctx, "migrations applied")
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		logg.Warn(ctx, "redis unavailable: rate limiting and caching disabled", nil)
	} else {
		defer rdb.Close()
	}

	publisher := queue.NewPublisher(cfg.AMQP, logg)
	defer publisher.Close()
	if !publisher.Enabled() {
		logg.Info(ctx, "RABBITMQ_URL not set: rating events disabled")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	users := repository.NewUserRepo(db)
	stores := repository.NewStoreRepo(db)
	ratings := repository.NewRatingRepo(db)
	stats := repository.NewStatsRepo(db)

	authSvc, err := service.NewAuthService(users, service.TokenConfig{
		Secret:     cfg.JWT.Secret,
		TTL:        cfg.JWT.AccessTTL(),
		BcryptCost: cfg.Password.BcryptCost,
	})
	requireResource(ctx, logg, "auth service", err)
	adminSvc, err := service.NewAdminService(users, stores, stats, cfg.Password.BcryptCost)
	requireResource(ctx, logg, "admin service", err)
	ownerSvc, err := service.NewOwnerService(stores, ratings)
	requireResource(ctx, logg, "owner service", err)
	browseSvc, err := service.NewBrowseService(service.BrowseParams{
		Stores:  stores,
		Ratings: ratings,
		Events:  publisher,
		Metrics: metrics.NewRatingMetrics(reg),
		Log:     logg,
	})
	requireResource(ctx, logg, "browse service", err)
	accountSvc, err := service.NewAccountService(users, cfg.Password.BcryptCost)
	requireResource(ctx, logg, "account service", err)

	e := router.New(router.Deps{
		Config:   cfg,
		Log:      logg,
		Redis:    rdb,
		Metrics:  metrics.NewHTTPMetrics(reg),
		Gatherer: reg,
		DB:       db,
		Handlers: router.Handlers{
			Auth:    handler.NewAuthHandler(authSvc),
			Admin:   handler.NewAdminHandler(adminSvc),
			Owner:   handler.NewOwnerHandler(ownerSvc),
			User:    handler.NewUserHandler(browseSvc),
			Account: handler.NewAccountHandler(accountSvc),
		},
	})

	addr := ":" + cfg.App.Port
	srvCtx := logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "addr": addr})
	go func() {
		logg.Info(srvCtx, "starting api server")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(srvCtx, "api server stopped unexpectedly", err)
			stop()
		}
	}()

	<-ctx.Done()
	logg.Info(srvCtx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logg.Error(srvCtx, "graceful shutdown failed", err)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "resource not working: "+resource, err)
	os.Exit(1)
}
