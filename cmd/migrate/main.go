package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/iliyamo/store-rating/internal/config"
	"github.com/iliyamo/store-rating/internal/database"
	"github.com/iliyamo/store-rating/internal/logger"
)

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{Service: "migrate"})

	cmd := flag.String("cmd", "up", "migration command: up|down|status|version|reset|redo|seed")
	adminPass := flag.String("admin-password", os.Getenv("SEED_ADMIN_PASSWORD"), "seed: admin password")
	ownerPass := flag.String("owner-password", os.Getenv("SEED_OWNER_PASSWORD"), "seed: owner password")
	userPass := flag.String("user-password", os.Getenv("SEED_USER_PASSWORD"), "seed: user password")
	flag.Parse()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)

	logg = logger.New(logger.Options{
		Service: "migrate",
		Level:   logger.ParseLevel(cfg.App.LogLevel),
		Format:  cfg.App.LogFormat,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": *cmd})

	db, err := database.Open(ctx, cfg.DB)
	requireResource(ctx, logg, "database", err)
	defer db.Close()

	logg.Info(ctx, "migrate ready")

	switch *cmd {
	case "up", "down", "status", "version", "reset", "redo":
		if err := database.RunMigrations(ctx, db, *cmd); err != nil {
			fmt.Fprintf(os.Stderr, "goose %s failed: %v\n", *cmd, err)
			os.Exit(1)
		}

	case "seed":
		if *adminPass == "" || *ownerPass == "" || *userPass == "" {
			fmt.Fprintln(os.Stderr, "seed needs -admin-password, -owner-password and -user-password (or SEED_*_PASSWORD)")
			os.Exit(1)
		}
		data := database.DefaultSeed(*adminPass, *ownerPass, *userPass, cfg.Password.BcryptCost)
		if err := database.Seed(ctx, db, data); err != nil {
			fmt.Fprintf(os.Stderr, "seed failed: %v\n", err)
			os.Exit(1)
		}
		logg.Info(ctx, "seed data inserted")

	default:
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmd)
		os.Exit(1)
	}
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
