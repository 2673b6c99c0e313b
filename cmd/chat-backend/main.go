package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-redis/redis/v8"

	"github.com/ideateGudy/chat-backend/internal/gateway"
	"github.com/ideateGudy/chat-backend/internal/rest"
	"github.com/ideateGudy/chat-backend/internal/server"
	"github.com/ideateGudy/chat-backend/internal/store"
	"github.com/ideateGudy/chat-backend/pkg/config"
	"github.com/ideateGudy/chat-backend/pkg/logging"
	"github.com/ideateGudy/chat-backend/pkg/state/statemanager"
)

func main() {
	logger := logging.New(logging.LevelInfo)
	slog.SetDefault(logger)

	cfg, err := config.Load(logger, "config")
	if err != nil {
		logger.Error("Failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}
	logger = logging.New(logging.ParseLevel(cfg.Log.Level))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	db, err := store.Open(cfg.Database.DSN)
	if err != nil {
		logger.Error("Failed to open database", slog.Any("error", err))
		os.Exit(1)
	}

	cache := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := cache.Ping(ctx).Err(); err != nil {
		// Presence falls back to the database alone.
		logger.Warn("Redis unreachable, presence cache disabled", slog.Any("error", err))
		cache = nil
	}

	messages := store.NewMessageStore(db)
	groups := store.NewGroupStore(db)
	presence := store.NewPresenceStore(db, cache, cfg.Redis.PresenceTTL)

	stateManager := statemanager.NewInMemoryManager(logger)
	gw := gateway.New(logger, stateManager, messages, groups, presence)
	api := rest.NewHandler(logger, messages, groups, presence).Router(cfg)

	app := server.NewApp(ctx, logger, cfg, stateManager, gw, api)
	if err := app.Run(); err != nil {
		logger.Error("Application run failed", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("Application shut down successfully.")
}
