package main

import (
	"context"

	"github.com/cruxline/crux-engine/internal/app"
	"github.com/cruxline/crux-engine/internal/cache"
	"github.com/cruxline/crux-engine/internal/config"
	"github.com/cruxline/crux-engine/internal/db"
	"github.com/cruxline/crux-engine/internal/logger"
	"github.com/cruxline/crux-engine/internal/profile"
	"github.com/cruxline/crux-engine/internal/push"
	"github.com/cruxline/crux-engine/internal/realtime"
	"github.com/cruxline/crux-engine/internal/server"
	"github.com/cruxline/crux-engine/internal/service/chat"
	"github.com/cruxline/crux-engine/internal/service/stream"
	"github.com/cruxline/crux-engine/internal/service/swipe"
)

func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	notifier := realtime.NewNotifier(redisCache.Client, log)
	profiles := profile.NewDBLookup(database)
	gateway := push.NewLogGateway(log)

	appCtx := app.New(cfg, database, redisCache, notifier, profiles, gateway, log)

	registrars := []server.Registrar{
		swipe.NewRegistrar(appCtx),
		chat.NewRegistrar(appCtx),
		stream.NewRegistrar(appCtx),
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", "addr", addr)

	if err := server.StartHTTPServer(cfg, registrars...); err != nil {
		log.Error("failed to start HTTP server", "err", err)
	}
}
