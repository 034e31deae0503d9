package app

import (
	"log/slog"

	"gorm.io/gorm"

	"github.com/cruxline/crux-engine/internal/cache"
	"github.com/cruxline/crux-engine/internal/config"
	"github.com/cruxline/crux-engine/internal/profile"
	"github.com/cruxline/crux-engine/internal/push"
	"github.com/cruxline/crux-engine/internal/realtime"
)

// AppContext holds shared dependencies (DB, Redis, Notifier, collaborators, Logger)
type AppContext struct {
	Config     *config.Config
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Notifier   *realtime.Notifier
	Profiles   profile.Lookup
	Push       push.Gateway
	Logger     *slog.Logger
}

// New creates a new AppContext
func New(cfg *config.Config, db *gorm.DB, rdb *cache.RedisCache, notifier *realtime.Notifier, profiles profile.Lookup, gateway push.Gateway, logger *slog.Logger) *AppContext {
	return &AppContext{
		Config:     cfg,
		DB:         db,
		RedisCache: rdb,
		Notifier:   notifier,
		Profiles:   profiles,
		Push:       gateway,
		Logger:     logger,
	}
}
