package app

import (
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"gorm.io/gorm"

	"github.com/sangamlabs/match-engine/internal/cache"
	"github.com/sangamlabs/match-engine/internal/config"
)

// AppContext holds shared dependencies (DB, Redis, Logger, worker pool, config).
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Logger     *slog.Logger
	Pool       *ants.Pool
	Cfg        *config.Config
}

// New creates a new AppContext.
func New(db *gorm.DB, rdb *cache.RedisCache, logger *slog.Logger, pool *ants.Pool, cfg *config.Config) *AppContext {
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Logger:     logger,
		Pool:       pool,
		Cfg:        cfg,
	}
}

// Submit schedules fn on the shared pool, falling back to a plain goroutine
// when no pool is configured (tests, seed tooling).
func (a *AppContext) Submit(fn func()) {
	if a.Pool != nil {
		if err := a.Pool.Submit(fn); err == nil {
			return
		}
	}
	go fn()
}
