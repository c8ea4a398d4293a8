package main

import (
	"context"

	"github.com/panjf2000/ants/v2"

	"github.com/sangamlabs/match-engine/internal/app"
	"github.com/sangamlabs/match-engine/internal/cache"
	"github.com/sangamlabs/match-engine/internal/config"
	"github.com/sangamlabs/match-engine/internal/db"
	"github.com/sangamlabs/match-engine/internal/event"
	"github.com/sangamlabs/match-engine/internal/logger"
	"github.com/sangamlabs/match-engine/internal/server"
	"github.com/sangamlabs/match-engine/internal/service/match"
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

	// Shared worker pool for event emission and batch fan-out
	pool, err := ants.NewPool(cfg.Async.PoolSize)
	if err != nil {
		log.Error("failed to init worker pool", "err", err)
		return
	}
	defer pool.Release()

	appCtx := app.New(database, redisCache, log, pool, cfg)

	sink := event.NewSink(cfg, log)
	defer sink.Close()

	// in development every new match logs a bootstrap line instead of
	// calling out to the chat service
	var bootstrapper event.ConversationBootstrapper = event.NoopBootstrapper{}
	if cfg.App.ENV == "development" {
		bootstrapper = event.LoggingBootstrapper{Logger: log}
	}

	registrars := []server.Registrar{
		match.NewRegistrar(appCtx, sink, bootstrapper),
	}

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	addr := cfg.HTTP.Host + ":" + cfg.HTTP.Port
	log.Info("starting HTTP server", "addr", addr)

	if err := server.StartHTTPServer(cfg, log, registrars...); err != nil {
		log.Error("failed to start HTTP server", "err", err)
	}
}
