// Command batch precomputes today's daily batch for every active user.
// Meant to run from cron shortly after the engine's day boundary; users it
// misses fall back to on-demand generation.
package main

import (
	"context"
	"os"

	"github.com/panjf2000/ants/v2"

	"github.com/sangamlabs/match-engine/internal/app"
	"github.com/sangamlabs/match-engine/internal/config"
	"github.com/sangamlabs/match-engine/internal/db"
	"github.com/sangamlabs/match-engine/internal/engine/batch"
	"github.com/sangamlabs/match-engine/internal/engine/rank"
	"github.com/sangamlabs/match-engine/internal/logger"
)

func main() {
	cfg := config.New()

	logger.InitFromConfig(cfg)
	log := logger.L()

	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		os.Exit(1)
	}

	pool, err := ants.NewPool(cfg.Async.PoolSize)
	if err != nil {
		log.Error("failed to init worker pool", "err", err)
		os.Exit(1)
	}
	defer pool.Release()

	appCtx := app.New(database, nil, log, pool, cfg)
	gen := batch.NewGenerator(appCtx, rank.NewRanker(cfg.Engine, nil))

	processed, failed, err := gen.GenerateAll(context.Background())
	if err != nil {
		log.Error("batch sweep failed", "err", err)
		os.Exit(1)
	}
	log.Info("batch sweep done", "processed", processed, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}
