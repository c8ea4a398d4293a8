// Package batch computes the once-per-day curated candidate list.
//
// A batch is frozen at first generation: everyone asking again the same day
// gets the identical snapshot, even if profiles or pair states changed in
// between. The (user_id, batch_date) unique index is the arbiter when two
// generators race.
package batch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/sangamlabs/match-engine/internal/app"
	"github.com/sangamlabs/match-engine/internal/db"
	"github.com/sangamlabs/match-engine/internal/engine/rank"
	apperrors "github.com/sangamlabs/match-engine/internal/errors"
	"github.com/sangamlabs/match-engine/internal/metrics"
	"github.com/sangamlabs/match-engine/internal/repository"
)

type Generator struct {
	appCtx   *app.AppContext
	profiles *repository.ProfileRepository
	matches  *repository.MatchRepository
	batches  *repository.BatchRepository
	ranker   *rank.Ranker
	size     int
	loc      *time.Location
	now      func() time.Time
}

func NewGenerator(appCtx *app.AppContext, ranker *rank.Ranker) *Generator {
	loc, err := time.LoadLocation(appCtx.Cfg.Engine.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Generator{
		appCtx:   appCtx,
		profiles: repository.NewProfileRepository(appCtx.DB),
		matches:  repository.NewMatchRepository(appCtx.DB),
		batches:  repository.NewBatchRepository(appCtx.DB),
		ranker:   ranker,
		size:     appCtx.Cfg.Engine.DefaultBatchSize,
		loc:      loc,
		now:      time.Now,
	}
}

// WithClock fixes the generator's clock for day-boundary tests.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	clone := *g
	clone.now = now
	clone.ranker = g.ranker.WithClock(now)
	return &clone
}

// Date returns today's batch date string in the engine's zone.
func (g *Generator) Date() string {
	return g.now().In(g.loc).Format(time.DateOnly)
}

// GenerateFor returns the user's batch for today, computing and freezing it
// on first call. An empty candidate pool still freezes an empty batch, so
// the day's answer stays stable.
func (g *Generator) GenerateFor(ctx context.Context, userID uint64) (*db.DailyBatch, []db.BatchEntry, error) {
	date := g.Date()

	existing, err := g.batches.GetBatch(ctx, userID, date)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil {
		return decode(existing)
	}

	started := time.Now()

	viewer, err := g.profiles.GetProfile(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if !viewer.Active || !viewer.Approved {
		return nil, nil, apperrors.InvalidInput("user %d is not eligible for matching", userID)
	}
	prefs, err := g.profiles.GetPreferences(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	pool, err := g.profiles.EligiblePool(ctx, viewer)
	if err != nil {
		return nil, nil, err
	}
	acted, blocked, err := g.matches.PairStates(ctx, userID)
	if err != nil {
		return nil, nil, err
	}

	ranked, _ := g.ranker.Rank(*viewer, pool, prefs, rank.Exclusions{Acted: acted, Blocked: blocked}, false, 1, g.size)
	entries := make([]db.BatchEntry, len(ranked))
	for i, c := range ranked {
		entries[i] = db.BatchEntry{CandidateID: c.Profile.ID, Score: c.Score.Overall}
	}

	raw, err := json.Marshal(entries)
	if err != nil {
		return nil, nil, err
	}
	fresh := &db.DailyBatch{
		UserID:      userID,
		BatchDate:   date,
		Entries:     raw,
		GeneratedAt: g.now().UTC(),
	}

	inserted, err := g.batches.InsertBatch(ctx, fresh)
	if err != nil {
		return nil, nil, err
	}
	if !inserted {
		// lost the race: serve the winner's snapshot
		winner, err := g.batches.GetBatch(ctx, userID, date)
		if err != nil {
			return nil, nil, err
		}
		if winner == nil {
			return nil, nil, apperrors.ConcurrentConflict("daily batch vanished during generation")
		}
		return decode(winner)
	}

	metrics.BatchesGenerated.Inc()
	metrics.BatchDuration.Observe(time.Since(started).Seconds())
	return fresh, entries, nil
}

// GenerateAll precomputes today's batch for every active user, fanning out
// over the shared worker pool. Returns how many users were processed
// without error. Individual failures are logged and counted, not fatal:
// a missed user falls back to on-demand generation.
func (g *Generator) GenerateAll(ctx context.Context) (processed int, failed int, err error) {
	ids, err := g.profiles.ActiveUserIDs(ctx)
	if err != nil {
		return 0, 0, err
	}

	var (
		mu sync.Mutex
		wg sync.WaitGroup
	)
	for _, id := range ids {
		userID := id
		wg.Add(1)
		g.appCtx.Submit(func() {
			defer wg.Done()
			if _, _, genErr := g.GenerateFor(ctx, userID); genErr != nil {
				g.appCtx.Logger.Error("daily batch generation failed", "user_id", userID, "error", genErr)
				mu.Lock()
				failed++
				mu.Unlock()
				return
			}
			mu.Lock()
			processed++
			mu.Unlock()
		})
	}
	wg.Wait()

	g.appCtx.Logger.Info("daily batch sweep finished",
		"date", g.Date(), "processed", processed, "failed", failed)
	return processed, failed, nil
}

func decode(batch *db.DailyBatch) (*db.DailyBatch, []db.BatchEntry, error) {
	var entries []db.BatchEntry
	if err := json.Unmarshal(batch.Entries, &entries); err != nil {
		return nil, nil, err
	}
	return batch, entries, nil
}
