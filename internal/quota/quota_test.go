package quota_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sangamlabs/match-engine/internal/cache"
	"github.com/sangamlabs/match-engine/internal/config"
	"github.com/sangamlabs/match-engine/internal/db"
	apperrors "github.com/sangamlabs/match-engine/internal/errors"
	"github.com/sangamlabs/match-engine/internal/quota"
)

func setupEnforcer(t *testing.T) (*quota.Enforcer, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()
	cfg.Engine.DailyLikeLimit = map[string]int{config.TierFree: 3, config.TierPremium: 10}
	cfg.Engine.DailySuperLikeLimit = map[string]int{config.TierFree: 1, config.TierPremium: 5}

	return quota.NewEnforcer(cache.NewRedisCache(cfg), cfg.Engine), mr
}

func TestTryConsumeCountsDown(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEnforcer(t)

	for want := 2; want >= 0; want-- {
		res, err := e.TryConsume(ctx, 1, config.TierFree, db.ActionLiked)
		require.NoError(t, err)
		assert.Equal(t, want, res.Remaining)
	}

	// fourth like of the day is rejected with the reset instant attached
	_, err := e.TryConsume(ctx, 1, config.TierFree, db.ActionLiked)
	require.ErrorIs(t, err, apperrors.QuotaExceeded("", time.Time{}))
	var qErr *apperrors.Error
	require.ErrorAs(t, err, &qErr)
	assert.True(t, qErr.ResetAt.After(time.Now()))
}

func TestBudgetsAreIndependent(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEnforcer(t)

	// exhausting super likes leaves plain likes untouched
	_, err := e.TryConsume(ctx, 1, config.TierFree, db.ActionSuperLiked)
	require.NoError(t, err)
	_, err = e.TryConsume(ctx, 1, config.TierFree, db.ActionSuperLiked)
	assert.ErrorIs(t, err, apperrors.QuotaExceeded("", time.Time{}))

	res, err := e.TryConsume(ctx, 1, config.TierFree, db.ActionLiked)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)

	// another user's budget is separate
	res, err = e.TryConsume(ctx, 2, config.TierFree, db.ActionSuperLiked)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Remaining)
}

func TestPremiumTierLimit(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEnforcer(t)

	res, err := e.TryConsume(ctx, 1, config.TierPremium, db.ActionLiked)
	require.NoError(t, err)
	assert.Equal(t, 9, res.Remaining)

	// unknown tier falls back to the free limit
	res, err = e.TryConsume(ctx, 2, "trial", db.ActionLiked)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)
}

func TestUnlimitedActions(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEnforcer(t)

	assert.False(t, e.Limited(db.ActionDisliked))
	assert.False(t, e.Limited(db.ActionBlocked))

	for i := 0; i < 50; i++ {
		res, err := e.TryConsume(ctx, 1, config.TierFree, db.ActionDisliked)
		require.NoError(t, err)
		assert.Equal(t, -1, res.Remaining)
	}
}

func TestRefundFloorsAtZero(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEnforcer(t)

	// refund without any consumption stays at zero
	require.NoError(t, e.Refund(ctx, 1, db.ActionLiked))
	got, err := e.Remaining(ctx, 1, config.TierFree, db.ActionLiked)
	require.NoError(t, err)
	assert.Equal(t, 3, got)

	// consume, refund, consume again: the refund restored one unit
	_, err = e.TryConsume(ctx, 1, config.TierFree, db.ActionLiked)
	require.NoError(t, err)
	require.NoError(t, e.Refund(ctx, 1, db.ActionLiked))
	res, err := e.TryConsume(ctx, 1, config.TierFree, db.ActionLiked)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)
}

func TestDayBoundaryResetsBudget(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEnforcer(t)

	day1 := time.Date(2026, 3, 15, 23, 50, 0, 0, time.UTC)
	day2 := time.Date(2026, 3, 16, 0, 5, 0, 0, time.UTC)

	before := e.WithClock(func() time.Time { return day1 })
	for i := 0; i < 3; i++ {
		_, err := before.TryConsume(ctx, 1, config.TierFree, db.ActionLiked)
		require.NoError(t, err)
	}
	_, err := before.TryConsume(ctx, 1, config.TierFree, db.ActionLiked)
	require.ErrorIs(t, err, apperrors.QuotaExceeded("", time.Time{}))

	// different key after midnight → full budget again
	after := e.WithClock(func() time.Time { return day2 })
	res, err := after.TryConsume(ctx, 1, config.TierFree, db.ActionLiked)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Remaining)
}

// TestConcurrentConsumeNeverOvershoots hammers one budget from many
// goroutines; exactly limit consumptions may succeed.
func TestConcurrentConsumeNeverOvershoots(t *testing.T) {
	ctx := context.Background()
	e, _ := setupEnforcer(t)

	const workers = 32
	var granted atomic.Int64
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			if _, err := e.TryConsume(ctx, 7, config.TierFree, db.ActionLiked); err == nil {
				granted.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(3), granted.Load())
}
