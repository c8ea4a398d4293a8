// Package quota enforces the per-tier daily action budgets.
//
// Counters live in Redis, keyed by action, user and calendar date in the
// engine's configured time zone. Consumption is a single Lua script, so the
// check and the increment cannot interleave across concurrent requests and
// the budget can never overshoot.
package quota

import (
	"context"
	"time"

	"github.com/sangamlabs/match-engine/internal/cache"
	"github.com/sangamlabs/match-engine/internal/config"
	"github.com/sangamlabs/match-engine/internal/db"
	apperrors "github.com/sangamlabs/match-engine/internal/errors"
)

// counters outlive their day by a safety margin before Redis reaps them.
const counterTTL = 48 * time.Hour

// Result reports a successful consumption.
type Result struct {
	Remaining int
	ResetAt   time.Time
}

type Enforcer struct {
	cache  *cache.RedisCache
	limits map[string]map[string]int // action -> tier -> daily limit
	loc    *time.Location
	now    func() time.Time
}

// NewEnforcer builds an enforcer from the engine policy. An unknown
// timezone falls back to UTC rather than failing startup.
func NewEnforcer(rdb *cache.RedisCache, eng config.Engine) *Enforcer {
	loc, err := time.LoadLocation(eng.Timezone)
	if err != nil {
		loc = time.UTC
	}
	return &Enforcer{
		cache: rdb,
		limits: map[string]map[string]int{
			db.ActionLiked:      eng.DailyLikeLimit,
			db.ActionSuperLiked: eng.DailySuperLikeLimit,
		},
		loc: loc,
		now: time.Now,
	}
}

// WithClock fixes the enforcer's clock for day-boundary tests.
func (e *Enforcer) WithClock(now func() time.Time) *Enforcer {
	clone := *e
	clone.now = now
	return &clone
}

// Limited reports whether the action draws from a daily budget at all.
// Dislikes and blocks are free.
func (e *Enforcer) Limited(action string) bool {
	_, ok := e.limits[action]
	return ok
}

// resetAt is the next midnight in the engine's zone.
func (e *Enforcer) resetAt(now time.Time) time.Time {
	y, m, d := now.In(e.loc).Date()
	return time.Date(y, m, d+1, 0, 0, 0, 0, e.loc)
}

func (e *Enforcer) limitFor(action, tier string) int {
	byTier, ok := e.limits[action]
	if !ok {
		return 0
	}
	if limit, ok := byTier[tier]; ok {
		return limit
	}
	return byTier[config.TierFree]
}

// TryConsume spends one unit of the user's daily budget for the action.
// Unlimited actions succeed without touching Redis. Exhausted budgets
// return a QuotaExceeded error carrying the next reset instant.
func (e *Enforcer) TryConsume(ctx context.Context, userID uint64, tier, action string) (Result, error) {
	if !e.Limited(action) {
		return Result{Remaining: -1, ResetAt: e.resetAt(e.now())}, nil
	}

	now := e.now()
	reset := e.resetAt(now)
	limit := e.limitFor(action, tier)
	if limit <= 0 {
		return Result{}, apperrors.QuotaExceeded(action, reset)
	}

	key := e.cache.KeyForQuota(userID, action, now.In(e.loc).Format(time.DateOnly))
	remaining, err := e.cache.ConsumeBudget(ctx, key, limit, counterTTL)
	if err != nil {
		return Result{}, err
	}
	if remaining < 0 {
		return Result{}, apperrors.QuotaExceeded(action, reset)
	}
	return Result{Remaining: int(remaining), ResetAt: reset}, nil
}

// Refund returns one unit of budget for the action, flooring at zero. Used
// when a spent like is overwritten by a block, and when an action fails
// after its quota was consumed.
func (e *Enforcer) Refund(ctx context.Context, userID uint64, action string) error {
	if !e.Limited(action) {
		return nil
	}
	key := e.cache.KeyForQuota(userID, action, e.now().In(e.loc).Format(time.DateOnly))
	return e.cache.RefundBudget(ctx, key)
}

// Remaining reads the user's leftover budget for the action without
// consuming. Unlimited actions report -1.
func (e *Enforcer) Remaining(ctx context.Context, userID uint64, tier, action string) (int, error) {
	if !e.Limited(action) {
		return -1, nil
	}
	key := e.cache.KeyForQuota(userID, action, e.now().In(e.loc).Format(time.DateOnly))
	used, err := e.cache.GetCounter(ctx, key)
	if err != nil {
		return 0, err
	}
	remaining := e.limitFor(action, tier) - int(used)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
