package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/sangamlabs/match-engine/internal/config"
)

type RedisCache struct {
	Client *redis.Client
}

// NewRedisCache initializes Redis client from config.
// Only Addr is mandatory, Password/DB are optional.
func NewRedisCache(cfg *config.Config) *RedisCache {
	opts := &redis.Options{
		Addr: cfg.Redis.Addr,
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	if cfg.Redis.DB != 0 {
		opts.DB = cfg.Redis.DB
	}
	return &RedisCache{Client: redis.NewClient(opts)}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.Client.Ping(ctx).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Del(ctx context.Context, key string) error {
	return c.Client.Del(ctx, key).Err()
}

// KeyForQuota builds the daily quota counter key. Keying on the date makes
// the midnight reset implicit; no cleanup job is needed beyond the TTL.
func (c *RedisCache) KeyForQuota(userID uint64, action, date string) string {
	return fmt.Sprintf("quota:%s:%d:%s", action, userID, date)
}

// consumeScript atomically checks a counter against its limit and increments
// only when budget remains. Doing both in one script is what guarantees no
// overshoot under concurrent consumers.
//
// KEYS[1]: counter key
// ARGV[1]: limit
// ARGV[2]: TTL seconds, set only when the key is first created
// Returns: remaining budget after consumption, or -1 when exhausted.
var consumeScript = redis.NewScript(`
local limit = tonumber(ARGV[1])
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= limit then
	return -1
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
	redis.call('EXPIRE', KEYS[1], tonumber(ARGV[2]))
end
return limit - current
`)

// refundScript decrements a counter without letting it go negative.
//
// KEYS[1]: counter key
// Returns: the counter value after the refund.
var refundScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current <= 0 then
	return 0
end
return redis.call('DECR', KEYS[1])
`)

// ConsumeBudget runs the check-and-increment script.
// remaining == -1 means the budget was already exhausted.
func (c *RedisCache) ConsumeBudget(ctx context.Context, key string, limit int, ttl time.Duration) (int64, error) {
	return consumeScript.Run(ctx, c.Client, []string{key}, limit, int(ttl.Seconds())).Int64()
}

// RefundBudget returns one unit of budget, flooring at zero.
func (c *RedisCache) RefundBudget(ctx context.Context, key string) error {
	return refundScript.Run(ctx, c.Client, []string{key}).Err()
}

// GetCounter reads a quota counter; a missing key reads as zero.
func (c *RedisCache) GetCounter(ctx context.Context, key string) (int64, error) {
	n, err := c.Client.Get(ctx, key).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return n, err
}
