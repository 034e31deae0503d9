package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cruxline/crux-engine/internal/config"
)

// UnreadTTL bounds how long a cached unread aggregate may serve before a
// recompute refreshes it.
const UnreadTTL = time.Hour

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

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	return c.Client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) (string, error) {
	return c.Client.Get(ctx, key).Result()
}

func (c *RedisCache) Del(ctx context.Context, keys ...string) error {
	return c.Client.Del(ctx, keys...).Err()
}

// KeyForChatsUnread is the per-user aggregate over direct and gym threads.
func (c *RedisCache) KeyForChatsUnread(userID uint64) string {
	return fmt.Sprintf("unread:chats:%d", userID)
}

// KeyForCrewUnread is the per-user aggregate over crew threads.
func (c *RedisCache) KeyForCrewUnread(userID uint64) string {
	return fmt.Sprintf("unread:crew:%d", userID)
}

// SetUnreadAggregates stores both aggregate booleans with a fresh TTL.
func (c *RedisCache) SetUnreadAggregates(ctx context.Context, userID uint64, chats, crew bool) error {
	pipe := c.Client.Pipeline()
	pipe.Set(ctx, c.KeyForChatsUnread(userID), boolVal(chats), UnreadTTL)
	pipe.Set(ctx, c.KeyForCrewUnread(userID), boolVal(crew), UnreadTTL)
	_, err := pipe.Exec(ctx)
	return err
}

// GetUnreadAggregates reads both aggregates. ok is false on any cache miss,
// in which case the caller falls back to a full recompute.
func (c *RedisCache) GetUnreadAggregates(ctx context.Context, userID uint64) (chats, crew, ok bool, err error) {
	vals, err := c.Client.MGet(ctx, c.KeyForChatsUnread(userID), c.KeyForCrewUnread(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, false, false, nil
		}
		return false, false, false, err
	}
	if len(vals) != 2 || vals[0] == nil || vals[1] == nil {
		return false, false, false, nil
	}

	chats = vals[0] == "1"
	crew = vals[1] == "1"

	// refresh TTL since this user is active
	pipe := c.Client.Pipeline()
	pipe.Expire(ctx, c.KeyForChatsUnread(userID), UnreadTTL)
	pipe.Expire(ctx, c.KeyForCrewUnread(userID), UnreadTTL)
	_, _ = pipe.Exec(ctx)

	return chats, crew, true, nil
}

// InvalidateUnread drops a user's cached aggregates, forcing the next
// read through the recompute path.
func (c *RedisCache) InvalidateUnread(ctx context.Context, userID uint64) error {
	return c.Del(ctx, c.KeyForChatsUnread(userID), c.KeyForCrewUnread(userID))
}

func boolVal(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
