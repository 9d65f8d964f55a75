package notification

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedPreferences is a read-through redis cache in front of a
// PreferenceStore. Writes go to the store and evict the cached sets.
type CachedPreferences struct {
	next   PreferenceStore
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewCachedPreferences(next PreferenceStore, redisClient *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedPreferences {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedPreferences{next: next, redis: redisClient, ttl: ttl, logger: logger}
}

func preferenceKey(setting string, userID, contextID int64) string {
	return fmt.Sprintf("notif:prefs:%s:%d:%d", setting, userID, contextID)
}

func (c *CachedPreferences) BlockedInApp(ctx context.Context, userID, contextID int64) (TypeSet, error) {
	return c.load(ctx, SettingBlocked, userID, contextID, c.next.BlockedInApp)
}

func (c *CachedPreferences) BlockedEmail(ctx context.Context, userID, contextID int64) (TypeSet, error) {
	return c.load(ctx, SettingBlockedEmailed, userID, contextID, c.next.BlockedEmail)
}

type blockedLoader func(ctx context.Context, userID, contextID int64) (TypeSet, error)

func (c *CachedPreferences) load(ctx context.Context, setting string, userID, contextID int64, fetch blockedLoader) (TypeSet, error) {
	key := preferenceKey(setting, userID, contextID)

	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var types []Type
		if err := json.Unmarshal(raw, &types); err == nil {
			return NewTypeSet(types...), nil
		}
		c.logger.Warn("discarding malformed cached preferences", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("preference cache read failed", "key", key, "error", err)
	}

	set, err := fetch(ctx, userID, contextID)
	if err != nil {
		return nil, err
	}
	if raw, err := json.Marshal(set.Sorted()); err == nil {
		if err := c.redis.Set(ctx, key, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("preference cache write failed", "key", key, "error", err)
		}
	}
	return set, nil
}

func (c *CachedPreferences) SetBlocked(ctx context.Context, userID, contextID int64, inApp, email []Type) error {
	if err := c.next.SetBlocked(ctx, userID, contextID, inApp, email); err != nil {
		return err
	}
	return c.evict(ctx, userID, contextID, SettingBlocked, SettingBlockedEmailed)
}

func (c *CachedPreferences) BlockEmail(ctx context.Context, userID, contextID int64, t Type) error {
	if err := c.next.BlockEmail(ctx, userID, contextID, t); err != nil {
		return err
	}
	return c.evict(ctx, userID, contextID, SettingBlockedEmailed)
}

func (c *CachedPreferences) evict(ctx context.Context, userID, contextID int64, settings ...string) error {
	keys := make([]string, 0, len(settings))
	for _, s := range settings {
		keys = append(keys, preferenceKey(s, userID, contextID))
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("evict cached preferences for user %d: %w", userID, err)
	}
	return nil
}
