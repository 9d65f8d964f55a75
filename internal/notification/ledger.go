package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// MailLedger records which notifications have been mailed so a replayed
// creation never sends the same email twice.
type MailLedger interface {
	// Claim reports false when the notification was already claimed.
	Claim(ctx context.Context, notificationID string) (bool, error)
	// Release drops a claim after a failed send.
	Release(ctx context.Context, notificationID string) error
}

// RedisMailLedger keeps claims as expiring redis keys.
type RedisMailLedger struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewRedisMailLedger(redisClient *redis.Client, ttl time.Duration) *RedisMailLedger {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisMailLedger{redis: redisClient, ttl: ttl}
}

func mailLedgerKey(notificationID string) string {
	return fmt.Sprintf("notif:sent:%s", notificationID)
}

func (l *RedisMailLedger) Claim(ctx context.Context, notificationID string) (bool, error) {
	ok, err := l.redis.SetNX(ctx, mailLedgerKey(notificationID), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim mail for %s: %w", notificationID, err)
	}
	return ok, nil
}

func (l *RedisMailLedger) Release(ctx context.Context, notificationID string) error {
	if err := l.redis.Del(ctx, mailLedgerKey(notificationID)).Err(); err != nil {
		return fmt.Errorf("release mail claim for %s: %w", notificationID, err)
	}
	return nil
}
