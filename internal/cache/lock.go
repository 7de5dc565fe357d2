package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// AnalysisLock serializes analysis runs per identity: one in-flight analyze
// at a time, enforced with a redis SETNX lease. The TTL bounds how long a
// crashed run can block its owner.
type AnalysisLock struct {
	client *redis.Client
	ttl    time.Duration
}

func NewAnalysisLock(client *redis.Client, ttl time.Duration) *AnalysisLock {
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	return &AnalysisLock{client: client, ttl: ttl}
}

func (l *AnalysisLock) Acquire(ctx context.Context, ownerID string) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey(ownerID), "1", l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire analysis lock: %w", err)
	}
	return ok, nil
}

func (l *AnalysisLock) Release(ctx context.Context, ownerID string) error {
	if err := l.client.Del(ctx, lockKey(ownerID)).Err(); err != nil {
		return fmt.Errorf("release analysis lock: %w", err)
	}
	return nil
}

func lockKey(ownerID string) string {
	return "scan:inflight:" + ownerID
}
