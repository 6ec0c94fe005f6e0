package repository

import (
	"context"
	"fmt"
	"time"

	pkgredis "github.com/prohmpiriya/tourism-booking/pkg/redis"
)

const dedupKeyPrefix = "event:handled:"

// RedisEventDedupRepository implements EventDedupRepository with SET NX
type RedisEventDedupRepository struct {
	client *pkgredis.Client
}

// NewRedisEventDedupRepository creates a new RedisEventDedupRepository
func NewRedisEventDedupRepository(client *pkgredis.Client) *RedisEventDedupRepository {
	return &RedisEventDedupRepository{client: client}
}

// Claim records key for ttl and reports whether this call was first
func (r *RedisEventDedupRepository) Claim(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	ok, err := r.client.Client().SetNX(ctx, dedupKeyPrefix+key, time.Now().Unix(), ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to claim event %s: %w", key, err)
	}
	return ok, nil
}

// Forget drops a claim
func (r *RedisEventDedupRepository) Forget(ctx context.Context, key string) error {
	if err := r.client.Client().Del(ctx, dedupKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to forget event %s: %w", key, err)
	}
	return nil
}

var _ EventDedupRepository = (*RedisEventDedupRepository)(nil)
