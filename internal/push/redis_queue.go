package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"github.com/prohmpiriya/tourism-booking/pkg/retry"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	redisPopTimeout   = 2 * time.Second
	redisPromoteBatch = 100
)

// promoteScript moves due jobs from the delayed set onto the list
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, ARGV[2])
for _, job in ipairs(due) do
	redis.call('ZREM', KEYS[1], job)
	redis.call('LPUSH', KEYS[2], job)
end
return #due
`)

// RedisQueue implements Queue with an LPUSH/BRPOP list. Failed jobs wait out
// their backoff in the "<key>:delayed" sorted set; exhausted jobs are pushed
// to "<key>:dead".
type RedisQueue struct {
	client      redis.UniversalClient
	key         string
	maxAttempts int
	backoff     retry.Policy
	log         *logger.Logger
}

// NewRedisQueue creates a Redis list queue
func NewRedisQueue(client redis.UniversalClient, key string, maxAttempts int) *RedisQueue {
	if key == "" {
		key = "push:jobs"
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxJobAttempts
	}
	return &RedisQueue{
		client:      client,
		key:         key,
		maxAttempts: maxAttempts,
		backoff:     retry.DefaultPolicy(),
		log:         logger.Get().Named("push-queue"),
	}
}

// WithBackoff sets how long a failed job waits before it is handed out again
func (q *RedisQueue) WithBackoff(p retry.Policy) *RedisQueue {
	q.backoff = p
	return q
}

// DeadKey returns the list holding exhausted jobs
func (q *RedisQueue) DeadKey() string {
	return q.key + ":dead"
}

// DelayedKey returns the sorted set of jobs waiting out their backoff,
// scored by the unix millisecond they become due
func (q *RedisQueue) DelayedKey() string {
	return q.key + ":delayed"
}

// Enqueue pushes a job onto the list
func (q *RedisQueue) Enqueue(ctx context.Context, job *domain.PushJob) error {
	return q.push(ctx, q.key, job)
}

func (q *RedisQueue) push(ctx context.Context, key string, job *domain.PushJob) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal push job: %w", err)
	}
	if err := q.client.LPush(ctx, key, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue push job: %w", err)
	}
	return nil
}

// Consume pops jobs with BRPOP until ctx is done
func (q *RedisQueue) Consume(ctx context.Context, handler Handler) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		q.promote(ctx)

		res, err := q.client.BRPop(ctx, redisPopTimeout, q.key).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			q.log.Warn("push queue pop failed", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		// res is [key, value]
		if len(res) != 2 {
			continue
		}

		var job domain.PushJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			q.log.Error("discarding malformed push job", zap.Error(err))
			continue
		}

		if err := handler(ctx, &job); err != nil {
			q.requeue(ctx, &job, err)
		}
	}
}

func (q *RedisQueue) requeue(ctx context.Context, job *domain.PushJob, cause error) {
	ctx = context.WithoutCancel(ctx)
	job.Attempt++
	if job.Attempt >= q.maxAttempts {
		q.log.Error("push job exhausted", zap.String("job_id", job.ID), zap.Int("attempts", job.Attempt), zap.Error(cause))
		if err := q.push(ctx, q.DeadKey(), job); err != nil {
			q.log.Error("failed to dead-letter push job", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}

	if err := q.delay(ctx, job, q.backoff.Backoff(job.Attempt)); err != nil {
		q.log.Error("failed to requeue push job", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	q.log.Debug("push job delayed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(cause))
}

// delay parks job in the delayed set until wait has passed
func (q *RedisQueue) delay(ctx context.Context, job *domain.PushJob, wait time.Duration) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal push job: %w", err)
	}
	due := time.Now().Add(wait).UnixMilli()
	if err := q.client.ZAdd(ctx, q.DelayedKey(), redis.Z{Score: float64(due), Member: data}).Err(); err != nil {
		return fmt.Errorf("failed to delay push job: %w", err)
	}
	return nil
}

// promote moves due jobs back onto the list
func (q *RedisQueue) promote(ctx context.Context) {
	now := strconv.FormatInt(time.Now().UnixMilli(), 10)
	n, err := promoteScript.Run(ctx, q.client, []string{q.DelayedKey(), q.key}, now, redisPromoteBatch).Int()
	if err != nil {
		if ctx.Err() == nil {
			q.log.Warn("failed to promote delayed push jobs", zap.Error(err))
		}
		return
	}
	if n > 0 {
		q.log.Debug("promoted delayed push jobs", zap.Int("jobs", n))
	}
}

// Close is a no-op; the Redis client is owned by the caller
func (q *RedisQueue) Close() error {
	return nil
}

var _ Queue = (*RedisQueue)(nil)
