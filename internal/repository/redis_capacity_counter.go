package repository

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
	pkgredis "github.com/prohmpiriya/tourism-booking/pkg/redis"
	"github.com/redis/go-redis/v9"
)

//go:embed scripts/reserve_capacity.lua
var reserveCapacitySource string

//go:embed scripts/release_capacity.lua
var releaseCapacitySource string

var (
	reserveCapacityScript = pkgredis.Script{Name: "reserve_capacity", Source: reserveCapacitySource}
	releaseCapacityScript = pkgredis.Script{Name: "release_capacity", Source: releaseCapacitySource}
)

// released holds stay around long enough to answer repeated releases
const releasedHoldTTL = 7 * 24 * time.Hour

// RedisCapacityCounter implements CapacityCounter with Lua scripts so that the
// check and the decrement run as one atomic step per resource
type RedisCapacityCounter struct {
	client *pkgredis.Client
}

// NewRedisCapacityCounter creates a new RedisCapacityCounter
func NewRedisCapacityCounter(client *pkgredis.Client) *RedisCapacityCounter {
	return &RedisCapacityCounter{client: client}
}

// LoadScripts loads the capacity scripts into Redis
func (c *RedisCapacityCounter) LoadScripts(ctx context.Context) error {
	return c.client.LoadScripts(ctx, reserveCapacityScript, releaseCapacityScript)
}

func availableKey(resourceID string) string {
	return fmt.Sprintf("capacity:available:%s", resourceID)
}

func holdKey(bookingID string) string {
	return fmt.Sprintf("capacity:hold:%s", bookingID)
}

// Reserve atomically decrements availability and records the hold
func (c *RedisCapacityCounter) Reserve(ctx context.Context, bookingID, resourceID string, qty int) (int64, error) {
	keys := []string{availableKey(resourceID), holdKey(bookingID)}
	result := c.client.Run(ctx, reserveCapacityScript, keys, qty, resourceID)
	if result.Err() != nil {
		return 0, fmt.Errorf("failed to execute reserve_capacity script: %w", result.Err())
	}

	values, err := result.Slice()
	if err != nil {
		return 0, fmt.Errorf("failed to parse script result: %w", err)
	}
	if len(values) < 2 {
		return 0, fmt.Errorf("unexpected script result length: %d", len(values))
	}

	if ok, _ := toInt64(values[0]); ok == 1 {
		remaining, _ := toInt64(values[1])
		return remaining, nil
	}

	code, _ := values[1].(string)
	var available int64
	if len(values) > 2 {
		available, _ = toInt64(values[2])
	}
	switch code {
	case "NOT_INITIALIZED":
		return 0, ErrCapacityNotInitialized
	case "HOLD_EXISTS":
		return available, ErrHoldExists
	case "INVALID_QUANTITY":
		return available, domain.ErrInvalidQuantity
	case "INSUFFICIENT_CAPACITY":
		return available, domain.ErrCapacityExceeded
	}
	return available, fmt.Errorf("reserve_capacity returned %q", code)
}

// Release returns the hold of bookingID. The hold hash is read first so the
// script only touches keys it declares.
func (c *RedisCapacityCounter) Release(ctx context.Context, bookingID string) (bool, error) {
	hk := holdKey(bookingID)
	resourceID, err := c.client.Client().HGet(ctx, hk, "resource_id").Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get hold: %w", err)
	}

	keys := []string{hk, availableKey(resourceID)}
	result := c.client.Run(ctx, releaseCapacityScript, keys, int64(releasedHoldTTL.Seconds()))
	if result.Err() != nil {
		return false, fmt.Errorf("failed to execute release_capacity script: %w", result.Err())
	}

	values, err := result.Slice()
	if err != nil {
		return false, fmt.Errorf("failed to parse script result: %w", err)
	}
	if len(values) < 2 {
		return false, fmt.Errorf("unexpected script result length: %d", len(values))
	}
	ok, _ := toInt64(values[0])
	return ok == 1, nil
}

// Available gets the current remaining capacity of a resource
func (c *RedisCapacityCounter) Available(ctx context.Context, resourceID string) (int64, error) {
	result, err := c.client.Client().Get(ctx, availableKey(resourceID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrCapacityNotInitialized
		}
		return 0, fmt.Errorf("failed to get capacity: %w", err)
	}

	available, err := strconv.ParseInt(result, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse capacity: %w", err)
	}
	return available, nil
}

// SetCapacity sets the remaining capacity of a resource
func (c *RedisCapacityCounter) SetCapacity(ctx context.Context, resourceID string, available int64) error {
	if err := c.client.Client().Set(ctx, availableKey(resourceID), available, 0).Err(); err != nil {
		return fmt.Errorf("failed to set capacity: %w", err)
	}
	return nil
}

// InitCapacity sets the remaining capacity only if the key does not exist yet
func (c *RedisCapacityCounter) InitCapacity(ctx context.Context, resourceID string, available int64) (bool, error) {
	ok, err := c.client.Client().SetNX(ctx, availableKey(resourceID), available, 0).Result()
	if err != nil {
		return false, fmt.Errorf("failed to init capacity: %w", err)
	}
	return ok, nil
}

func toInt64(v interface{}) (int64, bool) {
	switch val := v.(type) {
	case int64:
		return val, true
	case int:
		return int64(val), true
	case string:
		i, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, false
		}
		return i, true
	default:
		return 0, false
	}
}

var _ CapacityCounter = (*RedisCapacityCounter)(nil)
