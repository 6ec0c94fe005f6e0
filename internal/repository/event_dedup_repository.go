package repository

import (
	"context"
	"time"
)

// EventDedupRepository remembers which event deliveries were already handled
type EventDedupRepository interface {
	// Claim records key and reports true only for the first caller within ttl
	Claim(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Forget drops a claim so a failed delivery can be handled again
	Forget(ctx context.Context, key string) error
}
