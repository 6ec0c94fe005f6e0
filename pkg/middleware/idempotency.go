package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prohmpiriya/tourism-booking/pkg/response"
	"github.com/redis/go-redis/v9"
)

const (
	// IdempotencyKeyHeader carries the client-chosen idempotency key
	IdempotencyKeyHeader = "X-Idempotency-Key"
	// ContextKeyIdempotencyKey is where the key is stored on the gin context
	ContextKeyIdempotencyKey = "idempotency_key"
	idempotencyKeyPrefix     = "idempotency:"
)

// IdempotencyStatus is the state of a stored request
type IdempotencyStatus string

const (
	StatusProcessing IdempotencyStatus = "processing"
	StatusCompleted  IdempotencyStatus = "completed"
)

// IdempotencyRecord stores the outcome of a request keyed by its idempotency key
type IdempotencyRecord struct {
	Status       IdempotencyStatus `json:"status"`
	RequestHash  string            `json:"request_hash"`
	ResponseCode int               `json:"response_code"`
	ResponseBody string            `json:"response_body"`
	CreatedAt    time.Time         `json:"created_at"`
}

// RedisClient is the subset of go-redis used by the middleware
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// IdempotencyConfig configures IdempotencyMiddleware
type IdempotencyConfig struct {
	Redis RedisClient
	// TTL of completed records
	TTL time.Duration
	// ProcessingTTL bounds how long an in-flight marker blocks retries
	ProcessingTTL time.Duration
	// Required rejects requests without a key; otherwise they pass through untouched
	Required bool
}

// DefaultIdempotencyConfig returns a config with a 24h replay window
func DefaultIdempotencyConfig(client RedisClient) *IdempotencyConfig {
	return &IdempotencyConfig{
		Redis:         client,
		TTL:           24 * time.Hour,
		ProcessingTTL: 60 * time.Second,
	}
}

// IdempotencyMiddleware replays the stored response for a repeated key and
// rejects a key reused with a different request. Redis failures fail open.
func IdempotencyMiddleware(cfg *IdempotencyConfig) gin.HandlerFunc {
	if cfg.ProcessingTTL <= 0 {
		cfg.ProcessingTTL = 60 * time.Second
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}

	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyKeyHeader)
		if key == "" {
			if cfg.Required {
				response.BadRequest(c, IdempotencyKeyHeader+" header is required")
				return
			}
			c.Next()
			return
		}
		c.Set(ContextKeyIdempotencyKey, key)

		var body []byte
		if c.Request.Body != nil {
			body, _ = io.ReadAll(c.Request.Body)
			c.Request.Body = io.NopCloser(bytes.NewReader(body))
		}

		userID, _ := GetUserID(c)
		hash := requestHash(c.Request.Method, c.Request.URL.Path, userID, body)
		redisKey := idempotencyKeyPrefix + userID + ":" + key
		ctx := c.Request.Context()

		record := &IdempotencyRecord{Status: StatusProcessing, RequestHash: hash, CreatedAt: time.Now()}
		reserved, err := setRecord(ctx, cfg.Redis, redisKey, record, cfg.ProcessingTTL, true)
		if err != nil {
			c.Next()
			return
		}

		if !reserved {
			existing, err := getRecord(ctx, cfg.Redis, redisKey)
			if err != nil {
				c.Next()
				return
			}
			switch {
			case existing.RequestHash != hash:
				response.Error(c, http.StatusUnprocessableEntity, "IDEMPOTENCY_KEY_REUSED", "idempotency key already used with a different request", "")
			case existing.Status == StatusProcessing:
				response.Conflict(c, "REQUEST_IN_PROGRESS", "a request with this idempotency key is still being processed")
			default:
				c.Data(existing.ResponseCode, "application/json; charset=utf-8", []byte(existing.ResponseBody))
				c.Abort()
			}
			return
		}

		rw := &capturingWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = rw
		c.Next()

		// 5xx answers are not replayed so the client can retry
		if rw.Status() >= http.StatusInternalServerError {
			_ = cfg.Redis.Del(ctx, redisKey).Err()
			return
		}

		record.Status = StatusCompleted
		record.ResponseCode = rw.Status()
		record.ResponseBody = rw.body.String()
		_, _ = setRecord(ctx, cfg.Redis, redisKey, record, cfg.TTL, false)
	}
}

type capturingWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *capturingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func requestHash(method, path, userID string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method))
	h.Write([]byte(path))
	h.Write([]byte(userID))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func getRecord(ctx context.Context, client RedisClient, key string) (*IdempotencyRecord, error) {
	raw, err := client.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	var record IdempotencyRecord
	if err := json.Unmarshal([]byte(raw), &record); err != nil {
		return nil, err
	}
	return &record, nil
}

func setRecord(ctx context.Context, client RedisClient, key string, record *IdempotencyRecord, ttl time.Duration, onlyIfAbsent bool) (bool, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return false, err
	}
	if onlyIfAbsent {
		return client.SetNX(ctx, key, string(data), ttl).Result()
	}
	if err := client.Set(ctx, key, string(data), ttl).Err(); err != nil {
		return false, err
	}
	return true, nil
}
