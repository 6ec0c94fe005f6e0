package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/prohmpiriya/tourism-booking/internal/metrics"
	"github.com/prohmpiriya/tourism-booking/internal/repository"
	"github.com/prohmpiriya/tourism-booking/pkg/logger"
	"github.com/prohmpiriya/tourism-booking/pkg/retry"
	"go.uber.org/zap"
)

const (
	// DefaultChunkSize is the Expo limit of messages per request
	DefaultChunkSize = 100
	// ReceiptChunkSize is the Expo limit of ids per receipts request
	ReceiptChunkSize = 1000
)

// Message is a push addressed to a user
type Message = domain.PushMessage

// Result counts the outcome of a send
type Result struct {
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	Pruned  int `json:"pruned"`
	Dropped int `json:"dropped"`
}

// DispatcherConfig holds dispatcher configuration
type DispatcherConfig struct {
	ChunkSize      int
	GatewayTimeout time.Duration
	Retry          retry.Policy
}

// DefaultDispatcherConfig returns default configuration
func DefaultDispatcherConfig() *DispatcherConfig {
	return &DispatcherConfig{
		ChunkSize:      DefaultChunkSize,
		GatewayTimeout: 10 * time.Second,
		Retry:          retry.DefaultPolicy(),
	}
}

// Dispatcher resolves push tokens, sends in chunks and interprets tickets
type Dispatcher struct {
	gateway  Gateway
	tokens   repository.PushTokenRepository
	receipts *ReceiptTracker
	dlq      retry.DLQPublisher
	config   *DispatcherConfig
	log      *logger.Logger
}

// NewDispatcher creates a new dispatcher. receipts and dlq may be nil.
func NewDispatcher(gateway Gateway, tokens repository.PushTokenRepository, receipts *ReceiptTracker, dlq retry.DLQPublisher, cfg *DispatcherConfig) *Dispatcher {
	if cfg == nil {
		cfg = DefaultDispatcherConfig()
	}
	if cfg.ChunkSize <= 0 || cfg.ChunkSize > DefaultChunkSize {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.GatewayTimeout <= 0 {
		cfg.GatewayTimeout = 10 * time.Second
	}
	cfg.Retry = cfg.Retry.Normalize()
	if dlq == nil {
		dlq = retry.NewNoOpDLQPublisher()
	}
	return &Dispatcher{
		gateway:  gateway,
		tokens:   tokens,
		receipts: receipts,
		dlq:      dlq,
		config:   cfg,
		log:      logger.Get().Named("push-dispatcher"),
	}
}

// outbound pairs a message with the token it is sent to
type outbound struct {
	msg   Message
	token string
}

// Send pushes one message to one user
func (d *Dispatcher) Send(ctx context.Context, userID, title, body string, data map[string]string) (*Result, error) {
	return d.SendBatch(ctx, []Message{{UserID: userID, Title: title, Body: body, Data: data}})
}

// SendBatch pushes messages to their users. A recipient without a valid
// token is skipped without affecting the others.
func (d *Dispatcher) SendBatch(ctx context.Context, messages []Message) (*Result, error) {
	result := &Result{}
	if len(messages) == 0 {
		return result, nil
	}

	userIDs := make([]string, 0, len(messages))
	for _, m := range messages {
		userIDs = append(userIDs, m.UserID)
	}
	tokens, err := d.tokens.GetMany(ctx, userIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve push tokens: %w", err)
	}

	pending := make([]outbound, 0, len(messages))
	for _, m := range messages {
		t, ok := tokens[m.UserID]
		if !ok || !d.gateway.IsValidToken(t.Token) {
			result.Skipped++
			continue
		}
		pending = append(pending, outbound{msg: m, token: t.Token})
	}

	for round := 1; len(pending) > 0; round++ {
		retryable := d.sendRound(ctx, pending, result)
		if len(retryable) == 0 {
			break
		}
		if round >= d.config.Retry.MaxAttempts {
			d.drop(ctx, retryable, round, "retries_exhausted", result)
			break
		}
		if err := d.config.Retry.Wait(ctx, round); err != nil {
			d.drop(ctx, retryable, round, "context_canceled", result)
			break
		}
		pending = retryable
	}

	return result, nil
}

// sendRound sends pending in chunks and returns the messages worth retrying
func (d *Dispatcher) sendRound(ctx context.Context, pending []outbound, result *Result) []outbound {
	var retryable []outbound

	for start := 0; start < len(pending); start += d.config.ChunkSize {
		end := start + d.config.ChunkSize
		if end > len(pending) {
			end = len(pending)
		}
		retryable = append(retryable, d.sendChunk(ctx, pending[start:end], result)...)
	}

	return retryable
}

// sendChunk sends one chunk. A chunk the gateway rejects outright is split in
// halves and resent until the rejected messages are isolated.
func (d *Dispatcher) sendChunk(ctx context.Context, chunk []outbound, result *Result) []outbound {
	out := make([]OutboundMessage, len(chunk))
	for i, o := range chunk {
		out[i] = OutboundMessage{To: o.token, Title: o.msg.Title, Body: o.msg.Body, Data: o.msg.Data}
	}

	callCtx, cancel := context.WithTimeout(ctx, d.config.GatewayTimeout)
	tickets, err := d.gateway.Send(callCtx, out)
	cancel()

	if err != nil {
		if isTransient(err) {
			metrics.RecordPushTicket("transient_error")
			return chunk
		}
		if len(chunk) > 1 && ctx.Err() == nil {
			d.log.Debug("splitting rejected push chunk", zap.Int("messages", len(chunk)), zap.Error(err))
			mid := len(chunk) / 2
			retryable := d.sendChunk(ctx, chunk[:mid], result)
			return append(retryable, d.sendChunk(ctx, chunk[mid:], result)...)
		}
		d.log.Error("push chunk rejected", zap.Int("messages", len(chunk)), zap.Error(err))
		result.Failed += len(chunk)
		metrics.RecordPushTicket("chunk_error")
		return nil
	}

	var retryable []outbound
	for i, ticket := range tickets {
		o := chunk[i]
		if ticket.Status == TicketStatusOK {
			result.Sent++
			metrics.RecordPushTicket(TicketStatusOK)
			if d.receipts != nil {
				d.receipts.Track(ticket.ID, o.msg.UserID, o.token)
			}
			continue
		}

		code := ticket.ErrorCode()
		metrics.RecordPushTicket(code)
		switch code {
		case ErrorDeviceNotRegistered:
			d.log.Debug("device not registered", zap.String("user_id", o.msg.UserID), zap.Error(ticket.Err()))
			if d.prune(ctx, o.msg.UserID, o.token) {
				result.Pruned++
			}
		case ErrorMessageRateExceeded:
			retryable = append(retryable, o)
		default:
			d.log.Warn("push ticket error",
				zap.String("user_id", o.msg.UserID),
				zap.String("code", code),
				zap.Error(ticket.Err()),
			)
			result.Failed++
		}
	}
	return retryable
}

// CheckReceipts fetches receipts for due tickets and prunes dead tokens
func (d *Dispatcher) CheckReceipts(ctx context.Context) (int, error) {
	if d.receipts == nil {
		return 0, nil
	}

	due := d.receipts.Due()
	pruned := 0
	var firstErr error

	for start := 0; start < len(due); start += ReceiptChunkSize {
		end := start + ReceiptChunkSize
		if end > len(due) {
			end = len(due)
		}
		ids := due[start:end]

		receipts, err := d.fetchReceipts(ctx, ids)
		if err != nil {
			d.log.Warn("failed to fetch push receipts", zap.Int("ids", len(ids)), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		for id, receipt := range receipts {
			if receipt.Status != TicketStatusOK && receipt.ErrorCode() == ErrorDeviceNotRegistered {
				if userID, token, ok := d.receipts.Lookup(id); ok && d.prune(ctx, userID, token) {
					pruned++
				}
			}
			d.receipts.Forget(id)
		}
	}

	return pruned, firstErr
}

// fetchReceipts retries transient gateway failures with the dispatcher policy
func (d *Dispatcher) fetchReceipts(ctx context.Context, ids []string) (map[string]Receipt, error) {
	var receipts map[string]Receipt
	res := retry.Do(ctx, d.config.Retry, func(ctx context.Context) error {
		callCtx, cancel := context.WithTimeout(ctx, d.config.GatewayTimeout)
		defer cancel()

		r, err := d.gateway.Receipts(callCtx, ids)
		if err != nil {
			if !isTransient(err) {
				return retry.Permanent(err)
			}
			return err
		}
		receipts = r
		return nil
	}, func(attempt int, err error, wait time.Duration) {
		d.log.Debug("retrying push receipts", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
	})
	if res.Err != nil {
		if res.LastError != nil {
			return nil, res.LastError
		}
		return nil, res.Err
	}
	return receipts, nil
}

// prune removes the token only if it is still the registered one
func (d *Dispatcher) prune(ctx context.Context, userID, token string) bool {
	deleted, err := d.tokens.DeleteIfMatches(ctx, userID, token)
	if err != nil {
		d.log.Error("failed to prune push token", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	if deleted {
		metrics.RecordTokenPruned()
		d.log.Info("pruned unregistered push token", zap.String("user_id", userID))
	}
	return deleted
}

func (d *Dispatcher) drop(ctx context.Context, dropped []outbound, attempts int, reason string, result *Result) {
	result.Dropped += len(dropped)
	metrics.RecordPushDropped(reason, len(dropped))

	for _, o := range dropped {
		d.log.Error("push message dropped",
			zap.String("user_id", o.msg.UserID),
			zap.String("reason", reason),
			zap.Int("attempts", attempts),
		)

		payload, _ := json.Marshal(o.msg)
		err := d.dlq.PublishToDLQ(context.WithoutCancel(ctx), &retry.DLQMessage{
			ID:       uuid.New().String(),
			Kind:     "push",
			Key:      o.msg.UserID,
			Payload:  payload,
			Error:    reason,
			Attempts: attempts,
			FailedAt: time.Now().UTC(),
			Source:   "push-dispatcher",
		})
		if err != nil {
			d.log.Error("failed to publish dropped push to DLQ", zap.String("user_id", o.msg.UserID), zap.Error(err))
		}
	}
}

func isTransient(err error) bool {
	return retry.IsRetryable(err) || errors.Is(err, context.DeadlineExceeded)
}
