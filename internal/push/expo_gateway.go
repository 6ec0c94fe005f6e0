package push

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/prohmpiriya/tourism-booking/pkg/retry"
)

const defaultExpoBaseURL = "https://exp.host/--/api/v2"

var (
	expoTokenPattern = regexp.MustCompile(`^(ExponentPushToken|ExpoPushToken)\[.+\]$`)
	uuidTokenPattern = regexp.MustCompile(`^[a-z\d]{8}-[a-z\d]{4}-[a-z\d]{4}-[a-z\d]{4}-[a-z\d]{12}$`)
)

// ExpoGateway implements Gateway against the Expo push API
type ExpoGateway struct {
	baseURL     string
	accessToken string
	client      *http.Client
}

// ExpoConfig holds configuration for the Expo gateway
type ExpoConfig struct {
	BaseURL     string
	AccessToken string
	HTTPClient  *http.Client
}

// NewExpoGateway creates a new Expo gateway
func NewExpoGateway(cfg *ExpoConfig) *ExpoGateway {
	if cfg == nil {
		cfg = &ExpoConfig{}
	}
	g := &ExpoGateway{
		baseURL:     cfg.BaseURL,
		accessToken: cfg.AccessToken,
		client:      cfg.HTTPClient,
	}
	if g.baseURL == "" {
		g.baseURL = defaultExpoBaseURL
	}
	if g.client == nil {
		g.client = &http.Client{}
	}
	return g
}

// IsValidToken accepts ExponentPushToken[...] and bare device ids
func (g *ExpoGateway) IsValidToken(token string) bool {
	return expoTokenPattern.MatchString(token) || uuidTokenPattern.MatchString(token)
}

// Send posts one chunk to /push/send
func (g *ExpoGateway) Send(ctx context.Context, messages []OutboundMessage) ([]Ticket, error) {
	out := make([]OutboundMessage, len(messages))
	for i, m := range messages {
		if m.Sound == "" {
			m.Sound = "default"
		}
		out[i] = m
	}

	var resp struct {
		Data []Ticket `json:"data"`
	}
	if err := g.post(ctx, "/push/send", out, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) != len(messages) {
		return nil, retry.Permanent(fmt.Errorf("expo returned %d tickets for %d messages", len(resp.Data), len(messages)))
	}
	return resp.Data, nil
}

// Receipts posts ids to /push/getReceipts
func (g *ExpoGateway) Receipts(ctx context.Context, ids []string) (map[string]Receipt, error) {
	var resp struct {
		Data map[string]Receipt `json:"data"`
	}
	if err := g.post(ctx, "/push/getReceipts", map[string][]string{"ids": ids}, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		resp.Data = map[string]Receipt{}
	}
	return resp.Data, nil
}

// post marks network failures, 429 and 5xx as retryable and other 4xx as permanent
func (g *ExpoGateway) post(ctx context.Context, path string, in, out interface{}) error {
	body, err := json.Marshal(in)
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return retry.Permanent(fmt.Errorf("failed to build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if g.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+g.accessToken)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return retry.Retryable(fmt.Errorf("expo request failed: %w", err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return retry.Retryable(fmt.Errorf("failed to read expo response: %w", err))
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return retry.Retryable(fmt.Errorf("expo returned status %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		return retry.Permanent(fmt.Errorf("expo returned status %d: %s", resp.StatusCode, truncate(raw, 256)))
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return retry.Permanent(fmt.Errorf("failed to decode expo response: %w", err))
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		return string(b[:n])
	}
	return string(b)
}

var _ Gateway = (*ExpoGateway)(nil)
