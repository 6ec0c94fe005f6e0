package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// MockProvider implements Provider for development and tests. The outcome of
// each attempt is decided at checkout and reported by GetStatus.
type MockProvider struct {
	config   *MockProviderConfig
	outcomes sync.Map // reference -> domain.PaymentStatus
	mu       sync.RWMutex

	initCalls   atomic.Int64
	statusCalls atomic.Int64
}

// MockProviderConfig holds configuration for the mock provider
type MockProviderConfig struct {
	// SuccessRate is the probability of a successful payment (0.0 to 1.0)
	SuccessRate float64

	// DelayMs is the simulated processing delay in milliseconds
	DelayMs int

	// CheckoutBaseURL prefixes generated checkout urls
	CheckoutBaseURL string

	// FailInit makes InitCheckout fail with ErrProviderUnavailable
	FailInit bool
}

// DefaultMockProviderConfig returns default configuration
func DefaultMockProviderConfig() *MockProviderConfig {
	return &MockProviderConfig{
		SuccessRate:     1.0,
		DelayMs:         0,
		CheckoutBaseURL: "https://checkout.mock.local/pay",
	}
}

// NewMockProvider creates a new mock provider
func NewMockProvider(config *MockProviderConfig) *MockProvider {
	if config == nil {
		config = DefaultMockProviderConfig()
	}
	if config.SuccessRate < 0 {
		config.SuccessRate = 0
	}
	if config.SuccessRate > 1 {
		config.SuccessRate = 1
	}
	return &MockProvider{config: config}
}

// Name returns the provider name
func (p *MockProvider) Name() string {
	return string(ProviderTypeMock)
}

// InitCheckout records the outcome of the attempt and returns a fake url
func (p *MockProvider) InitCheckout(ctx context.Context, req *CheckoutRequest) (*Checkout, error) {
	if req == nil {
		return nil, fmt.Errorf("checkout request is required")
	}
	p.initCalls.Add(1)

	if err := p.delay(ctx); err != nil {
		return nil, err
	}

	p.mu.RLock()
	failInit, rate := p.config.FailInit, p.config.SuccessRate
	p.mu.RUnlock()
	if failInit {
		return nil, unavailable(p.Name(), errors.New("simulated outage"))
	}

	outcome := domain.PaymentStatusSucceeded
	if rand.Float64() >= rate {
		outcome = domain.PaymentStatusFailed
	}
	p.outcomes.Store(req.Reference, outcome)

	return &Checkout{
		CheckoutURL: fmt.Sprintf("%s/%s", p.config.CheckoutBaseURL, req.Reference),
		ProviderRef: fmt.Sprintf("mock_txn_%s", uuid.New().String()[:8]),
	}, nil
}

// GetStatus reports the recorded outcome. Unknown references stay PENDING.
func (p *MockProvider) GetStatus(ctx context.Context, reference, providerRef string) (*StatusResult, error) {
	p.statusCalls.Add(1)

	if err := p.delay(ctx); err != nil {
		return nil, err
	}

	result := &StatusResult{Status: domain.PaymentStatusPending, ProviderRef: providerRef}
	if v, ok := p.outcomes.Load(reference); ok {
		result.Status = v.(domain.PaymentStatus)
		if result.Status == domain.PaymentStatusFailed {
			result.Reason = "card_declined"
		}
	}
	return result, nil
}

// ParseWebhook reads {"reference": "..."}; the mock has no signature
func (p *MockProvider) ParseWebhook(payload []byte, headers http.Header) (string, error) {
	var body struct {
		Reference string `json:"reference"`
	}
	if err := json.Unmarshal(payload, &body); err != nil || body.Reference == "" {
		return "", fmt.Errorf("%w: webhook has no reference", domain.ErrValidation)
	}
	return body.Reference, nil
}

// SetOutcome overrides the outcome reported for reference
func (p *MockProvider) SetOutcome(reference string, status domain.PaymentStatus) {
	p.outcomes.Store(reference, status)
}

// SetSuccessRate updates the success rate (for testing)
func (p *MockProvider) SetSuccessRate(rate float64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if rate < 0 {
		rate = 0
	}
	if rate > 1 {
		rate = 1
	}
	p.config.SuccessRate = rate
}

// SetFailInit toggles the simulated checkout outage
func (p *MockProvider) SetFailInit(fail bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.config.FailInit = fail
}

// InitCalls returns how many checkouts were requested
func (p *MockProvider) InitCalls() int64 { return p.initCalls.Load() }

// StatusCalls returns how many status lookups were made
func (p *MockProvider) StatusCalls() int64 { return p.statusCalls.Load() }

func (p *MockProvider) delay(ctx context.Context) error {
	if p.config.DelayMs <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(p.config.DelayMs) * time.Millisecond):
		return nil
	}
}

var _ Provider = (*MockProvider)(nil)
