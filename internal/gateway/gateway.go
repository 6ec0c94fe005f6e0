package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

// Provider is a hosted-checkout payment provider
type Provider interface {
	// Name returns the provider name used in routes and stored attempts
	Name() string

	// InitCheckout opens a checkout for the attempt reference
	InitCheckout(ctx context.Context, req *CheckoutRequest) (*Checkout, error)

	// GetStatus asks the provider for the authoritative status of an attempt
	GetStatus(ctx context.Context, reference, providerRef string) (*StatusResult, error)

	// ParseWebhook verifies the webhook signature and extracts the reference.
	// The webhook body is never trusted for the outcome.
	ParseWebhook(payload []byte, headers http.Header) (string, error)
}

// CheckoutRequest represents a checkout request. Amount is in minor units.
type CheckoutRequest struct {
	Reference   string
	BookingID   string
	UserID      string
	Amount      int64
	Currency    string
	Description string

	// Customer info
	Email     string
	FirstName string
	LastName  string
	Phone     string

	ReturnURL   string
	CallbackURL string

	// ExpiresAt closes the checkout; zero leaves the provider default
	ExpiresAt time.Time
}

// Checkout is the provider's answer to InitCheckout
type Checkout struct {
	CheckoutURL string
	ProviderRef string
}

// StatusResult is the provider's view of an attempt
type StatusResult struct {
	Status      domain.PaymentStatus
	ProviderRef string
	Reason      string
}

// ProviderConfig holds common provider configuration
type ProviderConfig struct {
	SecretKey     string
	WebhookSecret string
	BaseURL       string
	ReturnURL     string
	CallbackURL   string
	Timeout       time.Duration

	// MockSuccessRate only applies to the mock provider
	MockSuccessRate float64
}

// FormatAmount renders minor units as a decimal string, e.g. 12345 -> "123.45"
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}

func unavailable(provider string, err error) error {
	return fmt.Errorf("%w: %s: %v", domain.ErrProviderUnavailable, provider, err)
}
