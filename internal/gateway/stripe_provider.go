package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeProvider implements Provider using Stripe Checkout Sessions
type StripeProvider struct {
	config   *StripeProviderConfig
	sessions *session.Client
}

// StripeProviderConfig holds configuration for the Stripe provider
type StripeProviderConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string

	// Backend overrides the Stripe API backend, used by tests
	Backend stripe.Backend
}

// NewStripeProvider creates a new Stripe provider
func NewStripeProvider(config *StripeProviderConfig) (*StripeProvider, error) {
	if config == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	backend := config.Backend
	if backend == nil {
		backend = stripe.GetBackend(stripe.APIBackend)
	}

	return &StripeProvider{
		config:   config,
		sessions: &session.Client{B: backend, Key: config.SecretKey},
	}, nil
}

// Name returns the provider name
func (p *StripeProvider) Name() string {
	return string(ProviderTypeStripe)
}

// InitCheckout creates a Checkout Session for the attempt
func (p *StripeProvider) InitCheckout(ctx context.Context, req *CheckoutRequest) (*Checkout, error) {
	if req == nil {
		return nil, fmt.Errorf("checkout request is required")
	}

	description := req.Description
	if description == "" {
		description = "Booking " + req.BookingID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.Reference),
		SuccessURL:        stripe.String(firstNonEmpty(req.ReturnURL, p.config.SuccessURL)),
		CancelURL:         stripe.String(firstNonEmpty(req.ReturnURL, p.config.CancelURL)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(req.Amount),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(description),
					},
				},
			},
		},
		Metadata: map[string]string{
			"reference":  req.Reference,
			"booking_id": req.BookingID,
			"user_id":    req.UserID,
		},
	}
	if req.Email != "" {
		params.CustomerEmail = stripe.String(req.Email)
	}
	if !req.ExpiresAt.IsZero() {
		params.ExpiresAt = stripe.Int64(req.ExpiresAt.Unix())
	}
	params.Context = ctx

	s, err := p.sessions.New(params)
	if err != nil {
		return nil, unavailable(p.Name(), err)
	}

	return &Checkout{CheckoutURL: s.URL, ProviderRef: s.ID}, nil
}

// GetStatus retrieves the Checkout Session
func (p *StripeProvider) GetStatus(ctx context.Context, reference, providerRef string) (*StatusResult, error) {
	if providerRef == "" {
		return nil, fmt.Errorf("stripe session id is required")
	}

	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	s, err := p.sessions.Get(providerRef, params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.HTTPStatusCode == http.StatusNotFound {
			return &StatusResult{Status: domain.PaymentStatusFailed, ProviderRef: providerRef, Reason: "session not found"}, nil
		}
		return nil, unavailable(p.Name(), err)
	}

	result := &StatusResult{Status: domain.PaymentStatusPending, ProviderRef: s.ID}
	switch {
	case s.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		s.PaymentStatus == stripe.CheckoutSessionPaymentStatusNoPaymentRequired:
		result.Status = domain.PaymentStatusSucceeded
	case s.Status == stripe.CheckoutSessionStatusExpired:
		result.Status = domain.PaymentStatusFailed
		result.Reason = "checkout session expired"
	}
	return result, nil
}

// ParseWebhook verifies the Stripe-Signature header and extracts the reference
func (p *StripeProvider) ParseWebhook(payload []byte, headers http.Header) (string, error) {
	event, err := webhook.ConstructEventWithOptions(payload, headers.Get("Stripe-Signature"), p.config.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
	}

	if !strings.HasPrefix(string(event.Type), "checkout.session.") || event.Data == nil {
		return "", fmt.Errorf("%w: unhandled event type %s", domain.ErrValidation, event.Type)
	}

	var s stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &s); err != nil {
		return "", fmt.Errorf("%w: malformed checkout session", domain.ErrValidation)
	}

	ref := firstNonEmpty(s.ClientReferenceID, s.Metadata["reference"])
	if ref == "" {
		return "", fmt.Errorf("%w: checkout session has no reference", domain.ErrValidation)
	}
	return ref, nil
}

var _ Provider = (*StripeProvider)(nil)
