package gateway

import (
	"fmt"
	"strings"
)

// ProviderType represents the type of payment provider
type ProviderType string

const (
	ProviderTypeMock   ProviderType = "mock"
	ProviderTypeChapa  ProviderType = "chapa"
	ProviderTypeStripe ProviderType = "stripe"
)

// NewProvider creates a payment provider based on the type
func NewProvider(providerType string, config *ProviderConfig) (Provider, error) {
	if config == nil {
		config = &ProviderConfig{}
	}

	switch ProviderType(strings.ToLower(providerType)) {
	case ProviderTypeMock, "":
		mockCfg := DefaultMockProviderConfig()
		if config.MockSuccessRate > 0 {
			mockCfg.SuccessRate = config.MockSuccessRate
		}
		return NewMockProvider(mockCfg), nil

	case ProviderTypeChapa:
		if config.SecretKey == "" {
			return nil, fmt.Errorf("chapa secret key is required")
		}
		return NewChapaProvider(&ChapaProviderConfig{
			BaseURL:       config.BaseURL,
			SecretKey:     config.SecretKey,
			WebhookSecret: config.WebhookSecret,
			CallbackURL:   config.CallbackURL,
			ReturnURL:     config.ReturnURL,
			Timeout:       config.Timeout,
		}), nil

	case ProviderTypeStripe:
		if config.SecretKey == "" {
			return nil, fmt.Errorf("stripe secret key is required")
		}
		return NewStripeProvider(&StripeProviderConfig{
			SecretKey:     config.SecretKey,
			WebhookSecret: config.WebhookSecret,
			SuccessURL:    config.ReturnURL,
			CancelURL:     config.ReturnURL,
		})

	default:
		return nil, fmt.Errorf("unsupported payment provider: %s", providerType)
	}
}
