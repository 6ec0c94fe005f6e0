package gateway

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

const (
	defaultChapaBaseURL = "https://api.chapa.co/v1"
	chapaTimeout        = 15 * time.Second
)

// ChapaProvider implements Provider against the Chapa REST API
type ChapaProvider struct {
	config *ChapaProviderConfig
	client *http.Client
}

// ChapaProviderConfig holds configuration for the Chapa provider
type ChapaProviderConfig struct {
	BaseURL       string
	SecretKey     string
	WebhookSecret string // signature verification is skipped when empty
	CallbackURL   string
	ReturnURL     string
	Timeout       time.Duration
}

// NewChapaProvider creates a new Chapa provider
func NewChapaProvider(config *ChapaProviderConfig) *ChapaProvider {
	if config.BaseURL == "" {
		config.BaseURL = defaultChapaBaseURL
	}
	if config.Timeout <= 0 {
		config.Timeout = chapaTimeout
	}
	return &ChapaProvider{
		config: config,
		client: &http.Client{Timeout: config.Timeout},
	}
}

// Name returns the provider name
func (p *ChapaProvider) Name() string {
	return string(ProviderTypeChapa)
}

type chapaInitRequest struct {
	Amount      string            `json:"amount"`
	Currency    string            `json:"currency"`
	Email       string            `json:"email,omitempty"`
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	PhoneNumber string            `json:"phone_number,omitempty"`
	TxRef       string            `json:"tx_ref"`
	CallbackURL string            `json:"callback_url,omitempty"`
	ReturnURL   string            `json:"return_url,omitempty"`
	Title       string            `json:"customization[title]"`
	Description string            `json:"customization[description],omitempty"`
	Meta        map[string]string `json:"meta,omitempty"`
}

type chapaResponse struct {
	Status  string          `json:"status"`
	Message json.RawMessage `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type chapaInitData struct {
	CheckoutURL      string `json:"checkout_url"`
	AuthorizationURL string `json:"authorization_url"`
	URL              string `json:"url"`
	ID               string `json:"id"`
	Reference        string `json:"reference"`
}

type chapaVerifyData struct {
	Status    string `json:"status"`
	TxRef     string `json:"tx_ref"`
	Reference string `json:"reference"`
}

// InitCheckout calls /transaction/initialize
func (p *ChapaProvider) InitCheckout(ctx context.Context, req *CheckoutRequest) (*Checkout, error) {
	if req == nil {
		return nil, fmt.Errorf("checkout request is required")
	}

	firstName := req.FirstName
	if firstName == "" {
		firstName = "Guest"
		if at := strings.Index(req.Email, "@"); at > 0 {
			firstName = req.Email[:at]
		}
	}
	lastName := req.LastName
	if lastName == "" {
		lastName = "Booking"
	}

	body := &chapaInitRequest{
		Amount:      FormatAmount(req.Amount),
		Currency:    req.Currency,
		Email:       req.Email,
		FirstName:   firstName,
		LastName:    lastName,
		PhoneNumber: req.Phone,
		TxRef:       req.Reference,
		CallbackURL: firstNonEmpty(req.CallbackURL, p.config.CallbackURL),
		ReturnURL:   firstNonEmpty(req.ReturnURL, p.config.ReturnURL),
		Title:       "Booking Payment",
		Description: req.Description,
		Meta:        map[string]string{"bookingId": req.BookingID, "userId": req.UserID},
	}

	var resp chapaResponse
	if err := p.do(ctx, http.MethodPost, "/transaction/initialize", body, &resp); err != nil {
		return nil, err
	}
	if resp.Status != "success" {
		return nil, unavailable(p.Name(), fmt.Errorf("initialize rejected: %s", string(resp.Message)))
	}

	var data chapaInitData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, unavailable(p.Name(), fmt.Errorf("failed to decode checkout: %w", err))
	}
	checkoutURL := firstNonEmpty(data.CheckoutURL, data.AuthorizationURL, data.URL)
	if checkoutURL == "" {
		return nil, unavailable(p.Name(), fmt.Errorf("response has no checkout url"))
	}

	return &Checkout{
		CheckoutURL: checkoutURL,
		ProviderRef: firstNonEmpty(data.ID, data.Reference),
	}, nil
}

// GetStatus calls /transaction/verify/{tx_ref}
func (p *ChapaProvider) GetStatus(ctx context.Context, reference, providerRef string) (*StatusResult, error) {
	if reference == "" {
		return nil, fmt.Errorf("reference is required")
	}

	var resp chapaResponse
	if err := p.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &resp); err != nil {
		return nil, err
	}

	result := &StatusResult{Status: domain.PaymentStatusPending, ProviderRef: providerRef}
	if resp.Status != "success" || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return result, nil
	}

	var data chapaVerifyData
	if err := json.Unmarshal(resp.Data, &data); err != nil {
		return nil, unavailable(p.Name(), fmt.Errorf("failed to decode verification: %w", err))
	}
	if data.Reference != "" {
		result.ProviderRef = data.Reference
	}

	switch strings.ToLower(data.Status) {
	case "success":
		result.Status = domain.PaymentStatusSucceeded
	case "failed", "cancelled", "reversed":
		result.Status = domain.PaymentStatusFailed
		result.Reason = "provider reported " + strings.ToLower(data.Status)
	}
	return result, nil
}

// ParseWebhook verifies the HMAC-SHA256 signature and extracts tx_ref
func (p *ChapaProvider) ParseWebhook(payload []byte, headers http.Header) (string, error) {
	if p.config.WebhookSecret != "" {
		signature := headers.Get("x-chapa-signature")
		if signature == "" {
			signature = headers.Get("chapa-signature")
		}
		if signature == "" {
			return "", fmt.Errorf("%w: missing signature", domain.ErrInvalidSignature)
		}
		mac := hmac.New(sha256.New, []byte(p.config.WebhookSecret))
		mac.Write(payload)
		expected := hex.EncodeToString(mac.Sum(nil))
		if !hmac.Equal([]byte(expected), []byte(strings.ToLower(signature))) {
			return "", domain.ErrInvalidSignature
		}
	}

	var body struct {
		TxRef  string `json:"tx_ref"`
		TrxRef string `json:"trx_ref"`
		Data   *struct {
			TxRef     string `json:"tx_ref"`
			TrxRef    string `json:"trx_ref"`
			Reference string `json:"reference"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return "", fmt.Errorf("%w: malformed webhook payload", domain.ErrValidation)
	}

	ref := firstNonEmpty(body.TxRef, body.TrxRef)
	if ref == "" && body.Data != nil {
		ref = firstNonEmpty(body.Data.TxRef, body.Data.TrxRef, body.Data.Reference)
	}
	if ref == "" {
		return "", fmt.Errorf("%w: webhook has no tx_ref", domain.ErrValidation)
	}
	return ref, nil
}

func (p *ChapaProvider) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.config.BaseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+p.config.SecretKey)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return unavailable(p.Name(), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return unavailable(p.Name(), err)
	}
	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return unavailable(p.Name(), fmt.Errorf("status %d", resp.StatusCode))
	}
	// Chapa answers 4xx with a JSON body carrying status "failed"
	if err := json.Unmarshal(raw, out); err != nil {
		return unavailable(p.Name(), fmt.Errorf("status %d: undecodable body", resp.StatusCode))
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

var _ Provider = (*ChapaProvider)(nil)
