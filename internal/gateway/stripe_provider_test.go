package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

func newStripeTestProvider(t *testing.T, handler http.HandlerFunc) *StripeProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
	})
	p, err := NewStripeProvider(&StripeProviderConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		SuccessURL:    "https://app.local/payment-success",
		CancelURL:     "https://app.local/payment-cancel",
		Backend:       backend,
	})
	if err != nil {
		t.Fatalf("NewStripeProvider() error = %v", err)
	}
	return p
}

func TestStripeProvider_InitCheckout(t *testing.T) {
	provider := newStripeTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		_ = r.ParseForm()
		if r.PostForm.Get("client_reference_id") != "b-1-1" {
			t.Errorf("client_reference_id = %q", r.PostForm.Get("client_reference_id"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/cs_test_1"}`))
	})

	checkout, err := provider.InitCheckout(context.Background(), &CheckoutRequest{
		Reference: "b-1-1", BookingID: "b-1", Amount: 5000, Currency: "USD",
	})
	if err != nil {
		t.Fatalf("InitCheckout() error = %v", err)
	}
	if checkout.ProviderRef != "cs_test_1" || checkout.CheckoutURL == "" {
		t.Errorf("unexpected checkout %+v", checkout)
	}
}

func TestStripeProvider_InitCheckout_ExpiresAt(t *testing.T) {
	expiresAt := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	var got string
	provider := newStripeTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		got = r.PostForm.Get("expires_at")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_2","object":"checkout.session","url":"https://checkout.stripe.com/c/cs_test_2"}`))
	})

	_, err := provider.InitCheckout(context.Background(), &CheckoutRequest{
		Reference: "b-2-1", BookingID: "b-2", Amount: 5000, Currency: "USD", ExpiresAt: expiresAt,
	})
	if err != nil {
		t.Fatalf("InitCheckout() error = %v", err)
	}
	if want := strconv.FormatInt(expiresAt.Unix(), 10); got != want {
		t.Errorf("expires_at = %q, want %q", got, want)
	}
}

func TestStripeProvider_GetStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
		want domain.PaymentStatus
	}{
		{"paid", `{"id":"cs_1","object":"checkout.session","status":"complete","payment_status":"paid"}`, domain.PaymentStatusSucceeded},
		{"open", `{"id":"cs_1","object":"checkout.session","status":"open","payment_status":"unpaid"}`, domain.PaymentStatusPending},
		{"expired", `{"id":"cs_1","object":"checkout.session","status":"expired","payment_status":"unpaid"}`, domain.PaymentStatusFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newStripeTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(tt.body))
			})
			result, err := provider.GetStatus(context.Background(), "b-1-1", "cs_1")
			if err != nil {
				t.Fatalf("GetStatus() error = %v", err)
			}
			if result.Status != tt.want {
				t.Errorf("Status = %s, want %s", result.Status, tt.want)
			}
		})
	}
}

func TestStripeProvider_ParseWebhook(t *testing.T) {
	provider, err := NewStripeProvider(&StripeProviderConfig{SecretKey: "sk_test", WebhookSecret: "whsec_test"})
	if err != nil {
		t.Fatalf("NewStripeProvider() error = %v", err)
	}

	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","api_version":"2020-08-27",` +
		`"data":{"object":{"id":"cs_1","object":"checkout.session","client_reference_id":"b-7-1700000000000"}}}`)

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    "whsec_test",
		Timestamp: time.Now(),
		Scheme:    "v1",
	})

	h := http.Header{}
	h.Set("Stripe-Signature", signed.Header)
	ref, err := provider.ParseWebhook(payload, h)
	if err != nil || ref != "b-7-1700000000000" {
		t.Errorf("ParseWebhook() = %q, %v", ref, err)
	}

	h.Set("Stripe-Signature", "t=1,v1=bad")
	if _, err := provider.ParseWebhook(payload, h); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Errorf("error = %v, want ErrInvalidSignature", err)
	}
}
