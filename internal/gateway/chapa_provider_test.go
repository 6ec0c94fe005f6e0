package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prohmpiriya/tourism-booking/internal/domain"
)

func newChapaTestServer(t *testing.T, handler http.HandlerFunc) (*ChapaProvider, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewChapaProvider(&ChapaProviderConfig{
		BaseURL:       srv.URL,
		SecretKey:     "CHASECK_TEST",
		WebhookSecret: "whsec",
	}), srv
}

func TestChapaProvider_InitCheckout(t *testing.T) {
	var got chapaInitRequest
	provider, _ := newChapaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/transaction/initialize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer CHASECK_TEST" {
			t.Errorf("missing bearer token")
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = w.Write([]byte(`{"status":"success","message":"Hosted Link","data":{"checkout_url":"https://checkout.chapa.co/abc"}}`))
	})

	checkout, err := provider.InitCheckout(context.Background(), &CheckoutRequest{
		Reference: "b-1-1700000000000",
		BookingID: "b-1",
		Amount:    150050,
		Currency:  "ETB",
		Email:     "abebe@example.com",
	})
	if err != nil {
		t.Fatalf("InitCheckout() error = %v", err)
	}
	if checkout.CheckoutURL != "https://checkout.chapa.co/abc" {
		t.Errorf("CheckoutURL = %q", checkout.CheckoutURL)
	}
	if got.Amount != "1500.50" || got.TxRef != "b-1-1700000000000" || got.FirstName != "abebe" {
		t.Errorf("unexpected request body %+v", got)
	}
}

func TestChapaProvider_InitCheckout_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusBadGateway, `oops`},
		{"rejected", http.StatusBadRequest, `{"status":"failed","message":"currency not supported"}`},
		{"no url", http.StatusOK, `{"status":"success","data":{}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, _ := newChapaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := provider.InitCheckout(context.Background(), &CheckoutRequest{Reference: "b-1-1", Amount: 100, Currency: "ETB"})
			if !errors.Is(err, domain.ErrProviderUnavailable) {
				t.Errorf("error = %v, want ErrProviderUnavailable", err)
			}
		})
	}
}

func TestChapaProvider_GetStatus(t *testing.T) {
	tests := []struct {
		name string
		body string
		want domain.PaymentStatus
	}{
		{"success", `{"status":"success","data":{"status":"success","tx_ref":"b-1-1","reference":"APabc"}}`, domain.PaymentStatusSucceeded},
		{"failed", `{"status":"success","data":{"status":"failed","tx_ref":"b-1-1"}}`, domain.PaymentStatusFailed},
		{"pending", `{"status":"success","data":{"status":"pending","tx_ref":"b-1-1"}}`, domain.PaymentStatusPending},
		{"unknown transaction", `{"status":"failed","message":"Invalid transaction or Transaction not found","data":null}`, domain.PaymentStatusPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, _ := newChapaTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/transaction/verify/b-1-1" {
					t.Errorf("unexpected path %s", r.URL.Path)
				}
				_, _ = w.Write([]byte(tt.body))
			})
			result, err := provider.GetStatus(context.Background(), "b-1-1", "")
			if err != nil {
				t.Fatalf("GetStatus() error = %v", err)
			}
			if result.Status != tt.want {
				t.Errorf("Status = %s, want %s", result.Status, tt.want)
			}
		})
	}
}

func TestChapaProvider_ParseWebhook(t *testing.T) {
	provider := NewChapaProvider(&ChapaProviderConfig{SecretKey: "k", WebhookSecret: "whsec"})
	payload := []byte(`{"event":"charge.success","data":{"tx_ref":"b-9-1700000000000","status":"success"}}`)

	mac := hmac.New(sha256.New, []byte("whsec"))
	mac.Write(payload)
	signature := hex.EncodeToString(mac.Sum(nil))

	t.Run("valid signature", func(t *testing.T) {
		h := http.Header{}
		h.Set("chapa-signature", signature)
		ref, err := provider.ParseWebhook(payload, h)
		if err != nil || ref != "b-9-1700000000000" {
			t.Errorf("ParseWebhook() = %q, %v", ref, err)
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		h := http.Header{}
		h.Set("x-chapa-signature", "deadbeef")
		if _, err := provider.ParseWebhook(payload, h); !errors.Is(err, domain.ErrInvalidSignature) {
			t.Errorf("error = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("missing signature", func(t *testing.T) {
		if _, err := provider.ParseWebhook(payload, http.Header{}); !errors.Is(err, domain.ErrInvalidSignature) {
			t.Errorf("error = %v, want ErrInvalidSignature", err)
		}
	})

	t.Run("no secret configured", func(t *testing.T) {
		open := NewChapaProvider(&ChapaProviderConfig{SecretKey: "k"})
		ref, err := open.ParseWebhook([]byte(`{"tx_ref":"b-2-5"}`), http.Header{})
		if err != nil || ref != "b-2-5" {
			t.Errorf("ParseWebhook() = %q, %v", ref, err)
		}
	})
}

func TestFormatAmount(t *testing.T) {
	tests := map[int64]string{0: "0.00", 5: "0.05", 150050: "1500.50", -120: "-1.20"}
	for in, want := range tests {
		if got := FormatAmount(in); got != want {
			t.Errorf("FormatAmount(%d) = %q, want %q", in, got, want)
		}
	}
}
