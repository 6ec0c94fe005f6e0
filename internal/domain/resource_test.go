package domain

import (
	"errors"
	"testing"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		name     string
		resource Resource
		qty      int
		want     Quote
	}{
		{
			name:     "no tax or fees defaults currency",
			resource: Resource{UnitPrice: 50000},
			qty:      3,
			want:     Quote{SubTotal: 150000, Total: 150000, Currency: "ETB"},
		},
		{
			name:     "tax in basis points truncates",
			resource: Resource{UnitPrice: 999, TaxRateBps: 1500, Currency: "USD"},
			qty:      1,
			want:     Quote{SubTotal: 999, Tax: 149, Total: 1148, Currency: "USD"},
		},
		{
			name:     "fees per unit",
			resource: Resource{UnitPrice: 1000, TaxRateBps: 1000, FeePerUnit: 25, Currency: "ETB"},
			qty:      4,
			want:     Quote{SubTotal: 4000, Tax: 400, Fees: 100, Total: 4500, Currency: "ETB"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Price(&tt.resource, tt.qty)
			if err != nil {
				t.Fatalf("Price() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Price() = %+v, want %+v", got, tt.want)
			}
		})
	}

	if _, err := Price(&Resource{UnitPrice: 1}, 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Errorf("expected ErrInvalidQuantity, got %v", err)
	}
}
