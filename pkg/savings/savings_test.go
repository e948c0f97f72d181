package savings

import (
	"context"
	"testing"

	"github.com/solarstation/livedash/pkg/metrics"
)

func TestProviders(t *testing.T) {
	tests := []struct {
		name string
		p    Provider
		want metrics.Savings
	}{
		{name: "placeholder", p: Placeholder, want: metrics.Savings{Amount: 12, Currency: "CZK", Valid: true}},
		{name: "custom", p: Static{Amount: 3.5, Currency: "EUR"}, want: metrics.Savings{Amount: 3.5, Currency: "EUR", Valid: true}},
		{name: "none", p: None{}, want: metrics.Savings{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.p.Savings(context.Background(), metrics.Metrics{})
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}
