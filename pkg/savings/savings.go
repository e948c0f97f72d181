// Package savings provides the money-saved figure shown on the dashboard.
// No real tariff integration exists yet; Static stands in for one.
package savings

import (
	"context"

	"github.com/solarstation/livedash/pkg/metrics"
)

// Provider returns today's savings for the given metrics.
type Provider interface {
	Savings(ctx context.Context, m metrics.Metrics) (metrics.Savings, error)
}

// Static always reports the same amount.
type Static struct {
	Amount   float64
	Currency string
}

// Placeholder is the figure the dashboard has always shown.
var Placeholder = Static{Amount: 12, Currency: "CZK"}

func (s Static) Savings(_ context.Context, _ metrics.Metrics) (metrics.Savings, error) {
	return metrics.Savings{Amount: s.Amount, Currency: s.Currency, Valid: true}, nil
}

// None reports no savings figure.
type None struct{}

func (None) Savings(context.Context, metrics.Metrics) (metrics.Savings, error) {
	return metrics.Savings{}, nil
}
