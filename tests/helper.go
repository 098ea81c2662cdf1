// Package tests runs the end-to-end scenarios: fabricate or replay a
// chain, price it, and check the written reports.
package tests

import (
	"testing"
	"time"

	"github.com/contactkeval/option-greeks/internal/chain"
	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/daycount"
)

// Seeded so every run fabricates the same quotes.
const seed = 42

func syntheticProvider() data.ChainProvider {
	return data.NewSyntheticDataProvider(seed, nil)
}

// farExpiry picks the furthest listed contract so even the wings of
// the fabricated chain carry usable premiums.
func farExpiry(t *testing.T, prov data.ChainProvider) time.Time {
	t.Helper()

	expiries, err := prov.GetExpiries("NIFTY")
	if err != nil {
		t.Fatalf("list expiries: %v", err)
	}
	return expiries[len(expiries)-1]
}

func chainConfig(expiry time.Time, valuation *time.Time) *chain.Config {
	return &chain.Config{
		Symbol:        "NIFTY",
		Expiry:        expiry,
		Convention:    daycount.TradingDays,
		RatePercent:   6,
		ValuationTime: valuation,
	}
}

func fptr(v float64) *float64 { return &v }
