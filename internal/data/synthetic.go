package data

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/contactkeval/option-greeks/internal/daycount"
	"github.com/contactkeval/option-greeks/internal/greeks"
)

// synthDataProvider implements ChainProvider generating synthetic
// chains. Premiums are Black-76 prices under a parabolic volatility
// smile with light noise, so solving them back yields a believable IV
// surface.
type synthDataProvider struct {
	rng       *rand.Rand
	secondary ChainProvider
	clock     greeks.Clock
}

// NewSyntheticDataProvider constructs a synthetic chain provider. A
// non-zero seed makes the generated chains reproducible.
func NewSyntheticDataProvider(seed int64, secondary ChainProvider) *synthDataProvider {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &synthDataProvider{
		rng:       rand.New(rand.NewSource(seed)),
		secondary: secondary,
		clock:     greeks.SystemClock(),
	}
}

func (synthDataProv *synthDataProvider) Secondary() ChainProvider {
	return synthDataProv.secondary
}

// basePrice anchors the synthetic underlying so each index lands in a
// familiar range.
func basePrice(symbol string) float64 {
	switch symbol {
	case "BANKNIFTY":
		return 51000
	case "FINNIFTY":
		return 23500
	case "MIDCPNIFTY":
		return 12500
	default:
		return 24000
	}
}

func strikeInterval(symbol string) float64 {
	switch symbol {
	case "BANKNIFTY":
		return 100
	case "MIDCPNIFTY":
		return 25
	default:
		return 50
	}
}

// quantize snaps a model price to NSE's 0.05 tick.
func quantize(x float64) float64 {
	return math.Round(x/0.05) * 0.05
}

// sideQuote wraps a premium as a quote row. Very cheap contracts
// occasionally print no trades, which surfaces as a zero last price.
// The coin is drawn unconditionally to keep the rng stream identical
// across same-seed runs.
func (synthDataProv *synthDataProvider) sideQuote(price float64) *OptionQuote {
	stale := synthDataProv.rng.Float64() < 0.5
	if price < greeks.MinPremium && stale {
		price = 0
	}
	return &OptionQuote{
		LastPrice:    price,
		Change:       quantize(price * synthDataProv.rng.NormFloat64() * 0.05),
		Volume:       int64(synthDataProv.rng.Intn(50000)),
		OpenInterest: float64(synthDataProv.rng.Intn(200000)),
		OIChange:     float64(synthDataProv.rng.Intn(20000) - 10000),
	}
}

// GetChain fabricates one expiry's option chain around a noisy
// underlying level.
func (synthDataProv *synthDataProvider) GetChain(symbol string, expiry time.Time) (*ChainSnapshot, error) {
	loc := daycount.MarketLocation()
	now := synthDataProv.clock.Now().In(loc)

	tte := daycount.SessionClose(expiry, loc).Sub(now).Hours() / (24 * 365)
	if tte <= 0 {
		return nil, fmt.Errorf("expiry %s is in the past", expiry.Format(nseExpiryLayout))
	}

	base := basePrice(symbol)
	interval := strikeInterval(symbol)
	future := base * (1 + synthDataProv.rng.NormFloat64()*0.005)

	const width = 20 // strikes on each side of ATM
	center := math.Round(future/interval) * interval
	strikes := make([]float64, 0, 2*width+1)
	for i := -width; i <= width; i++ {
		strikes = append(strikes, center+float64(i)*interval)
	}

	// Anchor the smile at the listed strike nearest the future, not at
	// the future itself.
	atm := Closest(strikes, future)

	quotes := make([]StrikeQuote, 0, len(strikes))
	for _, k := range strikes {
		moneyness := (k - atm) / atm
		vol := 0.12 + 2.5*moneyness*moneyness
		vol *= 1 + synthDataProv.rng.NormFloat64()*0.02

		b := greeks.Black76{F: future, K: k, T: tte, R: 0.06}
		quotes = append(quotes, StrikeQuote{
			Strike: k,
			Call:   synthDataProv.sideQuote(quantize(b.Call(vol))),
			Put:    synthDataProv.sideQuote(quantize(b.Put(vol))),
		})
	}

	return &ChainSnapshot{
		Symbol:          symbol,
		Expiry:          expiry,
		UnderlyingValue: future,
		Timestamp:       now,
		Quotes:          quotes,
	}, nil
}

// GetExpiries fabricates the next few weekly expiries: Tuesdays, rolled
// back to the prior trading day when the exchange is closed.
func (synthDataProv *synthDataProvider) GetExpiries(symbol string) ([]time.Time, error) {
	loc := daycount.MarketLocation()
	return daycount.WeeklyExpiries(synthDataProv.clock.Now(), 6, time.Tuesday, daycount.DefaultCalendar(), loc), nil
}
