// Package data supplies option-chain market data to the pricing engine.
//
// Providers share one interface and chain through Secondary() so a
// primary source can fall back to another: the NSE provider serves live
// chains, the local CSV provider replays saved ones, and the synthetic
// provider fabricates arbitrage-consistent chains for demos and tests.
package data

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/contactkeval/option-greeks/internal/daycount"
)

// json handles all wire decoding and encoding in this package.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

type DateMatchType string

// ChainProvider supplies option-chain snapshots.
type ChainProvider interface {
	Secondary() ChainProvider
	GetChain(symbol string, expiry time.Time) (*ChainSnapshot, error)
	GetExpiries(symbol string) ([]time.Time, error)
}

const (
	MatchExact   DateMatchType = "exact"   // must match exactly
	MatchHigher  DateMatchType = "higher"  // next listed expiry after target
	MatchLower   DateMatchType = "lower"   // last listed expiry before target
	MatchNearest DateMatchType = "nearest" // closest listed expiry (default)
)

// OptionQuote is one side's market quote at a strike.
type OptionQuote struct {
	LastPrice    float64
	Change       float64
	Volume       int64
	OpenInterest float64
	OIChange     float64
}

// StrikeQuote pairs the call and put quotes at one strike. A nil side
// was not listed in the chain.
type StrikeQuote struct {
	Strike float64
	Call   *OptionQuote
	Put    *OptionQuote
}

// CallPremium returns the call side's usable premium: the last traded
// price when the side is listed and has actually traded. An untraded
// side quotes a zero LTP, which is no premium at all, so it comes back
// nil rather than as a number for the solver to chase.
func (q StrikeQuote) CallPremium() *float64 {
	return usablePremium(q.Call)
}

// PutPremium is the put-side counterpart of CallPremium.
func (q StrikeQuote) PutPremium() *float64 {
	return usablePremium(q.Put)
}

func usablePremium(side *OptionQuote) *float64 {
	if side == nil || side.LastPrice <= 0 {
		return nil
	}
	v := side.LastPrice
	return &v
}

// ChainSnapshot is one expiry's option chain at a point in time.
type ChainSnapshot struct {
	Symbol          string
	Expiry          time.Time
	UnderlyingValue float64
	Timestamp       time.Time
	Quotes          []StrikeQuote // ascending by strike
}

// Strikes returns the listed strikes in ascending order.
func (s *ChainSnapshot) Strikes() []float64 {
	out := make([]float64, 0, len(s.Quotes))
	for _, q := range s.Quotes {
		out = append(out, q.Strike)
	}
	return out
}

// Quote returns the quote at an exactly listed strike.
func (s *ChainSnapshot) Quote(strike float64) (StrikeQuote, bool) {
	i := sort.Search(len(s.Quotes), func(i int) bool {
		return s.Quotes[i].Strike >= strike
	})
	if i < len(s.Quotes) && s.Quotes[i].Strike == strike {
		return s.Quotes[i], true
	}
	return StrikeQuote{}, false
}

// GetChainDataProvider wires the provider chain for a source name. The
// CSV source keeps NSE as its secondary so a replayed directory can
// still fall through to the live market for a missing expiry.
func GetChainDataProvider(source, dir string) ChainProvider {
	switch strings.ToLower(source) {
	case "csv":
		return NewLocalCSVDataProvider(dir, NewNSEDataProvider(nil))
	case "synthetic":
		return NewSyntheticDataProvider(0, nil)
	default:
		return NewNSEDataProvider(nil)
	}
}

// --------------------------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------------------------

// InstrumentSymbol formats an NSE-style option identifier,
// e.g. NIFTY30DEC2524000CE.
func InstrumentSymbol(symbol string, expiry time.Time, strike float64, side string) string {
	s := "CE"
	if strings.HasPrefix(strings.ToLower(side), "p") {
		s = "PE"
	}
	return strings.ToUpper(symbol) +
		strings.ToUpper(expiry.Format("02Jan06")) +
		strconv.FormatFloat(strike, 'f', -1, 64) + s
}

// MatchExpiry resolves a requested date against the listed expiries.
func MatchExpiry(d time.Time, dates []time.Time, mode DateMatchType) time.Time {

	var (
		exact  time.Time
		lower  time.Time
		higher time.Time
	)

	// default to MatchNearest
	switch mode {
	case MatchExact, MatchHigher, MatchLower, MatchNearest:
		// ok
	default:
		mode = MatchNearest
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	for _, dt := range dates {
		if dt.Equal(d) {
			exact = dt
		}
		if dt.Before(d) {
			lower = dt // will keep last ≤ d
		}
		if dt.After(d) && higher.IsZero() {
			higher = dt
		}
	}

	switch mode {

	case MatchExact:
		return exact // may be zero → caller skips it

	case MatchLower:
		return lower // last expiry before d

	case MatchHigher:
		return higher // first expiry after d

	case MatchNearest:
		if !exact.IsZero() {
			return exact
		}
		// choose whichever is closer
		switch {
		case !lower.IsZero() && !higher.IsZero():
			if d.Sub(lower) <= higher.Sub(d) {
				return lower
			}
			return higher
		case !lower.IsZero():
			return lower
		case !higher.IsZero():
			return higher
		}
	}

	return time.Time{} // nothing found
}

// NextExpiry returns the first listed expiry still trading at now: a
// same-day contract counts until its 15:30 session close.
func NextExpiry(prov ChainProvider, symbol string, now time.Time) (time.Time, error) {
	dates, err := prov.GetExpiries(symbol)
	if err != nil {
		return time.Time{}, fmt.Errorf("list expiries: %w", err)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	loc := daycount.MarketLocation()
	at := now.In(loc)
	for _, d := range dates {
		if !daycount.SessionClose(d, loc).Before(at) {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("no live expiry listed for %s", symbol)
}

// Closest finds the closest float64 in a sorted slice to the target value using binary search (sort.Search).
func Closest(numList []float64, target float64) float64 {
	n := len(numList)
	if n == 0 {
		panic("empty list")
	}

	i := sort.Search(n, func(i int) bool {
		return numList[i] >= target
	})

	if i == 0 {
		return numList[0]
	}
	if i == n {
		return numList[n-1]
	}

	before := numList[i-1]
	after := numList[i]

	if math.Abs(before-target) < math.Abs(after-target) {
		return before
	}
	return after
}
