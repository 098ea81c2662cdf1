package chain

import (
	"math"

	"github.com/montanaflynn/stats"

	"github.com/contactkeval/option-greeks/internal/greeks"
)

// Summary aggregates the implied-vol surface of a priced chain.
type Summary struct {
	Strikes     int      `json:"strikes"`
	Solved      int      `json:"solved"` // rows that produced a represented IV
	MeanIV      *float64 `json:"mean_iv,omitempty"`
	MedianIV    *float64 `json:"median_iv,omitempty"`
	StdevIV     *float64 `json:"stdev_iv,omitempty"`
	MinIV       *float64 `json:"min_iv,omitempty"`
	MaxIV       *float64 `json:"max_iv,omitempty"`
	AtmStrike   float64  `json:"atm_strike"`
	FuturePrice float64  `json:"future_price"`
}

// Summarize computes chain-level stats over priced rows. Rows without a
// represented IV count toward Strikes but not the moments.
func Summarize(rows []greeks.Report, future, atm float64) *Summary {
	ivs := make([]float64, 0, len(rows))
	for _, r := range rows {
		if r.ImplVol != nil {
			ivs = append(ivs, *r.ImplVol)
		}
	}

	s := &Summary{
		Strikes:     len(rows),
		Solved:      len(ivs),
		AtmStrike:   atm,
		FuturePrice: future,
	}
	if len(ivs) == 0 {
		return s
	}

	if v, err := stats.Mean(ivs); err == nil {
		s.MeanIV = &v
	}
	if v, err := stats.Median(ivs); err == nil {
		s.MedianIV = &v
	}
	// Sample deviation needs at least two observations; the library
	// yields NaN rather than an error below that.
	if len(ivs) > 1 {
		if v, err := stats.StandardDeviationSample(ivs); err == nil {
			s.StdevIV = &v
		}
	}
	if v, err := stats.Min(ivs); err == nil {
		s.MinIV = &v
	}
	if v, err := stats.Max(ivs); err == nil {
		s.MaxIV = &v
	}
	return s
}

// RealizedVol estimates annualized volatility from a close series using
// daily log returns, in percent so it reads against the implied numbers.
func RealizedVol(closes []float64) float64 {
	if len(closes) < 3 {
		return 0 // sample deviation needs two returns
	}

	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		rets = append(rets, math.Log(closes[i]/closes[i-1]))
	}

	sd, err := stats.StandardDeviationSample(rets)
	if err != nil {
		return 0
	}
	return sd * math.Sqrt(252) * 100
}
