package greeks

import "github.com/shopspring/decimal"

// Query carries the per-strike overrides for one pricing call. Supplied
// fields persist on the context as its last-set values; nil fields reuse
// whatever was set before. Supplied premiums are floored at MinPremium.
type Query struct {
	Strike      *float64
	CallPremium *float64
	PutPremium  *float64

	// UseAverageIV averages the call and put IVs for the Greeks instead
	// of taking the OTM side's. The zero value keeps the default policy:
	// the OTM option is the more liquid quote, so its IV represents the
	// strike.
	UseAverageIV bool
}

// Report is the per-strike output row. Pointer fields are absent when
// the side they need had no usable premium. Figures are rounded here
// and only here: 2 decimals for prices and percentage IVs, 4 for
// deltas, theta, vega and rho, 6 for gamma.
type Report struct {
	Strike      float64 `json:"strike" csv:"strike"`
	FuturePrice float64 `json:"future_price" csv:"future_price"`
	IsOTMCall   bool    `json:"is_otm_call" csv:"is_otm_call"`

	ImplVol *float64 `json:"impl_vol" csv:"impl_vol"`
	CallIV  *float64 `json:"call_iv" csv:"call_iv"`
	PutIV   *float64 `json:"put_iv" csv:"put_iv"`

	CallDelta *float64 `json:"call_delta" csv:"call_delta"`
	PutDelta  *float64 `json:"put_delta" csv:"put_delta"`
	Gamma     *float64 `json:"gamma" csv:"gamma"`
	Theta     *float64 `json:"theta" csv:"theta"`
	Vega      *float64 `json:"vega" csv:"vega"`
	RhoCall   *float64 `json:"rho_call" csv:"rho_call"`
	RhoPut    *float64 `json:"rho_put" csv:"rho_put"`
}

// ImpliedVolAndGreeks prices one strike and assembles its report row.
//
// The flow mirrors the trading-day workflow: apply the overrides,
// refresh the clock, solve call and put IV independently from their
// premiums, pick the representative IV by moneyness against the future
// (strike >= future means the call side is OTM), then derive the Greeks
// from that single IV. Rho is the exception: each side's rho uses its
// own solved IV.
//
// Degradation never becomes an error. A side with no usable premium
// reports absent IV and rho for that side; when only one side has a
// premium its IV represents the strike. A strike that was never set, or
// a non-positive override, yields a row with every solved field absent.
// Stale or impossible premiums surface as IVLowerBound-based figures
// from the solver. One bad strike must never abort a chain pass.
func (c *ValuationContext) ImpliedVolAndGreeks(q Query) Report {
	strike := c.strike
	badStrike := false
	if q.Strike != nil {
		if *q.Strike > 0 {
			c.strike = *q.Strike
		} else {
			badStrike = true
		}
		strike = *q.Strike
	}
	if q.CallPremium != nil {
		c.call = floorPtr(q.CallPremium)
	}
	if q.PutPremium != nil {
		c.put = floorPtr(q.PutPremium)
	}
	c.refresh()

	rpt := Report{
		Strike:      strike,
		FuturePrice: roundTo(c.futurePrice, 2),
		IsOTMCall:   strike >= c.futurePrice,
	}
	if badStrike || c.strike <= 0 {
		return rpt
	}

	p := c.pricer()
	hasCall, hasPut := c.call != nil, c.put != nil
	if !hasCall && !hasPut {
		return rpt
	}

	var callIV, putIV float64
	if hasCall {
		callIV = SolveImpliedVol(*c.call, p.Call)
	}
	if hasPut {
		putIV = SolveImpliedVol(*c.put, p.Put)
	}

	var strikeIV float64
	switch {
	case hasCall && hasPut && q.UseAverageIV:
		strikeIV = (callIV + putIV) / 2
	case hasCall && hasPut && rpt.IsOTMCall:
		strikeIV = callIV
	case hasCall && hasPut:
		strikeIV = putIV
	case hasCall:
		strikeIV = callIV
	default:
		strikeIV = putIV
	}

	rpt.ImplVol = roundPtr(strikeIV*100, 2)
	if hasCall {
		rpt.CallIV = roundPtr(callIV*100, 2)
		rpt.RhoCall = roundPtr(p.RhoCall(callIV)/100, 4)
	}
	if hasPut {
		rpt.PutIV = roundPtr(putIV*100, 2)
		rpt.RhoPut = roundPtr(p.RhoPut(putIV)/100, 4)
	}

	delta := p.DeltaCall(strikeIV)
	rpt.CallDelta = roundPtr(delta, 4)
	rpt.PutDelta = roundPtr(delta-p.discount(), 4)
	rpt.Theta = roundPtr(p.ThetaPut(strikeIV)/365, 4)
	rpt.Vega = roundPtr(p.Vega(strikeIV)/100, 4)
	rpt.Gamma = roundPtr(p.Gamma(strikeIV), 6)
	return rpt
}

// roundTo rounds half away from zero at the given number of decimals.
// Reports are the only place rounding happens; intermediate math stays
// at full precision.
func roundTo(x float64, places int32) float64 {
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

func roundPtr(x float64, places int32) *float64 {
	v := roundTo(x, places)
	return &v
}
