package greeks

import (
	"math"
)

// IVLowerBound is the volatility floor shared by the pricer and the
// solver. Solved volatilities at or below it are clamped up to exactly
// this value so the Greeks formulas stay division-safe, and it doubles
// as the "unresolvable" sentinel when the solver cannot match a premium.
const IVLowerBound = 1e-11

// Zelen-Severo rational approximation coefficients for the standard
// normal CDF (Abramowitz & Stegun 26.2.17), accurate to about 1e-7.
const (
	cndA1    = 0.31938153
	cndA2    = -0.356563782
	cndA3    = 1.781477937
	cndA4    = -1.821255978
	cndA5    = 1.330274429
	cndGamma = 0.2316419
	rsqrt2Pi = 0.39894228040143267793994605993438
)

// CND computes the cumulative distribution function of the standard
// normal distribution using the Zelen-Severo closed-form approximation.
// Chosen over an exact special-function call for speed; the ~1e-7 error
// is well below quoting precision.
func CND(d float64) float64 {
	k := 1.0 / (1.0 + cndGamma*math.Abs(d))
	approx := rsqrt2Pi *
		math.Exp(-0.5*d*d) *
		(k * (cndA1 + k*(cndA2+k*(cndA3+k*(cndA4+k*cndA5)))))
	if d > 0 {
		return 1.0 - approx
	}
	return approx
}

// normPDF calculates the probability density function of the standard
// normal distribution at x.
func normPDF(x float64) float64 {
	return rsqrt2Pi * math.Exp(-0.5*x*x)
}

// Black76 prices European options on a future and their sensitivities.
// The future price stands in for spot carry: there is no dividend or
// cost-of-carry term, and R discounts only.
type Black76 struct {
	F float64 // future price
	K float64 // strike price
	T float64 // time to expiry in years
	R float64 // annualized risk-free rate, as a fraction, discounting only
}

// d1 computes the Black-76 d1 term:
//
//	d1 = [ln(F/K) + (sigma^2/2)*T] / (sigma*sqrt(T))
//
// Below the volatility floor the division degenerates, so d1 collapses
// to +Inf when the future trades above the strike and -Inf otherwise,
// preserving the moneyness direction through the CDF.
func (b Black76) d1(sigma float64) float64 {
	if sigma > IVLowerBound {
		return (math.Log(b.F/b.K) + (sigma*sigma/2)*b.T) / (sigma * math.Sqrt(b.T))
	}
	if b.F > b.K {
		return math.Inf(1)
	}
	return math.Inf(-1)
}

// d2 computes the Black-76 d2 term: d2 = d1 - sigma*sqrt(T).
func (b Black76) d2(sigma float64) float64 {
	return b.d1(sigma) - sigma*math.Sqrt(b.T)
}

func (b Black76) discount() float64 {
	return math.Exp(-b.R * b.T)
}

// Call prices a European call on the future:
//
//	Call = e^{-rT} * [F*N(d1) - K*N(d2)]
func (b Black76) Call(sigma float64) float64 {
	return b.discount() * (b.F*CND(b.d1(sigma)) - b.K*CND(b.d2(sigma)))
}

// Put prices a European put on the future:
//
//	Put = e^{-rT} * [K*N(-d2) - F*N(-d1)]
//
// The put is priced directly rather than derived from the call via
// parity, so each side stays independently checkable.
func (b Black76) Put(sigma float64) float64 {
	return b.discount() * (b.K*CND(-b.d2(sigma)) - b.F*CND(-b.d1(sigma)))
}

// DeltaCall returns e^{-rT} * N(d1).
func (b Black76) DeltaCall(sigma float64) float64 {
	return b.discount() * CND(b.d1(sigma))
}

// DeltaPut returns e^{-rT} * [N(d1) - 1], which equals DeltaCall - e^{-rT}.
func (b Black76) DeltaPut(sigma float64) float64 {
	return b.discount() * (CND(b.d1(sigma)) - 1)
}

// Gamma returns e^{-rT} * pdf(d1) / (F*sigma*sqrt(T)), or exactly 0 when
// sigma sits at the volatility floor.
func (b Black76) Gamma(sigma float64) float64 {
	if sigma > IVLowerBound {
		return b.discount() * normPDF(b.d1(sigma)) / (b.F * sigma * math.Sqrt(b.T))
	}
	return 0
}

// Vega returns e^{-rT} * F * sqrt(T) * pdf(d1), the price change per
// unit of volatility.
func (b Black76) Vega(sigma float64) float64 {
	return b.discount() * normPDF(b.d1(sigma)) * b.F * math.Sqrt(b.T)
}

// ThetaCall combines the shared decay term with the rate carry on the
// call price:
//
//	-e^{-rT} * F*sigma*pdf(d1) / (2*sqrt(T)) - r*Call
func (b Black76) ThetaCall(sigma float64) float64 {
	return -b.discount()*(b.F*sigma*normPDF(b.d1(sigma))/(2*math.Sqrt(b.T))) - b.R*b.Call(sigma)
}

// ThetaPut is the same decay term with the rate carry on the put price.
func (b Black76) ThetaPut(sigma float64) float64 {
	return -b.discount()*(b.F*sigma*normPDF(b.d1(sigma))/(2*math.Sqrt(b.T))) + b.R*b.Put(sigma)
}

// RhoCall returns -T * Call: the price sensitivity to a rate move scaled
// by time, not divided by the rate.
func (b Black76) RhoCall(sigma float64) float64 {
	return -b.T * b.Call(sigma)
}

// RhoPut returns -T * Put.
func (b Black76) RhoPut(sigma float64) float64 {
	return -b.T * b.Put(sigma)
}
