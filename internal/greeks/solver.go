package greeks

import (
	"errors"
	"math"
)

// IV search bounds: 0.1% to 500% annualized volatility.
const (
	ivSearchLo      = 0.001
	ivSearchHi      = 5.0
	ivSearchTol     = 1e-12
	ivSearchMaxIter = 100
)

var (
	errNoBracket      = errors.New("root not bracketed")
	errNonConvergence = errors.New("max iterations exceeded")
)

// SolveImpliedVol solves price(sigma) = premium for sigma over the
// bounded search interval. On any failure (the premium lies outside
// what the bounds can produce, or the iteration budget runs out) it
// returns IVLowerBound instead of an error: one unresolvable strike must
// never abort a chain-wide pricing pass, and the near-zero sentinel
// tells downstream consumers the premium could not be matched. Solved
// values at or below the floor are clamped up to exactly IVLowerBound.
func SolveImpliedVol(premium float64, price func(sigma float64) float64) float64 {
	iv, err := brent(func(sigma float64) float64 {
		return premium - price(sigma)
	}, ivSearchLo, ivSearchHi, ivSearchTol, ivSearchMaxIter)
	if err != nil {
		return IVLowerBound
	}
	if iv <= IVLowerBound {
		return IVLowerBound
	}
	return iv
}

// brent finds a root of f in [lo, hi] using Brent's method: inverse
// quadratic interpolation where the bracket cooperates, secant or
// bisection otherwise. f(lo) and f(hi) must straddle zero.
func brent(f func(float64) float64, lo, hi, tol float64, maxIter int) (float64, error) {
	const eps = 2.220446049250313e-16 // float64 machine epsilon

	a, b := lo, hi
	fa, fb := f(a), f(b)

	if fa == 0 {
		return a, nil
	}
	if fb == 0 {
		return b, nil
	}
	if math.IsNaN(fa) || math.IsNaN(fb) || (fa > 0) == (fb > 0) {
		return 0, errNoBracket
	}

	c, fc := a, fa
	d := b - a
	e := d

	for i := 0; i < maxIter; i++ {
		if math.Abs(fc) < math.Abs(fb) {
			a, b, c = b, c, b
			fa, fb, fc = fb, fc, fb
		}

		tol1 := 2*eps*math.Abs(b) + 0.5*tol
		xm := 0.5 * (c - b)
		if math.Abs(xm) <= tol1 || fb == 0 {
			return b, nil
		}

		if math.Abs(e) >= tol1 && math.Abs(fa) > math.Abs(fb) {
			// attempt inverse quadratic interpolation
			s := fb / fa
			var p, q float64
			if a == c {
				p = 2 * xm * s
				q = 1 - s
			} else {
				q = fa / fc
				r := fb / fc
				p = s * (2*xm*q*(q-r) - (b-a)*(r-1))
				q = (q - 1) * (r - 1) * (s - 1)
			}
			if p > 0 {
				q = -q
			}
			p = math.Abs(p)

			min1 := 3*xm*q - math.Abs(tol1*q)
			min2 := math.Abs(e * q)
			if 2*p < math.Min(min1, min2) {
				// interpolation accepted
				e = d
				d = p / q
			} else {
				// fall back to bisection
				d = xm
				e = d
			}
		} else {
			d = xm
			e = d
		}

		a, fa = b, fb
		if math.Abs(d) > tol1 {
			b += d
		} else {
			b += math.Copysign(tol1, xm)
		}
		fb = f(b)

		if (fb > 0) == (fc > 0) {
			c, fc = a, fa
			d = b - a
			e = d
		}
	}

	return 0, errNonConvergence
}
