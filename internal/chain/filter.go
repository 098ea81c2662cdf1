package chain

import (
	"errors"
	"fmt"
	"math"

	"github.com/Knetic/govaluate"

	"github.com/contactkeval/option-greeks/internal/greeks"
)

// ErrInvalidFilter marks a filter expression that cannot be parsed or
// does not evaluate to a boolean.
var ErrInvalidFilter = errors.New("invalid filter expression")

// FilterRows keeps the rows an expression accepts. Fields appear under
// their report JSON names (strike, impl_vol, call_delta, ...); values a
// degraded row lacks evaluate as NaN, so numeric predicates drop such
// rows naturally.
func FilterRows(rows []greeks.Report, expr string) ([]greeks.Report, error) {
	ex, err := govaluate.NewEvaluableExpression(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %q: %v", ErrInvalidFilter, expr, err)
	}

	out := make([]greeks.Report, 0, len(rows))
	for _, r := range rows {
		res, err := ex.Evaluate(rowParams(r))
		if err != nil {
			return nil, fmt.Errorf("%w: evaluate %q at strike %v: %v", ErrInvalidFilter, expr, r.Strike, err)
		}

		keep, ok := res.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %q must evaluate to a boolean", ErrInvalidFilter, expr)
		}
		if keep {
			out = append(out, r)
		}
	}
	return out, nil
}

func rowParams(r greeks.Report) map[string]interface{} {
	return map[string]interface{}{
		"strike":       r.Strike,
		"future_price": r.FuturePrice,
		"is_otm_call":  r.IsOTMCall,
		"impl_vol":     orNaN(r.ImplVol),
		"call_iv":      orNaN(r.CallIV),
		"put_iv":       orNaN(r.PutIV),
		"call_delta":   orNaN(r.CallDelta),
		"put_delta":    orNaN(r.PutDelta),
		"gamma":        orNaN(r.Gamma),
		"theta":        orNaN(r.Theta),
		"vega":         orNaN(r.Vega),
		"rho_call":     orNaN(r.RhoCall),
		"rho_put":      orNaN(r.RhoPut),
	}
}

func orNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
