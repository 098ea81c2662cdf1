package greeks

import "math"

// FindAtmStrike returns the listed strike nearest the future price.
// Ties keep the earlier entry, so callers that pass the ladder in
// ascending order get the lower strike. An empty ladder returns 0.
func FindAtmStrike(strikes []float64, futurePrice float64) float64 {
	if len(strikes) == 0 {
		return 0
	}
	best := strikes[0]
	bestDist := math.Abs(strikes[0] - futurePrice)
	for _, k := range strikes[1:] {
		if d := math.Abs(k - futurePrice); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

// floorPremium clamps a quote at the minimum tradable tick.
func floorPremium(p float64) float64 {
	return math.Max(p, MinPremium)
}

// floorPtr floors an optional quote, preserving absence.
func floorPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := floorPremium(*p)
	return &v
}

func copyPtr(p *float64) *float64 {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
