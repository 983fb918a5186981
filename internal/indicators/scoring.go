package indicators

import "math"

// DivergenceFeatures carries the raw measurements the signal quality
// score needs: histogram magnitude at the second/third segment, price
// extremes at those same segments, and their bar indices (for the
// symmetry penalty).
type DivergenceFeatures struct {
	Hist2, Hist3   float64
	Price2, Price3 float64
	I1, I2, I3     int
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}

// DivergenceStrength scores the divergence structure 0..60: up to 30 for
// how much the third histogram segment has shortened versus the second
// (>=15% shorten is full marks), up to 20 for how far the price extreme
// moved relative to the second segment (>=1% is full marks), and up to 10
// for how symmetric the three segments are in time. This does not change
// the entry decision — it is purely an observability/backtest-bucketing
// score.
func DivergenceStrength(feat DivergenceFeatures) float64 {
	h2 := math.Abs(feat.Hist2)
	h3 := math.Abs(feat.Hist3)
	shorten := 0.0
	if h2 > 1e-12 {
		shorten = (h2 - h3) / h2
	}
	shortenScore := clamp(shorten/0.15, 0, 1) * 30.0

	pd := math.Abs(feat.Price3 - feat.Price2)
	base := math.Abs(feat.Price2)
	if base <= 1e-12 {
		base = 1.0
	}
	rel := pd / base
	priceScore := clamp(rel/0.01, 0, 1) * 20.0

	d12 := math.Abs(float64(feat.I2 - feat.I1))
	d23 := math.Abs(float64(feat.I3 - feat.I2))
	sym := 1.0
	if math.Min(d12, d23) > 0 {
		ratio := math.Max(d12, d23) / math.Min(d12, d23)
		sym = clamp((4.0-ratio)/2.0, 0, 1)
	}
	symScore := sym * 10.0

	return shortenScore + priceScore + symScore
}

// DefaultMinConfirmations is the minimum confirmation hit count the
// confluence gate requires before a signal is considered confirmed.
const DefaultMinConfirmations = 2

// ConfluenceStrength scores confirmation hit count 0..40, scaling up once
// hitCount reaches minConfirmations: exactly at the threshold scores 20,
// one above scores 30, two or more above scores 40.
func ConfluenceStrength(hitCount, minConfirmations int) float64 {
	if hitCount <= 0 {
		return 0
	}
	base := hitCount - minConfirmations + 1
	switch {
	case base <= 0:
		return 10
	case base == 1:
		return 20
	case base == 2:
		return 30
	default:
		return 40
	}
}

// SignalQualityScore combines divergence and confluence strength into the
// 0..100 observability score attached to a signal.
func SignalQualityScore(divergenceScore, confluenceScore float64) float64 {
	return clamp(divergenceScore+confluenceScore, 0, 100)
}
