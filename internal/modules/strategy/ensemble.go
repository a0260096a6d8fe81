package strategy

import "github.com/aristath/aegis-kr/internal/config"

// Ensemble reuses the AEGIS regime weight table's Technical lane for
// TrendFollowing, its Supply lane for MeanReversion and its Market lane
// for Swing, since
// the backtester has no disclosure/news/consensus signals of its own —
// only the three price-derived strategies.
type Ensemble struct {
	Strategies []Strategy
	Weights    config.RegimeWeights
}

func NewEnsemble(weights config.RegimeWeights) *Ensemble {
	return &Ensemble{
		Strategies: []Strategy{NewTrendFollowing(), NewMeanReversion(), NewSwing()},
		Weights:    weights,
	}
}

// Combine produces the ensemble's weighted signal over w, normalised to
// [-1,+1] for the backtester's position-direction decision.
func (e *Ensemble) Combine(w Window) float64 {
	var total, weightSum float64
	for _, s := range e.Strategies {
		weight := e.weightFor(s.Name())
		total += weight * (s.Signal(w) / 2)
		weightSum += weight
	}
	if weightSum == 0 {
		return 0
	}
	result := total / weightSum
	if result > 1 {
		result = 1
	}
	if result < -1 {
		result = -1
	}
	return result
}

func (e *Ensemble) weightFor(name string) float64 {
	switch name {
	case "trend_following":
		return e.Weights.Technical
	case "mean_reversion":
		return e.Weights.Supply
	case "swing":
		return e.Weights.Market
	default:
		return 0
	}
}
