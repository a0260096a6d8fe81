package formulas

import (
	"math"
	"sort"
)

// CalculateCVaR calculates Conditional Value at Risk (CVaR) at the specified confidence level.
// CVaR is the expected loss given that the loss exceeds the VaR threshold.
//
// Args:
//   - returns: Historical returns (can be negative for losses)
//   - confidence: Confidence level (e.g., 0.95 for 95%)
//
// Returns:
//   - CVaR value (negative for losses, positive for gains in tail)
func CalculateCVaR(returns []float64, confidence float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}

	if len(returns) == 1 {
		return returns[0]
	}

	// Sort returns in ascending order (worst first)
	sorted := make([]float64, len(returns))
	copy(sorted, returns)
	sort.Float64s(sorted)

	// Calculate VaR threshold (percentile)
	// For 95% confidence, we want the worst 5% of returns
	tailProbability := 1.0 - confidence
	tailCount := int(math.Ceil(float64(len(sorted)) * tailProbability))

	if tailCount == 0 {
		tailCount = 1
	}
	if tailCount > len(sorted) {
		tailCount = len(sorted)
	}

	// CVaR is the average of returns in the tail
	tailReturns := sorted[:tailCount]
	sum := 0.0
	for _, r := range tailReturns {
		sum += r
	}

	return sum / float64(len(tailReturns))
}
