package formulas

// KellyFraction computes the Kelly-optimal bet fraction from a strategy's
// historical win rate and average win/loss ratio:
//
//	f* = winRate - (1-winRate)/payoffRatio
//
// Returns 0 for degenerate inputs (payoffRatio <= 0) rather than a
// negative or infinite fraction.
func KellyFraction(winRate, payoffRatio float64) float64 {
	if payoffRatio <= 0 {
		return 0
	}
	f := winRate - (1-winRate)/payoffRatio
	if f < 0 {
		return 0
	}
	return round3(f)
}

// PositionSize applies a fractional-Kelly scalar (the risk manager uses a
// half-Kelly by default) and clamps the result to the configured
// max-capital-per-trade percentage.
func PositionSize(equity, winRate, avgWin, avgLoss, kellyScalar, maxCapitalPct float64) float64 {
	if avgLoss == 0 {
		return 0
	}
	payoffRatio := avgWin / avgLoss

	f := KellyFraction(winRate, payoffRatio) * kellyScalar
	f = clamp(f, 0, maxCapitalPct)

	return round3(equity * f)
}

// SharesForPosition converts a target capital allocation and a per-share
// stop distance into a whole-share quantity, the final step before an
// order is sized.
func SharesForPosition(positionCapital, entryPrice, stopPrice, riskPerTradePct, equity float64) int {
	if entryPrice <= 0 || stopPrice >= entryPrice {
		return 0
	}

	riskPerShare := entryPrice - stopPrice
	maxRiskCapital := equity * riskPerTradePct
	riskBoundShares := int(maxRiskCapital / riskPerShare)

	capitalBoundShares := int(positionCapital / entryPrice)
	if riskBoundShares < capitalBoundShares {
		return riskBoundShares
	}
	return capitalBoundShares
}
