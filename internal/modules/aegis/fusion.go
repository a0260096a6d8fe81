package aegis

import (
	"context"
	"fmt"

	"github.com/aristath/aegis-kr/internal/config"
)

// Decision is the fusion engine's final call for a ticker.
type Decision string

const (
	DecisionStrongBuy   Decision = "STRONG_BUY"
	DecisionBuy         Decision = "BUY"
	DecisionHold        Decision = "HOLD"
	DecisionSell        Decision = "SELL"
	DecisionStrongSell  Decision = "STRONG_SELL"
	DecisionForceSell   Decision = "FORCE_SELL"
	DecisionBlockBuy    Decision = "BLOCK_BUY"
	DecisionBlockNewBuy Decision = "BLOCK_NEW_BUY"
)

// FusionResult is the combined output the recommendation pipeline persists.
type FusionResult struct {
	Decision   Decision
	FinalScore float64 // [-1,+1]
	Regime     Regime
	Confidence float64
	Analysers  map[string]AnalyserResult
	VetoReason string
}

// Engine combines seven AnalyserResults under a RegimeReading's weights
// and applies veto rules before mapping the weighted score to a Decision.
type Engine struct {
	Regime *RegimeClassifier
	Config config.RegimeConfig
	// MinFiveDayTradingValue blocks new buys below this 5-day average
	// traded-value floor (liquidity veto).
	MinFiveDayTradingValue float64
}

func NewEngine(regime *RegimeClassifier, cfg config.RegimeConfig, minFiveDayTradingValue float64) *Engine {
	return &Engine{Regime: regime, Config: cfg, MinFiveDayTradingValue: minFiveDayTradingValue}
}

// Fuse combines per-analyser results into one decision. fiveDayAvgTradingValue
// is passed in by the caller (already computed from OHLCV) rather than
// recomputed here, since the fusion engine has no ticker-level DB access
// of its own.
func (e *Engine) Fuse(ctx context.Context, reading RegimeReading, results map[string]AnalyserResult, fiveDayAvgTradingValue float64) (FusionResult, error) {
	weights, ok := e.Config.Weights[string(reading.Regime)]
	if !ok {
		return FusionResult{}, fmt.Errorf("fusion: no weight table for regime %s", reading.Regime)
	}

	weighted := map[string]float64{
		"technical":      weights.Technical,
		"disclosure":     weights.Disclosure,
		"supply_demand":  weights.Supply,
		"fundamental":    weights.Fundamental,
		"market_context": weights.Market,
		"news":           weights.News,
		"consensus":      weights.Consensus,
	}

	var finalScore float64
	for name, weight := range weighted {
		result, ok := results[name]
		if !ok {
			continue
		}
		finalScore += weight * normaliseScore(result.Score)
	}
	if finalScore > 1 {
		finalScore = 1
	}
	if finalScore < -1 {
		finalScore = -1
	}

	fused := FusionResult{
		FinalScore: finalScore,
		Regime:     reading.Regime,
		Confidence: reading.Confidence,
		Analysers:  results,
		Decision:   decisionFromScore(finalScore),
	}

	if veto, reason := checkVetoes(results, reading, fiveDayAvgTradingValue, e.MinFiveDayTradingValue); veto != "" {
		fused.Decision = veto
		fused.VetoReason = reason
	}

	return fused, nil
}

// normaliseScore maps an analyser's [-2,+2] score onto [-1,+1].
func normaliseScore(score float64) float64 {
	n := score / 2
	if n > 1 {
		return 1
	}
	if n < -1 {
		return -1
	}
	return n
}

func decisionFromScore(score float64) Decision {
	switch {
	case score >= 0.66:
		return DecisionStrongBuy
	case score >= 0.22:
		return DecisionBuy
	case score >= -0.22:
		return DecisionHold
	case score >= -0.66:
		return DecisionSell
	default:
		return DecisionStrongSell
	}
}

// checkVetoes evaluates the veto rules in their documented precedence
// order: disclosure trading_halt, fundamental danger grade, strong-bearish
// market mood, then the 5-day liquidity floor. The first matching veto
// wins; later ones never override it.
func checkVetoes(results map[string]AnalyserResult, reading RegimeReading, fiveDayAvgTradingValue, minFiveDayTradingValue float64) (Decision, string) {
	if disc, ok := results["disclosure"]; ok {
		if halt, _ := disc.Flags["trading_halt"].(bool); halt {
			return DecisionForceSell, "disclosure trading_halt"
		}
	}

	if fund, ok := results["fundamental"]; ok {
		if fund.Grade == GradeDanger {
			return DecisionBlockBuy, "fundamental grade=danger"
		}
	}

	if mkt, ok := results["market_context"]; ok {
		if mood, _ := mkt.Flags["mood"].(string); mood == string(MoodStrongBearish) {
			return DecisionBlockNewBuy, "market mood=strong_bearish"
		}
	}

	if fiveDayAvgTradingValue > 0 && fiveDayAvgTradingValue < minFiveDayTradingValue {
		return DecisionBlockBuy, "5-day average trading value below liquidity floor"
	}

	return "", ""
}
