package aegis

import (
	"context"
	"testing"

	"github.com/aristath/aegis-kr/internal/config"
	"github.com/stretchr/testify/require"
)

func fusionCfg() config.RegimeConfig {
	return config.RegimeConfig{
		BullMultiplier: 1.02,
		BearMultiplier: 0.98,
		Weights: map[string]config.RegimeWeights{
			"BULL": {Technical: .25, Disclosure: .10, Supply: .20, Fundamental: .05, Market: .15, News: .15, Consensus: .10},
		},
	}
}

// TestEngine_TradingHaltVetoForcesSell: strongly positive
// analyser scores everywhere must still fuse to FORCE_SELL when the
// disclosure analyser raises trading_halt.
func TestEngine_TradingHaltVetoForcesSell(t *testing.T) {
	engine := NewEngine(nil, fusionCfg(), 1e9)

	results := map[string]AnalyserResult{
		"technical":     {Name: "technical", Score: 2},
		"supply_demand": {Name: "supply_demand", Score: 2},
		"news":          {Name: "news", Score: 2},
		"disclosure":    {Name: "disclosure", Score: 2, Flags: map[string]any{"trading_halt": true}},
	}

	fused, err := engine.Fuse(context.Background(), RegimeReading{Regime: RegimeBull}, results, 5e9)
	require.NoError(t, err)
	require.Equal(t, DecisionForceSell, fused.Decision)
	require.Greater(t, fused.FinalScore, 0.0, "aggregate stays positive, only the decision is overridden")
}

func TestEngine_TradingHaltBeatsDangerFundamental(t *testing.T) {
	engine := NewEngine(nil, fusionCfg(), 1e9)

	results := map[string]AnalyserResult{
		"disclosure":  {Name: "disclosure", Flags: map[string]any{"trading_halt": true}},
		"fundamental": {Name: "fundamental", Score: -2, Grade: GradeDanger},
	}

	fused, err := engine.Fuse(context.Background(), RegimeReading{Regime: RegimeBull}, results, 5e9)
	require.NoError(t, err)
	require.Equal(t, DecisionForceSell, fused.Decision)
}

func TestEngine_DangerFundamentalBlocksBuy(t *testing.T) {
	engine := NewEngine(nil, fusionCfg(), 1e9)

	results := map[string]AnalyserResult{
		"technical":   {Name: "technical", Score: 2},
		"fundamental": {Name: "fundamental", Score: -2, Grade: GradeDanger},
	}

	fused, err := engine.Fuse(context.Background(), RegimeReading{Regime: RegimeBull}, results, 5e9)
	require.NoError(t, err)
	require.Equal(t, DecisionBlockBuy, fused.Decision)
}

func TestEngine_StrongBearishMoodBlocksNewBuy(t *testing.T) {
	engine := NewEngine(nil, fusionCfg(), 1e9)

	results := map[string]AnalyserResult{
		"technical":      {Name: "technical", Score: 2},
		"market_context": {Name: "market_context", Score: -2, Flags: map[string]any{"mood": string(MoodStrongBearish)}},
	}

	fused, err := engine.Fuse(context.Background(), RegimeReading{Regime: RegimeBull}, results, 5e9)
	require.NoError(t, err)
	require.Equal(t, DecisionBlockNewBuy, fused.Decision)
}

func TestEngine_LiquidityFloorBlocksBuy(t *testing.T) {
	engine := NewEngine(nil, fusionCfg(), 1e9)

	results := map[string]AnalyserResult{
		"technical": {Name: "technical", Score: 2},
	}

	fused, err := engine.Fuse(context.Background(), RegimeReading{Regime: RegimeBull}, results, 5e8)
	require.NoError(t, err)
	require.Equal(t, DecisionBlockBuy, fused.Decision)
	require.Contains(t, fused.VetoReason, "liquidity")
}

// TestEngine_MissingAnalyserContributesZero verifies graceful degradation:
// fusion proceeds with the analysers it has, the absent ones weigh nothing.
func TestEngine_MissingAnalyserContributesZero(t *testing.T) {
	engine := NewEngine(nil, fusionCfg(), 1e9)

	results := map[string]AnalyserResult{
		"technical": {Name: "technical", Score: 2},
	}

	fused, err := engine.Fuse(context.Background(), RegimeReading{Regime: RegimeBull}, results, 5e9)
	require.NoError(t, err)
	require.InDelta(t, 0.25, fused.FinalScore, 1e-9)
	require.Equal(t, DecisionBuy, fused.Decision)
}

func TestEngine_UnknownRegimeFails(t *testing.T) {
	engine := NewEngine(nil, fusionCfg(), 1e9)

	_, err := engine.Fuse(context.Background(), RegimeReading{Regime: RegimeBear}, nil, 5e9)
	require.Error(t, err)
}

func TestDecisionFromScore_Thresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  Decision
	}{
		{0.80, DecisionStrongBuy},
		{0.66, DecisionStrongBuy},
		{0.50, DecisionBuy},
		{0.22, DecisionBuy},
		{0.00, DecisionHold},
		{-0.22, DecisionHold},
		{-0.50, DecisionSell},
		{-0.66, DecisionSell},
		{-0.80, DecisionStrongSell},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, decisionFromScore(tc.score), "score %v", tc.score)
	}
}

func TestNormaliseScore_ClampsToUnitRange(t *testing.T) {
	require.Equal(t, 1.0, normaliseScore(2))
	require.Equal(t, 1.0, normaliseScore(5))
	require.Equal(t, -1.0, normaliseScore(-2))
	require.Equal(t, -1.0, normaliseScore(-5))
	require.InDelta(t, 0.5, normaliseScore(1), 1e-9)
}
