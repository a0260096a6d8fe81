package backtest

import (
	"testing"
	"time"

	"github.com/aristath/aegis-kr/internal/config"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/internal/modules/strategy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func riskConfig() config.RiskConfig {
	return config.RiskConfig{
		MaxCapitalPerTradePct:   0.20,
		RiskPerTradePct:         0.02,
		ATRPeriod:               14,
		ATRStopMultiplier:       2.0,
		FallbackStopPct:         0.03,
		SlippagePct:             0.0005,
		CommissionPct:           0.00015,
		CircuitBreakerLossPct:   -0.02,
		CircuitBreakerMaxTrades: 10,
	}
}

func bar(day int, close float64) domain.OHLCV {
	return domain.OHLCV{
		Ticker: "TEST",
		Date:   time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		Open:   close, High: close * 1.01, Low: close * 0.99, Close: close,
		Volume: 1_000_000,
	}
}

// risingThenFalling builds a series that trends up long enough to clear
// warmup and trigger an entry, then crashes hard enough on one day to
// breach the circuit breaker's daily loss threshold.
func risingThenFalling(days int, crashDay int, crashPct float64) []domain.OHLCV {
	bars := make([]domain.OHLCV, 0, days)
	price := 10000.0
	for i := 0; i < days; i++ {
		if i == crashDay {
			price *= 1 + crashPct
		} else {
			price *= 1.01
		}
		bars = append(bars, bar(i, price))
	}
	return bars
}

func TestEngine_AccountingInvariant(t *testing.T) {
	bars := risingThenFalling(90, 70, -0.08)
	ensemble := strategy.NewEnsemble(config.RegimeWeights{Technical: 0.4, Supply: 0.3, Market: 0.3})
	engine := NewEngine(ensemble, riskConfig())

	result := engine.Run("TEST", bars, 10_000_000)

	var sumPnL float64
	for _, tr := range result.Trades {
		sumPnL += tr.PnL
	}
	assert.InDelta(t, result.InitialEquity+sumPnL, result.FinalEquity, 0.01)
}

func TestEngine_EquityCurveMonotonicWithoutTrades(t *testing.T) {
	// a flat, directionless series should never clear the entry threshold
	bars := make([]domain.OHLCV, 0, 90)
	for i := 0; i < 90; i++ {
		bars = append(bars, bar(i, 10000))
	}
	ensemble := strategy.NewEnsemble(config.RegimeWeights{Technical: 0.4, Supply: 0.3, Market: 0.3})
	engine := NewEngine(ensemble, riskConfig())

	result := engine.Run("TEST", bars, 10_000_000)

	require.Empty(t, result.Trades)
	for _, v := range result.EquityCurve {
		assert.Equal(t, result.InitialEquity, v)
	}
}

func TestCircuitBreaker_HaltsAfterDailyLossThreshold(t *testing.T) {
	cb := NewCircuitBreaker(-0.02, 10)
	cb.NewDay()
	require.True(t, cb.CanEnter())

	cb.RecordTrade(-0.025)
	assert.False(t, cb.CanEnter())
	assert.True(t, cb.Halted())

	cb.NewDay()
	assert.True(t, cb.CanEnter())
}

func TestCircuitBreaker_HaltsAfterMaxTrades(t *testing.T) {
	cb := NewCircuitBreaker(-0.5, 3)
	cb.NewDay()
	for i := 0; i < 3; i++ {
		require.True(t, cb.CanEnter())
		cb.RecordTrade(0.001)
	}
	assert.False(t, cb.CanEnter())
}
