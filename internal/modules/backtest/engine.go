// Package backtest replays a strategy ensemble over historical daily bars
// through an event-loop engine with Kelly-fractional position sizing, an
// ATR-based dynamic stop, trailing stops, and a daily circuit breaker —
// the validation harness behind the strategy ensemble.
package backtest

import (
	"time"

	"github.com/aristath/aegis-kr/internal/config"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/internal/modules/strategy"
)

// warmupBars is the minimum history required before the ensemble's
// indicators (MACD/DMI/Bollinger/VWAP) are considered reliable enough to
// drive an entry decision.
const warmupBars = 30

// entryThreshold/reversalExitThreshold mirror the fusion engine's BUY and
// STRONG_SELL score bands (internal/modules/aegis/fusion.go) so the
// backtester's entry/exit discipline matches the live decision surface.
const (
	entryThreshold        = 0.22
	reversalExitThreshold = -0.66
)

// position is the engine's open-trade state.
type position struct {
	entryBar        domain.OHLCV
	entryPrice      float64
	shares          int
	stopPrice       float64
	highSince       float64
	entryCommission float64
}

// Engine replays one ticker's bar series against an ensemble.
type Engine struct {
	Ensemble *strategy.Ensemble
	Risk     *RiskManager
	Breaker  *CircuitBreaker
	Cfg      config.RiskConfig
}

func NewEngine(ensemble *strategy.Ensemble, cfg config.RiskConfig) *Engine {
	return &Engine{
		Ensemble: ensemble,
		Risk:     NewRiskManager(cfg),
		Breaker:  NewCircuitBreaker(cfg.CircuitBreakerLossPct, cfg.CircuitBreakerMaxTrades),
		Cfg:      cfg,
	}
}

// Run executes the full event loop over bars (oldest first) for ticker,
// starting from initialEquity, and returns the accumulated result.
func (e *Engine) Run(ticker string, bars []domain.OHLCV, initialEquity float64) Result {
	equity := initialEquity
	curve := make([]float64, 0, len(bars))
	var trades []Trade
	var halts []DayHalt
	var pos *position
	var currentDay time.Time

	for i, bar := range bars {
		// The breaker's daily counters reset once per calendar day, not
		// once per bar: this engine's series is daily-bar already (one
		// bar == one trading day), so in practice this fires every
		// iteration, but grouping on bar.Date rather than the loop index
		// keeps the breaker correct if a future caller ever feeds
		// sub-daily bars sharing a date.
		if !bar.Date.Equal(currentDay) {
			e.Breaker.NewDay()
			currentDay = bar.Date
		}

		if pos != nil {
			if bar.High > pos.highSince {
				pos.highSince = bar.High
				highs, lows, closes := splitBars(bars[:i+1])
				pos.stopPrice = e.Risk.TrailingStop(pos.stopPrice, highs, lows, closes)
			}

			if bar.Low <= pos.stopPrice {
				exitPrice := pos.stopPrice * (1 - e.Cfg.SlippagePct)
				t := e.closePosition(ticker, pos, bar, exitPrice, ExitStopLoss, equity)
				trades = append(trades, t)
				equity += t.PnL
				e.Breaker.RecordTrade(t.PnLPct)
				e.Risk.RecordClosedTrade(t.PnLPct)
				pos = nil
			}
		}

		if i+1 < warmupBars {
			curve = append(curve, markToMarket(equity, pos, bar))
			continue
		}

		window := strategy.Window{Bars: bars[:i+1]}
		signal := e.Ensemble.Combine(window)

		if pos != nil && signal <= reversalExitThreshold {
			exitPrice := bar.Close * (1 - e.Cfg.SlippagePct)
			t := e.closePosition(ticker, pos, bar, exitPrice, ExitSignal, equity)
			trades = append(trades, t)
			equity += t.PnL
			e.Breaker.RecordTrade(t.PnLPct)
			e.Risk.RecordClosedTrade(t.PnLPct)
			pos = nil
		}

		if pos == nil && signal >= entryThreshold {
			if !e.Breaker.CanEnter() {
				halts = append(halts, DayHalt{Date: bar.Date, Reason: "circuit breaker"})
			} else {
				entryPrice := bar.Close * (1 + e.Cfg.SlippagePct)
				highs, lows, closes := splitBars(bars[:i+1])
				stop := e.Risk.StopPrice(highs, lows, closes)
				shares := e.Risk.SizeEntry(equity, entryPrice, stop)
				if shares > 0 {
					commission := entryPrice * float64(shares) * e.Cfg.CommissionPct
					pos = &position{entryBar: bar, entryPrice: entryPrice, shares: shares, stopPrice: stop, highSince: bar.High, entryCommission: commission}
				}
			}
		}

		curve = append(curve, markToMarket(equity, pos, bar))
	}

	if pos != nil && len(bars) > 0 {
		last := bars[len(bars)-1]
		exitPrice := last.Close * (1 - e.Cfg.SlippagePct)
		t := e.closePosition(ticker, pos, last, exitPrice, ExitEndOfRun, equity)
		trades = append(trades, t)
		equity += t.PnL
		e.Risk.RecordClosedTrade(t.PnLPct)
		if len(curve) > 0 {
			curve[len(curve)-1] = equity
		}
	}

	return summarize(ticker, initialEquity, equity, curve, trades, halts)
}

func (e *Engine) closePosition(ticker string, pos *position, exitBar domain.OHLCV, exitPrice float64, cause ExitCause, equityAtEntry float64) Trade {
	exitCommission := exitPrice * float64(pos.shares) * e.Cfg.CommissionPct
	grossPnL := (exitPrice - pos.entryPrice) * float64(pos.shares)
	netPnL := grossPnL - exitCommission - pos.entryCommission

	pnlPct := 0.0
	if equityAtEntry > 0 {
		pnlPct = netPnL / equityAtEntry
	}

	return Trade{
		Ticker:     ticker,
		EntryDate:  pos.entryBar.Date,
		ExitDate:   exitBar.Date,
		EntryPrice: pos.entryPrice,
		ExitPrice:  exitPrice,
		Shares:     pos.shares,
		PnL:        netPnL,
		PnLPct:     pnlPct,
		ExitCause:  cause,
	}
}

// markToMarket values the equity curve's current point: cash plus the
// open position's unrealised value at the bar's close.
func markToMarket(cashEquity float64, pos *position, bar domain.OHLCV) float64 {
	if pos == nil {
		return cashEquity
	}
	unrealised := (bar.Close-pos.entryPrice)*float64(pos.shares) - pos.entryCommission
	return cashEquity + unrealised
}

func splitBars(bars []domain.OHLCV) (highs, lows, closes []float64) {
	highs = make([]float64, len(bars))
	lows = make([]float64, len(bars))
	closes = make([]float64, len(bars))
	for i, b := range bars {
		highs[i] = b.High
		lows[i] = b.Low
		closes[i] = b.Close
	}
	return
}
