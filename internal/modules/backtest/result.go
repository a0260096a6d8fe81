package backtest

import (
	"time"

	"github.com/aristath/aegis-kr/pkg/formulas"
)

// ExitCause records why a position was closed.
type ExitCause string

const (
	ExitStopLoss ExitCause = "stop_loss"
	ExitSignal   ExitCause = "signal_reversal"
	ExitEndOfRun ExitCause = "end_of_run"
)

// Trade is one closed round-trip position.
type Trade struct {
	Ticker     string
	EntryDate  time.Time
	ExitDate   time.Time
	EntryPrice float64
	ExitPrice  float64
	Shares     int
	PnL        float64 // cash P&L net of fees
	PnLPct     float64 // fraction of equity-at-entry
	ExitCause  ExitCause
}

// DayHalt records one simulated day where the circuit breaker refused
// further entries.
type DayHalt struct {
	Date   time.Time
	Reason string
}

// Result is the full output of one Engine.Run: equity curve, trade log,
// and the summary statistics the recommendation lifecycle and CLI report.
type Result struct {
	Ticker        string
	InitialEquity float64
	FinalEquity   float64
	EquityCurve   []float64
	Trades        []Trade
	Halts         []DayHalt

	WinRate              float64
	ProfitFactor         float64
	MaxDrawdown          float64
	CVaR95               float64 // conditional value-at-risk over per-trade returns
	AnnualizedReturn     float64 // CAGR derived from the daily equity curve
	AnnualizedVolatility float64 // stdev of daily equity-curve returns, annualised
	ExitCauseTally       map[ExitCause]int
}

// summarize derives the aggregate statistics from the closed trades and
// equity curve. final_equity = initial_equity + Σ trade_pnl is enforced
// by construction: FinalEquity is read straight off the running equity
// the engine maintained, not recomputed here.
func summarize(ticker string, initialEquity, finalEquity float64, curve []float64, trades []Trade, halts []DayHalt) Result {
	pnls := make([]float64, len(trades))
	pnlPcts := make([]float64, len(trades))
	tally := make(map[ExitCause]int, 3)
	for i, t := range trades {
		pnls[i] = t.PnL
		pnlPcts[i] = t.PnLPct
		tally[t.ExitCause]++
	}

	curveReturns := formulas.CalculateReturns(curve)

	return Result{
		Ticker:               ticker,
		InitialEquity:        initialEquity,
		FinalEquity:          finalEquity,
		EquityCurve:          curve,
		Trades:               trades,
		Halts:                halts,
		WinRate:              formulas.WinRate(pnls),
		ProfitFactor:         formulas.ProfitFactor(pnls),
		MaxDrawdown:          formulas.MaxDrawdown(curve),
		CVaR95:               formulas.CalculateCVaR(pnlPcts, 0.95),
		AnnualizedReturn:     formulas.CalculateAnnualReturn(curveReturns),
		AnnualizedVolatility: formulas.AnnualizedVolatility(curveReturns),
		ExitCauseTally:       tally,
	}
}
