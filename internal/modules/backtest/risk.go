package backtest

import (
	"github.com/aristath/aegis-kr/internal/config"
	"github.com/aristath/aegis-kr/pkg/formulas"
)

// kellyScalar is the half-Kelly discount applied on top of the
// configured max-capital-per-trade cap, the conservative default the
// reference risk manager uses against noisy win-rate estimates.
const kellyScalar = 0.5

// RiskManager sizes entries and derives stop prices from the configured
// risk budget; the same instance is reused across an entire run so its
// running win-rate/avg-win/avg-loss estimators improve as trades close.
type RiskManager struct {
	cfg config.RiskConfig

	closedPnLs []float64
}

func NewRiskManager(cfg config.RiskConfig) *RiskManager {
	return &RiskManager{cfg: cfg}
}

// RecordClosedTrade feeds a realised P&L fraction back into the sizing
// estimators used by subsequent entries.
func (r *RiskManager) RecordClosedTrade(pnlFraction float64) {
	r.closedPnLs = append(r.closedPnLs, pnlFraction)
}

// winRateAvgWinLoss derives the Kelly inputs from trades closed so far in
// this run, falling back to a breakeven-coinflip prior before any trade
// has closed.
func (r *RiskManager) winRateAvgWinLoss() (winRate, avgWin, avgLoss float64) {
	if len(r.closedPnLs) == 0 {
		return 0.5, 0.02, 0.02
	}

	var wins, losses int
	var sumWin, sumLoss float64
	for _, p := range r.closedPnLs {
		if p > 0 {
			wins++
			sumWin += p
		} else if p < 0 {
			losses++
			sumLoss += -p
		}
	}
	winRate = float64(wins) / float64(len(r.closedPnLs))
	if wins > 0 {
		avgWin = sumWin / float64(wins)
	} else {
		avgWin = 0.02
	}
	if losses > 0 {
		avgLoss = sumLoss / float64(losses)
	} else {
		avgLoss = 0.02
	}
	return
}

// StopPrice derives the dynamic ATR-based stop for a prospective entry at
// the current window's last close.
func (r *RiskManager) StopPrice(highs, lows, closes []float64) float64 {
	return formulas.StopFromATR(highs, lows, closes, r.cfg.ATRPeriod, r.cfg.ATRStopMultiplier, r.cfg.FallbackStopPct)
}

// SizeEntry returns the whole-share quantity for a new position, Kelly-
// fractional and capped by both the per-trade capital ceiling and the
// per-trade risk budget.
func (r *RiskManager) SizeEntry(equity, entryPrice, stopPrice float64) int {
	winRate, avgWin, avgLoss := r.winRateAvgWinLoss()
	capital := formulas.PositionSize(equity, winRate, avgWin, avgLoss, kellyScalar, r.cfg.MaxCapitalPerTradePct)
	if capital <= 0 {
		return 0
	}
	return formulas.SharesForPosition(capital, entryPrice, stopPrice, r.cfg.RiskPerTradePct, equity)
}

// TrailingStop raises (never lowers) a stop as price makes new highs
// since entry, re-deriving the ATR distance from the latest window.
func (r *RiskManager) TrailingStop(currentStop float64, highs, lows, closes []float64) float64 {
	candidate := r.StopPrice(highs, lows, closes)
	if candidate > currentStop {
		return candidate
	}
	return currentStop
}
