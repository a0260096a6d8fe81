// Package strategy implements the trading strategy ensemble: independent
// signal generators sharing the same indicator helpers, combined under the
// same regime weighting the AEGIS fusion engine uses.
package strategy

import (
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/pkg/formulas"
)

// Window is the price history a Strategy reads its signal from, oldest
// bar first — the same shape every strategy and the backtester share.
type Window struct {
	Bars []domain.OHLCV
}

func (w Window) closes() []float64 {
	out := make([]float64, len(w.Bars))
	for i, b := range w.Bars {
		out[i] = b.Close
	}
	return out
}

func (w Window) highs() []float64 {
	out := make([]float64, len(w.Bars))
	for i, b := range w.Bars {
		out[i] = b.High
	}
	return out
}

func (w Window) lows() []float64 {
	out := make([]float64, len(w.Bars))
	for i, b := range w.Bars {
		out[i] = b.Low
	}
	return out
}

func (w Window) vwapBars() []formulas.Bar {
	out := make([]formulas.Bar, len(w.Bars))
	for i, b := range w.Bars {
		out[i] = formulas.Bar{Timestamp: b.Date, High: b.High, Low: b.Low, Close: b.Close, Volume: float64(b.Volume)}
	}
	return out
}

// Strategy is the contract every ensemble member implements: a signal in
// [-2,+2] derived from a bounded price window.
type Strategy interface {
	Name() string
	Signal(w Window) float64
}

func clampSignal(v float64) float64 {
	if v < -2 {
		return -2
	}
	if v > 2 {
		return 2
	}
	return v
}
