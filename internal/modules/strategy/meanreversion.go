package strategy

import "github.com/aristath/aegis-kr/pkg/formulas"

// MeanReversion signals on Bollinger Band touches: price at or beyond the
// lower band is oversold (buy), at or beyond the upper band is overbought
// (sell); positions within the bands fade gradually toward HOLD.
type MeanReversion struct {
	Length           int
	StdDevMultiplier float64
}

func NewMeanReversion() *MeanReversion {
	return &MeanReversion{Length: 20, StdDevMultiplier: 2}
}

func (m *MeanReversion) Name() string { return "mean_reversion" }

func (m *MeanReversion) Signal(w Window) float64 {
	closes := w.closes()
	pos := formulas.CalculateBollingerPosition(closes, m.Length, m.StdDevMultiplier)
	if pos == nil {
		return 0
	}

	// pos.Position: 0 at lower band, 1 at upper band.
	switch {
	case pos.Position <= 0:
		return 2
	case pos.Position <= 0.1:
		return 1
	case pos.Position >= 1:
		return -2
	case pos.Position >= 0.9:
		return -1
	default:
		return 0
	}
}
