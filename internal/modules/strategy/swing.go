package strategy

import "github.com/aristath/aegis-kr/pkg/formulas"

// Swing combines VWAP support/break, RSI extremes, and MA5/MA20 alignment
// into one composite signal, the same sub-indicator shape the AEGIS
// Technical analyser uses but scoped to swing-length windows.
type Swing struct{}

func NewSwing() *Swing { return &Swing{} }

func (s *Swing) Name() string { return "swing" }

func (s *Swing) Signal(w Window) float64 {
	closes := w.closes()
	if len(closes) < 20 {
		return 0
	}
	price := closes[len(closes)-1]

	var score float64

	vwap := formulas.CalculateVWAP(w.vwapBars())
	deviation := formulas.VWAPDeviation(price, vwap)
	switch {
	case deviation > 0.01:
		score += 1
	case deviation < -0.01:
		score -= 1
	}

	rsi := formulas.CalculateRSI(closes, 14)
	if rsi != nil {
		switch {
		case *rsi <= 30:
			score += 1
		case *rsi >= 70:
			score -= 1
		}
	}

	ma5 := formulas.CalculateSMA(closes, 5)
	ma20 := formulas.CalculateSMA(closes, 20)
	if ma5 != nil && ma20 != nil {
		if price > *ma5 && *ma5 > *ma20 {
			score += 1
		} else if price < *ma20 {
			score -= 1
		}
	}

	return clampSignal(score)
}
