package screener

import (
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/pkg/formulas"
)

// QuantScore is the Stage-2 technical composite: Volume Dynamics 30,
// Trend/Breakout 40, Volatility 30.
type QuantScore struct {
	Ticker     string
	Total      float64 // [0,100]
	Volume     float64 // [0,30]
	Trend      float64 // [0,40]
	Volatility float64 // [0,30]
	PBR        float64
	PER        float64
	RankChange int // supplemented: previous batch rank - current rank; Screener.Run does not set it, so it stays 0
}

// computeQuantScore derives a candidate's Stage-2 score from 60 days of
// OHLCV (oldest first) plus its fundamentals snapshot.
func computeQuantScore(bars []domain.OHLCV, f domain.Fundamentals) QuantScore {
	qs := QuantScore{Ticker: f.Ticker, PBR: f.PBR, PER: f.PER}
	if len(bars) < 20 {
		return qs
	}

	closes := closesOf(bars)
	volumes := volumesOf(bars)
	highs := highsOf(bars)
	lows := lowsOf(bars)

	last := bars[len(bars)-1]

	qs.Volume = volumeDynamicsScore(volumes)
	qs.Trend = trendBreakoutScore(closes, highs)
	qs.Volatility = volatilityScore(highs, lows, last.Close)

	qs.Total = formulas.Clamp0to100(qs.Volume + qs.Trend + qs.Volatility)
	return qs
}

// volumeDynamicsScore (0-30): current volume vs 5-day average volume surge.
func volumeDynamicsScore(volumes []float64) float64 {
	n := len(volumes)
	if n < 5 {
		return 0
	}
	ma5 := average(volumes[n-5:])
	if ma5 <= 0 {
		return 0
	}
	surge := volumes[n-1] / ma5

	switch {
	case surge >= 3.0:
		return 30
	case surge >= 2.0:
		return 24
	case surge >= 1.5:
		return 18
	case surge >= 1.0:
		return 10
	default:
		return 0
	}
}

// trendBreakoutScore (0-40): MA alignment, 52-week-high ratio, 20-day breakout.
func trendBreakoutScore(closes, highs []float64) float64 {
	n := len(closes)
	score := 0.0

	ma5 := averageLastN(closes, 5)
	ma20 := averageLastN(closes, 20)
	price := closes[n-1]

	if price > ma5 && ma5 > ma20 {
		score += 15 // full alignment: price > MA5 > MA20
	} else if price > ma20 {
		score += 7
	}

	windowHighs := highs
	if n > 252 {
		windowHighs = highs[n-252:]
	}
	high52w := maxOf(windowHighs)
	if high52w > 0 {
		ratio := price / high52w
		score += clamp01(ratio) * 15
	}

	windowHighs20 := highs
	if n > 20 {
		windowHighs20 = highs[n-20:]
	}
	breakoutLevel := maxOf(windowHighs20[:len(windowHighs20)-1])
	if breakoutLevel > 0 && price > breakoutLevel {
		score += 10
	}

	if score > 40 {
		score = 40
	}
	return score
}

// volatilityScore (0-30): rewards controlled, not extreme, daily ranges.
func volatilityScore(highs, lows []float64, lastClose float64) float64 {
	n := len(highs)
	if n < 5 || lastClose <= 0 {
		return 0
	}
	var sumRange float64
	for i := n - 5; i < n; i++ {
		sumRange += (highs[i] - lows[i])
	}
	avgRange5 := sumRange / 5
	pct := avgRange5 / lastClose

	switch {
	case pct <= 0.02:
		return 30
	case pct <= 0.04:
		return 22
	case pct <= 0.07:
		return 14
	default:
		return 5
	}
}

func closesOf(bars []domain.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Close
	}
	return out
}

func highsOf(bars []domain.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.High
	}
	return out
}

func lowsOf(bars []domain.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = b.Low
	}
	return out
}

func volumesOf(bars []domain.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = float64(b.Volume)
	}
	return out
}

func average(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func averageLastN(xs []float64, n int) float64 {
	if len(xs) < n {
		return average(xs)
	}
	return average(xs[len(xs)-n:])
}

func maxOf(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := xs[0]
	for _, x := range xs[1:] {
		if x > m {
			m = x
		}
	}
	return m
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
