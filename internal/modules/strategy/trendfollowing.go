package strategy

import "github.com/aristath/aegis-kr/pkg/formulas"

// TrendFollowing signals on MACD histogram direction confirmed by DMI:
// a positive histogram with +DI > -DI and ADX at or above the trend threshold is
// a strong buy; the mirror image is a strong sell.
type TrendFollowing struct {
	ADXTrendThreshold float64 // below this, DMI treats the market as non-trending
}

func NewTrendFollowing() *TrendFollowing {
	return &TrendFollowing{ADXTrendThreshold: 20}
}

func (t *TrendFollowing) Name() string { return "trend_following" }

func (t *TrendFollowing) Signal(w Window) float64 {
	closes := w.closes()
	highs := w.highs()
	lows := w.lows()

	macd := formulas.CalculateMACD(closes)
	dmi := formulas.CalculateDMI(highs, lows, closes, 14)
	if macd == nil || dmi == nil {
		return 0
	}

	var score float64
	if macd.Histogram > 0 {
		score += 1
	} else if macd.Histogram < 0 {
		score -= 1
	}

	trending := dmi.ADX >= t.ADXTrendThreshold
	if trending {
		if dmi.PlusDI > dmi.MinusDI {
			score += 1
		} else if dmi.MinusDI > dmi.PlusDI {
			score -= 1
		}
	}

	return clampSignal(score)
}
