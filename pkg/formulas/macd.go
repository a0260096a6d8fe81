package formulas

import "github.com/markcheno/go-talib"

// MACD holds the standard MACD/signal/histogram triple.
type MACD struct {
	MACD      float64 `json:"macd"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

// CalculateMACD computes MACD(12,26,9), the trend-following strategy's
// primary indicator.
func CalculateMACD(closes []float64) *MACD {
	const fast, slow, signal = 12, 26, 9
	if len(closes) < slow+signal {
		return nil
	}

	macd, sig, hist := talib.Macd(closes, fast, slow, signal)
	n := len(macd)
	if n == 0 || isNaN(macd[n-1]) || isNaN(sig[n-1]) || isNaN(hist[n-1]) {
		return nil
	}

	return &MACD{MACD: macd[n-1], Signal: sig[n-1], Histogram: hist[n-1]}
}

// DMI holds the directional movement components used by TrendFollowing
// alongside MACD.
type DMI struct {
	PlusDI  float64
	MinusDI float64
	ADX     float64
}

// CalculateDMI computes +DI/-DI/ADX(14).
func CalculateDMI(highs, lows, closes []float64, length int) *DMI {
	if len(highs) < length*2 {
		return nil
	}

	plusDI := talib.PlusDI(highs, lows, closes, length)
	minusDI := talib.MinusDI(highs, lows, closes, length)
	adx := talib.Adx(highs, lows, closes, length)

	n := len(plusDI)
	if n == 0 || isNaN(plusDI[n-1]) || isNaN(minusDI[n-1]) || isNaN(adx[len(adx)-1]) {
		return nil
	}

	return &DMI{PlusDI: plusDI[n-1], MinusDI: minusDI[n-1], ADX: adx[len(adx)-1]}
}
