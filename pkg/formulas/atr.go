package formulas

import "github.com/markcheno/go-talib"

// CalculateATR computes the Average True Range over `length` bars, the
// volatility estimate the backtest risk manager sizes stops from.
func CalculateATR(highs, lows, closes []float64, length int) *float64 {
	if len(highs) < length+1 || len(lows) < length+1 || len(closes) < length+1 {
		return nil
	}

	atr := talib.Atr(highs, lows, closes, length)
	if len(atr) == 0 || isNaN(atr[len(atr)-1]) {
		return nil
	}

	result := atr[len(atr)-1]
	return &result
}

// StopFromATR computes the dynamic stop-loss price: close - multiplier*ATR,
// falling back to a flat percentage stop when ATR cannot be computed.
func StopFromATR(highs, lows, closes []float64, length int, multiplier, fallbackPct float64) float64 {
	if len(closes) == 0 {
		return 0
	}
	last := closes[len(closes)-1]

	atr := CalculateATR(highs, lows, closes, length)
	if atr == nil {
		return last * (1 - fallbackPct)
	}

	stop := last - multiplier*(*atr)
	if stop <= 0 {
		return last * (1 - fallbackPct)
	}
	return stop
}
