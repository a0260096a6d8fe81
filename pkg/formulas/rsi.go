package formulas

import "github.com/markcheno/go-talib"

// CalculateRSI computes the 14-bar (or `length`-bar) Relative Strength
// Index, smoothed exponentially the way talib.Rsi does it.
//
// It returns a neutral 50 rather than nil when there is insufficient
// history or the value is undefined (a series with no price movement at
// all has zero average gain and loss), since the indicator feeds scorers
// and guards that always want a value.
func CalculateRSI(closes []float64, length int) *float64 {
	if len(closes) < length+1 {
		neutral := 50.0
		return &neutral
	}

	flat := true
	for _, c := range closes[1:] {
		if c != closes[0] {
			flat = false
			break
		}
	}
	if flat {
		neutral := 50.0
		return &neutral
	}

	rsi := talib.Rsi(closes, length)
	if len(rsi) == 0 || isNaN(rsi[len(rsi)-1]) {
		neutral := 50.0
		return &neutral
	}

	result := rsi[len(rsi)-1]
	return &result
}

// RSISeries returns the full RSI series (NaN-seeded entries replaced by 50)
// for callers that need the whole window rather than the latest value.
func RSISeries(closes []float64, length int) []float64 {
	if len(closes) < length+1 {
		out := make([]float64, len(closes))
		for i := range out {
			out[i] = 50.0
		}
		return out
	}

	rsi := talib.Rsi(closes, length)
	for i, v := range rsi {
		if isNaN(v) {
			rsi[i] = 50.0
		}
	}
	return rsi
}
