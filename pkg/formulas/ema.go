package formulas

import (
	"github.com/markcheno/go-talib"
)

// CalculateSMA calculates the Simple Moving Average over the trailing
// `length` closes, or nil if there isn't enough history yet.
func CalculateSMA(closes []float64, length int) *float64 {
	if len(closes) < length {
		return nil
	}

	sma := talib.Sma(closes, length)
	if len(sma) > 0 && !isNaN(sma[len(sma)-1]) {
		result := sma[len(sma)-1]
		return &result
	}

	return nil
}
