package formulas

import (
	"github.com/markcheno/go-talib"
)

// BollingerBands is one reading of the 20-day band the MeanReversion
// strategy watches for a touch.
type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

// BollingerPosition is where the latest close sits inside BollingerBands,
// 0.0 at the lower band through 1.0 at the upper band — the single number
// MeanReversion.Signal thresholds into STRONG_BUY..STRONG_SELL.
type BollingerPosition struct {
	Position float64        `json:"position"`
	Bands    BollingerBands `json:"bands"`
}

// CalculateBollingerBands computes the middle/upper/lower band:
//
//	Middle = length-day SMA
//	Upper  = Middle + stdDevMultiplier * std deviation
//	Lower  = Middle - stdDevMultiplier * std deviation
//
// Returns nil when fewer than length closes are available.
func CalculateBollingerBands(closes []float64, length int, stdDevMultiplier float64) *BollingerBands {
	if len(closes) < length {
		return nil
	}

	// MAType 0 selects SMA for the middle band, matching the documented formula.
	upper, middle, lower := talib.BBands(closes, length, stdDevMultiplier, stdDevMultiplier, 0)

	if len(upper) > 0 && !isNaN(upper[len(upper)-1]) {
		return &BollingerBands{
			Upper:  upper[len(upper)-1],
			Middle: middle[len(middle)-1],
			Lower:  lower[len(lower)-1],
		}
	}

	return nil
}

// CalculateBollingerPosition locates the latest close within its
// BollingerBands: 0.0 at the lower band, 0.5 at the middle, 1.0 at the
// upper band, clamped beyond that when price has broken through.
func CalculateBollingerPosition(closes []float64, length int, stdDevMultiplier float64) *BollingerPosition {
	if len(closes) == 0 {
		return nil
	}

	bands := CalculateBollingerBands(closes, length, stdDevMultiplier)
	if bands == nil {
		return nil
	}

	currentPrice := closes[len(closes)-1]
	bandWidth := bands.Upper - bands.Lower

	if bandWidth == 0 {
		// Bands have collapsed to a single price; treat as centered.
		return &BollingerPosition{Position: 0.5, Bands: *bands}
	}

	position := (currentPrice - bands.Lower) / bandWidth
	if position < 0.0 {
		position = 0.0
	}
	if position > 1.0 {
		position = 1.0
	}

	return &BollingerPosition{Position: position, Bands: *bands}
}
