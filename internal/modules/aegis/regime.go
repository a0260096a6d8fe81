package aegis

import (
	"context"
	"time"

	"github.com/aristath/aegis-kr/internal/config"
	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/pkg/formulas"
)

// Regime is the market-wide trend classification the fusion engine weights
// its analysers by.
type Regime string

const (
	RegimeBull    Regime = "BULL"
	RegimeBear    Regime = "BEAR"
	RegimeSideway Regime = "SIDEWAY"
)

// RegimeReading is the classifier's output: the regime plus a [0,1]
// confidence derived from how far MA20 has diverged from MA60.
type RegimeReading struct {
	Regime     Regime
	Confidence float64
	MA20       float64
	MA60       float64
}

// RegimeClassifier derives the market regime from a benchmark index's
// (or a proxy sector's) OHLCV history.
type RegimeClassifier struct {
	OHLCV  *database.OHLCVStore
	Config config.RegimeConfig
	// IndexTicker identifies the benchmark series stored like any other
	// ticker's OHLCV (e.g. a KOSPI composite proxy).
	IndexTicker string
}

func NewRegimeClassifier(ohlcv *database.OHLCVStore, cfg config.RegimeConfig, indexTicker string) *RegimeClassifier {
	return &RegimeClassifier{OHLCV: ohlcv, Config: cfg, IndexTicker: indexTicker}
}

// Classify reads at least 60 days of the benchmark's OHLCV and applies the
// MA20-vs-MA60 rule: BULL above BullMultiplier, BEAR below BearMultiplier,
// SIDEWAY otherwise.
func (c *RegimeClassifier) Classify(ctx context.Context, asOf time.Time) (RegimeReading, error) {
	bars, err := c.OHLCV.Recent(ctx, c.IndexTicker, 90)
	if err != nil {
		return RegimeReading{Regime: RegimeSideway}, err
	}
	if len(bars) < 60 {
		return RegimeReading{Regime: RegimeSideway}, nil
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	ma20 := formulas.CalculateSMA(closes, 20)
	ma60 := formulas.CalculateSMA(closes, 60)
	if ma20 == nil || ma60 == nil || *ma60 == 0 {
		return RegimeReading{Regime: RegimeSideway}, nil
	}

	reading := RegimeReading{MA20: *ma20, MA60: *ma60}
	ratio := *ma20 / *ma60
	deviation := (*ma20 - *ma60) / *ma60
	if deviation < 0 {
		deviation = -deviation
	}
	reading.Confidence = clamp01(deviation)

	switch {
	case ratio > c.Config.BullMultiplier:
		reading.Regime = RegimeBull
	case ratio < c.Config.BearMultiplier:
		reading.Regime = RegimeBear
	default:
		reading.Regime = RegimeSideway
	}
	return reading, nil
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
