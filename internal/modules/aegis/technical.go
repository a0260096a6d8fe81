package aegis

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/pkg/formulas"
	"github.com/rs/zerolog"
)

// Signal is the discrete technical call the Technical analyser maps its
// sub-indicator weighting onto before converting to a numeric score.
type Signal string

const (
	SignalStrongBuy  Signal = "STRONG_BUY"
	SignalBuy        Signal = "BUY"
	SignalHold       Signal = "HOLD"
	SignalSell       Signal = "SELL"
	SignalStrongSell Signal = "STRONG_SELL"
)

// scoreForSignal maps a discrete Signal to its numeric analyser score.
var scoreForSignal = map[Signal]float64{
	SignalStrongBuy:  2,
	SignalBuy:        1,
	SignalHold:       0,
	SignalSell:       -1,
	SignalStrongSell: -2,
}

// TechnicalAnalyser scores MA alignment, VWAP support/break, and RSI
// extremes against recent OHLCV history.
type TechnicalAnalyser struct {
	OHLCV *database.OHLCVStore
	Ticks *database.TickStore
	Log   zerolog.Logger
}

func NewTechnicalAnalyser(ohlcv *database.OHLCVStore, ticks *database.TickStore, log zerolog.Logger) *TechnicalAnalyser {
	return &TechnicalAnalyser{OHLCV: ohlcv, Ticks: ticks, Log: log.With().Str("analyser", "technical").Logger()}
}

func (a *TechnicalAnalyser) Name() string { return "technical" }

func (a *TechnicalAnalyser) Analyse(ctx context.Context, ticker string, asOf time.Time) (AnalyserResult, error) {
	bars, err := a.OHLCV.Recent(ctx, ticker, 90)
	if err != nil {
		return AnalyserResult{}, fmt.Errorf("technical: load ohlcv for %s: %w", ticker, err)
	}
	if len(bars) < 20 {
		return AnalyserResult{Name: a.Name(), Score: 0, Grade: GradeAverage, Notes: "insufficient history"}, nil
	}

	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}
	price := closes[len(closes)-1]

	ma5 := formulas.CalculateSMA(closes, 5)
	ma20 := formulas.CalculateSMA(closes, 20)

	var maScore float64
	maAligned := ma5 != nil && ma20 != nil && price > *ma5 && *ma5 > *ma20
	if maAligned {
		maScore = 1
	} else if ma20 != nil && price < *ma20 {
		maScore = -1
	}

	vwapBars := make([]formulas.Bar, len(bars))
	for i, b := range bars {
		vwapBars[i] = formulas.Bar{Timestamp: b.Date, High: b.High, Low: b.Low, Close: b.Close, Volume: float64(b.Volume)}
	}
	vwap := formulas.CalculateVWAP(vwapBars)
	deviation := formulas.VWAPDeviation(price, vwap)

	var vwapScore float64
	switch {
	case deviation > 0.01:
		vwapScore = 1
	case deviation < -0.01:
		vwapScore = -1
	}

	rsi := formulas.CalculateRSI(closes, 14)
	var rsiScore float64
	var rsiVal float64 = 50
	if rsi != nil {
		rsiVal = *rsi
		switch {
		case rsiVal <= 30:
			rsiScore = 1 // oversold, contrarian buy
		case rsiVal >= 70:
			rsiScore = -1 // overbought
		}
	}

	raw := maScore + vwapScore + rsiScore
	signal := signalFromRaw(raw)
	score := clampScore(scoreForSignal[signal])

	notes := fmt.Sprintf("ma_aligned=%v vwap_dev=%.3f rsi=%.1f signal=%s", maAligned, deviation, rsiVal, signal)
	return AnalyserResult{
		Name:  a.Name(),
		Score: score,
		Grade: gradeFromScore(score),
		Notes: notes,
	}, nil
}

// signalFromRaw maps the summed sub-indicator weights (each in {-1,0,+1})
// onto the five discrete technical signals.
func signalFromRaw(raw float64) Signal {
	switch {
	case raw >= 2:
		return SignalStrongBuy
	case raw >= 1:
		return SignalBuy
	case raw <= -2:
		return SignalStrongSell
	case raw <= -1:
		return SignalSell
	default:
		return SignalHold
	}
}
