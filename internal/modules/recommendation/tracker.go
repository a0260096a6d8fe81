package recommendation

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/pkg/formulas"
	"github.com/rs/zerolog"
)

// horizons are the three tracked holding periods every Recommendation is
// checked at.
var horizons = [...]int{7, 14, 30}

// PriceTracker writes a Performance row for every Recommendation whose
// horizon has elapsed and hasn't been checked yet — run daily at 18:00 KST
// or on demand.
type PriceTracker struct {
	Recommendations *database.RecommendationStore
	OHLCV           *database.OHLCVStore
	Performance     *database.PerformanceStore
	Log             zerolog.Logger
}

// TrackerSummary tallies one Run invocation.
type TrackerSummary struct {
	Written int
	Skipped int
}

// Run checks every open horizon as of asOf and persists a Performance row
// for each one whose closing price is available. A ticker missing the
// check-date's bar is skipped, not failed — trading-day gaps (holidays)
// are expected and the next run catches up.
func (t *PriceTracker) Run(ctx context.Context, asOf time.Time) (TrackerSummary, error) {
	var summary TrackerSummary
	asOfDate := asOf.Format("2006-01-02")

	for _, horizon := range horizons {
		recs, err := t.Recommendations.OpenForTracking(ctx, asOfDate, horizon)
		if err != nil {
			return summary, fmt.Errorf("recommendation tracker: list horizon %d failed: %w", horizon, err)
		}

		for _, rec := range recs {
			perf, ok, err := t.checkOne(ctx, rec, horizon)
			if err != nil {
				t.Log.Warn().Err(err).Str("ticker", rec.Ticker).Int("days_held", horizon).Msg("failed to check recommendation, will retry next run")
				summary.Skipped++
				continue
			}
			if !ok {
				summary.Skipped++
				continue
			}
			if err := t.Performance.Upsert(ctx, perf); err != nil {
				t.Log.Warn().Err(err).Int64("rec_id", rec.ID).Msg("failed to persist performance row")
				summary.Skipped++
				continue
			}
			summary.Written++
		}
	}

	return summary, nil
}

func (t *PriceTracker) checkOne(ctx context.Context, rec domain.Recommendation, horizon int) (domain.Performance, bool, error) {
	checkDate := rec.RecDate.AddDate(0, 0, horizon)

	bars, err := t.OHLCV.Between(ctx, rec.Ticker, checkDate.AddDate(0, 0, -5), checkDate)
	if err != nil {
		return domain.Performance{}, false, err
	}
	if len(bars) == 0 {
		return domain.Performance{}, false, nil
	}

	checkPrice := bars[len(bars)-1].Close

	window, err := t.OHLCV.Between(ctx, rec.Ticker, rec.RecDate, checkDate)
	if err != nil {
		return domain.Performance{}, false, err
	}
	equityCurve := make([]float64, 0, len(window)+1)
	equityCurve = append(equityCurve, rec.RecPrice)
	for _, b := range window {
		equityCurve = append(equityCurve, b.Close)
	}

	returnRate := 0.0
	if rec.RecPrice != 0 {
		returnRate = (checkPrice - rec.RecPrice) / rec.RecPrice
	}
	maxDrawdown := formulas.MaxDrawdown(equityCurve)

	return domain.Performance{
		RecID:       rec.ID,
		DaysHeld:    horizon,
		CheckPrice:  checkPrice,
		ReturnRate:  returnRate,
		MaxDrawdown: maxDrawdown,
		Status:      domain.ClassifyPerformance(returnRate),
	}, true, nil
}
