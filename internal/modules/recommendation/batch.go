package recommendation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/internal/modules/aegis"
	"github.com/aristath/aegis-kr/internal/modules/screener"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// BatchRunner drives one full screen→collect→analyse→score cycle and
// persists a Recommendation row per surviving candidate, all tagged with
// one batch ID.
type BatchRunner struct {
	Screener        *screener.Screener
	Collector       *Collector
	Analysers       []aegis.Analyser
	Fusion          *aegis.Engine
	Regime          *aegis.RegimeClassifier
	OHLCV           *database.OHLCVStore
	Recommendations *database.RecommendationStore
	Log             zerolog.Logger
}

// BatchSummary tallies one Run invocation.
type BatchSummary struct {
	BatchID   string
	Persisted int
	Skipped   int
}

// Run executes the full lifecycle: Stage1+Stage2 screening, a collector
// refresh of each survivor's news/consensus/disclosure blobs, per-ticker
// analyser scoring, fusion, and persistence. A single ticker's analyser or
// persistence failure is logged and dropped; the batch continues for the
// rest.
func (r *BatchRunner) Run(ctx context.Context, asOf time.Time) (BatchSummary, error) {
	batchID := uuid.NewString()
	summary := BatchSummary{BatchID: batchID}

	candidates, err := r.Screener.Run(ctx)
	if err != nil {
		return summary, fmt.Errorf("recommendation: screener failed: %w", err)
	}

	tickers := make([]string, len(candidates))
	for i, c := range candidates {
		tickers[i] = c.Ticker
	}

	if r.Collector != nil {
		if err := r.Collector.Refresh(ctx, tickers); err != nil {
			r.Log.Warn().Err(err).Msg("collector refresh returned an error, continuing with cached data")
		}
	}

	reading, err := r.Regime.Classify(ctx, asOf)
	if err != nil {
		r.Log.Warn().Err(err).Msg("regime classification failed, defaulting to SIDEWAY")
	}

	for _, cand := range candidates {
		rec, ok, err := r.score(ctx, cand.Ticker, asOf, reading, batchID)
		if err != nil {
			r.Log.Warn().Err(err).Str("ticker", cand.Ticker).Msg("scoring failed, dropping candidate from batch")
			summary.Skipped++
			continue
		}
		if !ok {
			summary.Skipped++
			continue
		}

		if _, err := r.Recommendations.Insert(ctx, rec); err != nil {
			r.Log.Warn().Err(err).Str("ticker", cand.Ticker).Msg("failed to persist recommendation, continuing batch")
			summary.Skipped++
			continue
		}
		summary.Persisted++
	}

	r.Log.Info().Str("batch_id", batchID).Int("persisted", summary.Persisted).Int("skipped", summary.Skipped).
		Msg("recommendation batch complete")
	return summary, nil
}

// score runs every analyser for one ticker, fuses the results, and builds
// the Recommendation row. A missing individual analyser result contributes
// weight-zero to fusion rather than aborting the ticker.
func (r *BatchRunner) score(ctx context.Context, ticker string, asOf time.Time, reading aegis.RegimeReading, batchID string) (domain.Recommendation, bool, error) {
	results := make(map[string]aegis.AnalyserResult, len(r.Analysers))
	for _, a := range r.Analysers {
		res, err := a.Analyse(ctx, ticker, asOf)
		if err != nil {
			r.Log.Debug().Err(err).Str("ticker", ticker).Str("analyser", a.Name()).Msg("analyser error, contributing weight-zero")
			continue
		}
		results[a.Name()] = res
	}
	if len(results) == 0 {
		return domain.Recommendation{}, false, fmt.Errorf("no analyser produced a result")
	}

	fiveDayAvgTradingValue, err := r.fiveDayAvgTradingValue(ctx, ticker)
	if err != nil {
		r.Log.Debug().Err(err).Str("ticker", ticker).Msg("could not compute 5-day trading value, liquidity veto skipped")
	}

	fused, err := r.Fusion.Fuse(ctx, reading, results, fiveDayAvgTradingValue)
	if err != nil {
		return domain.Recommendation{}, false, err
	}

	bars, err := r.OHLCV.Recent(ctx, ticker, 1)
	if err != nil || len(bars) == 0 {
		return domain.Recommendation{}, false, fmt.Errorf("no price available for %s", ticker)
	}
	recPrice := bars[len(bars)-1].Close

	rec := domain.Recommendation{
		BatchID:    batchID,
		Ticker:     ticker,
		RecDate:    asOf,
		RecPrice:   recPrice,
		Grade:      gradeFromDecision(fused.Decision),
		Confidence: confidenceFromFusion(fused),
		Rationale:  rationale(fused, results),
		Scores:     scoreBreakdown(results),
		FinalScore: fused.FinalScore,
	}
	return rec, true, nil
}

// fiveDayAvgTradingValue computes mean(close*volume) over the last 5 bars,
// the liquidity veto's raw input.
func (r *BatchRunner) fiveDayAvgTradingValue(ctx context.Context, ticker string) (float64, error) {
	bars, err := r.OHLCV.Recent(ctx, ticker, 5)
	if err != nil || len(bars) == 0 {
		return 0, err
	}
	var sum float64
	for _, b := range bars {
		sum += b.Close * float64(b.Volume)
	}
	return sum / float64(len(bars)), nil
}

func gradeFromDecision(d aegis.Decision) domain.Grade {
	switch d {
	case aegis.DecisionStrongBuy:
		return domain.GradeS
	case aegis.DecisionBuy:
		return domain.GradeA
	case aegis.DecisionHold:
		return domain.GradeB
	case aegis.DecisionSell:
		return domain.GradeC
	default: // STRONG_SELL, FORCE_SELL, BLOCK_BUY, BLOCK_NEW_BUY
		return domain.GradeD
	}
}

// confidenceFromFusion blends the regime classifier's confidence with how
// decisively the fused score clears its decision threshold, into [0,1].
func confidenceFromFusion(f aegis.FusionResult) float64 {
	magnitude := f.FinalScore
	if magnitude < 0 {
		magnitude = -magnitude
	}
	c := (magnitude + f.Confidence) / 2
	if c > 1 {
		c = 1
	}
	if c < 0 {
		c = 0
	}
	return c
}

func rationale(f aegis.FusionResult, results map[string]aegis.AnalyserResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s under %s regime (final score %.2f).", f.Decision, f.Regime, f.FinalScore)
	if f.VetoReason != "" {
		fmt.Fprintf(&b, " Veto: %s.", f.VetoReason)
	}
	for _, name := range []string{"technical", "disclosure", "supply_demand", "fundamental", "news", "consensus", "market_context"} {
		res, ok := results[name]
		if !ok || len(res.KeyEvents) == 0 {
			continue
		}
		fmt.Fprintf(&b, " %s: %s.", name, strings.Join(res.KeyEvents, ", "))
	}
	return b.String()
}

func scoreBreakdown(results map[string]aegis.AnalyserResult) domain.ScoreBreakdown {
	return domain.ScoreBreakdown{
		Technical:   results["technical"].Score,
		Disclosure:  results["disclosure"].Score,
		Supply:      results["supply_demand"].Score,
		Fundamental: results["fundamental"].Score,
		News:        results["news"].Score,
		Consensus:   results["consensus"].Score,
		MarketCtx:   results["market_context"].Score,
	}
}
