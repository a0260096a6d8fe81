// Package screener implements the two-stage candidate screener: a SQL
// filter over the stock universe (PBR/PER/volume/market-cap/trading-value
// bounds) followed by a technical composite score over 60 days of OHLCV,
// producing a ranked candidate list the AEGIS pipeline analyses next.
package screener

import (
	"context"
	"sort"

	"github.com/aristath/aegis-kr/internal/config"
	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/pkg/formulas"
	"github.com/aristath/aegis-kr/pkg/logger"
	"github.com/rs/zerolog"
)

// Candidate is one Stage-2 survivor, carrying its quant score and the raw
// valuation fields the tie-break rule reads.
type Candidate struct {
	Ticker     string
	QuantScore QuantScore
}

// Screener runs Stage 1 (SQL bounds) then Stage 2 (technical composite)
// over the survivors.
type Screener struct {
	Fundamentals *database.FundamentalsStore
	OHLCV        *database.OHLCVStore
	Flows        *database.SupplyDemandStore
	Config       config.ScreenerConfig
	Log          zerolog.Logger
}

func New(fundamentals *database.FundamentalsStore, ohlcv *database.OHLCVStore, flows *database.SupplyDemandStore, cfg config.ScreenerConfig, log zerolog.Logger) *Screener {
	return &Screener{Fundamentals: fundamentals, OHLCV: ohlcv, Flows: flows, Config: cfg, Log: logger.Component(log, "screener")}
}

// Run executes both stages and returns the Stage-2 survivors ordered by
// quant score descending, ties broken by ascending PBR then ascending PER.
func (s *Screener) Run(ctx context.Context) ([]Candidate, error) {
	stage1, err := s.Fundamentals.ScreenStage1(ctx,
		s.Config.PBRMin, s.Config.PBRMax, s.Config.PERMin, s.Config.PERMax,
		s.Config.MinMarketCap, s.Config.MinTradingValue, s.Config.MinVolume, s.Config.Stage1Limit)
	if err != nil {
		return nil, err
	}

	raw := make([]Candidate, 0, len(stage1))
	for _, ticker := range stage1 {
		f, err := s.Fundamentals.Get(ctx, ticker)
		if err != nil {
			s.Log.Warn().Err(err).Str("ticker", ticker).Msg("stage2: fundamentals lookup failed, dropping candidate")
			continue
		}

		bars, err := s.OHLCV.Recent(ctx, ticker, 60)
		if err != nil {
			s.Log.Warn().Err(err).Str("ticker", ticker).Msg("stage2: ohlcv lookup failed, dropping candidate")
			continue
		}
		if len(bars) < 20 {
			continue
		}

		if s.failsHardGuards(bars) {
			continue
		}

		qs := computeQuantScore(bars, *f)
		raw = append(raw, Candidate{Ticker: ticker, QuantScore: qs})
	}

	sort.Slice(raw, func(i, j int) bool {
		a, b := raw[i].QuantScore, raw[j].QuantScore
		if a.Total != b.Total {
			return a.Total > b.Total
		}
		if a.PBR != b.PBR {
			return a.PBR < b.PBR
		}
		return a.PER < b.PER
	})

	topN := s.Config.Stage2TopN
	if topN <= 0 || topN > len(raw) {
		topN = len(raw)
	}
	return raw[:topN], nil
}

// failsHardGuards applies the supplemented Stage-1 hard cuts: 1-day and
// 5-day crashes, 5-day overheating, and an RSI floor that distinguishes a
// healthy pullback from a broken trend. Each guard is independently
// configuration-gated.
func (s *Screener) failsHardGuards(bars []domain.OHLCV) bool {
	closes := closesOf(bars)
	n := len(closes)

	if s.Config.DrawdownGuard {
		if n >= 2 {
			oneDay := pctChange(closes[n-2], closes[n-1])
			if oneDay <= -0.09 {
				return true
			}
		}
		if n >= 6 {
			fiveDay := pctChange(closes[n-6], closes[n-1])
			if fiveDay <= -0.18 {
				return true
			}
		}
	}

	if s.Config.OverheatGuard && n >= 6 {
		fiveDay := pctChange(closes[n-6], closes[n-1])
		if fiveDay >= 0.35 {
			return true
		}
	}

	if s.Config.VolatilityGuard && n >= 20 {
		vol := formulas.StdDev(formulas.CalculateReturns(closes[n-20:]))
		if vol >= 0.08 { // roughly top-decile daily-return volatility for KRX mid/large caps
			return true
		}
	}

	if s.Config.RSIGuard {
		floor := s.Config.RSIFloor
		if floor <= 0 {
			floor = 10
		}
		rsi := formulas.CalculateRSI(closes, 14)
		if rsi != nil && *rsi <= floor {
			return true
		}
	}

	return false
}

func pctChange(from, to float64) float64 {
	if from == 0 {
		return 0
	}
	return (to - from) / from
}
