package screener

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/aegis-kr/internal/config"
	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *database.DB {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileStandard, Name: "universe"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func seedCandidate(t *testing.T, db *database.DB, ticker string, pbr, per float64, trendingUp bool, lastRSIBreak bool) {
	t.Helper()
	ctx := context.Background()

	tickers := database.NewTickerStore(db)
	require.NoError(t, tickers.Upsert(ctx, domain.Ticker{Code: ticker, Name: ticker, Market: domain.MarketKOSPI, Sector: "Tech"}))

	funds := database.NewFundamentalsStore(db)
	require.NoError(t, funds.Upsert(ctx, domain.Fundamentals{
		Ticker: ticker, AsOf: time.Now(), PBR: pbr, PER: per,
		ROE: 10, DebtRatio: 50, MarketCap: 1e11, TradingValue: 1e10,
	}))

	ohlcv := database.NewOHLCVStore(db)
	base := time.Now().AddDate(0, 0, -60)
	price := 10000.0
	for i := 0; i < 60; i++ {
		date := base.AddDate(0, 0, i)
		if trendingUp {
			price += 50
		} else if lastRSIBreak {
			price *= 0.985 // steady decline: too gentle for the drawdown guard, RSI grinds to the floor
		}
		require.NoError(t, ohlcv.Upsert(ctx, domain.OHLCV{
			Ticker: ticker, Date: date,
			Open: price - 10, High: price + 20, Low: price - 30, Close: price,
			Volume: 100_000,
		}))
	}
}

func testConfig() config.ScreenerConfig {
	return config.ScreenerConfig{
		PBRMin: 0, PBRMax: 10, PERMin: 0, PERMax: 100,
		MinVolume: 0, MinMarketCap: 0, MinTradingValue: 0,
		Stage1Limit: 100, Stage2TopN: 50,
		DrawdownGuard: true, OverheatGuard: true, VolatilityGuard: true,
		RSIGuard: true, RSIFloor: 10,
	}
}

func TestScreener_RanksByQuantScoreThenTieBreak(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedCandidate(t, db, "000001", 0.8, 10, true, false)
	seedCandidate(t, db, "000002", 0.5, 8, false, false)

	s := New(database.NewFundamentalsStore(db), database.NewOHLCVStore(db), database.NewSupplyDemandStore(db), testConfig(), zerolog.Nop())
	candidates, err := s.Run(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	require.Equal(t, "000001", candidates[0].Ticker) // strong uptrend outscores the flat series
}

func TestScreener_RSIGuardExcludesBrokenTrend(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedCandidate(t, db, "000001", 0.8, 10, true, false)
	seedCandidate(t, db, "000003", 0.8, 10, false, true) // relentless decline -> RSI floor breach

	s := New(database.NewFundamentalsStore(db), database.NewOHLCVStore(db), database.NewSupplyDemandStore(db), testConfig(), zerolog.Nop())
	candidates, err := s.Run(ctx)
	require.NoError(t, err)

	for _, c := range candidates {
		require.NotEqual(t, "000003", c.Ticker)
	}
}

func TestScreener_StageCapsAtTopN(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	seedCandidate(t, db, "000001", 0.8, 10, true, false)
	seedCandidate(t, db, "000002", 0.5, 8, true, false)

	cfg := testConfig()
	cfg.Stage2TopN = 1
	s := New(database.NewFundamentalsStore(db), database.NewOHLCVStore(db), database.NewSupplyDemandStore(db), cfg, zerolog.Nop())
	candidates, err := s.Run(ctx)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
}
