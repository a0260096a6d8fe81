package aegis

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/aegis-kr/internal/config"
	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/stretchr/testify/require"
)

func newTestOHLCV(t *testing.T) *database.OHLCVStore {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileStandard, Name: "universe"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return database.NewOHLCVStore(db)
}

// seedIndex writes 90 daily bars for ticker where the trailing 20 closes
// average to ma20 and the trailing 60 closes average to ma60 — the oldest
// 30 bars are padding outside either window.
func seedIndex(t *testing.T, store *database.OHLCVStore, ticker string, ma20, ma60 float64) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	// Solve for the older-40-of-60 close so (40*older + 20*ma20)/60 == ma60.
	older := (ma60*60 - ma20*20) / 40

	closes := make([]float64, 90)
	for i := 0; i < 30; i++ {
		closes[i] = older // padding, outside both windows
	}
	for i := 30; i < 70; i++ {
		closes[i] = older
	}
	for i := 70; i < 90; i++ {
		closes[i] = ma20
	}

	for i, close := range closes {
		bar := domain.OHLCV{
			Ticker: ticker,
			Date:   base.AddDate(0, 0, i),
			Open:   close, High: close * 1.01, Low: close * 0.99, Close: close,
			Volume: 1_000_000,
		}
		require.NoError(t, store.Upsert(ctx, bar))
	}
}

func regimeCfg() config.RegimeConfig {
	return config.RegimeConfig{BullMultiplier: 1.02, BearMultiplier: 0.98}
}

// TestRegimeClassifier_BullConfidence: MA20=105, MA60=100
// must classify BULL with confidence exactly 0.05.
func TestRegimeClassifier_BullConfidence(t *testing.T) {
	store := newTestOHLCV(t)
	seedIndex(t, store, "U001", 105, 100)

	classifier := NewRegimeClassifier(store, regimeCfg(), "U001")
	reading, err := classifier.Classify(context.Background(), time.Now())
	require.NoError(t, err)

	require.Equal(t, RegimeBull, reading.Regime)
	require.InDelta(t, 0.05, reading.Confidence, 1e-9)
}

func TestRegimeClassifier_BearConfidence(t *testing.T) {
	store := newTestOHLCV(t)
	seedIndex(t, store, "U001", 95, 100)

	classifier := NewRegimeClassifier(store, regimeCfg(), "U001")
	reading, err := classifier.Classify(context.Background(), time.Now())
	require.NoError(t, err)

	require.Equal(t, RegimeBear, reading.Regime)
	require.InDelta(t, 0.05, reading.Confidence, 1e-9)
}

func TestRegimeClassifier_SidewayWhenWithinBand(t *testing.T) {
	store := newTestOHLCV(t)
	seedIndex(t, store, "U001", 101, 100)

	classifier := NewRegimeClassifier(store, regimeCfg(), "U001")
	reading, err := classifier.Classify(context.Background(), time.Now())
	require.NoError(t, err)

	require.Equal(t, RegimeSideway, reading.Regime)
	require.InDelta(t, 0.01, reading.Confidence, 1e-9)
}

func TestRegimeClassifier_InsufficientHistoryDefaultsSideway(t *testing.T) {
	store := newTestOHLCV(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 10; i++ {
		require.NoError(t, store.Upsert(ctx, domain.OHLCV{
			Ticker: "U001", Date: base.AddDate(0, 0, i),
			Open: 100, High: 101, Low: 99, Close: 100, Volume: 1_000_000,
		}))
	}

	classifier := NewRegimeClassifier(store, regimeCfg(), "U001")
	reading, err := classifier.Classify(ctx, time.Now())
	require.NoError(t, err)
	require.Equal(t, RegimeSideway, reading.Regime)
	require.Zero(t, reading.Confidence)
}
