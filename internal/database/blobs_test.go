package database

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCacheTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: ":memory:", Profile: ProfileCache, Name: "cache"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func newLedgerTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: ":memory:", Profile: ProfileLedger, Name: "ledger"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

// TestBlobStore_UpsertIsIdempotent verifies that persisting the same fetch
// result twice leaves exactly one row behind its natural key.
func TestBlobStore_UpsertIsIdempotent(t *testing.T) {
	db := newCacheTestDB(t)
	store := NewBlobStore(db)
	ctx := context.Background()

	blob := domain.CollectedBlob{
		Ticker: "005930", SiteID: "krx", DomainID: "price", DataType: "ohlcv_daily",
		DataDate: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
		Content:  map[string]any{"close": 71000.0},
	}

	require.NoError(t, store.Upsert(ctx, blob))
	blob.Content = map[string]any{"close": 71500.0}
	require.NoError(t, store.Upsert(ctx, blob))

	var count int
	row := db.Conn().QueryRow(`
		SELECT COUNT(*) FROM collected_blobs
		WHERE ticker = ? AND site_id = ? AND data_type = ? AND data_date = ?
	`, "005930", "krx", "ohlcv_daily", "2026-07-01")
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)

	latest, err := store.Latest(ctx, "005930", "ohlcv_daily")
	require.NoError(t, err)
	assert.Equal(t, 71500.0, latest.Content["close"])
}

// TestTickStore_InsertUpdatesHoldingCurrentPrice verifies the tick-ingest
// side effect: the holding's current_price follows the latest print.
func TestTickStore_InsertUpdatesHoldingCurrentPrice(t *testing.T) {
	db := newUniverseTestDB(t)
	ticks := NewTickStore(db)
	holdings := NewHoldingStore(db)
	ctx := context.Background()

	require.NoError(t, holdings.Upsert(ctx, domain.Holding{
		Ticker: "005930", Quantity: 10, AvgBuyPrice: 70000, CurrentPrice: 70000,
	}))

	require.NoError(t, ticks.Insert(ctx, domain.Tick{
		Ticker: "005930", Timestamp: time.Date(2026, 7, 1, 10, 30, 0, 0, time.UTC),
		Price: 72500, Volume: 150,
	}))

	h, err := holdings.Get(ctx, "005930")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, 72500.0, h.CurrentPrice)
	assert.Equal(t, 70000.0, h.AvgBuyPrice)
}

// TestTickStore_InsertWithoutHoldingSucceeds — ticks for tickers not held
// still persist; only the holdings projection is skipped.
func TestTickStore_InsertWithoutHoldingSucceeds(t *testing.T) {
	db := newUniverseTestDB(t)
	ticks := NewTickStore(db)
	ctx := context.Background()

	require.NoError(t, ticks.Insert(ctx, domain.Tick{
		Ticker: "000660", Timestamp: time.Date(2026, 7, 1, 10, 30, 0, 0, time.UTC),
		Price: 180000, Volume: 25,
	}))

	latest, err := ticks.Latest(ctx, "000660")
	require.NoError(t, err)
	require.NotNil(t, latest)
	assert.Equal(t, 180000.0, latest.Price)
}

// TestRetrospectiveStore_OnePerRecommendationHorizon verifies at most one
// retrospective survives per (rec_id, days_held) no matter how many writes.
func TestRetrospectiveStore_OnePerRecommendationHorizon(t *testing.T) {
	db := newLedgerTestDB(t)
	store := NewRetrospectiveStore(db)
	ctx := context.Background()

	r := domain.Retrospective{
		RecID: 42, DaysHeld: 30,
		MissedRisks: "sector-wide inventory glut", ActualCause: "guidance cut",
		Lesson: "weight consensus revisions higher", ConfidenceAdjustment: -4,
	}
	require.NoError(t, store.Upsert(ctx, r))

	r.Lesson = "weight consensus revisions higher, check peer guidance"
	require.NoError(t, store.Upsert(ctx, r))

	var count int
	row := db.Conn().QueryRow(`SELECT COUNT(*) FROM retrospectives WHERE rec_id = ? AND days_held = ?`, 42, 30)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}

func TestPerformanceStore_UpsertUniqueByRecAndHorizon(t *testing.T) {
	db := newLedgerTestDB(t)
	store := NewPerformanceStore(db)
	ctx := context.Background()

	p := domain.Performance{
		RecID: 7, DaysHeld: 14, CheckPrice: 10200, ReturnRate: 0.02,
		MaxDrawdown: -0.03, Status: domain.PerformanceActive,
	}
	require.NoError(t, store.Upsert(ctx, p))
	p.CheckPrice = 10150
	require.NoError(t, store.Upsert(ctx, p))

	var count int
	row := db.Conn().QueryRow(`SELECT COUNT(*) FROM performance WHERE rec_id = ? AND days_held = ?`, 7, 14)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}
