package recommendation

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lifecycleFixture struct {
	recs     *database.RecommendationStore
	ohlcv    *database.OHLCVStore
	perf     *database.PerformanceStore
	retros   *database.RetrospectiveStore
	blobs    *database.BlobStore
	ledgerDB *database.DB
}

func newLifecycleFixture(t *testing.T) *lifecycleFixture {
	t.Helper()

	ledger, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileLedger, Name: "ledger"})
	require.NoError(t, err)
	require.NoError(t, ledger.Migrate())
	t.Cleanup(func() { ledger.Close() })

	universe, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileStandard, Name: "universe"})
	require.NoError(t, err)
	require.NoError(t, universe.Migrate())
	t.Cleanup(func() { universe.Close() })

	cache, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileCache, Name: "cache"})
	require.NoError(t, err)
	require.NoError(t, cache.Migrate())
	t.Cleanup(func() { cache.Close() })

	return &lifecycleFixture{
		recs:     database.NewRecommendationStore(ledger),
		ohlcv:    database.NewOHLCVStore(universe),
		perf:     database.NewPerformanceStore(ledger),
		retros:   database.NewRetrospectiveStore(ledger),
		blobs:    database.NewBlobStore(cache),
		ledgerDB: ledger,
	}
}

func seedBar(t *testing.T, store *database.OHLCVStore, ticker string, date time.Time, close float64) {
	t.Helper()
	require.NoError(t, store.Upsert(context.Background(), domain.OHLCV{
		Ticker: ticker, Date: date,
		Open: close, High: close * 1.02, Low: close * 0.98, Close: close,
		Volume: 500_000,
	}))
}

// fakeGenerator returns a fixed, contract-conforming JSON response and
// counts invocations.
type fakeGenerator struct {
	calls int
	raw   string
}

func (g *fakeGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	g.calls++
	return g.raw, nil
}

// TestLifecycle_TrackThenRetrospect walks the lifecycle end to end: a D0
// recommendation at 10,000 checked against closes of 10,500 / 10,200 /
// 8,900 at the 7/14/30-day horizons yields active/active/failed rows, and
// exactly one retrospective for the failed horizon.
func TestLifecycle_TrackThenRetrospect(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()
	recDate := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)

	recID, err := fx.recs.Insert(ctx, domain.Recommendation{
		BatchID: "batch-1", Ticker: "005930", RecDate: recDate, RecPrice: 10_000,
		Grade: domain.GradeA, Confidence: 0.8, Rationale: "breakout with dual net buying",
		FinalScore: 0.45,
	})
	require.NoError(t, err)

	seedBar(t, fx.ohlcv, "005930", recDate.AddDate(0, 0, 7), 10_500)
	seedBar(t, fx.ohlcv, "005930", recDate.AddDate(0, 0, 14), 10_200)
	seedBar(t, fx.ohlcv, "005930", recDate.AddDate(0, 0, 30), 8_900)

	tracker := &PriceTracker{
		Recommendations: fx.recs, OHLCV: fx.ohlcv, Performance: fx.perf,
		Log: zerolog.Nop(),
	}
	summary, err := tracker.Run(ctx, recDate.AddDate(0, 0, 30))
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Written)

	wantByHorizon := map[int]struct {
		ret    float64
		status domain.PerformanceStatus
	}{
		7:  {0.05, domain.PerformanceActive},
		14: {0.02, domain.PerformanceActive},
		30: {-0.11, domain.PerformanceFailed},
	}
	for horizon, want := range wantByHorizon {
		var ret float64
		var status string
		row := fx.ledgerDB.Conn().QueryRow(
			`SELECT return_rate, status FROM performance WHERE rec_id = ? AND days_held = ?`, recID, horizon)
		require.NoError(t, row.Scan(&ret, &status))
		assert.InDelta(t, want.ret, ret, 1e-9, "horizon %d", horizon)
		assert.Equal(t, string(want.status), status, "horizon %d", horizon)
	}

	// A second tracker run finds nothing left to check.
	summary, err = tracker.Run(ctx, recDate.AddDate(0, 0, 31))
	require.NoError(t, err)
	assert.Zero(t, summary.Written)

	gen := &fakeGenerator{raw: `{"missed_risks":"earnings miss risk","actual_cause":"guidance cut",` +
		`"lesson":"check consensus revisions","improvement":"add revision gate","confidence_adjustment":-3}`}
	job := &RetrospectiveJob{
		Performance: fx.perf, Retrospectives: fx.retros, Recommendations: fx.recs,
		Blobs: fx.blobs, Generator: gen, RateGap: time.Millisecond, Log: zerolog.Nop(),
	}

	rsum, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rsum.Written)
	assert.Equal(t, 1, gen.calls)

	// Re-running must not duplicate or regenerate.
	rsum, err = job.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, rsum.Written)
	assert.Equal(t, 1, gen.calls)

	var count int
	row := fx.ledgerDB.Conn().QueryRow(`SELECT COUNT(*) FROM retrospectives WHERE rec_id = ?`, recID)
	require.NoError(t, row.Scan(&count))
	assert.Equal(t, 1, count)
}

// TestRetrospectiveJob_UnparseableResponseSkipsWithoutWrite pins the
// ai_error path: a malformed LLM response writes nothing and is retried on
// the next run.
func TestRetrospectiveJob_UnparseableResponseSkipsWithoutWrite(t *testing.T) {
	fx := newLifecycleFixture(t)
	ctx := context.Background()

	recID, err := fx.recs.Insert(ctx, domain.Recommendation{
		BatchID: "batch-2", Ticker: "000660", RecDate: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		RecPrice: 180_000, Grade: domain.GradeB, Confidence: 0.6, FinalScore: 0.3,
	})
	require.NoError(t, err)
	require.NoError(t, fx.perf.Upsert(ctx, domain.Performance{
		RecID: recID, DaysHeld: 7, CheckPrice: 150_000, ReturnRate: -0.17,
		MaxDrawdown: 0.2, Status: domain.PerformanceFailed,
	}))

	gen := &fakeGenerator{raw: "sorry, I cannot help with that"}
	job := &RetrospectiveJob{
		Performance: fx.perf, Retrospectives: fx.retros, Recommendations: fx.recs,
		Blobs: fx.blobs, Generator: gen, RateGap: time.Millisecond, Log: zerolog.Nop(),
	}

	rsum, err := job.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rsum.AIError)
	assert.Zero(t, rsum.Written)

	var count int
	row := fx.ledgerDB.Conn().QueryRow(`SELECT COUNT(*) FROM retrospectives WHERE rec_id = ?`, recID)
	require.NoError(t, row.Scan(&count))
	assert.Zero(t, count)
}
