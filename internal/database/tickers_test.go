package database

import (
	"context"
	"testing"

	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUniverseTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(Config{Path: ":memory:", Profile: ProfileStandard, Name: "universe"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func TestTickerStore_UpsertAndGet(t *testing.T) {
	db := newUniverseTestDB(t)
	store := NewTickerStore(db)
	ctx := context.Background()

	t1 := domain.Ticker{Code: "005930", Name: "Samsung Electronics", Market: domain.MarketKOSPI, Sector: "Semiconductors"}
	require.NoError(t, store.Upsert(ctx, t1))

	got, err := store.Get(ctx, "005930")
	require.NoError(t, err)
	assert.Equal(t, t1, *got)

	t1.Name = "Samsung Electronics Co"
	t1.IsDelisted = false
	require.NoError(t, store.Upsert(ctx, t1))

	got, err = store.Get(ctx, "005930")
	require.NoError(t, err)
	assert.Equal(t, "Samsung Electronics Co", got.Name)
}

func TestTickerStore_ListActive_ExcludesDelisted(t *testing.T) {
	db := newUniverseTestDB(t)
	store := NewTickerStore(db)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, domain.Ticker{Code: "005930", Name: "Samsung", Market: domain.MarketKOSPI}))
	require.NoError(t, store.Upsert(ctx, domain.Ticker{Code: "000020", Name: "Dongwha", Market: domain.MarketKOSPI, IsDelisted: true}))

	active, err := store.ListActive(ctx, "")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "005930", active[0].Code)
}

func TestOHLCVStore_RejectsInvalidBar(t *testing.T) {
	db := newUniverseTestDB(t)
	store := NewOHLCVStore(db)

	err := store.Upsert(context.Background(), domain.OHLCV{
		Ticker: "005930", Open: 100, High: 90, Low: 80, Close: 85, Volume: 10,
	})
	require.Error(t, err)
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.PersistenceIntegrity, perr.Kind)
}

func TestHoldingStore_UpsertAndGet(t *testing.T) {
	db := newUniverseTestDB(t)
	store := NewHoldingStore(db)
	ctx := context.Background()

	h := domain.Holding{Ticker: "005930", Quantity: 10, AvgBuyPrice: 70000, CurrentPrice: 71000}
	require.NoError(t, store.Upsert(ctx, h))

	got, err := store.Get(ctx, "005930")
	require.NoError(t, err)
	assert.Equal(t, h, *got)
}
