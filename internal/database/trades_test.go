package database

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTradeStore_BuyCreatesHoldingWithAverageCost(t *testing.T) {
	db := newUniverseTestDB(t)
	store := NewTradeStore(db)
	ctx := context.Background()

	_, err := store.Insert(ctx, domain.TradeRecord{
		Ticker: "005930", Side: domain.TradeBuy, Quantity: 10, Price: 70000, Fees: 100, Total: -700100,
		ExecutedAt: time.Now(), RawText: "buy 10 005930 @ 70000",
	})
	require.NoError(t, err)

	holdings := NewHoldingStore(db)
	h, err := holdings.Get(ctx, "005930")
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, 10.0, h.Quantity)
	assert.Equal(t, 70000.0, h.AvgBuyPrice)
}

func TestTradeStore_BuyThenBuyAveragesCost(t *testing.T) {
	db := newUniverseTestDB(t)
	store := NewTradeStore(db)
	ctx := context.Background()

	require.NoError(t, insertTrade(ctx, store, "005930", domain.TradeBuy, 10, 70000))
	require.NoError(t, insertTrade(ctx, store, "005930", domain.TradeBuy, 10, 80000))

	h, err := NewHoldingStore(db).Get(ctx, "005930")
	require.NoError(t, err)
	assert.Equal(t, 20.0, h.Quantity)
	assert.InDelta(t, 75000.0, h.AvgBuyPrice, 0.01)
}

func TestTradeStore_SellReducesQuantityKeepsAvgCost(t *testing.T) {
	db := newUniverseTestDB(t)
	store := NewTradeStore(db)
	ctx := context.Background()

	require.NoError(t, insertTrade(ctx, store, "005930", domain.TradeBuy, 10, 70000))
	require.NoError(t, insertTrade(ctx, store, "005930", domain.TradeSell, 4, 72000))

	h, err := NewHoldingStore(db).Get(ctx, "005930")
	require.NoError(t, err)
	assert.Equal(t, 6.0, h.Quantity)
	assert.Equal(t, 70000.0, h.AvgBuyPrice)
}

func TestTradeStore_RejectsInvalidRecord(t *testing.T) {
	db := newUniverseTestDB(t)
	store := NewTradeStore(db)

	_, err := store.Insert(context.Background(), domain.TradeRecord{Ticker: "005930", Side: domain.TradeBuy, Quantity: 0, Price: 100})
	require.Error(t, err)
	var perr *domain.PersistenceError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, domain.PersistenceIntegrity, perr.Kind)
}

func insertTrade(ctx context.Context, store *TradeStore, ticker string, side domain.TradeSide, qty int64, price float64) error {
	_, err := store.Insert(ctx, domain.TradeRecord{
		Ticker: ticker, Side: side, Quantity: qty, Price: price, ExecutedAt: time.Now(),
	})
	return err
}
