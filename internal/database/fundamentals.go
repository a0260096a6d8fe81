package database

import (
	"context"

	"github.com/aristath/aegis-kr/internal/domain"
)

// FundamentalsStore persists the latest valuation snapshot in universe.db.
type FundamentalsStore struct {
	db *DB
}

func NewFundamentalsStore(db *DB) *FundamentalsStore {
	return &FundamentalsStore{db: db}
}

func (s *FundamentalsStore) Upsert(ctx context.Context, f domain.Fundamentals) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO fundamentals (ticker, as_of, pbr, per, roe, debt_ratio, market_cap, trading_value)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			as_of = excluded.as_of, pbr = excluded.pbr, per = excluded.per,
			roe = excluded.roe, debt_ratio = excluded.debt_ratio,
			market_cap = excluded.market_cap, trading_value = excluded.trading_value
	`, f.Ticker, f.AsOf.Format(dateFormat), f.PBR, f.PER, f.ROE, f.DebtRatio, f.MarketCap, f.TradingValue)
	if err != nil {
		return domain.NewPersistenceError("FundamentalsStore.Upsert", domain.PersistenceUnavailable, err)
	}
	return nil
}

func (s *FundamentalsStore) Get(ctx context.Context, ticker string) (*domain.Fundamentals, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ticker, as_of, pbr, per, roe, debt_ratio, market_cap, trading_value
		FROM fundamentals WHERE ticker = ?
	`, ticker)

	var f domain.Fundamentals
	var asOf string
	if err := row.Scan(&f.Ticker, &asOf, &f.PBR, &f.PER, &f.ROE, &f.DebtRatio, &f.MarketCap, &f.TradingValue); err != nil {
		return nil, domain.NewPersistenceError("FundamentalsStore.Get", domain.PersistenceUnavailable, err)
	}
	parsed, err := parseDate(asOf)
	if err != nil {
		return nil, domain.NewPersistenceError("FundamentalsStore.Get", domain.PersistenceIntegrity, err)
	}
	f.AsOf = parsed
	return &f, nil
}

// ScreenStage1 is the Stage-1 SQL filter: PBR/PER/volume/market-cap/
// trading-value bounds, excluding current holdings, ordered by freshness
// (as_of DESC) and capped at limit.
func (s *FundamentalsStore) ScreenStage1(ctx context.Context, pbrMin, pbrMax, perMin, perMax float64, minMarketCap, minTradingValue float64, minVolume int64, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.ticker
		FROM fundamentals f
		JOIN tickers t ON t.code = f.ticker
		LEFT JOIN holdings h ON h.ticker = f.ticker AND h.quantity > 0
		JOIN (
			SELECT ticker, volume FROM ohlcv o1
			WHERE date = (SELECT MAX(date) FROM ohlcv o2 WHERE o2.ticker = o1.ticker)
		) latest ON latest.ticker = f.ticker
		WHERE t.is_delisted = 0
		AND h.ticker IS NULL
		AND f.pbr BETWEEN ? AND ?
		AND f.per BETWEEN ? AND ?
		AND latest.volume >= ?
		AND f.market_cap >= ?
		AND f.trading_value >= ?
		ORDER BY f.as_of DESC
		LIMIT ?
	`, pbrMin, pbrMax, perMin, perMax, minVolume, minMarketCap, minTradingValue, limit)
	if err != nil {
		return nil, domain.NewPersistenceError("FundamentalsStore.ScreenStage1", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, domain.NewPersistenceError("FundamentalsStore.ScreenStage1", domain.PersistenceIntegrity, err)
		}
		out = append(out, ticker)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("FundamentalsStore.ScreenStage1", domain.PersistenceUnavailable, err)
	}
	return out, nil
}
