package database

import (
	"context"
	"time"

	"github.com/aristath/aegis-kr/internal/domain"
)

const dateFormat = "2006-01-02"

// OHLCVStore persists daily price bars in universe.db.
type OHLCVStore struct {
	db *DB
}

func NewOHLCVStore(db *DB) *OHLCVStore {
	return &OHLCVStore{db: db}
}

// Upsert idempotently writes one bar, keyed on (ticker, date).
func (s *OHLCVStore) Upsert(ctx context.Context, b domain.OHLCV) error {
	if !b.Valid() {
		return domain.NewPersistenceError("OHLCVStore.Upsert", domain.PersistenceIntegrity, nil)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ohlcv (ticker, date, open, high, low, close, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET
			open = excluded.open, high = excluded.high, low = excluded.low,
			close = excluded.close, volume = excluded.volume
	`, b.Ticker, b.Date.Format(dateFormat), b.Open, b.High, b.Low, b.Close, b.Volume)
	if err != nil {
		return domain.NewPersistenceError("OHLCVStore.Upsert", domain.PersistenceUnavailable, err)
	}
	return nil
}

// Recent returns the most recent `limit` bars for ticker, oldest first —
// the shape every analyser and indicator calculator consumes.
func (s *OHLCVStore) Recent(ctx context.Context, ticker string, limit int) ([]domain.OHLCV, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, date, open, high, low, close, volume
		FROM ohlcv WHERE ticker = ? ORDER BY date DESC LIMIT ?
	`, ticker, limit)
	if err != nil {
		return nil, domain.NewPersistenceError("OHLCVStore.Recent", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	var out []domain.OHLCV
	for rows.Next() {
		var b domain.OHLCV
		var date string
		if err := rows.Scan(&b.Ticker, &date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, domain.NewPersistenceError("OHLCVStore.Recent", domain.PersistenceIntegrity, err)
		}
		b.Date, err = time.Parse(dateFormat, date)
		if err != nil {
			return nil, domain.NewPersistenceError("OHLCVStore.Recent", domain.PersistenceIntegrity, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("OHLCVStore.Recent", domain.PersistenceUnavailable, err)
	}

	// reverse to oldest-first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// Between returns every bar for ticker within [start,end] inclusive,
// oldest first — the window the price tracker computes realised drawdown
// over.
func (s *OHLCVStore) Between(ctx context.Context, ticker string, start, end time.Time) ([]domain.OHLCV, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, date, open, high, low, close, volume
		FROM ohlcv WHERE ticker = ? AND date BETWEEN ? AND ? ORDER BY date ASC
	`, ticker, start.Format(dateFormat), end.Format(dateFormat))
	if err != nil {
		return nil, domain.NewPersistenceError("OHLCVStore.Between", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	var out []domain.OHLCV
	for rows.Next() {
		var b domain.OHLCV
		var date string
		if err := rows.Scan(&b.Ticker, &date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, domain.NewPersistenceError("OHLCVStore.Between", domain.PersistenceIntegrity, err)
		}
		b.Date, err = time.Parse(dateFormat, date)
		if err != nil {
			return nil, domain.NewPersistenceError("OHLCVStore.Between", domain.PersistenceIntegrity, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("OHLCVStore.Between", domain.PersistenceUnavailable, err)
	}
	return out, nil
}

// DailyChange is one ticker's close-to-close percentage move on its most
// recent trading day, joined against its sector for breadth/heat-map use.
type DailyChange struct {
	Ticker    string
	Sector    string
	PctChange float64
}

// LatestChanges computes, for every ticker with at least two bars, the
// percentage change between its two most recent closes — the raw input
// to market breadth (advancers/decliners) and sector heat maps.
func (s *OHLCVStore) LatestChanges(ctx context.Context) ([]DailyChange, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT t.code, t.sector, today.close, prev.close
		FROM tickers t
		JOIN ohlcv today ON today.ticker = t.code
			AND today.date = (SELECT MAX(date) FROM ohlcv o WHERE o.ticker = t.code)
		JOIN ohlcv prev ON prev.ticker = t.code
			AND prev.date = (SELECT MAX(date) FROM ohlcv o WHERE o.ticker = t.code AND o.date < today.date)
		WHERE t.is_delisted = 0
	`)
	if err != nil {
		return nil, domain.NewPersistenceError("OHLCVStore.LatestChanges", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	var out []DailyChange
	for rows.Next() {
		var ticker, sector string
		var todayClose, prevClose float64
		if err := rows.Scan(&ticker, &sector, &todayClose, &prevClose); err != nil {
			return nil, domain.NewPersistenceError("OHLCVStore.LatestChanges", domain.PersistenceIntegrity, err)
		}
		var pct float64
		if prevClose != 0 {
			pct = (todayClose - prevClose) / prevClose
		}
		out = append(out, DailyChange{Ticker: ticker, Sector: sector, PctChange: pct})
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("OHLCVStore.LatestChanges", domain.PersistenceUnavailable, err)
	}
	return out, nil
}
