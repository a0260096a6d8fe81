package database

import (
	"context"
	"database/sql"
	"errors"

	"github.com/aristath/aegis-kr/internal/domain"
)

// TickerStore persists the Ticker master list in universe.db.
type TickerStore struct {
	db *DB
}

func NewTickerStore(db *DB) *TickerStore {
	return &TickerStore{db: db}
}

// Upsert inserts or updates a Ticker's mutable fields (name, delisted flag).
func (s *TickerStore) Upsert(ctx context.Context, t domain.Ticker) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickers (code, name, market, sector, is_delisted)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET
			name = excluded.name,
			is_delisted = excluded.is_delisted
	`, t.Code, t.Name, string(t.Market), t.Sector, t.IsDelisted)
	if err != nil {
		return domain.NewPersistenceError("TickerStore.Upsert", domain.PersistenceUnavailable, err)
	}
	return nil
}

// Get returns a single Ticker by code.
func (s *TickerStore) Get(ctx context.Context, code string) (*domain.Ticker, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT code, name, market, sector, is_delisted FROM tickers WHERE code = ?
	`, code)

	var t domain.Ticker
	var market string
	if err := row.Scan(&t.Code, &t.Name, &market, &t.Sector, &t.IsDelisted); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewPersistenceError("TickerStore.Get", domain.PersistenceIntegrity, err)
		}
		return nil, domain.NewPersistenceError("TickerStore.Get", domain.PersistenceUnavailable, err)
	}
	t.Market = domain.Market(market)
	return &t, nil
}

// ListActive returns all non-delisted tickers, optionally filtered by market.
func (s *TickerStore) ListActive(ctx context.Context, market domain.Market) ([]domain.Ticker, error) {
	query := `SELECT code, name, market, sector, is_delisted FROM tickers WHERE is_delisted = 0`
	args := []any{}
	if market != "" {
		query += ` AND market = ?`
		args = append(args, string(market))
	}
	query += ` ORDER BY code`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, domain.NewPersistenceError("TickerStore.ListActive", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	var out []domain.Ticker
	for rows.Next() {
		var t domain.Ticker
		var market string
		if err := rows.Scan(&t.Code, &t.Name, &market, &t.Sector, &t.IsDelisted); err != nil {
			return nil, domain.NewPersistenceError("TickerStore.ListActive", domain.PersistenceIntegrity, err)
		}
		t.Market = domain.Market(market)
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("TickerStore.ListActive", domain.PersistenceUnavailable, err)
	}
	return out, nil
}
