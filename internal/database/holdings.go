package database

import (
	"context"
	"database/sql"

	"github.com/aristath/aegis-kr/internal/domain"
)

// HoldingStore tracks open positions in universe.db.
type HoldingStore struct {
	db *DB
}

func NewHoldingStore(db *DB) *HoldingStore {
	return &HoldingStore{db: db}
}

func (s *HoldingStore) Upsert(ctx context.Context, h domain.Holding) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holdings (ticker, quantity, avg_buy_price, current_price)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticker) DO UPDATE SET
			quantity = excluded.quantity,
			avg_buy_price = excluded.avg_buy_price,
			current_price = excluded.current_price
	`, h.Ticker, h.Quantity, h.AvgBuyPrice, h.CurrentPrice)
	if err != nil {
		return domain.NewPersistenceError("HoldingStore.Upsert", domain.PersistenceUnavailable, err)
	}
	return nil
}

func (s *HoldingStore) Get(ctx context.Context, ticker string) (*domain.Holding, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ticker, quantity, avg_buy_price, current_price FROM holdings WHERE ticker = ?
	`, ticker)

	var h domain.Holding
	if err := row.Scan(&h.Ticker, &h.Quantity, &h.AvgBuyPrice, &h.CurrentPrice); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, domain.NewPersistenceError("HoldingStore.Get", domain.PersistenceUnavailable, err)
	}
	return &h, nil
}

// ListAll returns every open holding (quantity > 0).
func (s *HoldingStore) ListAll(ctx context.Context) ([]domain.Holding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, quantity, avg_buy_price, current_price FROM holdings WHERE quantity > 0
	`)
	if err != nil {
		return nil, domain.NewPersistenceError("HoldingStore.ListAll", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	var out []domain.Holding
	for rows.Next() {
		var h domain.Holding
		if err := rows.Scan(&h.Ticker, &h.Quantity, &h.AvgBuyPrice, &h.CurrentPrice); err != nil {
			return nil, domain.NewPersistenceError("HoldingStore.ListAll", domain.PersistenceIntegrity, err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("HoldingStore.ListAll", domain.PersistenceUnavailable, err)
	}
	return out, nil
}
