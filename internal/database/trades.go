package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/aristath/aegis-kr/internal/domain"
)

// TradeStore persists manually-imported fills and maintains the derived
// holdings projection in the same transaction — the second of the two
// serialised Holdings writers (the other is TickStore's price update).
type TradeStore struct {
	db *DB
}

func NewTradeStore(db *DB) *TradeStore {
	return &TradeStore{db: db}
}

// Insert writes a TradeRecord and folds it into holdings: a BUY increases
// quantity and recomputes the weighted-average cost basis; a SELL reduces
// quantity, leaving the average cost basis unchanged.
func (s *TradeStore) Insert(ctx context.Context, t domain.TradeRecord) (int64, error) {
	if !t.Valid() {
		return 0, domain.NewPersistenceError("TradeStore.Insert", domain.PersistenceIntegrity, nil)
	}

	var id int64
	err := WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO trades (ticker, side, quantity, price, fees, total, executed_at, raw_text)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, t.Ticker, string(t.Side), t.Quantity, t.Price, t.Fees, t.Total, t.ExecutedAt.Format(timestampFormat), t.RawText)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		if err != nil {
			return err
		}

		var quantity, avgBuyPrice, currentPrice float64
		row := tx.QueryRowContext(ctx, `SELECT quantity, avg_buy_price, current_price FROM holdings WHERE ticker = ?`, t.Ticker)
		switch err := row.Scan(&quantity, &avgBuyPrice, &currentPrice); err {
		case sql.ErrNoRows:
			quantity, avgBuyPrice, currentPrice = 0, 0, t.Price
		case nil:
		default:
			return err
		}

		newQty := quantity
		newAvg := avgBuyPrice
		switch t.Side {
		case domain.TradeBuy:
			totalCost := avgBuyPrice*quantity + t.Price*float64(t.Quantity)
			newQty = quantity + float64(t.Quantity)
			if newQty > 0 {
				newAvg = totalCost / newQty
			}
		case domain.TradeSell:
			newQty = quantity - float64(t.Quantity)
			if newQty < 0 {
				newQty = 0
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO holdings (ticker, quantity, avg_buy_price, current_price)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(ticker) DO UPDATE SET
				quantity = excluded.quantity, avg_buy_price = excluded.avg_buy_price, current_price = excluded.current_price
		`, t.Ticker, newQty, newAvg, t.Price)
		return err
	})
	if err != nil {
		return 0, domain.NewPersistenceError("TradeStore.Insert", domain.PersistenceUnavailable, err)
	}
	return id, nil
}

// ListByTicker returns a ticker's trade history, most recent first.
func (s *TradeStore) ListByTicker(ctx context.Context, ticker string) ([]domain.TradeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, ticker, side, quantity, price, fees, total, executed_at, raw_text
		FROM trades WHERE ticker = ? ORDER BY executed_at DESC
	`, ticker)
	if err != nil {
		return nil, domain.NewPersistenceError("TradeStore.ListByTicker", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	var out []domain.TradeRecord
	for rows.Next() {
		var t domain.TradeRecord
		var side, executedAt string
		if err := rows.Scan(&t.ID, &t.Ticker, &side, &t.Quantity, &t.Price, &t.Fees, &t.Total, &executedAt, &t.RawText); err != nil {
			return nil, domain.NewPersistenceError("TradeStore.ListByTicker", domain.PersistenceIntegrity, err)
		}
		t.Side = domain.TradeSide(side)
		parsed, err := time.Parse(timestampFormat, executedAt)
		if err != nil {
			return nil, domain.NewPersistenceError("TradeStore.ListByTicker", domain.PersistenceIntegrity, err)
		}
		t.ExecutedAt = parsed
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("TradeStore.ListByTicker", domain.PersistenceUnavailable, err)
	}
	return out, nil
}
