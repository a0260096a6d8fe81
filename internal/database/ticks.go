package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/aristath/aegis-kr/internal/domain"
)

const timestampFormat = time.RFC3339

// TickStore persists append-only trade prints and maintains the
// derived holdings.current_price projection in the same transaction.
type TickStore struct {
	db *DB
}

func NewTickStore(db *DB) *TickStore {
	return &TickStore{db: db}
}

// Insert writes a Tick and, if the ticker is an open holding, updates its
// current_price in the same transaction.
func (s *TickStore) Insert(ctx context.Context, t domain.Tick) error {
	err := WithTransaction(s.db.Conn(), func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ticks (ticker, timestamp, price, volume)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(ticker, timestamp) DO UPDATE SET
				price = excluded.price, volume = excluded.volume
		`, t.Ticker, t.Timestamp.Format(timestampFormat), t.Price, t.Volume); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx, `
			UPDATE holdings SET current_price = ? WHERE ticker = ?
		`, t.Price, t.Ticker)
		return err
	})
	if err != nil {
		return domain.NewPersistenceError("TickStore.Insert", domain.PersistenceUnavailable, err)
	}
	return nil
}

// Latest returns the most recent Tick recorded for ticker, if any.
func (s *TickStore) Latest(ctx context.Context, ticker string) (*domain.Tick, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ticker, timestamp, price, volume FROM ticks
		WHERE ticker = ? ORDER BY timestamp DESC LIMIT 1
	`, ticker)

	var t domain.Tick
	var ts string
	if err := row.Scan(&t.Ticker, &ts, &t.Price, &t.Volume); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, domain.NewPersistenceError("TickStore.Latest", domain.PersistenceUnavailable, err)
	}

	parsed, err := time.Parse(timestampFormat, ts)
	if err != nil {
		return nil, domain.NewPersistenceError("TickStore.Latest", domain.PersistenceIntegrity, err)
	}
	t.Timestamp = parsed
	return &t, nil
}
