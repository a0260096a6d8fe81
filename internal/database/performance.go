package database

import (
	"context"

	"github.com/aristath/aegis-kr/internal/domain"
)

// PerformanceStore persists realised recommendation outcomes in ledger.db.
type PerformanceStore struct {
	db *DB
}

func NewPerformanceStore(db *DB) *PerformanceStore {
	return &PerformanceStore{db: db}
}

func (s *PerformanceStore) Upsert(ctx context.Context, p domain.Performance) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO performance (rec_id, days_held, check_price, return_rate, max_drawdown, status)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(rec_id, days_held) DO UPDATE SET
			check_price = excluded.check_price,
			return_rate = excluded.return_rate,
			max_drawdown = excluded.max_drawdown,
			status = excluded.status
	`, p.RecID, p.DaysHeld, p.CheckPrice, p.ReturnRate, p.MaxDrawdown, string(p.Status))
	if err != nil {
		return domain.NewPersistenceError("PerformanceStore.Upsert", domain.PersistenceUnavailable, err)
	}
	return nil
}

// ListFailedWithoutRetrospective returns every Performance row classified
// Failed that has no Retrospective yet — the retrospective job's work queue.
func (s *PerformanceStore) ListFailedWithoutRetrospective(ctx context.Context) ([]domain.Performance, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.rec_id, p.days_held, p.check_price, p.return_rate, p.max_drawdown, p.status
		FROM performance p
		WHERE p.status = 'failed'
		AND NOT EXISTS (SELECT 1 FROM retrospectives r WHERE r.rec_id = p.rec_id AND r.days_held = p.days_held)
	`)
	if err != nil {
		return nil, domain.NewPersistenceError("PerformanceStore.ListFailedWithoutRetrospective", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	var out []domain.Performance
	for rows.Next() {
		var p domain.Performance
		var status string
		if err := rows.Scan(&p.RecID, &p.DaysHeld, &p.CheckPrice, &p.ReturnRate, &p.MaxDrawdown, &status); err != nil {
			return nil, domain.NewPersistenceError("PerformanceStore.ListFailedWithoutRetrospective", domain.PersistenceIntegrity, err)
		}
		p.Status = domain.PerformanceStatus(status)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("PerformanceStore.ListFailedWithoutRetrospective", domain.PersistenceUnavailable, err)
	}
	return out, nil
}
