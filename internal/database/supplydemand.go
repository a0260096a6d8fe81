package database

import (
	"context"

	"github.com/aristath/aegis-kr/internal/domain"
)

// SupplyDemandStore persists daily net-buy breakdowns in universe.db.
type SupplyDemandStore struct {
	db *DB
}

func NewSupplyDemandStore(db *DB) *SupplyDemandStore {
	return &SupplyDemandStore{db: db}
}

func (s *SupplyDemandStore) Upsert(ctx context.Context, sd domain.SupplyDemand) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO supply_demand (ticker, date, foreign_net, institution_net, pension_net, individual_net)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET
			foreign_net = excluded.foreign_net,
			institution_net = excluded.institution_net,
			pension_net = excluded.pension_net,
			individual_net = excluded.individual_net
	`, sd.Ticker, sd.Date.Format(dateFormat), sd.ForeignNet, sd.InstitutionNet, sd.PensionNet, sd.IndividualNet)
	if err != nil {
		return domain.NewPersistenceError("SupplyDemandStore.Upsert", domain.PersistenceUnavailable, err)
	}
	return nil
}

// Recent returns the most recent `limit` rows for ticker, oldest first.
func (s *SupplyDemandStore) Recent(ctx context.Context, ticker string, limit int) ([]domain.SupplyDemand, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, date, foreign_net, institution_net, pension_net, individual_net
		FROM supply_demand WHERE ticker = ? ORDER BY date DESC LIMIT ?
	`, ticker, limit)
	if err != nil {
		return nil, domain.NewPersistenceError("SupplyDemandStore.Recent", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	var out []domain.SupplyDemand
	for rows.Next() {
		var sd domain.SupplyDemand
		var date string
		if err := rows.Scan(&sd.Ticker, &date, &sd.ForeignNet, &sd.InstitutionNet, &sd.PensionNet, &sd.IndividualNet); err != nil {
			return nil, domain.NewPersistenceError("SupplyDemandStore.Recent", domain.PersistenceIntegrity, err)
		}
		parsed, err := parseDate(date)
		if err != nil {
			return nil, domain.NewPersistenceError("SupplyDemandStore.Recent", domain.PersistenceIntegrity, err)
		}
		sd.Date = parsed
		out = append(out, sd)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("SupplyDemandStore.Recent", domain.PersistenceUnavailable, err)
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
