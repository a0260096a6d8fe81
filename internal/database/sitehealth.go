package database

import (
	"context"
	"database/sql"
	"time"

	"github.com/aristath/aegis-kr/internal/domain"
)

// SiteHealthStore tracks each site's rolling reliability state in ledger.db.
type SiteHealthStore struct {
	db *DB
}

func NewSiteHealthStore(db *DB) *SiteHealthStore {
	return &SiteHealthStore{db: db}
}

func (s *SiteHealthStore) Upsert(ctx context.Context, h domain.SiteHealth) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO site_health (site_id, status, consecutive_failures, avg_latency_ms, last_success_ts)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(site_id) DO UPDATE SET
			status = excluded.status,
			consecutive_failures = excluded.consecutive_failures,
			avg_latency_ms = excluded.avg_latency_ms,
			last_success_ts = excluded.last_success_ts
	`, h.SiteID, string(h.Status), h.ConsecutiveFailures, h.AvgLatencyMS, h.LastSuccessTS.Format(time.RFC3339))
	if err != nil {
		return domain.NewPersistenceError("SiteHealthStore.Upsert", domain.PersistenceUnavailable, err)
	}
	return nil
}

// Get returns the current SiteHealth row, or a fresh zero-value Active
// record if the site has never been observed.
func (s *SiteHealthStore) Get(ctx context.Context, siteID string) (domain.SiteHealth, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT site_id, status, consecutive_failures, avg_latency_ms, last_success_ts
		FROM site_health WHERE site_id = ?
	`, siteID)

	var h domain.SiteHealth
	var status, ts string
	if err := row.Scan(&h.SiteID, &status, &h.ConsecutiveFailures, &h.AvgLatencyMS, &ts); err != nil {
		if err == sql.ErrNoRows {
			return domain.SiteHealth{SiteID: siteID, Status: domain.HealthActive}, nil
		}
		return domain.SiteHealth{}, domain.NewPersistenceError("SiteHealthStore.Get", domain.PersistenceUnavailable, err)
	}
	h.Status = domain.HealthStatus(status)
	if ts != "" {
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return domain.SiteHealth{}, domain.NewPersistenceError("SiteHealthStore.Get", domain.PersistenceIntegrity, err)
		}
		h.LastSuccessTS = parsed
	}
	return h, nil
}

// ListDegradedOrDown returns every site currently not fully healthy, the
// set the status HTTP surface and monitoring service report on.
func (s *SiteHealthStore) ListDegradedOrDown(ctx context.Context) ([]domain.SiteHealth, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT site_id, status, consecutive_failures, avg_latency_ms, last_success_ts
		FROM site_health WHERE status != 'active'
	`)
	if err != nil {
		return nil, domain.NewPersistenceError("SiteHealthStore.ListDegradedOrDown", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	var out []domain.SiteHealth
	for rows.Next() {
		var h domain.SiteHealth
		var status, ts string
		if err := rows.Scan(&h.SiteID, &status, &h.ConsecutiveFailures, &h.AvgLatencyMS, &ts); err != nil {
			return nil, domain.NewPersistenceError("SiteHealthStore.ListDegradedOrDown", domain.PersistenceIntegrity, err)
		}
		h.Status = domain.HealthStatus(status)
		if ts != "" {
			if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
				h.LastSuccessTS = parsed
			}
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("SiteHealthStore.ListDegradedOrDown", domain.PersistenceUnavailable, err)
	}
	return out, nil
}
