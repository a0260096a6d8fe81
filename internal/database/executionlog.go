package database

import (
	"context"
	"time"

	"github.com/aristath/aegis-kr/internal/domain"
)

// ExecutionLogStore appends fetcher execution outcomes to ledger.db.
type ExecutionLogStore struct {
	db *DB
}

func NewExecutionLogStore(db *DB) *ExecutionLogStore {
	return &ExecutionLogStore{db: db}
}

func (s *ExecutionLogStore) Insert(ctx context.Context, log domain.ExecutionLog) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO execution_log (site_id, ticker, status, duration_ms, error_kind, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`, log.SiteID, log.Ticker, string(log.Status), log.DurationMS, log.ErrorKind, log.Timestamp.Format(time.RFC3339))
	if err != nil {
		return domain.NewPersistenceError("ExecutionLogStore.Insert", domain.PersistenceUnavailable, err)
	}
	return nil
}

// Recent returns the N most recent executions across all sites, newest
// first — the feed the status HTTP surface's /status/runs serves.
func (s *ExecutionLogStore) Recent(ctx context.Context, limit int) ([]domain.ExecutionLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT site_id, ticker, status, duration_ms, error_kind, timestamp
		FROM execution_log
		ORDER BY timestamp DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, domain.NewPersistenceError("ExecutionLogStore.Recent", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	var out []domain.ExecutionLog
	for rows.Next() {
		var l domain.ExecutionLog
		var status, ts string
		if err := rows.Scan(&l.SiteID, &l.Ticker, &status, &l.DurationMS, &l.ErrorKind, &ts); err != nil {
			return nil, domain.NewPersistenceError("ExecutionLogStore.Recent", domain.PersistenceIntegrity, err)
		}
		l.Status = domain.ExecutionStatus(status)
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, domain.NewPersistenceError("ExecutionLogStore.Recent", domain.PersistenceIntegrity, err)
		}
		l.Timestamp = parsed
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("ExecutionLogStore.Recent", domain.PersistenceUnavailable, err)
	}
	return out, nil
}

// RecentFailures returns the N most recent failed executions for a site,
// used by the reliability health service when diagnosing a degraded site.
func (s *ExecutionLogStore) RecentFailures(ctx context.Context, siteID string, limit int) ([]domain.ExecutionLog, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT site_id, ticker, status, duration_ms, error_kind, timestamp
		FROM execution_log
		WHERE site_id = ? AND status = 'fail'
		ORDER BY timestamp DESC LIMIT ?
	`, siteID, limit)
	if err != nil {
		return nil, domain.NewPersistenceError("ExecutionLogStore.RecentFailures", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	var out []domain.ExecutionLog
	for rows.Next() {
		var l domain.ExecutionLog
		var status, ts string
		if err := rows.Scan(&l.SiteID, &l.Ticker, &status, &l.DurationMS, &l.ErrorKind, &ts); err != nil {
			return nil, domain.NewPersistenceError("ExecutionLogStore.RecentFailures", domain.PersistenceIntegrity, err)
		}
		l.Status = domain.ExecutionStatus(status)
		parsed, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, domain.NewPersistenceError("ExecutionLogStore.RecentFailures", domain.PersistenceIntegrity, err)
		}
		l.Timestamp = parsed
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("ExecutionLogStore.RecentFailures", domain.PersistenceUnavailable, err)
	}
	return out, nil
}
