package database

import (
	"context"
	"database/sql"

	"github.com/aristath/aegis-kr/internal/domain"
)

// SiteStore persists the data-source registry in universe.db. Sites are
// seeded once at deployment and rarely change thereafter.
type SiteStore struct {
	db *DB
}

func NewSiteStore(db *DB) *SiteStore {
	return &SiteStore{db: db}
}

func (s *SiteStore) Upsert(ctx context.Context, site domain.Site) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sites (id, tier, name, rate_limit_per_minute, is_active)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			tier = excluded.tier, name = excluded.name,
			rate_limit_per_minute = excluded.rate_limit_per_minute,
			is_active = excluded.is_active
	`, site.ID, int(site.Tier), site.Name, site.RateLimitPerMinute, site.IsActive)
	if err != nil {
		return domain.NewPersistenceError("SiteStore.Upsert", domain.PersistenceUnavailable, err)
	}
	return nil
}

// Get returns a single site by ID, or nil if it isn't registered. Used by
// the fetcher factory to skip unknown site IDs rather than fail outright.
func (s *SiteStore) Get(ctx context.Context, id string) (*domain.Site, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, tier, name, rate_limit_per_minute, is_active FROM sites WHERE id = ?
	`, id)

	var site domain.Site
	var tier int
	if err := row.Scan(&site.ID, &tier, &site.Name, &site.RateLimitPerMinute, &site.IsActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, domain.NewPersistenceError("SiteStore.Get", domain.PersistenceUnavailable, err)
	}
	site.Tier = domain.SiteTier(tier)
	return &site, nil
}

// ListByTier returns all active sites of a given reliability tier, ordered
// by ID — the order the orchestrator dispatches a tier's fetchers in.
func (s *SiteStore) ListByTier(ctx context.Context, tier domain.SiteTier) ([]domain.Site, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tier, name, rate_limit_per_minute, is_active
		FROM sites WHERE tier = ? AND is_active = 1 ORDER BY id
	`, int(tier))
	if err != nil {
		return nil, domain.NewPersistenceError("SiteStore.ListByTier", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	var out []domain.Site
	for rows.Next() {
		var site domain.Site
		var t int
		if err := rows.Scan(&site.ID, &t, &site.Name, &site.RateLimitPerMinute, &site.IsActive); err != nil {
			return nil, domain.NewPersistenceError("SiteStore.ListByTier", domain.PersistenceIntegrity, err)
		}
		site.Tier = domain.SiteTier(t)
		out = append(out, site)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("SiteStore.ListByTier", domain.PersistenceUnavailable, err)
	}
	return out, nil
}
