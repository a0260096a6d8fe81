package database

import (
	"context"
	"encoding/json"

	"github.com/aristath/aegis-kr/internal/domain"
)

// BlobStore persists opaque fetcher payloads in cache.db.
type BlobStore struct {
	db *DB
}

func NewBlobStore(db *DB) *BlobStore {
	return &BlobStore{db: db}
}

// Upsert writes a blob keyed on (ticker, site_id, data_type, data_date),
// replacing prior content for the same key — the cache database is
// ephemeral by design.
func (s *BlobStore) Upsert(ctx context.Context, b domain.CollectedBlob) error {
	content, err := json.Marshal(b.Content)
	if err != nil {
		return domain.NewPersistenceError("BlobStore.Upsert", domain.PersistenceIntegrity, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO collected_blobs (ticker, site_id, domain_id, data_type, data_date, content)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(ticker, site_id, data_type, data_date) DO UPDATE SET
			domain_id = excluded.domain_id, content = excluded.content
	`, b.Ticker, b.SiteID, b.DomainID, b.DataType, b.DataDate.Format(dateFormat), string(content))
	if err != nil {
		return domain.NewPersistenceError("BlobStore.Upsert", domain.PersistenceUnavailable, err)
	}
	return nil
}

// Latest returns the most recently collected blob of dataType for ticker.
func (s *BlobStore) Latest(ctx context.Context, ticker, dataType string) (*domain.CollectedBlob, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT ticker, site_id, domain_id, data_type, data_date, content
		FROM collected_blobs
		WHERE ticker = ? AND data_type = ?
		ORDER BY data_date DESC LIMIT 1
	`, ticker, dataType)

	var b domain.CollectedBlob
	var date, content string
	if err := row.Scan(&b.Ticker, &b.SiteID, &b.DomainID, &b.DataType, &date, &content); err != nil {
		return nil, domain.NewPersistenceError("BlobStore.Latest", domain.PersistenceUnavailable, err)
	}

	parsed, err := parseDate(date)
	if err != nil {
		return nil, domain.NewPersistenceError("BlobStore.Latest", domain.PersistenceIntegrity, err)
	}
	b.DataDate = parsed

	if err := json.Unmarshal([]byte(content), &b.Content); err != nil {
		return nil, domain.NewPersistenceError("BlobStore.Latest", domain.PersistenceIntegrity, err)
	}
	return &b, nil
}

// History returns up to `limit` collected blobs of dataType for ticker,
// most recent first — used by analysers that compare a reading against
// its own recent past (consensus revision, news dedup windows).
func (s *BlobStore) History(ctx context.Context, ticker, dataType string, limit int) ([]domain.CollectedBlob, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, site_id, domain_id, data_type, data_date, content
		FROM collected_blobs
		WHERE ticker = ? AND data_type = ?
		ORDER BY data_date DESC LIMIT ?
	`, ticker, dataType, limit)
	if err != nil {
		return nil, domain.NewPersistenceError("BlobStore.History", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	var out []domain.CollectedBlob
	for rows.Next() {
		var b domain.CollectedBlob
		var date, content string
		if err := rows.Scan(&b.Ticker, &b.SiteID, &b.DomainID, &b.DataType, &date, &content); err != nil {
			return nil, domain.NewPersistenceError("BlobStore.History", domain.PersistenceIntegrity, err)
		}
		parsed, err := parseDate(date)
		if err != nil {
			return nil, domain.NewPersistenceError("BlobStore.History", domain.PersistenceIntegrity, err)
		}
		b.DataDate = parsed
		if err := json.Unmarshal([]byte(content), &b.Content); err != nil {
			return nil, domain.NewPersistenceError("BlobStore.History", domain.PersistenceIntegrity, err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("BlobStore.History", domain.PersistenceUnavailable, err)
	}
	return out, nil
}
