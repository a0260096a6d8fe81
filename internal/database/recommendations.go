package database

import (
	"context"
	"encoding/json"

	"github.com/aristath/aegis-kr/internal/domain"
)

// RecommendationStore persists scored trading signals in ledger.db.
type RecommendationStore struct {
	db *DB
}

func NewRecommendationStore(db *DB) *RecommendationStore {
	return &RecommendationStore{db: db}
}

// Insert writes a new Recommendation and returns the generated ID.
func (s *RecommendationStore) Insert(ctx context.Context, r domain.Recommendation) (int64, error) {
	scores, err := json.Marshal(r.Scores)
	if err != nil {
		return 0, domain.NewPersistenceError("RecommendationStore.Insert", domain.PersistenceIntegrity, err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO recommendations (batch_id, ticker, rec_date, rec_price, grade, confidence, rationale, scores, final_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.BatchID, r.Ticker, r.RecDate.Format(dateFormat), r.RecPrice, string(r.Grade), r.Confidence, r.Rationale, string(scores), r.FinalScore)
	if err != nil {
		return 0, domain.NewPersistenceError("RecommendationStore.Insert", domain.PersistenceUnavailable, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, domain.NewPersistenceError("RecommendationStore.Insert", domain.PersistenceUnavailable, err)
	}
	return id, nil
}

// ListByBatch returns every recommendation written by one batch run.
func (s *RecommendationStore) ListByBatch(ctx context.Context, batchID string) ([]domain.Recommendation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, ticker, rec_date, rec_price, grade, confidence, rationale, scores, final_score
		FROM recommendations WHERE batch_id = ? ORDER BY final_score DESC
	`, batchID)
	if err != nil {
		return nil, domain.NewPersistenceError("RecommendationStore.ListByBatch", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	return scanRecommendations(rows)
}

// Get returns a single recommendation by ID, or nil if it doesn't exist —
// used by the retrospective job to recover the original rationale.
func (s *RecommendationStore) Get(ctx context.Context, id int64) (*domain.Recommendation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, batch_id, ticker, rec_date, rec_price, grade, confidence, rationale, scores, final_score
		FROM recommendations WHERE id = ?
	`, id)
	if err != nil {
		return nil, domain.NewPersistenceError("RecommendationStore.Get", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	out, err := scanRecommendations(rows)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return &out[0], nil
}

// OpenForTracking returns recommendations whose horizonDays horizon has
// elapsed by asOfDate (rec_date + horizonDays <= asOfDate) and that have no
// Performance row at that horizon yet — the set the price tracker job
// processes for each tracked horizon (7/14/30 days) every run.
func (s *RecommendationStore) OpenForTracking(ctx context.Context, asOfDate string, horizonDays int) ([]domain.Recommendation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.batch_id, r.ticker, r.rec_date, r.rec_price, r.grade, r.confidence, r.rationale, r.scores, r.final_score
		FROM recommendations r
		WHERE date(r.rec_date, '+' || ? || ' days') <= date(?)
		AND NOT EXISTS (
			SELECT 1 FROM performance p WHERE p.rec_id = r.id AND p.days_held = ?
		)
	`, horizonDays, asOfDate, horizonDays)
	if err != nil {
		return nil, domain.NewPersistenceError("RecommendationStore.OpenForTracking", domain.PersistenceUnavailable, err)
	}
	defer rows.Close()

	return scanRecommendations(rows)
}

func scanRecommendations(rows interface {
	Next() bool
	Scan(...any) error
	Err() error
}) ([]domain.Recommendation, error) {
	var out []domain.Recommendation
	for rows.Next() {
		var r domain.Recommendation
		var recDate, grade, scores string
		if err := rows.Scan(&r.ID, &r.BatchID, &r.Ticker, &recDate, &r.RecPrice, &grade, &r.Confidence, &r.Rationale, &scores, &r.FinalScore); err != nil {
			return nil, domain.NewPersistenceError("RecommendationStore.scan", domain.PersistenceIntegrity, err)
		}
		parsed, err := parseDate(recDate)
		if err != nil {
			return nil, domain.NewPersistenceError("RecommendationStore.scan", domain.PersistenceIntegrity, err)
		}
		r.RecDate = parsed
		r.Grade = domain.Grade(grade)
		if err := json.Unmarshal([]byte(scores), &r.Scores); err != nil {
			return nil, domain.NewPersistenceError("RecommendationStore.scan", domain.PersistenceIntegrity, err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.NewPersistenceError("RecommendationStore.scan", domain.PersistenceUnavailable, err)
	}
	return out, nil
}
