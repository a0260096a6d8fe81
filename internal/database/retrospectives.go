package database

import (
	"context"

	"github.com/aristath/aegis-kr/internal/domain"
)

// RetrospectiveStore persists AI-authored post-mortems in ledger.db.
type RetrospectiveStore struct {
	db *DB
}

func NewRetrospectiveStore(db *DB) *RetrospectiveStore {
	return &RetrospectiveStore{db: db}
}

func (s *RetrospectiveStore) Upsert(ctx context.Context, r domain.Retrospective) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO retrospectives (rec_id, days_held, missed_risks, actual_cause, lesson, improvement, confidence_adjustment)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(rec_id, days_held) DO UPDATE SET
			missed_risks = excluded.missed_risks,
			actual_cause = excluded.actual_cause,
			lesson = excluded.lesson,
			improvement = excluded.improvement,
			confidence_adjustment = excluded.confidence_adjustment
	`, r.RecID, r.DaysHeld, r.MissedRisks, r.ActualCause, r.Lesson, r.Improvement, r.ConfidenceAdjustment)
	if err != nil {
		return domain.NewPersistenceError("RetrospectiveStore.Upsert", domain.PersistenceUnavailable, err)
	}
	return nil
}
