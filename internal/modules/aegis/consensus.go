package aegis

import (
	"context"
	"time"

	"github.com/aristath/aegis-kr/internal/database"
	"github.com/rs/zerolog"
)

// ConsensusAnalyser scores changes in analyst target prices and coverage
// breadth against the prior stored snapshot.
type ConsensusAnalyser struct {
	Blobs *database.BlobStore
	Log   zerolog.Logger
}

func NewConsensusAnalyser(blobs *database.BlobStore, log zerolog.Logger) *ConsensusAnalyser {
	return &ConsensusAnalyser{Blobs: blobs, Log: log.With().Str("analyser", "consensus").Logger()}
}

func (a *ConsensusAnalyser) Name() string { return "consensus" }

func (a *ConsensusAnalyser) Analyse(ctx context.Context, ticker string, asOf time.Time) (AnalyserResult, error) {
	history, err := a.Blobs.History(ctx, ticker, "consensus_snapshot", 2)
	if err != nil || len(history) == 0 {
		return AnalyserResult{Name: a.Name(), Score: 0, Grade: GradeAverage, Notes: "no consensus data"}, nil
	}

	current := history[0].Content
	targetPrice := floatField(current, "avg_target_price")
	buyCount := floatField(current, "buy_count")
	holdCount := floatField(current, "hold_count")
	sellCount := floatField(current, "sell_count")
	coverage := buyCount + holdCount + sellCount

	var score float64
	var events []string

	if len(history) == 2 {
		prior := history[1].Content
		priorTarget := floatField(prior, "avg_target_price")
		if priorTarget > 0 && targetPrice > 0 {
			change := (targetPrice - priorTarget) / priorTarget
			switch {
			case change >= 0.05:
				score += 1
				events = append(events, "target_revised_up")
			case change <= -0.05:
				score -= 1
				events = append(events, "target_revised_down")
			}
		}
		priorCoverage := floatField(prior, "buy_count") + floatField(prior, "hold_count") + floatField(prior, "sell_count")
		if coverage > priorCoverage {
			score += 0.3
			events = append(events, "coverage_expanded")
		}
	}

	if coverage > 0 {
		buyRatio := buyCount / coverage
		switch {
		case buyRatio >= 0.7:
			score += 0.5
		case buyRatio <= 0.3:
			score -= 0.5
		}
	}

	score = clampScore(score)
	return AnalyserResult{
		Name:      a.Name(),
		Score:     score,
		Grade:     gradeFromScore(score),
		KeyEvents: events,
		Notes:     "coverage firms considered",
	}, nil
}

func floatField(m map[string]any, key string) float64 {
	v, ok := m[key]
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
