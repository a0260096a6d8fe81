package recommendation

import (
	"context"
	"errors"
	"time"

	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/internal/modules/retrospective"
	"github.com/rs/zerolog"
)

// RetrospectiveJob builds and persists the AI post-mortem for every failed
// Performance row lacking one, rate-limited to at most one LLM call every
// RateGap and at most MaxBatch rows per run.
type RetrospectiveJob struct {
	Performance     *database.PerformanceStore
	Retrospectives  *database.RetrospectiveStore
	Recommendations *database.RecommendationStore
	Blobs           *database.BlobStore
	Generator       retrospective.Generator // nil disables the job entirely (no GEMINI_API_KEY)
	RateGap         time.Duration
	MaxBatch        int
	Log             zerolog.Logger
}

// RetrospectiveSummary tallies one Run invocation.
type RetrospectiveSummary struct {
	Written int
	Skipped int
	AIError int
}

// Run processes up to MaxBatch failed-without-retrospective rows. An
// unparseable LLM response is logged as ai_error and that row is skipped
// with no partial write; it will be retried on the next run.
func (j *RetrospectiveJob) Run(ctx context.Context) (RetrospectiveSummary, error) {
	var summary RetrospectiveSummary
	if j.Generator == nil {
		j.Log.Debug().Msg("retrospective job disabled: no LLM generator configured")
		return summary, nil
	}

	rateGap := j.RateGap
	if rateGap <= 0 {
		rateGap = 2 * time.Second
	}
	maxBatch := j.MaxBatch
	if maxBatch <= 0 {
		maxBatch = 10
	}

	pending, err := j.Performance.ListFailedWithoutRetrospective(ctx)
	if err != nil {
		return summary, err
	}
	if len(pending) > maxBatch {
		j.Log.Info().Int("pending", len(pending)).Int("max_batch", maxBatch).
			Msg("more failed performances pending than this run's batch cap, remainder deferred to next run")
		pending = pending[:maxBatch]
	}

	for i, perf := range pending {
		if i > 0 {
			select {
			case <-time.After(rateGap):
			case <-ctx.Done():
				return summary, ctx.Err()
			}
		}

		if err := j.buildOne(ctx, perf); err != nil {
			if errors.Is(err, retrospective.ErrUnparseable) {
				j.Log.Warn().Err(err).Int64("rec_id", perf.RecID).Msg("ai_error: retrospective response unparseable, skipped")
				summary.AIError++
				continue
			}
			j.Log.Warn().Err(err).Int64("rec_id", perf.RecID).Msg("retrospective build failed, skipped")
			summary.Skipped++
			continue
		}
		summary.Written++
	}

	return summary, nil
}

func (j *RetrospectiveJob) buildOne(ctx context.Context, perf domain.Performance) error {
	rec, err := j.Recommendations.Get(ctx, perf.RecID)
	if err != nil {
		return err
	}
	if rec == nil {
		return errors.New("recommendation not found")
	}

	in := retrospective.PromptInput{
		Ticker:      rec.Ticker,
		RecDate:     rec.RecDate.Format("2006-01-02"),
		RecPrice:    rec.RecPrice,
		Rationale:   rec.Rationale,
		Grade:       rec.Grade,
		DaysHeld:    perf.DaysHeld,
		ReturnRate:  perf.ReturnRate,
		MaxDrawdown: perf.MaxDrawdown,
		Headlines:   j.recentHeadlines(ctx, rec.Ticker),
	}

	result, err := retrospective.Build(ctx, j.Generator, perf.RecID, in)
	if err != nil {
		return err
	}
	return j.Retrospectives.Upsert(ctx, result)
}

// recentHeadlines best-effort pulls the latest cached news titles for
// context; a cache miss yields no headlines rather than failing the build.
func (j *RetrospectiveJob) recentHeadlines(ctx context.Context, ticker string) []string {
	blob, err := j.Blobs.Latest(ctx, ticker, "news_items")
	if err != nil || blob == nil {
		return nil
	}
	items, _ := blob.Content["items"].([]any)
	var out []string
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		title, _ := item["title"].(string)
		if title == "" {
			continue
		}
		out = append(out, title)
		if len(out) >= 5 {
			break
		}
	}
	return out
}
