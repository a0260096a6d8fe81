package scheduler

import (
	"context"
	"time"

	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/internal/fetcher"
	"github.com/aristath/aegis-kr/internal/modules/recommendation"
	"github.com/aristath/aegis-kr/internal/orchestrator"
)

// AutoRunJob drives one tiered orchestrator pass followed by one
// recommendation batch over the active ticker universe — the work behind
// the CLI's `auto` verb's 20-minute cadence.
type AutoRunJob struct {
	Orchestrator *orchestrator.Orchestrator
	Fetchers     []fetcher.Fetcher
	Tickers      *database.TickerStore
	Batch        *recommendation.BatchRunner
	Timeout      time.Duration
}

func (j *AutoRunJob) Name() string { return "auto-run" }

// Run loads the active ticker universe, drives the tiered fetch, then runs
// one recommendation batch against the freshly-hydrated cache.
func (j *AutoRunJob) Run() error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	tickers, err := j.Tickers.ListActive(ctx, "")
	if err != nil {
		return err
	}
	codes := make([]string, len(tickers))
	for i, t := range tickers {
		codes[i] = t.Code
	}

	j.Orchestrator.Run(ctx, j.Fetchers, codes)

	if j.Batch != nil {
		_, err := j.Batch.Run(ctx, time.Now())
		return err
	}
	return nil
}

// PriceTrackerJob runs the daily 18:00 KST performance check.
type PriceTrackerJob struct {
	Tracker *recommendation.PriceTracker
	Timeout time.Duration
}

func (j *PriceTrackerJob) Name() string { return "price-tracker" }

func (j *PriceTrackerJob) Run() error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := j.Tracker.Run(ctx, time.Now())
	return err
}

// RetrospectiveJob runs the AI post-mortem backfill over failed
// performances lacking one.
type RetrospectiveJob struct {
	Job     *recommendation.RetrospectiveJob
	Timeout time.Duration
}

func (j *RetrospectiveJob) Name() string { return "retrospective" }

func (j *RetrospectiveJob) Run() error {
	timeout := j.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	_, err := j.Job.Run(ctx)
	return err
}
