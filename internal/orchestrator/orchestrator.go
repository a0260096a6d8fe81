// Package orchestrator runs the tiered, concurrency-bounded fetcher worker
// pool: tiers execute strictly in order (1→2→3→4), workers within a tier
// run concurrently, and tier 4 is serialised to a single worker.
package orchestrator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/internal/fetcher"
	"github.com/rs/zerolog"
)

// Orchestrator owns the fetcher Factory/Executor and the Site registry it
// dispatches against.
type Orchestrator struct {
	Sites              *database.SiteStore
	Factory            *fetcher.Factory
	Executor           *fetcher.Executor
	DefaultConcurrency int
	Tier4Concurrency   int
	RetryPreset        string
	Log                zerolog.Logger
}

// RunSummary tallies one run(tickers) invocation's outcomes.
type RunSummary struct {
	OK   int
	Fail int
}

// Run executes all candidate fetchers against tickers, tier by tier.
// Unknown/inactive sites are dropped by the Factory before dispatch.
// Sibling failures within a tier never cancel the tier.
func (o *Orchestrator) Run(ctx context.Context, candidates []fetcher.Fetcher, tickers []string) RunSummary {
	active := o.Factory.Resolve(ctx, candidates)

	sites := make(map[string]domain.Site)
	for _, f := range active {
		site, err := o.Sites.Get(ctx, f.SiteID())
		if err != nil || site == nil {
			continue
		}
		sites[f.SiteID()] = *site
	}

	byTier := tierFetchers(active, sites)

	tiers := make([]domain.SiteTier, 0, len(byTier))
	for t := range byTier {
		tiers = append(tiers, t)
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })

	var summary RunSummary
	for _, tier := range tiers {
		concurrency := o.DefaultConcurrency
		if tier == domain.Tier4 {
			concurrency = o.Tier4Concurrency
		}
		o.runTier(ctx, byTier[tier], tickers, concurrency, &summary)
	}
	return summary
}

// runTier submits the cartesian set {(fetcher, ticker)} for one tier to a
// bounded worker pool and blocks until the tier barrier clears.
func (o *Orchestrator) runTier(ctx context.Context, fetchers []fetcher.Fetcher, tickers []string, concurrency int, summary *RunSummary) {
	if concurrency <= 0 {
		concurrency = 1
	}

	type task struct {
		f      fetcher.Fetcher
		ticker string
	}
	tasks := make(chan task)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range tasks {
				result := o.Executor.Execute(ctx, t.f, t.ticker, o.RetryPreset)
				mu.Lock()
				if result.Status == domain.ExecutionOK {
					summary.OK++
				} else {
					summary.Fail++
				}
				mu.Unlock()
			}
		}()
	}

	go func() {
		defer close(tasks)
		for _, f := range fetchers {
			for _, ticker := range tickers {
				select {
				case tasks <- task{f: f, ticker: ticker}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	wg.Wait()
}

// RunSingle executes one fetcher against one ticker outside the tiered
// loop, used by the CLI's ad-hoc `collect` path.
func (o *Orchestrator) RunSingle(ctx context.Context, candidates []fetcher.Fetcher, siteID, ticker string) (fetcher.Result, bool) {
	active := o.Factory.Resolve(ctx, candidates)
	for _, f := range active {
		if f.SiteID() == siteID {
			return o.Executor.Execute(ctx, f, ticker, o.RetryPreset), true
		}
	}
	return fetcher.Result{}, false
}

// Schedule re-invokes Run every interval. Run executes synchronously in
// this loop, so runs never overlap; time.Ticker holds at most one pending
// tick, so ticks that fire during an overrunning run collapse into a
// single tick that starts the next run as soon as the current one ends.
func (o *Orchestrator) Schedule(ctx context.Context, interval time.Duration, candidates []fetcher.Fetcher, tickers []string) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.Log.Info().Dur("interval", interval).Msg("scheduled orchestrator run starting")
			summary := o.Run(ctx, candidates, tickers)
			o.Log.Info().Int("ok", summary.OK).Int("fail", summary.Fail).Msg("scheduled orchestrator run complete")
		}
	}
}
