// Package recommendation implements the screen→collect→analyse→score→
// track→retrospect lifecycle: the batch runner that writes
// Recommendations, the daily price tracker that verifies them at 7/14/30
// days, and the retrospective job that closes the learning loop.
package recommendation

import (
	"context"
	"sync"
	"time"

	"github.com/aristath/aegis-kr/internal/fetcher"
	"github.com/aristath/aegis-kr/pkg/logger"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Collector refreshes a candidate's news/consensus/disclosure blobs ahead
// of scoring, re-using the same fetcher.Executor the orchestrator drives —
// it is not a separate ingestion path, just a narrower, on-demand one.
// Freshness is cached for an hour so a batch run doesn't re-hit Tier-2/3
// sources for tickers it already refreshed this hour.
type Collector struct {
	Executor    *fetcher.Executor
	Fetchers    []fetcher.Fetcher
	Freshness   time.Duration
	Concurrency int
	Log         zerolog.Logger

	mu       sync.Mutex
	lastSeen map[string]time.Time // "siteID/ticker" -> last refresh
}

// NewCollector builds a Collector with the default 1-hour freshness cache.
func NewCollector(executor *fetcher.Executor, fetchers []fetcher.Fetcher, log zerolog.Logger) *Collector {
	return &Collector{
		Executor:    executor,
		Fetchers:    fetchers,
		Freshness:   time.Hour,
		Concurrency: 8,
		Log:         logger.Component(log, "collector"),
		lastSeen:    make(map[string]time.Time),
	}
}

// Refresh re-fetches every registered source for each ticker not already
// refreshed within the freshness window, fanning out over a bounded worker
// pool (errgroup) per ticker. A fetcher failure for one ticker never stops
// the others — grounded on the pack's aegis reference collector fan-out
// (see DESIGN.md).
func (c *Collector) Refresh(ctx context.Context, tickers []string) error {
	if c.Concurrency <= 0 {
		c.Concurrency = 8
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.Concurrency)

	for _, ticker := range tickers {
		ticker := ticker
		g.Go(func() error {
			c.refreshOne(gctx, ticker)
			return nil
		})
	}
	return g.Wait()
}

func (c *Collector) refreshOne(ctx context.Context, ticker string) {
	for _, f := range c.Fetchers {
		key := f.SiteID() + "/" + ticker
		if !c.needsRefresh(key) {
			continue
		}

		result := c.Executor.Execute(ctx, f, ticker, "standard")
		c.mu.Lock()
		c.lastSeen[key] = time.Now()
		c.mu.Unlock()

		if result.Status != "ok" {
			c.Log.Debug().Str("site", f.SiteID()).Str("ticker", ticker).Msg("collector refresh fetch failed, continuing")
		}
	}
}

func (c *Collector) needsRefresh(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	last, ok := c.lastSeen[key]
	if !ok {
		return true
	}
	return time.Since(last) >= c.Freshness
}
