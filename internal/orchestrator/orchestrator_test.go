package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aristath/aegis-kr/internal/config"
	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/internal/fetcher"
	"github.com/aristath/aegis-kr/internal/ratelimit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type recordingFetcher struct {
	siteID string
}

func (f *recordingFetcher) SiteID() string   { return f.siteID }
func (f *recordingFetcher) DomainID() string { return "test" }
func (f *recordingFetcher) DataType() string { return "test" }
func (f *recordingFetcher) Fetch(ctx context.Context, ticker string) (map[string]any, error) {
	return map[string]any{"ok": true}, nil
}

func setupOrchestrator(t *testing.T) (*Orchestrator, func(tier domain.SiteTier, id, name string)) {
	t.Helper()
	universe, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileStandard, Name: "universe"})
	require.NoError(t, err)
	require.NoError(t, universe.Migrate())
	t.Cleanup(func() { universe.Close() })

	cache, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileCache, Name: "cache"})
	require.NoError(t, err)
	require.NoError(t, cache.Migrate())
	t.Cleanup(func() { cache.Close() })

	ledger, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileLedger, Name: "ledger"})
	require.NoError(t, err)
	require.NoError(t, ledger.Migrate())
	t.Cleanup(func() { ledger.Close() })

	sites := database.NewSiteStore(universe)
	exec := &fetcher.Executor{
		Limiter: ratelimit.NewRegistry(6000),
		Blobs:   database.NewBlobStore(cache),
		Logs:    database.NewExecutionLogStore(ledger),
		Health:  database.NewSiteHealthStore(ledger),
		Retry:   config.RetryPresets{Standard: config.RetryPreset{MaxAttempts: 1, BaseDelay: time.Millisecond, Multiplier: 1}},
		Timeout: time.Second,
		Log:     zerolog.Nop(),
	}

	o := &Orchestrator{
		Sites:              sites,
		Factory:            &fetcher.Factory{Sites: sites, Log: zerolog.Nop()},
		Executor:           exec,
		DefaultConcurrency: 4,
		Tier4Concurrency:   1,
		RetryPreset:        "standard",
		Log:                zerolog.Nop(),
	}

	register := func(tier domain.SiteTier, id, name string) {
		require.NoError(t, sites.Upsert(context.Background(), domain.Site{ID: id, Tier: tier, Name: name, IsActive: true}))
	}
	return o, register
}

func TestOrchestrator_RunDispatchesAllTiers(t *testing.T) {
	o, register := setupOrchestrator(t)
	register(domain.Tier1, "site-1", "Tier 1")
	register(domain.Tier3, "site-3", "Tier 3")

	summary := o.Run(context.Background(), []fetcher.Fetcher{
		&recordingFetcher{siteID: "site-1"},
		&recordingFetcher{siteID: "site-3"},
	}, []string{"005930", "000660"})

	require.Equal(t, 4, summary.OK)
	require.Equal(t, 0, summary.Fail)
}

func TestOrchestrator_SkipsUnregisteredSite(t *testing.T) {
	o, _ := setupOrchestrator(t)

	summary := o.Run(context.Background(), []fetcher.Fetcher{
		&recordingFetcher{siteID: "unregistered"},
	}, []string{"005930"})

	require.Equal(t, 0, summary.OK)
	require.Equal(t, 0, summary.Fail)
}

type concurrencyTrackingFetcher struct {
	siteID  string
	mu      *sync.Mutex
	active  *int
	maxSeen *int
}

func (f *concurrencyTrackingFetcher) SiteID() string   { return f.siteID }
func (f *concurrencyTrackingFetcher) DomainID() string { return "test" }
func (f *concurrencyTrackingFetcher) DataType() string { return "test" }
func (f *concurrencyTrackingFetcher) Fetch(ctx context.Context, ticker string) (map[string]any, error) {
	f.mu.Lock()
	*f.active++
	if *f.active > *f.maxSeen {
		*f.maxSeen = *f.active
	}
	f.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	f.mu.Lock()
	*f.active--
	f.mu.Unlock()
	return map[string]any{}, nil
}

type timestampFetcher struct {
	siteID string
	mu     *sync.Mutex
	starts *[]time.Time
	ends   *[]time.Time
	delay  time.Duration
}

func (f *timestampFetcher) SiteID() string   { return f.siteID }
func (f *timestampFetcher) DomainID() string { return "test" }
func (f *timestampFetcher) DataType() string { return "test" }
func (f *timestampFetcher) Fetch(ctx context.Context, ticker string) (map[string]any, error) {
	f.mu.Lock()
	*f.starts = append(*f.starts, time.Now())
	f.mu.Unlock()

	time.Sleep(f.delay)

	f.mu.Lock()
	*f.ends = append(*f.ends, time.Now())
	f.mu.Unlock()
	return map[string]any{}, nil
}

// TestOrchestrator_TierBarrierOrdering verifies no tier-2 fetch starts
// before every tier-1 fetch in the same run has completed.
func TestOrchestrator_TierBarrierOrdering(t *testing.T) {
	o, register := setupOrchestrator(t)
	register(domain.Tier1, "site-1", "Tier 1")
	register(domain.Tier2, "site-2", "Tier 2")

	var mu sync.Mutex
	var t1Starts, t1Ends, t2Starts, t2Ends []time.Time
	slow := &timestampFetcher{siteID: "site-1", mu: &mu, starts: &t1Starts, ends: &t1Ends, delay: 20 * time.Millisecond}
	fast := &timestampFetcher{siteID: "site-2", mu: &mu, starts: &t2Starts, ends: &t2Ends}

	o.Run(context.Background(), []fetcher.Fetcher{slow, fast}, []string{"a", "b", "c"})

	require.Len(t, t1Ends, 3)
	require.Len(t, t2Starts, 3)

	var latestT1End time.Time
	for _, ts := range t1Ends {
		if ts.After(latestT1End) {
			latestT1End = ts
		}
	}
	for _, ts := range t2Starts {
		require.False(t, ts.Before(latestT1End), "tier-2 fetch started before tier 1 completed")
	}
}

func TestOrchestrator_Tier4IsSerialized(t *testing.T) {
	o, register := setupOrchestrator(t)
	register(domain.Tier4, "site-4", "Tier 4")

	var mu sync.Mutex
	active, maxSeen := 0, 0
	f := &concurrencyTrackingFetcher{siteID: "site-4", mu: &mu, active: &active, maxSeen: &maxSeen}

	o.Run(context.Background(), []fetcher.Fetcher{f}, []string{"a", "b", "c", "d"})

	require.Equal(t, 1, maxSeen, "tier 4 must never run more than one fetch concurrently")
}
