package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/aegis-kr/internal/clients/broker"
	"github.com/aristath/aegis-kr/internal/config"
	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/internal/fetcher"
	"github.com/aristath/aegis-kr/internal/fetchers/tier1/krx"
	"github.com/aristath/aegis-kr/internal/fetchers/tier2/consensus"
	"github.com/aristath/aegis-kr/internal/fetchers/tier2/dart"
	"github.com/aristath/aegis-kr/internal/fetchers/tier3/naver"
	"github.com/aristath/aegis-kr/internal/fetchers/tier3/newsrss"
	"github.com/aristath/aegis-kr/internal/fetchers/tier4/browser"
	"github.com/aristath/aegis-kr/internal/llm"
	"github.com/aristath/aegis-kr/internal/modules/aegis"
	"github.com/aristath/aegis-kr/internal/modules/recommendation"
	"github.com/aristath/aegis-kr/internal/modules/retrospective"
	"github.com/aristath/aegis-kr/internal/modules/screener"
	"github.com/aristath/aegis-kr/internal/orchestrator"
	"github.com/aristath/aegis-kr/internal/ratelimit"
	"github.com/aristath/aegis-kr/internal/reliability"
	"github.com/aristath/aegis-kr/internal/scheduler"
	"github.com/aristath/aegis-kr/internal/server"
)

// App is the fully wired composition root shared by every CLI verb.
// Built once per process invocation from Config.
type App struct {
	Cfg *config.Config
	Log zerolog.Logger

	Pool       *database.Pool
	UniverseDB *database.DB
	CacheDB    *database.DB
	LedgerDB   *database.DB

	Tickers         *database.TickerStore
	Sites           *database.SiteStore
	SiteHealth      *database.SiteHealthStore
	ExecutionLog    *database.ExecutionLogStore
	Blobs           *database.BlobStore
	OHLCV           *database.OHLCVStore
	Fundamentals    *database.FundamentalsStore
	SupplyDemand    *database.SupplyDemandStore
	Holdings        *database.HoldingStore
	Trades          *database.TradeStore
	Ticks           *database.TickStore
	Recommendations *database.RecommendationStore
	Performance     *database.PerformanceStore
	Retrospectives  *database.RetrospectiveStore

	Fetchers     []fetcher.Fetcher
	Orchestrator *orchestrator.Orchestrator

	Analysers []aegis.Analyser
	Regime    *aegis.RegimeClassifier
	Fusion    *aegis.Engine

	Screener      *screener.Screener
	Collector     *recommendation.Collector
	Batch         *recommendation.BatchRunner
	Tracker       *recommendation.PriceTracker
	Retrospective *recommendation.RetrospectiveJob

	Scheduler *scheduler.Scheduler
	Server    *server.Server
	LLM       *llm.Client

	Backup         *reliability.BackupService
	Monitoring     *reliability.MonitoringService
	healthServices map[string]*reliability.DatabaseHealthService
}

// siteRegistry is the fixed data-source registry AEGIS ships with. Each entry's
// rate limit reflects the documented or observed ceiling for that source.
var siteRegistry = []domain.Site{
	{ID: "krx", Tier: domain.Tier1, Name: "KRX market data", RateLimitPerMinute: 120, IsActive: true},
	{ID: "broker-consensus", Tier: domain.Tier2, Name: "Broker consensus API", RateLimitPerMinute: 60, IsActive: true},
	{ID: "dart", Tier: domain.Tier2, Name: "DART disclosure API", RateLimitPerMinute: 60, IsActive: true},
	{ID: "naver-frgn", Tier: domain.Tier3, Name: "Naver Finance foreign/institutional flows", RateLimitPerMinute: 30, IsActive: true},
	{ID: "news-rss", Tier: domain.Tier3, Name: "Google News RSS", RateLimitPerMinute: 30, IsActive: true},
	{ID: "browser-consensus-reports", Tier: domain.Tier4, Name: "Headless-browser consensus reports", RateLimitPerMinute: 6, IsActive: true},
}

// newApp opens all three databases, migrates them, seeds the site
// registry, and wires every module against the stores it needs.
func newApp(cfg *config.Config, log zerolog.Logger) (*App, error) {
	a := &App{Cfg: cfg, Log: log}

	pool, err := database.OpenPool(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	a.Pool = pool
	a.UniverseDB = pool.Universe
	a.CacheDB = pool.Cache
	a.LedgerDB = pool.Ledger

	a.Tickers = database.NewTickerStore(a.UniverseDB)
	a.Sites = database.NewSiteStore(a.UniverseDB)
	a.Holdings = database.NewHoldingStore(a.UniverseDB)
	a.Fundamentals = database.NewFundamentalsStore(a.UniverseDB)
	a.SupplyDemand = database.NewSupplyDemandStore(a.UniverseDB)
	a.OHLCV = database.NewOHLCVStore(a.UniverseDB)
	a.Trades = database.NewTradeStore(a.UniverseDB)
	a.Ticks = database.NewTickStore(a.UniverseDB)

	a.Blobs = database.NewBlobStore(a.CacheDB)

	a.SiteHealth = database.NewSiteHealthStore(a.LedgerDB)
	a.ExecutionLog = database.NewExecutionLogStore(a.LedgerDB)
	a.Recommendations = database.NewRecommendationStore(a.LedgerDB)
	a.Performance = database.NewPerformanceStore(a.LedgerDB)
	a.Retrospectives = database.NewRetrospectiveStore(a.LedgerDB)

	if err := a.seedSites(); err != nil {
		return nil, fmt.Errorf("seed sites: %w", err)
	}

	a.buildFetchers()
	a.buildOrchestrator()
	a.buildAegis()
	a.buildRecommendationLifecycle()
	a.buildReliability()
	a.buildScheduler()
	a.Server = server.New(server.Config{
		Port:         cfg.Port,
		Log:          log,
		SiteHealth:   a.SiteHealth,
		Sites:        a.Sites,
		ExecutionLog: a.ExecutionLog,
		Monitoring:   a.Monitoring,
		DevMode:      cfg.DevMode,
	})

	return a, nil
}

func (a *App) seedSites() error {
	ctx := context.Background()
	for _, site := range siteRegistry {
		if err := a.Sites.Upsert(ctx, site); err != nil {
			return err
		}
	}
	return nil
}

func (a *App) buildFetchers() {
	a.Fetchers = []fetcher.Fetcher{
		krx.NewOHLCVClient(a.Log),
		consensus.NewClient(a.Log),
		dart.NewClient(a.Cfg.DartAPIKey, a.Log),
		naver.NewSupplyDemandScraper(a.Log),
		newsrss.NewClient(a.Log),
		browser.NewConsensusClient(a.Log),
	}
}

func (a *App) buildOrchestrator() {
	limiter := ratelimit.NewRegistry(a.Cfg.RateLimit.DefaultPerMinute)
	for _, site := range siteRegistry {
		limiter.Configure(site.ID, site.RateLimitPerMinute)
	}

	a.Orchestrator = &orchestrator.Orchestrator{
		Sites: a.Sites,
		Factory: &fetcher.Factory{
			Sites: a.Sites,
			Log:   a.Log,
		},
		Executor: &fetcher.Executor{
			Limiter: limiter,
			Blobs:   a.Blobs,
			Logs:    a.ExecutionLog,
			Health:  a.SiteHealth,
			Retry:   a.Cfg.Retry,
			Timeout: a.Cfg.Orchestrator.FetchTimeout,
			Log:     a.Log,
		},
		DefaultConcurrency: a.Cfg.Orchestrator.DefaultConcurrency,
		Tier4Concurrency:   a.Cfg.Orchestrator.Tier4Concurrency,
		RetryPreset:        a.Cfg.Retry.Default,
		Log:                a.Log,
	}
}

func (a *App) buildAegis() {
	var sentiment aegis.SentimentModel
	if a.Cfg.GeminiAPIKey != "" {
		client, err := llm.NewClient(context.Background(), llm.Config{APIKey: a.Cfg.GeminiAPIKey}, a.Log)
		if err != nil {
			a.Log.Warn().Err(err).Msg("gemini client unavailable, news analyser falls back to keyword scoring")
		} else {
			a.LLM = client
			sentiment = llm.NewSentimentModel(client)
		}
	}

	a.Regime = aegis.NewRegimeClassifier(a.OHLCV, a.Cfg.Regime, "U001") // KOSPI composite proxy ticker
	a.Fusion = aegis.NewEngine(a.Regime, a.Cfg.Regime, a.Cfg.Screener.MinTradingValue)

	a.Analysers = []aegis.Analyser{
		aegis.NewTechnicalAnalyser(a.OHLCV, a.Ticks, a.Log),
		aegis.NewDisclosureAnalyser(a.Blobs, a.Log),
		aegis.NewSupplyDemandAnalyser(a.SupplyDemand, a.Log),
		aegis.NewFundamentalAnalyser(a.Fundamentals, a.Log),
		aegis.NewNewsAnalyser(a.Blobs, sentiment, a.Log),
		aegis.NewConsensusAnalyser(a.Blobs, a.Log),
		aegis.NewMarketContextAnalyser(a.OHLCV, a.Log),
	}
}

func (a *App) buildRecommendationLifecycle() {
	a.Screener = screener.New(a.Fundamentals, a.OHLCV, a.SupplyDemand, a.Cfg.Screener, a.Log)
	a.Collector = recommendation.NewCollector(a.Orchestrator.Executor, a.Fetchers, a.Log)

	a.Batch = &recommendation.BatchRunner{
		Screener:        a.Screener,
		Collector:       a.Collector,
		Analysers:       a.Analysers,
		Fusion:          a.Fusion,
		Regime:          a.Regime,
		OHLCV:           a.OHLCV,
		Recommendations: a.Recommendations,
		Log:             a.Log,
	}

	a.Tracker = &recommendation.PriceTracker{
		Recommendations: a.Recommendations,
		OHLCV:           a.OHLCV,
		Performance:     a.Performance,
		Log:             a.Log,
	}

	var generator retrospective.Generator
	if a.LLM != nil {
		generator = a.LLM
	}
	a.Retrospective = &recommendation.RetrospectiveJob{
		Performance:     a.Performance,
		Retrospectives:  a.Retrospectives,
		Recommendations: a.Recommendations,
		Blobs:           a.Blobs,
		Generator:       generator,
		RateGap:         a.Cfg.Schedule.RetrospectiveRateGap,
		MaxBatch:        a.Cfg.Schedule.RetrospectiveMaxBatch,
		Log:             a.Log,
	}
}

// buildReliability wires the tiered-backup, integrity-check, and
// alerting services against the same three databases every store reads
// and writes, so a corrupted ledger or a starved disk is caught the same
// way a bad fetch is: logged, alerted on, and where possible recovered
// from, without an operator tailing raw sqlite files.
func (a *App) buildReliability() {
	databases := a.Pool.AsMap()

	a.Backup = reliability.NewBackupService(databases, a.Cfg.DataDir, a.Cfg.BackupDir, a.Log)

	healthServices := make(map[string]*reliability.DatabaseHealthService, len(databases))
	for name, db := range databases {
		healthServices[name] = reliability.NewDatabaseHealthService(db, name, db.Path(), a.Log)
	}

	a.Monitoring = reliability.NewMonitoringService(databases, healthServices, a.Cfg.DataDir, a.Cfg.BackupDir, a.Log)
	a.healthServices = healthServices
}

func (a *App) buildScheduler() {
	a.Scheduler = scheduler.New(a.Log)

	hourlyBackup := reliability.NewHourlyBackupJob(a.Backup)
	if err := a.Scheduler.AddJob(a.Cfg.Schedule.BackupHourlyCron, hourlyBackup); err != nil {
		a.Log.Error().Err(err).Msg("failed to register hourly backup job")
	}
	dailyBackup := reliability.NewDailyBackupJob(a.Backup)
	if err := a.Scheduler.AddJob(a.Cfg.Schedule.BackupDailyCron, dailyBackup); err != nil {
		a.Log.Error().Err(err).Msg("failed to register daily backup job")
	}
	weeklyBackup := reliability.NewWeeklyBackupJob(a.Backup)
	if err := a.Scheduler.AddJob(a.Cfg.Schedule.BackupWeeklyCron, weeklyBackup); err != nil {
		a.Log.Error().Err(err).Msg("failed to register weekly backup job")
	}
	monthlyBackup := reliability.NewMonthlyBackupJob(a.Backup)
	if err := a.Scheduler.AddJob(a.Cfg.Schedule.BackupMonthlyCron, monthlyBackup); err != nil {
		a.Log.Error().Err(err).Msg("failed to register monthly backup job")
	}

	healthServiceList := make([]*reliability.DatabaseHealthService, 0, len(a.healthServices))
	for _, name := range []string{"universe", "cache", "ledger"} {
		healthServiceList = append(healthServiceList, a.healthServices[name])
	}
	healthCheck := reliability.NewHealthCheckJob(healthServiceList...)
	if err := a.Scheduler.AddJob(a.Cfg.Schedule.HealthCheckCron, healthCheck); err != nil {
		a.Log.Error().Err(err).Msg("failed to register database health-check job")
	}

	monitoring := reliability.NewMonitoringJob(a.Monitoring)
	if err := a.Scheduler.AddJob(a.Cfg.Schedule.MonitoringCron, monitoring); err != nil {
		a.Log.Error().Err(err).Msg("failed to register database monitoring job")
	}

	autoRun := &scheduler.AutoRunJob{
		Orchestrator: a.Orchestrator,
		Fetchers:     a.Fetchers,
		Tickers:      a.Tickers,
		Batch:        a.Batch,
		Timeout:      15 * time.Minute,
	}
	if err := a.Scheduler.AddJob(fmt.Sprintf("@every %s", a.Cfg.Schedule.AutoRunInterval), autoRun); err != nil {
		a.Log.Error().Err(err).Msg("failed to register auto-run job")
	}

	priceTracker := &scheduler.PriceTrackerJob{Tracker: a.Tracker, Timeout: 10 * time.Minute}
	if err := a.Scheduler.AddJob(a.Cfg.Schedule.PriceTrackerCron, priceTracker); err != nil {
		a.Log.Error().Err(err).Msg("failed to register price-tracker job")
	}

	retro := &scheduler.RetrospectiveJob{Job: a.Retrospective, Timeout: 5 * time.Minute}
	if err := a.Scheduler.AddJob("@every 5m", retro); err != nil {
		a.Log.Error().Err(err).Msg("failed to register retrospective job")
	}
}

// brokerClient lazily builds the realtime tick client for the `collect`
// verb; unlike the rest of the composition root it is not needed by every
// command, so it isn't wired into newApp.
func (a *App) brokerClient(onTick func(domain.Tick)) *broker.Client {
	return broker.New(broker.Config{
		URL:         "wss://ops.koreainvestment.com:21000/tryitout/H0STCNT0",
		ApprovalKey: a.Cfg.DBKISKey,
		TRID:        "H0STCNT0",
	}, onTick, a.Log)
}

// Close releases all three database connections.
func (a *App) Close() {
	if a.Pool != nil {
		_ = a.Pool.Close()
	}
}
