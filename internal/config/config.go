// Package config loads the single immutable configuration snapshot every
// other component reads from. There are no process-wide mutable globals;
// everything tunable (retry presets, rate limits, regime weights, veto
// thresholds, risk constants) lives on this struct, built once at startup.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration for one process lifetime.
type Config struct {
	DataDir   string // base directory for the universe/cache/ledger sqlite files
	BackupDir string // base directory for tiered sqlite backups, default DataDir/backups
	LogLevel  string
	Port      int
	DevMode   bool

	DBKISKey     string // KIS_* broker credentials, optional
	DBKISSecret  string
	DartAPIKey   string // DART_API_KEY, optional; disclosure fetcher degrades to FetchAuth without it
	GeminiAPIKey string // optional; without it the retrospective job is disabled and news sentiment is keyword-only
	SlackWebhook string // optional; currently unused by the core, read for forward-compat

	Orchestrator OrchestratorConfig
	RateLimit    RateLimitConfig
	Retry        RetryPresets
	Screener     ScreenerConfig
	Regime       RegimeConfig
	Risk         RiskConfig
	Schedule     ScheduleConfig
}

// OrchestratorConfig bounds the tiered worker pool.
type OrchestratorConfig struct {
	DefaultConcurrency int           // per-tier worker pool size for tiers 1-3
	Tier4Concurrency   int           // tier 4 must serialise
	FetchTimeout       time.Duration // per-attempt deadline, default 30s
}

// RateLimitConfig is the default token-bucket rate when a Site doesn't
// declare its own.
type RateLimitConfig struct {
	DefaultPerMinute int
}

// RetryPreset is one named exponential-backoff policy.
type RetryPreset struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Multiplier  float64
}

// RetryPresets names the three documented presets plus which one fetchers
// use by default.
type RetryPresets struct {
	Quick      RetryPreset
	Standard   RetryPreset
	Persistent RetryPreset
	Default    string // "quick" | "standard" | "persistent"
}

// Preset resolves a preset by name, falling back to Standard.
func (r RetryPresets) Preset(name string) RetryPreset {
	switch name {
	case "quick":
		return r.Quick
	case "persistent":
		return r.Persistent
	case "standard", "":
		return r.Standard
	default:
		return r.Standard
	}
}

// ScreenerConfig tunes the two-stage candidate screener, including the
// optional hard-cut guards layered on top of the quant score.
type ScreenerConfig struct {
	PBRMin          float64
	PBRMax          float64
	PERMin          float64
	PERMax          float64
	MinVolume       int64
	MinMarketCap    float64
	MinTradingValue float64
	Stage1Limit     int
	Stage2TopN      int

	DrawdownGuard   bool // exclude 1d <= -9% or 5d <= -18%
	OverheatGuard   bool // exclude 5d return >= +35%
	VolatilityGuard bool // exclude top-decile 20d volatility
	RSIGuard        bool // exclude RSI(14) <= RSIFloor: a broken, not merely oversold, trend
	RSIFloor        float64
}

// RegimeConfig carries the market-regime thresholds and the per-regime
// fusion weights.
type RegimeConfig struct {
	BullMultiplier float64 // MA20 > MA60 * BullMultiplier => BULL
	BearMultiplier float64 // MA20 < MA60 * BearMultiplier => BEAR
	Weights        map[string]RegimeWeights
}

// RegimeWeights is the analyser weighting for one regime; must sum to ~1.0.
type RegimeWeights struct {
	Technical   float64
	Disclosure  float64
	Supply      float64
	Fundamental float64
	Market      float64
	News        float64
	Consensus   float64
}

// RiskConfig tunes the backtest's risk manager and circuit breaker.
type RiskConfig struct {
	MaxCapitalPerTradePct   float64
	RiskPerTradePct         float64
	ATRPeriod               int
	ATRStopMultiplier       float64
	FallbackStopPct         float64
	SlippagePct             float64
	CommissionPct           float64
	CircuitBreakerLossPct   float64 // negative fraction, e.g. -0.02 halts at a 2% daily loss
	CircuitBreakerMaxTrades int
}

// ScheduleConfig drives the cron-backed scheduler.
type ScheduleConfig struct {
	AutoRunInterval       time.Duration // "auto" verb default interval (20 min)
	PriceTrackerCron      string        // daily 18:00 KST
	RetrospectiveRateGap  time.Duration // minimum wait between LLM calls: <= 1 call / 2s
	RetrospectiveMaxBatch int           // <= 10 per run

	BackupHourlyCron  string // ledger.db only, top of every hour
	BackupDailyCron   string // universe+ledger, once a day
	BackupWeeklyCron  string // all three databases, once a week
	BackupMonthlyCron string // all three databases, once a month
	HealthCheckCron   string // integrity check + auto-recovery sweep
	MonitoringCron    string // disk/WAL/growth/backup-staleness alert sweep
}

// Load reads configuration from environment variables, applying the
// documented defaults wherever an env var is unset.
func Load() (*Config, error) {
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")

	backupDir := getEnv("BACKUP_DIR", "")
	if backupDir == "" {
		backupDir = filepath.Join(dataDir, "backups")
	}

	cfg := &Config{
		DataDir:      dataDir,
		BackupDir:    backupDir,
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		Port:         getEnvAsInt("PORT", 8090),
		DevMode:      getEnvAsBool("DEV_MODE", false),
		DBKISKey:     getEnv("KIS_APP_KEY", ""),
		DBKISSecret:  getEnv("KIS_APP_SECRET", ""),
		DartAPIKey:   getEnv("DART_API_KEY", ""),
		GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
		SlackWebhook: getEnv("SLACK_WEBHOOK_URL", ""),

		Orchestrator: OrchestratorConfig{
			DefaultConcurrency: getEnvAsInt("ORCHESTRATOR_CONCURRENCY", 10),
			Tier4Concurrency:   1,
			FetchTimeout:       time.Duration(getEnvAsInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		},
		RateLimit: RateLimitConfig{
			DefaultPerMinute: getEnvAsInt("DEFAULT_RATE_LIMIT_PER_MINUTE", 60),
		},
		Retry: RetryPresets{
			Quick:      RetryPreset{MaxAttempts: 2, BaseDelay: 500 * time.Millisecond, Multiplier: 1.5},
			Standard:   RetryPreset{MaxAttempts: 3, BaseDelay: 1 * time.Second, Multiplier: 2.0},
			Persistent: RetryPreset{MaxAttempts: 5, BaseDelay: 2 * time.Second, Multiplier: 2.0},
			Default:    getEnv("RETRY_PRESET", "standard"),
		},
		Screener: ScreenerConfig{
			PBRMin:          0.1,
			PBRMax:          1.5,
			PERMin:          1.0,
			PERMax:          20.0,
			MinVolume:       50_000,
			MinMarketCap:    5e10,
			MinTradingValue: 5e9,
			Stage1Limit:     300,
			Stage2TopN:      100,
			DrawdownGuard:   getEnvAsBool("SCREENER_DRAWDOWN_GUARD", true),
			OverheatGuard:   getEnvAsBool("SCREENER_OVERHEAT_GUARD", true),
			VolatilityGuard: getEnvAsBool("SCREENER_VOLATILITY_GUARD", true),
			RSIGuard:        getEnvAsBool("SCREENER_RSI_GUARD", true),
			RSIFloor:        10,
		},
		Regime: RegimeConfig{
			BullMultiplier: 1.02,
			BearMultiplier: 0.98,
			Weights: map[string]RegimeWeights{
				"BULL":    {Technical: .25, Disclosure: .10, Supply: .20, Fundamental: .05, Market: .15, News: .15, Consensus: .10},
				"SIDEWAY": {Technical: .20, Disclosure: .15, Supply: .20, Fundamental: .10, Market: .10, News: .15, Consensus: .10},
				"BEAR":    {Technical: .15, Disclosure: .20, Supply: .15, Fundamental: .20, Market: .10, News: .10, Consensus: .10},
			},
		},
		Risk: RiskConfig{
			MaxCapitalPerTradePct:   0.20,
			RiskPerTradePct:         0.02,
			ATRPeriod:               14,
			ATRStopMultiplier:       2.0,
			FallbackStopPct:         0.03,
			SlippagePct:             0.0005,
			CommissionPct:           0.00015,
			CircuitBreakerLossPct:   -0.02,
			CircuitBreakerMaxTrades: 10,
		},
		Schedule: ScheduleConfig{
			AutoRunInterval:       20 * time.Minute,
			PriceTrackerCron:      "0 0 18 * * *", // 18:00 daily (seconds-enabled cron)
			RetrospectiveRateGap:  2 * time.Second,
			RetrospectiveMaxBatch: 10,

			BackupHourlyCron:  "0 0 * * * *",    // top of every hour
			BackupDailyCron:   "0 30 3 * * *",   // 03:30 daily
			BackupWeeklyCron:  "0 0 4 * * 0",    // 04:00 every Sunday
			BackupMonthlyCron: "0 0 5 1 * *",    // 05:00 on the 1st
			HealthCheckCron:   "0 */15 * * * *", // every 15 minutes
			MonitoringCron:    "0 */10 * * * *", // every 10 minutes
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks required configuration is present. Only the data
// directory is mandatory; every external credential is optional (§6).
func (c *Config) Validate() error {
	if c.DataDir == "" {
		return fmt.Errorf("DATA_DIR is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
