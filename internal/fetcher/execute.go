package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/aristath/aegis-kr/internal/config"
	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/internal/ratelimit"
	"github.com/rs/zerolog"
)

// Executor runs a Fetcher's Fetch under rate limiting, retry, and the
// mandatory persistence triad: CollectedBlob (on success), ExecutionLog
// (always), SiteHealth (always). The log and health writes happen even
// when the fetch ultimately fails.
type Executor struct {
	Limiter *ratelimit.Registry
	Blobs   *database.BlobStore
	Logs    *database.ExecutionLogStore
	Health  *database.SiteHealthStore
	Retry   config.RetryPresets
	Timeout time.Duration
	Log     zerolog.Logger
}

// Execute runs one fetch-with-retry sequence for (f, ticker), using the
// named retry preset ("quick"|"standard"|"persistent").
func (e *Executor) Execute(ctx context.Context, f Fetcher, ticker string, presetName string) Result {
	start := time.Now()
	preset := e.Retry.Preset(presetName)

	if err := e.Limiter.Acquire(ctx, f.SiteID()); err != nil {
		return e.finish(ctx, f, ticker, start, nil, domain.NewFetchError(f.SiteID(), ticker, domain.FetchTransient, err))
	}

	var lastErr error
	var content map[string]any

	for attempt := 1; attempt <= preset.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.Timeout)
		content, lastErr = f.Fetch(attemptCtx, ticker)
		cancel()

		if lastErr == nil {
			break
		}

		var fe *domain.FetchError
		if !errors.As(lastErr, &fe) {
			fe = domain.NewFetchError(f.SiteID(), ticker, domain.FetchTransient, lastErr)
			lastErr = fe
		}
		if !fe.Retryable() || attempt == preset.MaxAttempts {
			break
		}

		delay := backoffDelay(preset, attempt)
		e.Log.Debug().Str("site", f.SiteID()).Str("ticker", ticker).Int("attempt", attempt).
			Dur("delay", delay).Msg("fetch retry backing off")

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			lastErr = ctx.Err()
			attempt = preset.MaxAttempts // stop looping
		}
	}

	return e.finish(ctx, f, ticker, start, content, lastErr)
}

func (e *Executor) finish(ctx context.Context, f Fetcher, ticker string, start time.Time, content map[string]any, fetchErr error) Result {
	duration := time.Since(start)
	result := Result{Ticker: ticker, SiteID: f.SiteID(), Duration: duration}

	health, herr := e.Health.Get(ctx, f.SiteID())
	if herr != nil {
		e.Log.Warn().Err(herr).Str("site", f.SiteID()).Msg("failed to load site health, assuming active")
		health = domain.SiteHealth{SiteID: f.SiteID(), Status: domain.HealthActive}
	}

	// EWMA over attempt durations.
	if health.AvgLatencyMS == 0 {
		health.AvgLatencyMS = float64(duration.Milliseconds())
	} else {
		health.AvgLatencyMS = 0.8*health.AvgLatencyMS + 0.2*float64(duration.Milliseconds())
	}

	if fetchErr == nil {
		result.Status = domain.ExecutionOK
		health.ConsecutiveFailures = 0
		health.LastSuccessTS = time.Now()
		health.Status = health.NextStatus()

		if err := e.Blobs.Upsert(ctx, domain.CollectedBlob{
			Ticker: ticker, SiteID: f.SiteID(), DomainID: f.DomainID(),
			DataType: f.DataType(), DataDate: time.Now(), Content: content,
		}); err != nil {
			e.Log.Error().Err(err).Str("site", f.SiteID()).Str("ticker", ticker).Msg("failed to persist blob")
		}
		result.Content = content
	} else {
		result.Status = domain.ExecutionFail
		var fe *domain.FetchError
		if errors.As(fetchErr, &fe) {
			result.ErrorKind = fe.Kind
		} else {
			result.ErrorKind = domain.FetchTransient
		}
		health.ConsecutiveFailures++
		health.Status = health.NextStatus()

		// Blocked and Auth failures override the streak-derived status:
		// a ban means degraded right away, dead credentials mean down.
		switch result.ErrorKind {
		case domain.FetchBlocked:
			if health.Status == domain.HealthActive {
				health.Status = domain.HealthDegraded
			}
		case domain.FetchAuth:
			health.Status = domain.HealthDown
		}
	}

	if err := e.Health.Upsert(ctx, health); err != nil {
		e.Log.Error().Err(err).Str("site", f.SiteID()).Msg("failed to persist site health")
	}

	if err := e.Logs.Insert(ctx, domain.ExecutionLog{
		SiteID: f.SiteID(), Ticker: ticker, Status: result.Status,
		DurationMS: duration.Milliseconds(), ErrorKind: string(result.ErrorKind),
		Timestamp: time.Now(),
	}); err != nil {
		e.Log.Error().Err(err).Str("site", f.SiteID()).Msg("failed to persist execution log")
	}

	return result
}
