// Package fetcher defines the contract every data-source implementation
// satisfies and the retry/rate-limit/persistence wrapper that runs around
// it. Individual sources live under internal/fetchers/tierN/...; this
// package never imports them.
package fetcher

import (
	"context"
	"time"

	"github.com/aristath/aegis-kr/internal/domain"
)

// Fetcher is the contract every data-source implementation satisfies.
// A Fetcher is stateless and safe for concurrent use by the orchestrator's
// worker pool.
type Fetcher interface {
	// SiteID must match a registered domain.Site.ID.
	SiteID() string
	// DomainID groups related sites for blob storage (e.g. "price", "disclosure").
	DomainID() string
	// DataType names the payload shape this fetcher produces (e.g. "ohlcv_daily").
	DataType() string
	// Fetch retrieves data for ticker. Errors must be a *domain.FetchError
	// so the execute() wrapper can decide whether to retry.
	Fetch(ctx context.Context, ticker string) (map[string]any, error)
}

// Result is what execute() returns to the orchestrator after a single
// fetch attempt sequence (including any retries) completes.
type Result struct {
	Ticker    string
	SiteID    string
	Status    domain.ExecutionStatus
	Duration  time.Duration
	ErrorKind domain.FetchErrorKind
	Content   map[string]any
}
