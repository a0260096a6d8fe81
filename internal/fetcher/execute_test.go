package fetcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aristath/aegis-kr/internal/config"
	"github.com/aristath/aegis-kr/internal/database"
	"github.com/aristath/aegis-kr/internal/domain"
	"github.com/aristath/aegis-kr/internal/ratelimit"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeFetcher struct {
	siteID   string
	failN    int // fail this many times before succeeding; -1 means always fail
	kind     domain.FetchErrorKind
	attempts int
}

func (f *fakeFetcher) SiteID() string   { return f.siteID }
func (f *fakeFetcher) DomainID() string { return "test" }
func (f *fakeFetcher) DataType() string { return "test_data" }

func (f *fakeFetcher) Fetch(ctx context.Context, ticker string) (map[string]any, error) {
	f.attempts++
	if f.failN < 0 || f.attempts <= f.failN {
		return nil, domain.NewFetchError(f.siteID, ticker, f.kind, errors.New("boom"))
	}
	return map[string]any{"value": 1}, nil
}

func newTestExecutor(t *testing.T) (*Executor, *fakeExecDeps) {
	t.Helper()
	db, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileLedger, Name: "ledger"})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })

	deps := &fakeExecDeps{
		blobsDB: func() *database.DB {
			cdb, err := database.New(database.Config{Path: ":memory:", Profile: database.ProfileCache, Name: "cache"})
			require.NoError(t, err)
			require.NoError(t, cdb.Migrate())
			t.Cleanup(func() { cdb.Close() })
			return cdb
		}(),
	}

	exec := &Executor{
		Limiter: ratelimit.NewRegistry(6000),
		Blobs:   database.NewBlobStore(deps.blobsDB),
		Logs:    database.NewExecutionLogStore(db),
		Health:  database.NewSiteHealthStore(db),
		Retry: config.RetryPresets{
			Quick: config.RetryPreset{MaxAttempts: 3, BaseDelay: time.Millisecond, Multiplier: 1.5},
		},
		Timeout: time.Second,
		Log:     zerolog.Nop(),
	}
	return exec, deps
}

type fakeExecDeps struct {
	blobsDB *database.DB
}

func TestExecutor_SucceedsFirstTry(t *testing.T) {
	exec, _ := newTestExecutor(t)
	f := &fakeFetcher{siteID: "site-a", failN: 0}

	result := exec.Execute(context.Background(), f, "005930", "quick")
	assert.Equal(t, domain.ExecutionOK, result.Status)
	assert.Equal(t, 1, f.attempts)
}

func TestExecutor_RetriesTransientThenSucceeds(t *testing.T) {
	exec, _ := newTestExecutor(t)
	f := &fakeFetcher{siteID: "site-b", failN: 2, kind: domain.FetchTransient}

	result := exec.Execute(context.Background(), f, "005930", "quick")
	assert.Equal(t, domain.ExecutionOK, result.Status)
	assert.Equal(t, 3, f.attempts)
}

func TestExecutor_DoesNotRetryNotFound(t *testing.T) {
	exec, _ := newTestExecutor(t)
	f := &fakeFetcher{siteID: "site-c", failN: -1, kind: domain.FetchNotFound}

	result := exec.Execute(context.Background(), f, "005930", "quick")
	assert.Equal(t, domain.ExecutionFail, result.Status)
	assert.Equal(t, domain.FetchNotFound, result.ErrorKind)
	assert.Equal(t, 1, f.attempts)
}

func TestExecutor_BlockedMarksSiteDegraded(t *testing.T) {
	exec, _ := newTestExecutor(t)
	f := &fakeFetcher{siteID: "site-blocked", failN: -1, kind: domain.FetchBlocked}

	result := exec.Execute(context.Background(), f, "005930", "quick")
	assert.Equal(t, domain.ExecutionFail, result.Status)
	assert.Equal(t, 1, f.attempts)

	health, err := exec.Health.Get(context.Background(), "site-blocked")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthDegraded, health.Status)
}

func TestExecutor_AuthMarksSiteDown(t *testing.T) {
	exec, _ := newTestExecutor(t)
	f := &fakeFetcher{siteID: "site-auth", failN: -1, kind: domain.FetchAuth}

	exec.Execute(context.Background(), f, "005930", "quick")

	health, err := exec.Health.Get(context.Background(), "site-auth")
	require.NoError(t, err)
	assert.Equal(t, domain.HealthDown, health.Status)
}

func TestExecutor_RecordsSiteHealthFailureStreak(t *testing.T) {
	exec, _ := newTestExecutor(t)
	f := &fakeFetcher{siteID: "site-d", failN: -1, kind: domain.FetchTransient}

	exec.Execute(context.Background(), f, "005930", "quick")

	health, err := exec.Health.Get(context.Background(), "site-d")
	require.NoError(t, err)
	assert.Equal(t, 1, health.ConsecutiveFailures)
}
