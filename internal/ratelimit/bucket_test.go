package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_DefaultRate(t *testing.T) {
	r := NewRegistry(60)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	require.NoError(t, r.Acquire(ctx, "unregistered-site"))
}

func TestRegistry_ConfigureOverridesDefault(t *testing.T) {
	r := NewRegistry(60)
	r.Configure("slow-site", 1) // 1/min, burst 1

	ctx := context.Background()
	require.NoError(t, r.Acquire(ctx, "slow-site"))

	// Second immediate acquire should block; use a tiny timeout to prove it.
	shortCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	err := r.Acquire(shortCtx, "slow-site")
	assert.Error(t, err)
}

func TestRegistry_SitesAreIndependent(t *testing.T) {
	r := NewRegistry(60)
	r.Configure("a", 1)
	r.Configure("b", 1)

	ctx := context.Background()
	require.NoError(t, r.Acquire(ctx, "a"))
	require.NoError(t, r.Acquire(ctx, "b"))
}
