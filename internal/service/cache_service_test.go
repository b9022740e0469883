package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingCacheRepo struct {
	err error
}

func (f failingCacheRepo) Get(context.Context, string, interface{}) error { return f.err }

func (f failingCacheRepo) Set(context.Context, string, interface{}, time.Duration) error { return f.err }

func (f failingCacheRepo) DeleteByPrefix(context.Context, string) (int, error) { return 0, f.err }

func TestCacheServiceRoundTripAndMetrics(t *testing.T) {
	metrics := NewMetricsService()
	svc := NewCacheService(newMemoryCacheRepo(), metrics, time.Minute, zap.NewNop(), true)
	ctx := context.Background()

	var got float64
	hit, err := svc.Get(ctx, "forecast:Fall:C1", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	require.NoError(t, svc.Set(ctx, "forecast:Fall:C1", 42.0, 0))
	hit, err = svc.Get(ctx, "forecast:Fall:C1", &got)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 42.0, got)

	require.NoError(t, svc.Invalidate(ctx, "forecast:Fall:"))
	hit, err = svc.Get(ctx, "forecast:Fall:C1", &got)
	require.NoError(t, err)
	assert.False(t, hit)

	snap := metrics.Snapshot()
	assert.Equal(t, uint64(1), snap.CacheHits)
	assert.Equal(t, uint64(2), snap.CacheMisses)
}

func TestCacheServiceDisabledIsNoop(t *testing.T) {
	svc := NewCacheService(failingCacheRepo{err: errors.New("boom")}, nil, 0, nil, false)
	ctx := context.Background()

	assert.False(t, svc.Enabled())
	var got float64
	hit, err := svc.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.NoError(t, svc.Set(ctx, "k", 1.0, 0))
	assert.NoError(t, svc.Invalidate(ctx, "k"))
}

func TestCacheServiceSurfacesBackendErrors(t *testing.T) {
	svc := NewCacheService(failingCacheRepo{err: errors.New("connection refused")}, nil, 0, nil, true)
	ctx := context.Background()

	var got float64
	_, err := svc.Get(ctx, "k", &got)
	assert.Error(t, err)
	assert.Error(t, svc.Set(ctx, "k", 1.0, 0))
	assert.Error(t, svc.Invalidate(ctx, "k"))
}
