package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/section-allocator/internal/repository"
	"github.com/noah-isme/section-allocator/pkg/config"
	appErrors "github.com/noah-isme/section-allocator/pkg/errors"
)

type statsReaderStub struct {
	stats repository.EnrollmentStats
	err   error
	calls int
}

func (s *statsReaderStub) Stats(context.Context, string, string) (repository.EnrollmentStats, error) {
	s.calls++
	return s.stats, s.err
}

type memoryCacheRepo struct {
	mu     sync.Mutex
	values map[string]float64
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{values: make(map[string]float64)}
}

func (m *memoryCacheRepo) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	*(dest.(*float64)) = v
	return nil
}

func (m *memoryCacheRepo) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value.(float64)
	return nil
}

func (m *memoryCacheRepo) DeleteByPrefix(_ context.Context, prefix string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key := range m.values {
		if strings.HasPrefix(key, prefix) {
			delete(m.values, key)
			removed++
		}
	}
	return removed, nil
}

func TestHistoricalDemandForecasterFallbacks(t *testing.T) {
	cases := []struct {
		name  string
		stats repository.EnrollmentStats
		want  float64
	}{
		{"semester mean", repository.EnrollmentStats{SemesterMean: sql.NullFloat64{Float64: 41.5, Valid: true}, CourseMean: sql.NullFloat64{Float64: 30, Valid: true}}, 41.5},
		{"course mean", repository.EnrollmentStats{CourseMean: sql.NullFloat64{Float64: 30, Valid: true}}, 30},
		{"no history", repository.EnrollmentStats{}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := NewHistoricalDemandForecaster(&statsReaderStub{stats: tc.stats})
			got, err := f.PredictDemand(context.Background(), "C1", "Fall")
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHistoricalDemandForecasterError(t *testing.T) {
	f := NewHistoricalDemandForecaster(&statsReaderStub{err: errors.New("timeout")})
	_, err := f.PredictDemand(context.Background(), "C1", "Fall")
	require.Error(t, err)
}

func TestCachedDemandForecasterMemoisesAndInvalidates(t *testing.T) {
	reader := &statsReaderStub{stats: repository.EnrollmentStats{SemesterMean: sql.NullFloat64{Float64: 12, Valid: true}}}
	repo := newMemoryCacheRepo()
	cache := NewCacheService(repo, nil, time.Minute, zap.NewNop(), true)
	f := NewCachedDemandForecaster(NewHistoricalDemandForecaster(reader), cache, time.Hour, zap.NewNop())

	for i := 0; i < 3; i++ {
		got, err := f.PredictDemand(context.Background(), "C1", "Fall")
		require.NoError(t, err)
		assert.Equal(t, 12.0, got)
	}
	assert.Equal(t, 1, reader.calls)
	assert.Contains(t, repo.values, "forecast:Fall:C1")

	_, err := f.PredictDemand(context.Background(), "C1", "Spring")
	require.NoError(t, err)
	require.NoError(t, f.Invalidate(context.Background(), "Fall"))
	assert.NotContains(t, repo.values, "forecast:Fall:C1")
	assert.Contains(t, repo.values, "forecast:Spring:C1")

	_, err = f.PredictDemand(context.Background(), "C1", "Fall")
	require.NoError(t, err)
	assert.Equal(t, 3, reader.calls)
}

func TestNewDemandForecasterSelection(t *testing.T) {
	reader := &statsReaderStub{}
	enabled := NewCacheService(newMemoryCacheRepo(), nil, time.Minute, nil, true)
	disabled := NewCacheService(nil, nil, time.Minute, nil, false)

	assert.IsType(t, ZeroDemandForecaster{}, NewDemandForecaster(config.ForecastConfig{Mode: config.ForecastModeZero}, reader, enabled, nil))
	assert.IsType(t, ZeroDemandForecaster{}, NewDemandForecaster(config.ForecastConfig{Mode: config.ForecastModeHistorical}, nil, enabled, nil))
	assert.IsType(t, &HistoricalDemandForecaster{}, NewDemandForecaster(config.ForecastConfig{Mode: config.ForecastModeHistorical}, reader, disabled, nil))
	assert.IsType(t, &CachedDemandForecaster{}, NewDemandForecaster(config.ForecastConfig{Mode: config.ForecastModeHistorical}, reader, enabled, nil))
}
