package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/section-allocator/internal/repository"
	"github.com/noah-isme/section-allocator/pkg/config"
)

const forecastKeyPrefix = "forecast:"

// DemandForecaster predicts the demand weight of a course in a semester.
type DemandForecaster interface {
	PredictDemand(ctx context.Context, courseID, semester string) (float64, error)
}

// ZeroDemandForecaster predicts no demand for every course.
type ZeroDemandForecaster struct{}

// PredictDemand always returns zero.
func (ZeroDemandForecaster) PredictDemand(context.Context, string, string) (float64, error) {
	return 0, nil
}

type enrollmentStatsReader interface {
	Stats(ctx context.Context, courseID, semester string) (repository.EnrollmentStats, error)
}

// HistoricalDemandForecaster predicts the mean past enrollment of the course in the same
// semester label, falling back to the mean over all semesters and then to zero.
type HistoricalDemandForecaster struct {
	repo enrollmentStatsReader
}

// NewHistoricalDemandForecaster constructs the forecaster.
func NewHistoricalDemandForecaster(repo enrollmentStatsReader) *HistoricalDemandForecaster {
	return &HistoricalDemandForecaster{repo: repo}
}

// PredictDemand implements DemandForecaster.
func (f *HistoricalDemandForecaster) PredictDemand(ctx context.Context, courseID, semester string) (float64, error) {
	stats, err := f.repo.Stats(ctx, courseID, semester)
	if err != nil {
		return 0, err
	}
	switch {
	case stats.SemesterMean.Valid:
		return stats.SemesterMean.Float64, nil
	case stats.CourseMean.Valid:
		return stats.CourseMean.Float64, nil
	default:
		return 0, nil
	}
}

// CachedDemandForecaster memoises another forecaster in Redis.
type CachedDemandForecaster struct {
	next   DemandForecaster
	cache  *CacheService
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedDemandForecaster wraps next with the cache.
func NewCachedDemandForecaster(next DemandForecaster, cache *CacheService, ttl time.Duration, logger *zap.Logger) *CachedDemandForecaster {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedDemandForecaster{next: next, cache: cache, ttl: ttl, logger: logger}
}

func forecastKey(semester, courseID string) string {
	return fmt.Sprintf("%s%s:%s", forecastKeyPrefix, semester, courseID)
}

// PredictDemand implements DemandForecaster. Cache failures are logged and bypassed.
func (f *CachedDemandForecaster) PredictDemand(ctx context.Context, courseID, semester string) (float64, error) {
	key := forecastKey(semester, courseID)
	var cached float64
	if hit, err := f.cache.Get(ctx, key, &cached); err == nil && hit {
		return cached, nil
	}

	value, err := f.next.PredictDemand(ctx, courseID, semester)
	if err != nil {
		return 0, err
	}
	if err := f.cache.Set(ctx, key, value, f.ttl); err != nil {
		f.logger.Debug("forecast not cached", zap.String("course_id", courseID), zap.Error(err))
	}
	return value, nil
}

// Invalidate drops cached forecasts for semester.
func (f *CachedDemandForecaster) Invalidate(ctx context.Context, semester string) error {
	return f.cache.Invalidate(ctx, forecastKeyPrefix+semester+":")
}

// NewDemandForecaster builds the forecaster selected by cfg.Mode, cached when the cache is enabled.
func NewDemandForecaster(cfg config.ForecastConfig, history enrollmentStatsReader, cache *CacheService, logger *zap.Logger) DemandForecaster {
	if cfg.Mode == config.ForecastModeZero || history == nil {
		return ZeroDemandForecaster{}
	}
	var forecaster DemandForecaster = NewHistoricalDemandForecaster(history)
	if cache.Enabled() {
		forecaster = NewCachedDemandForecaster(forecaster, cache, cfg.CacheTTL, logger)
	}
	return forecaster
}
