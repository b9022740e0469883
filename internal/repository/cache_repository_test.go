package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	appErrors "github.com/noah-isme/section-allocator/pkg/errors"
)

func TestCacheRepositoryDisabled(t *testing.T) {
	repo := NewCacheRepository(nil, nil)
	ctx := context.Background()

	assert.False(t, repo.Enabled())
	var out float64
	assert.ErrorIs(t, repo.Get(ctx, "forecast:Spring:CS101", &out), appErrors.ErrCacheMiss)
	assert.NoError(t, repo.Set(ctx, "forecast:Spring:CS101", 12.0, time.Minute))
	removed, err := repo.DeleteByPrefix(ctx, "forecast:")
	assert.NoError(t, err)
	assert.Zero(t, removed)
	assert.NoError(t, repo.Ping(ctx))
	assert.NoError(t, repo.Close())
}
