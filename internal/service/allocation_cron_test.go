package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/section-allocator/internal/dto"
)

type generatorStub struct {
	mu       sync.Mutex
	requests []dto.GenerateRequest
	err      error
}

func (g *generatorStub) Generate(_ context.Context, req dto.GenerateRequest) (*dto.AllocationResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.requests = append(g.requests, req)
	if g.err != nil {
		return nil, g.err
	}
	return &dto.AllocationResult{RunID: "run-1", Status: dto.RunStatusCompleted}, nil
}

func TestAllocationSchedulerRejectsBadSchedule(t *testing.T) {
	_, err := NewAllocationScheduler("every tuesday", "Fall", &generatorStub{}, nil)
	require.Error(t, err)
}

func TestAllocationSchedulerRunOnce(t *testing.T) {
	gen := &generatorStub{}
	s, err := NewAllocationScheduler("@daily", "Fall", gen, zap.NewNop())
	require.NoError(t, err)

	assert.True(t, s.RunOnce(context.Background()))
	require.Len(t, gen.requests, 1)
	assert.Equal(t, "Fall", gen.requests[0].Semester)

	gen.err = errors.New("boom")
	assert.False(t, s.RunOnce(context.Background()))
}

func TestAllocationSchedulerStartStop(t *testing.T) {
	s, err := NewAllocationScheduler("0 3 * * *", "Spring", &generatorStub{}, nil)
	require.NoError(t, err)

	s.Start()
	assert.Len(t, s.cron.Entries(), 1)
	s.Stop()
	assert.Error(t, s.ctx.Err())
}
