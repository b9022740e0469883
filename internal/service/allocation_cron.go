package service

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/section-allocator/internal/dto"
)

type allocationGenerator interface {
	Generate(ctx context.Context, req dto.GenerateRequest) (*dto.AllocationResult, error)
}

// AllocationScheduler triggers full Generate runs on a cron schedule. A tick that fires while the
// previous run is still active is skipped.
type AllocationScheduler struct {
	cron     *cron.Cron
	svc      allocationGenerator
	schedule string
	semester string
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewAllocationScheduler validates schedule (standard five-field syntax or descriptors such as
// "@daily") and registers the run.
func NewAllocationScheduler(schedule, semester string, svc allocationGenerator, logger *zap.Logger) (*AllocationScheduler, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("parse allocation schedule %q: %w", schedule, err)
	}

	s := &AllocationScheduler{
		svc:      svc,
		schedule: schedule,
		semester: semester,
		logger:   logger,
	}
	s.ctx, s.cancel = context.WithCancel(context.Background())

	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))
	s.cron = cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)))
	if _, err := s.cron.AddFunc(schedule, func() { s.RunOnce(s.ctx) }); err != nil {
		return nil, fmt.Errorf("register allocation schedule: %w", err)
	}
	return s, nil
}

// Start begins firing scheduled runs.
func (s *AllocationScheduler) Start() {
	s.cron.Start()
	s.logger.Info("allocation scheduler started", zap.String("schedule", s.schedule))
}

// Stop cancels any running allocation and waits for it to return.
func (s *AllocationScheduler) Stop() {
	s.cancel()
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info("allocation scheduler stopped")
}

// RunOnce performs one scheduled Generate and reports whether it succeeded.
func (s *AllocationScheduler) RunOnce(ctx context.Context) bool {
	start := time.Now()
	result, err := s.svc.Generate(ctx, dto.GenerateRequest{Semester: s.semester})
	if err != nil {
		s.logger.Error("scheduled allocation failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return false
	}
	s.logger.Info("scheduled allocation finished",
		zap.String("run_id", result.RunID),
		zap.String("status", result.Status),
		zap.Duration("duration", time.Since(start)),
	)
	return true
}
