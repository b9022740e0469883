package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/section-allocator/internal/dto"
	"github.com/noah-isme/section-allocator/pkg/config"
	appErrors "github.com/noah-isme/section-allocator/pkg/errors"
	"github.com/noah-isme/section-allocator/pkg/jobs"
)

const reoptimizeJobType = "reoptimize"

// Queue job outcomes recorded by metrics.
const (
	queueOutcomeEnqueued  = "enqueued"
	queueOutcomeRejected  = "rejected"
	queueOutcomeSucceeded = "succeeded"
	queueOutcomeFailed    = "failed"
)

type allocationReoptimizer interface {
	Reoptimize(ctx context.Context, req dto.ReoptimizeRequest) (*dto.AllocationResult, error)
}

// ReoptimizeDispatcher runs reoptimization requests on a background worker pool.
type ReoptimizeDispatcher struct {
	svc     allocationReoptimizer
	queue   *jobs.Queue
	metrics *MetricsService
	logger  *zap.Logger
}

// NewReoptimizeDispatcher builds the dispatcher and its queue; call Start before Enqueue.
func NewReoptimizeDispatcher(svc allocationReoptimizer, metrics *MetricsService, cfg config.QueueConfig, logger *zap.Logger) *ReoptimizeDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &ReoptimizeDispatcher{svc: svc, metrics: metrics, logger: logger}
	d.queue = jobs.NewQueue(reoptimizeJobType, d.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.BufferSize,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return d
}

// Start launches the workers.
func (d *ReoptimizeDispatcher) Start(ctx context.Context) {
	d.queue.Start(ctx)
}

// Stop cancels in-flight jobs and waits for workers to exit.
func (d *ReoptimizeDispatcher) Stop() {
	d.queue.Stop()
}

// Enqueue accepts req for background processing.
func (d *ReoptimizeDispatcher) Enqueue(req dto.ReoptimizeRequest) (*dto.ReoptimizeAccepted, error) {
	job := jobs.Job{ID: uuid.NewString(), Type: reoptimizeJobType, Payload: req}
	if err := d.queue.Enqueue(job); err != nil {
		d.metrics.RecordQueueJob(queueOutcomeRejected)
		if errors.Is(err, jobs.ErrQueueFull) {
			return nil, appErrors.WrapAs(err, appErrors.ErrQueueSaturated, appErrors.ErrQueueSaturated.Message)
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrUnavailable, "reoptimization queue unavailable")
	}
	d.metrics.RecordQueueJob(queueOutcomeEnqueued)
	return &dto.ReoptimizeAccepted{JobID: job.ID, Status: jobs.StateQueued}, nil
}

// State returns the last known state of a job.
func (d *ReoptimizeDispatcher) State(jobID string) (jobs.JobState, error) {
	st, ok := d.queue.State(jobID)
	if !ok {
		return jobs.JobState{}, appErrors.Clone(appErrors.ErrNotFound, "job not found")
	}
	return st, nil
}

func (d *ReoptimizeDispatcher) handle(ctx context.Context, job jobs.Job) error {
	req, ok := job.Payload.(dto.ReoptimizeRequest)
	if !ok {
		d.metrics.RecordQueueJob(queueOutcomeFailed)
		return jobs.Permanent(fmt.Errorf("unexpected payload %T", job.Payload))
	}

	result, err := d.svc.Reoptimize(ctx, req)
	if err != nil {
		d.metrics.RecordQueueJob(queueOutcomeFailed)
		if retryable(ctx, err) {
			return err
		}
		return jobs.Permanent(err)
	}

	d.metrics.RecordQueueJob(queueOutcomeSucceeded)
	d.logger.Info("reoptimize job finished",
		zap.String("job_id", job.ID),
		zap.String("run_id", result.RunID),
		zap.String("status", result.Status),
	)
	return nil
}

// retryable reports whether a failed run may succeed on another attempt. A run cut short by its
// own deadline is retried; one cancelled by the caller or by a stopping queue is not.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if errors.Is(err, appErrors.ErrRunCancelled) {
		return errors.Is(err, context.DeadlineExceeded)
	}
	return errors.Is(err, appErrors.ErrPersistence) || errors.Is(err, appErrors.ErrInternal)
}
