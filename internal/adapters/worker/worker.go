package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/kirillkom/pageindex-recall/internal/core/domain"
	"github.com/kirillkom/pageindex-recall/internal/core/ports"
	"github.com/kirillkom/pageindex-recall/internal/observability/logging"
	"github.com/kirillkom/pageindex-recall/internal/observability/metrics"
)

const service = "recall-worker"

type EventPublisher interface {
	PublishEvent(ctx context.Context, event domain.Event) error
}

type Options struct {
	JobTimeout time.Duration
	Metrics    *metrics.WorkerMetrics
	Logger     *slog.Logger
}

// Worker runs queued recall jobs and relays their events back to the queue.
type Worker struct {
	recall  ports.RecallService
	events  EventPublisher
	timeout time.Duration
	metrics *metrics.WorkerMetrics
	logger  *slog.Logger
}

func New(recall ports.RecallService, events EventPublisher, opts Options) *Worker {
	if opts.JobTimeout <= 0 {
		opts.JobTimeout = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Worker{
		recall:  recall,
		events:  events,
		timeout: opts.JobTimeout,
		metrics: opts.Metrics,
		logger:  opts.Logger,
	}
}

func (w *Worker) Handle(ctx context.Context, req domain.RecallRequest) error {
	jobCtx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	if w.metrics != nil {
		w.metrics.StartJob()
	}
	start := time.Now()
	logger := logging.ForRun(w.logger, req.RunID)

	sink := ports.EventSinkFunc(func(ctx context.Context, event domain.Event) error {
		return w.events.PublishEvent(ctx, event)
	})
	outcome, err := w.recall.Run(jobCtx, req, sink)

	status := "error"
	if outcome != nil {
		status = string(outcome.State)
	}
	if w.metrics != nil {
		w.metrics.FinishJob(service, status, time.Since(start))
	}

	if outcome == nil {
		logger.Error("recall_job_rejected", "error", err)
		return err
	}
	logger.Info("recall_job_finished",
		"state", outcome.State,
		"results", len(outcome.Results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	// failed and cancelled runs were already reported through the event stream
	return nil
}

// Cancel stops a run if this worker owns it. Cancel messages are broadcast,
// so unknown run ids are expected.
func (w *Worker) Cancel(runID string) {
	logger := logging.ForRun(w.logger, runID)
	err := w.recall.Cancel(runID)
	switch {
	case err == nil:
		logger.Info("recall_job_cancel_requested")
	case errors.Is(err, domain.ErrRunNotFound):
		logger.Debug("recall_job_cancel_ignored")
	default:
		logger.Warn("recall_job_cancel_failed", "error", err)
	}
}
