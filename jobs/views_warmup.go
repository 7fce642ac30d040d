package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	jobmetrics "github.com/odyssey-erp/odyssey-desk/internal/jobs"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

const (
	warmupTimeout    = 2 * time.Minute
	invalidateWindow = 5 * time.Second
)

// Warmer is the part of the views service the jobs drive.
type Warmer interface {
	Warm(ctx context.Context, names ...string) (int, error)
	Invalidate(ctx context.Context) error
}

// ViewsWarmupJob pre-populates the list cache.
type ViewsWarmupJob struct {
	Views   Warmer
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewViewsWarmupJob wires dependencies for the warmup handlers.
func NewViewsWarmupJob(views Warmer, logger *slog.Logger, metrics *jobmetrics.Metrics) *ViewsWarmupJob {
	return &ViewsWarmupJob{Views: views, Logger: logger, Metrics: metrics}
}

// Handle processes TaskViewsWarmup tasks.
func (j *ViewsWarmupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if j == nil || j.Views == nil {
		return errors.New("views warmup: handler not configured")
	}
	var payload ViewsWarmupPayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return asynq.SkipRetry
		}
	}
	_, err := j.Run(ctx, payload.Views...)
	return err
}

// Run warms the named views, or all client-mode views, and records the outcome.
func (j *ViewsWarmupJob) Run(ctx context.Context, names ...string) (int, error) {
	tracker := j.metrics().Track("views_warmup")
	logger := j.logger()
	start := time.Now()
	logger.Info("starting views warmup", slog.Any("views", names))

	runCtx, cancel := context.WithTimeout(ctx, warmupTimeout)
	defer cancel()
	warmed, err := j.Views.Warm(runCtx, names...)
	j.metrics().AddWarmed("views_warmup", warmed)
	if err != nil {
		logger.Error("views warmup", slog.Int("warmed", warmed), slog.Any("error", err))
		return warmed, tracker.End(err)
	}
	logger.Info("completed views warmup", slog.Int("warmed", warmed), slog.Duration("duration", time.Since(start)))
	return warmed, tracker.End(nil)
}

// HandleInvalidate processes TaskViewsInvalidate tasks.
func (j *ViewsWarmupJob) HandleInvalidate(ctx context.Context, _ *asynq.Task) error {
	if j == nil || j.Views == nil {
		return errors.New("views invalidate: handler not configured")
	}
	return j.metrics().Observe("views_invalidate", func() error {
		if err := j.Views.Invalidate(ctx); err != nil {
			j.logger().Error("views invalidate", slog.Any("error", err))
			return err
		}
		return nil
	})
}

// Handlers returns the task handlers of the job for WorkerConfig.
func (j *ViewsWarmupJob) Handlers() []TaskHandler {
	return []TaskHandler{
		{Type: TaskViewsWarmup, Handler: j.Handle},
		{Type: TaskViewsInvalidate, Handler: j.HandleInvalidate},
	}
}

func (j *ViewsWarmupJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskViewsWarmup))
	}
	return slog.Default().With(slog.String("job", TaskViewsWarmup))
}

func (j *ViewsWarmupJob) metrics() *jobmetrics.Metrics {
	if j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}
