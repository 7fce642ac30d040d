package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault holds warmups.
	QueueDefault = "default"
	// QueueCritical holds invalidations, which must beat any pending warmup.
	QueueCritical = "critical"
	// TaskViewsWarmup loads client-mode lists into the cache.
	TaskViewsWarmup = "views:warm"
	// TaskViewsInvalidate bumps the list cache version.
	TaskViewsInvalidate = "views:invalidate"
)

// ViewsWarmupPayload selects the views to warm. Empty means every client-mode view.
type ViewsWarmupPayload struct {
	Views []string `json:"views,omitempty"`
}

// NewViewsWarmupTask constructs an Asynq task.
func NewViewsWarmupTask(payload ViewsWarmupPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskViewsWarmup, data), nil
}

// queueWeights is the share of worker slots each queue gets.
var queueWeights = map[string]int{
	QueueCritical: 6,
	QueueDefault:  3,
}

// NewViewsInvalidateTask constructs an Asynq task.
func NewViewsInvalidateTask() *asynq.Task {
	return asynq.NewTask(TaskViewsInvalidate, nil)
}
