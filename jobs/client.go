package jobs

import (
	"context"

	"github.com/hibiken/asynq"
)

// Enqueuer submits list cache tasks.
type Enqueuer interface {
	EnqueueViewsWarmup(ctx context.Context, views ...string) (*asynq.TaskInfo, error)
	EnqueueViewsInvalidate(ctx context.Context) (*asynq.TaskInfo, error)
}

// Client submits list cache tasks to the queues.
type Client struct {
	client *asynq.Client
}

// NewClient constructs a Client.
func NewClient(redisOpts asynq.RedisClientOpt) (*Client, error) {
	return &Client{client: asynq.NewClient(redisOpts)}, nil
}

// EnqueueViewsWarmup queues a warmup of the named views, or of every
// client-mode view when none are named.
func (c *Client) EnqueueViewsWarmup(ctx context.Context, views ...string) (*asynq.TaskInfo, error) {
	task, err := NewViewsWarmupTask(ViewsWarmupPayload{Views: views})
	if err != nil {
		return nil, err
	}
	return c.client.EnqueueContext(ctx, task, asynq.Queue(QueueDefault), asynq.MaxRetry(3), asynq.Timeout(warmupTimeout))
}

// EnqueueViewsInvalidate queues a list cache invalidation. Duplicates within
// a few seconds collapse into one task.
func (c *Client) EnqueueViewsInvalidate(ctx context.Context) (*asynq.TaskInfo, error) {
	return c.client.EnqueueContext(ctx, NewViewsInvalidateTask(), asynq.Queue(QueueCritical), asynq.Unique(invalidateWindow))
}

// Close releases client resources.
func (c *Client) Close() error {
	return c.client.Close()
}
