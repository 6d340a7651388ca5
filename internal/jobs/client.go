package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"
)

// Client enqueues one-off tasks, such as the catch-up snapshot at boot.
// Recurring tasks go through the Scheduler instead.
type Client struct {
	inner *asynq.Client
	log   *slog.Logger
}

// NewClient builds a task client over the shared Redis connection options.
func NewClient(redisOpt asynq.RedisConnOpt, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		inner: asynq.NewClient(redisOpt),
		log:   log,
	}
}

// Enqueue submits a task for processing.
func (c *Client) Enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	info, err := c.inner.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, err
	}

	c.log.DebugContext(ctx, "task enqueued",
		slog.String("type", task.Type()),
		slog.String("queue", info.Queue),
	)
	return info, nil
}

// Close releases the underlying connection.
func (c *Client) Close() error {
	return c.inner.Close()
}
