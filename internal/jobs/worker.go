package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"
)

const workerConcurrency = 4

// Worker registers task handlers and controls the processing loop.
type Worker interface {
	RegisterHandler(taskType string, handler asynq.Handler)
	Run() error
	Shutdown()
}

type worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	log    *slog.Logger
}

var _ Worker = (*worker)(nil)

// NewWorker constructs a Worker processing the configured queues. Failed
// tasks are logged and retried on asynq's default backoff; the snapshot and
// report handlers are written to tolerate re-runs.
func NewWorker(redisOpt asynq.RedisConnOpt, queues map[string]int, log *slog.Logger) Worker {
	if log == nil {
		log = slog.Default()
	}

	server := asynq.NewServer(redisOpt, asynq.Config{
		Queues:      queues,
		Concurrency: workerConcurrency,
		ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
			log.ErrorContext(ctx, "task failed",
				slog.String("type", task.Type()),
				slog.Any("error", err),
			)
		}),
	})

	w := &worker{
		server: server,
		mux:    asynq.NewServeMux(),
		log:    log,
	}
	w.mux.Use(w.timing)

	return w
}

// RegisterHandler wires a task type to the provided handler.
func (w *worker) RegisterHandler(taskType string, handler asynq.Handler) {
	w.mux.Handle(taskType, handler)
}

// Run starts the processing loop and blocks until Shutdown.
func (w *worker) Run() error {
	w.log.Info("jobs worker starting", slog.Int("concurrency", workerConcurrency))
	return w.server.Run(w.mux)
}

// Shutdown drains in-flight tasks and stops the server.
func (w *worker) Shutdown() {
	w.log.Info("jobs worker shutting down")
	w.server.Shutdown()
}

func (w *worker) timing(next asynq.Handler) asynq.Handler {
	return asynq.HandlerFunc(func(ctx context.Context, task *asynq.Task) error {
		start := time.Now()
		err := next.ProcessTask(ctx, task)
		w.log.DebugContext(ctx, "task processed",
			slog.String("type", task.Type()),
			slog.Duration("took", time.Since(start)),
			slog.Bool("ok", err == nil),
		)
		return err
	})
}
