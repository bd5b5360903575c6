// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"go.uber.org/zap"
)

// JobHandlerFunc processes a single activated job. Completing or failing
// the job is the handler's responsibility.
type JobHandlerFunc func(client worker.JobClient, job entities.Job)

// WorkerOptions configures a single job worker subscription.
type WorkerOptions struct {
	TaskType      string
	MaxJobsActive int
	Timeout       time.Duration
}

// Worker wraps an open Zeebe job worker subscription.
type Worker struct {
	worker   worker.JobWorker
	logger   *zap.Logger
	taskType string
}

// NewWorker opens a job worker subscription for the given task type.
func NewWorker(client zbc.Client, opts WorkerOptions, handler JobHandlerFunc, logger *zap.Logger) *Worker {
	builder := client.NewJobWorker().
		JobType(opts.TaskType).
		Handler(worker.JobHandler(handler)).
		MaxJobsActive(opts.MaxJobsActive)
	if opts.Timeout > 0 {
		builder = builder.Timeout(opts.Timeout)
	}
	jobWorker := builder.Open()

	logger.Info("worker started",
		zap.String("taskType", opts.TaskType),
		zap.Int("maxJobsActive", opts.MaxJobsActive),
		zap.Duration("timeout", opts.Timeout),
	)

	return &Worker{
		worker:   jobWorker,
		logger:   logger,
		taskType: opts.TaskType,
	}
}

// Close drains in-flight jobs and stops polling.
func (w *Worker) Close() {
	w.logger.Info("stopping worker", zap.String("taskType", w.taskType))
	w.worker.Close()
}
