// internal/common/camunda/worker.go
package camunda

import (
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"

	"notification-dispatch/internal/common/config"
	"notification-dispatch/internal/common/logger"
)

// JobHandler completes or fails the job itself.
type JobHandler interface {
	Handle(client worker.JobClient, job entities.Job)
}

type Worker struct {
	worker   worker.JobWorker
	logger   logger.Logger
	taskType string
}

// NewWorker opens a job worker for taskType. Zero values in cfg fall back to the
// client defaults.
func NewWorker(client zbc.Client, taskType string, cfg config.WorkerConfig, handler JobHandler, log logger.Logger) *Worker {
	log = log.WithFields(map[string]interface{}{"taskType": taskType})

	step := client.NewJobWorker().
		JobType(taskType).
		Handler(handler.Handle)
	if cfg.MaxJobsActive > 0 {
		step = step.MaxJobsActive(cfg.MaxJobsActive)
	}
	if cfg.Timeout > 0 {
		step = step.Timeout(time.Duration(cfg.Timeout) * time.Millisecond)
	}

	w := &Worker{worker: step.Open(), logger: log, taskType: taskType}
	log.Info("worker started", nil)
	return w
}

func (w *Worker) Stop() {
	w.logger.Info("stopping worker", nil)
	w.worker.Close()
	w.worker.AwaitClose()
}
