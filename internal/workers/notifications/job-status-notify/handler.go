// internal/workers/notifications/job-status-notify/handler.go
package jobstatusnotify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/metrics"
	"notification-dispatch/internal/events"
	"notification-dispatch/internal/notifications/dispatch"
)

const (
	TaskType = "job-status-notify"
)

type Dispatcher interface {
	DispatchNow(ctx context.Context, src dispatch.EventSource, status string) (int, error)
}

type Handler struct {
	config       *Config
	factory      *events.Factory
	dispatcher   Dispatcher
	logger       logger.Logger
	errorHandler *errors.ErrorHandler
}

func NewHandler(config *Config, factory *events.Factory, dispatcher Dispatcher, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		factory:      factory,
		dispatcher:   dispatcher,
		logger:       log,
		errorHandler: errors.NewErrorHandler(log),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(ctx, client, job, errors.NewInvalidInputError(fmt.Sprintf("parse input: %v", err)))
		return
	}

	output, err := h.Execute(ctx, &input)
	if err != nil {
		h.fail(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// Execute dispatches the notifications for one job status change.
func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	status := events.JobStatus{
		ID:            input.JobID,
		Name:          input.JobName,
		Type:          input.JobType,
		Status:        input.Status,
		JobTemplateID: input.JobTemplateID,
		Job:           input.Job,
	}
	if err := status.Validate(); err != nil {
		return nil, errors.NewInvalidInputError(err.Error())
	}

	n, err := h.dispatcher.DispatchNow(ctx, h.factory.New(status), input.Status)
	if err != nil {
		return nil, err
	}

	out := &Output{
		NotificationsCreated: n,
		Status:               StatusNone,
		DispatchedAt:         time.Now().UTC().Format(time.RFC3339),
	}
	if n > 0 {
		out.Status = StatusDispatched
	}
	return out, nil
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) fail(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, string(errors.Normalize(err).Code)).Inc()
	h.errorHandler.HandleJobError(ctx, client, job, err)
}
