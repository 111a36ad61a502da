// internal/workers/notifications/template-send/handler.go
package templatesend

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/metrics"
	"notification-dispatch/internal/models"
)

const (
	TaskType = "notification-template-send"
)

// Templates loads a template and builds the pending record for it. templates.Manager
// implements it.
type Templates interface {
	Get(ctx context.Context, id uuid.UUID) (*models.NotificationTemplate, error)
	GenerateNotification(tpl *models.NotificationTemplate, subject string, body map[string]interface{}, sourceEventID int64) *models.Notification
}

type NotificationWriter interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

type Scheduler interface {
	Schedule(ctx context.Context, notificationID uuid.UUID, sourceEventID int64) error
}

// Handler sends an ad hoc message through a stored template. The message goes through the
// same pending record and delivery queue as job status notifications.
type Handler struct {
	config        *Config
	templates     Templates
	notifications NotificationWriter
	scheduler     Scheduler
	logger        logger.Logger
	errorHandler  *errors.ErrorHandler
}

func NewHandler(config *Config, templates Templates, notifications NotificationWriter, scheduler Scheduler, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:        config,
		templates:     templates,
		notifications: notifications,
		scheduler:     scheduler,
		logger:        log,
		errorHandler:  errors.NewErrorHandler(log),
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

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	if err := h.validateInput(input); err != nil {
		return nil, err
	}
	id, _ := uuid.Parse(input.TemplateID)

	tpl, err := h.templates.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	subject := strings.TrimSpace(input.Subject)
	if r := []rune(subject); h.config.MaxSubjectLength > 0 && len(r) > h.config.MaxSubjectLength {
		subject = string(r[:h.config.MaxSubjectLength])
	}
	body := input.Body
	if body == nil {
		body = map[string]interface{}{}
	}

	n := h.templates.GenerateNotification(tpl, subject, body, input.SourceEventID)
	if err := h.notifications.CreateNotification(ctx, n); err != nil {
		return nil, err
	}
	if err := h.scheduler.Schedule(ctx, n.ID, input.SourceEventID); err != nil {
		return nil, err
	}

	h.logger.Info("notification queued", map[string]interface{}{
		"notificationId": n.ID.String(),
		"templateId":     tpl.ID.String(),
		"channel":        tpl.ChannelType,
	})

	return &Output{
		NotificationID: n.ID.String(),
		Channel:        tpl.ChannelType,
		Status:         StatusQueued,
		QueuedAt:       time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (h *Handler) validateInput(input *Input) error {
	if input.TemplateID == "" {
		return errors.NewInvalidInputError("templateId is required")
	}
	if _, err := uuid.Parse(input.TemplateID); err != nil {
		return errors.NewInvalidInputError(fmt.Sprintf("templateId is not a valid id: %s", input.TemplateID))
	}
	if strings.TrimSpace(input.Subject) == "" {
		return errors.NewInvalidInputError("subject is required")
	}
	if input.SourceEventID < 0 {
		return errors.NewInvalidInputError("sourceEventId must not be negative")
	}
	return nil
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
