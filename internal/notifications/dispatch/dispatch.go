// Package dispatch turns a job status transition into pending notifications and hands
// them to the async sender once the caller's unit of work has committed.
package dispatch

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/metrics"
	"notification-dispatch/internal/models"
	"notification-dispatch/internal/notifications/projection"
	"notification-dispatch/internal/notifications/render"
)

// Job statuses that produce notifications.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

var statusToEventKind = map[string]models.EventKind{
	StatusRunning:   models.EventStarted,
	StatusSucceeded: models.EventSuccess,
	StatusFailed:    models.EventError,
}

// StatusToEventKind maps a job status to the message kind it selects.
func StatusToEventKind(status string) (models.EventKind, error) {
	kind, ok := statusToEventKind[status]
	if !ok {
		return "", errors.NewInvalidStatusError(status)
	}
	return kind, nil
}

// EventSource is a job whose status changed.
type EventSource interface {
	ID() int64
	Name() string
	NotificationTemplates(ctx context.Context) (map[models.EventKind][]*models.NotificationTemplate, error)
	FriendlyName() string
	NotificationData() map[string]interface{}
	UIURL() string
	Serialize() (map[string]interface{}, error)
}

// Scheduler hands a persisted notification to the async sender.
type Scheduler interface {
	Schedule(ctx context.Context, notificationID uuid.UUID, sourceEventID int64) error
}

// NotificationWriter persists pending notifications.
type NotificationWriter interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
}

// NotificationFactory builds the pending record for a rendered message.
type NotificationFactory interface {
	GenerateNotification(tpl *models.NotificationTemplate, subject string, body map[string]interface{}, sourceEventID int64) *models.Notification
}

// CommitHooks collects work to run after the caller's transaction commits.
type CommitHooks interface {
	OnCommit(fn func(ctx context.Context) error)
}

// UnitOfWork is a transaction that runs its hooks after commit.
type UnitOfWork interface {
	CommitHooks
	Commit(ctx context.Context) error
	Rollback() error
}

type Trigger struct {
	factory       NotificationFactory
	notifications NotificationWriter
	scheduler     Scheduler
	begin         func(ctx context.Context) (UnitOfWork, error)
	logger        logger.Logger
}

func NewTrigger(
	factory NotificationFactory,
	notifications NotificationWriter,
	scheduler Scheduler,
	begin func(ctx context.Context) (UnitOfWork, error),
	log logger.Logger,
) *Trigger {
	return &Trigger{
		factory:       factory,
		notifications: notifications,
		scheduler:     scheduler,
		begin:         begin,
		logger:        log.WithFields(map[string]interface{}{"component": "dispatch"}),
	}
}

// Dispatch renders a message for every template attached to src for status and registers
// one commit hook per template. Each hook persists the pending notification and schedules
// it. It returns the number of hooks registered.
func (t *Trigger) Dispatch(ctx context.Context, hooks CommitHooks, src EventSource, status string) (int, error) {
	kind, err := StatusToEventKind(status)
	if err != nil {
		return 0, err
	}

	log := t.logger.WithFields(map[string]interface{}{
		"sourceId": src.ID(),
		"status":   status,
	})

	byKind, err := src.NotificationTemplates(ctx)
	if err != nil {
		log.Warn("no notification template defined for emitting notification", map[string]interface{}{
			"error": errors.NewTemplateResolutionFailedError(err),
		})
		return 0, nil
	}

	tpls := unique(byKind[kind])
	if len(tpls) == 0 {
		log.Debug("no notification templates for status", nil)
		return 0, nil
	}

	for _, tpl := range tpls {
		subject, body, err := BuildMessage(src, tpl, status)
		if err != nil {
			return 0, err
		}

		tpl, subject, body := tpl, subject, body
		sourceID := src.ID()
		hooks.OnCommit(func(ctx context.Context) error {
			n := t.factory.GenerateNotification(tpl, subject, body, sourceID)
			if err := t.notifications.CreateNotification(ctx, n); err != nil {
				return fmt.Errorf("persist notification for template %s: %w", tpl.ID, err)
			}
			if err := t.scheduler.Schedule(ctx, n.ID, sourceID); err != nil {
				return fmt.Errorf("schedule notification %s: %w", n.ID, err)
			}
			metrics.NotificationsDispatched.WithLabelValues(string(kind)).Inc()
			return nil
		})
	}

	log.Info("notifications registered", map[string]interface{}{"count": len(tpls)})
	return len(tpls), nil
}

// DispatchNow is Dispatch for callers without a transaction: it opens a unit of work,
// registers the hooks and commits it immediately.
func (t *Trigger) DispatchNow(ctx context.Context, src EventSource, status string) (int, error) {
	if _, err := StatusToEventKind(status); err != nil {
		return 0, err
	}

	unit, err := t.begin(ctx)
	if err != nil {
		return 0, err
	}

	n, err := t.Dispatch(ctx, unit, src, status)
	if err != nil {
		_ = unit.Rollback()
		return 0, err
	}
	if err := unit.Commit(ctx); err != nil {
		return 0, err
	}
	return n, nil
}

// BuildMessage renders the subject and body for one template. Render failures yield empty
// strings; a source that cannot serialize itself is an error.
func BuildMessage(src EventSource, tpl *models.NotificationTemplate, status string) (string, map[string]interface{}, error) {
	kind, err := StatusToEventKind(status)
	if err != nil {
		return "", nil, err
	}

	serialized, err := src.Serialize()
	if err != nil {
		return "", nil, errors.NewMessageBuildFailedError(err)
	}
	renderCtx, err := projection.Build(src, serialized)
	if err != nil {
		return "", nil, errors.NewMessageBuildFailedError(err)
	}

	var subjectTpl, bodyTpl string
	if msg := tpl.Messages.Get(kind); msg != nil {
		if msg.Message != nil {
			subjectTpl = *msg.Message
		}
		if msg.Body != nil {
			bodyTpl = *msg.Body
		}
	}

	subject := fmt.Sprintf("%s #%d '%s' %s: %s", src.FriendlyName(), src.ID(), src.Name(), status, src.UIURL())
	if subjectTpl != "" {
		subject = render.Render(subjectTpl, renderCtx)
	}

	body := make(map[string]interface{})
	for k, v := range src.NotificationData() {
		body[k] = v
	}
	body["friendly_name"] = src.FriendlyName()
	if bodyTpl != "" {
		body["body"] = render.Render(bodyTpl, renderCtx)
	}

	return subject, body, nil
}

func unique(tpls []*models.NotificationTemplate) []*models.NotificationTemplate {
	seen := make(map[uuid.UUID]struct{}, len(tpls))
	out := make([]*models.NotificationTemplate, 0, len(tpls))
	for _, tpl := range tpls {
		if tpl == nil {
			continue
		}
		if _, ok := seen[tpl.ID]; ok {
			continue
		}
		seen[tpl.ID] = struct{}{}
		out = append(out, tpl)
	}
	return out
}
