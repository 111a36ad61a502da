// internal/notifications/delivery/sender.go
package delivery

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/common/metrics"
	"notification-dispatch/internal/common/observability"
	"notification-dispatch/internal/models"
)

// NotificationStore reads and settles notifications.
type NotificationStore interface {
	GetNotification(ctx context.Context, id uuid.UUID) (*models.Notification, error)
	MarkNotification(ctx context.Context, id uuid.UUID, status models.Status, sent int, errText string) error
}

type TemplateGetter interface {
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.NotificationTemplate, error)
}

// ChannelSender sends one message through a template's channel. templates.Manager implements it.
type ChannelSender interface {
	Send(ctx context.Context, tpl *models.NotificationTemplate, subject string, body map[string]interface{}) (int, error)
}

// AuditSink receives every settled notification.
type AuditSink interface {
	Record(ctx context.Context, n *models.Notification) error
}

type SenderConfig struct {
	SendTimeout   time.Duration
	Audit         AuditSink
	Observability *observability.Observability
}

// Sender settles one pending notification per Deliver call.
type Sender struct {
	notifications NotificationStore
	templates     TemplateGetter
	channels      ChannelSender
	cfg           SenderConfig
	logger        logger.Logger
	now           func() time.Time
}

func NewSender(notifications NotificationStore, templates TemplateGetter, channels ChannelSender, log logger.Logger, cfg SenderConfig) *Sender {
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 60 * time.Second
	}
	return &Sender{
		notifications: notifications,
		templates:     templates,
		channels:      channels,
		cfg:           cfg,
		logger:        log.WithFields(map[string]interface{}{"component": "delivery-sender"}),
		now:           time.Now,
	}
}

// Deliver sends the notification if it is still pending and records the outcome. Channel
// failures are recorded on the notification, not returned; the returned error is about
// loading or updating the record.
func (s *Sender) Deliver(ctx context.Context, id uuid.UUID) error {
	n, err := s.notifications.GetNotification(ctx, id)
	if err != nil {
		return err
	}

	log := s.logger.WithFields(map[string]interface{}{
		"notificationId": id.String(),
		"channel":        n.ChannelType,
	})

	if n.Status != models.StatusPending {
		log.Debug("notification already settled, skipping", map[string]interface{}{"status": n.Status})
		return nil
	}

	start := s.now()
	sent, sendErr := s.send(ctx, n)
	elapsed := s.now().Sub(start)

	n.Status = models.StatusSuccessful
	n.SentCount = sent
	n.Error = ""
	if sendErr != nil {
		n.Status = models.StatusFailed
		n.Error = sendErr.Error()
	}

	if err := s.notifications.MarkNotification(ctx, id, n.Status, n.SentCount, n.Error); err != nil {
		if stderrors.Is(err, errors.Sentinel(errors.ErrCodeNotificationSettled)) {
			log.Info("notification settled by another delivery, outcome discarded", map[string]interface{}{
				"status": n.Status,
				"sent":   n.SentCount,
			})
			return nil
		}
		return err
	}
	n.ModifiedAt = s.now().UTC()

	metrics.NotificationsSent.WithLabelValues(n.ChannelType, string(n.Status)).Inc()
	metrics.NotificationSendDuration.WithLabelValues(n.ChannelType).Observe(elapsed.Seconds())
	s.cfg.Observability.RecordDelivery(ctx, n.ChannelType, string(n.Status), n.SentCount, elapsed)

	fields := map[string]interface{}{
		"status":     n.Status,
		"sent":       n.SentCount,
		"durationMs": elapsed.Milliseconds(),
	}
	if sendErr != nil {
		fields["error"] = errors.NewNotificationSendFailedError(n.ChannelType, sendErr)
		log.Warn("notification delivery failed", fields)
	} else {
		log.Info("notification delivered", fields)
	}

	if s.cfg.Audit != nil {
		if err := s.cfg.Audit.Record(ctx, n); err != nil {
			log.Warn("failed to mirror notification to audit index", map[string]interface{}{"error": err})
		}
	}
	return nil
}

func (s *Sender) send(ctx context.Context, n *models.Notification) (int, error) {
	tpl, err := s.templates.GetTemplate(ctx, n.TemplateID)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()
	return s.channels.Send(ctx, tpl, n.Subject, n.Body)
}
