// internal/store/notifications.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/models"
)

const notificationColumns = `id, notification_template_id, notification_type, status, recipients,
	subject, body, error, notifications_sent, source_event_id, created, modified`

const (
	insertNotificationQuery = `INSERT INTO notifications (` + notificationColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	getNotificationQuery = `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	markNotificationQuery = `UPDATE notifications
	SET status = $2, notifications_sent = $3, error = $4, modified = $5
	WHERE id = $1 AND status = 'pending'`

	notificationStatusQuery = `SELECT status FROM notifications WHERE id = $1`

	listNotificationsQuery = `SELECT ` + notificationColumns + ` FROM notifications
	WHERE ($1::uuid IS NULL OR notification_template_id = $1)
	  AND ($2 = '' OR status = $2)
	ORDER BY created DESC
	LIMIT $3`

	listStalePendingQuery = `SELECT ` + notificationColumns + ` FROM notifications
	WHERE status = 'pending' AND created < $1
	ORDER BY created
	LIMIT $2`
)

// NotificationFilter narrows ListNotifications. Zero values match everything.
type NotificationFilter struct {
	TemplateID uuid.UUID
	Status     models.Status
	Limit      int
}

const defaultListLimit = 100

func (s *Store) CreateNotification(ctx context.Context, n *models.Notification) error {
	body, err := encodeBody(n.Body)
	if err != nil {
		return err
	}
	_, err = s.q.ExecContext(ctx, insertNotificationQuery,
		n.ID, n.TemplateID, n.ChannelType, string(n.Status), n.Recipients,
		n.Subject, body, n.Error, n.SentCount, n.SourceEventID, n.CreatedAt, n.ModifiedAt)
	if err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (s *Store) GetNotification(ctx context.Context, id uuid.UUID) (*models.Notification, error) {
	n, err := scanNotification(s.q.QueryRowContext(ctx, getNotificationQuery, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewNotificationNotFoundError(id.String())
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get notification", err)
	}
	return n, nil
}

// MarkNotification records the outcome of a send attempt on a pending notification. The
// first outcome wins: a notification already settled is left as is and reported with
// NOTIFICATION_ALREADY_SETTLED.
func (s *Store) MarkNotification(ctx context.Context, id uuid.UUID, status models.Status, sent int, errText string) error {
	res, err := s.q.ExecContext(ctx, markNotificationQuery, id, string(status), sent, errText, time.Now().UTC())
	if err != nil {
		return errors.NewQueryExecutionFailedError("mark notification", err)
	}
	return expectOneRow(res, func() error { return s.unmarkedReason(ctx, id) })
}

func (s *Store) unmarkedReason(ctx context.Context, id uuid.UUID) error {
	var current string
	err := s.q.QueryRowContext(ctx, notificationStatusQuery, id).Scan(&current)
	switch {
	case stderrors.Is(err, sql.ErrNoRows):
		return errors.NewNotificationNotFoundError(id.String())
	case err != nil:
		return errors.NewQueryExecutionFailedError("notification status", err)
	}
	return errors.NewNotificationSettledError(id.String())
}

func (s *Store) ListNotifications(ctx context.Context, f NotificationFilter) ([]*models.Notification, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	var templateID interface{}
	if f.TemplateID != uuid.Nil {
		templateID = f.TemplateID
	}
	return s.queryNotifications(ctx, listNotificationsQuery, templateID, string(f.Status), limit)
}

// ListStalePending returns notifications still pending that were created before olderThan,
// oldest first.
func (s *Store) ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	return s.queryNotifications(ctx, listStalePendingQuery, olderThan, limit)
}

func (s *Store) queryNotifications(ctx context.Context, query string, args ...interface{}) ([]*models.Notification, error) {
	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list notifications", err)
	}
	defer rows.Close()

	var out []*models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan notification", err)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list notifications", err)
	}
	return out, nil
}

func scanNotification(row rowScanner) (*models.Notification, error) {
	var (
		n      models.Notification
		status string
		body   []byte
	)
	if err := row.Scan(&n.ID, &n.TemplateID, &n.ChannelType, &status, &n.Recipients,
		&n.Subject, &body, &n.Error, &n.SentCount, &n.SourceEventID, &n.CreatedAt, &n.ModifiedAt); err != nil {
		return nil, err
	}
	n.Status = models.Status(status)
	if len(body) > 0 {
		if err := json.Unmarshal(body, &n.Body); err != nil {
			return nil, fmt.Errorf("decode body: %w", err)
		}
	}
	return &n, nil
}

func encodeBody(body map[string]interface{}) (string, error) {
	if body == nil {
		body = map[string]interface{}{}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("encode body: %w", err)
	}
	return string(raw), nil
}
