// internal/store/associations.go
package store

import (
	"context"

	"github.com/google/uuid"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/models"
)

const (
	attachTemplateQuery = `INSERT INTO job_template_notification_templates
	(job_template_id, notification_template_id, event_kind)
	VALUES ($1, $2, $3)
	ON CONFLICT DO NOTHING`

	detachTemplateQuery = `DELETE FROM job_template_notification_templates
	WHERE job_template_id = $1 AND notification_template_id = $2 AND event_kind = $3`

	templatesForJobTemplateQuery = `SELECT a.event_kind, t.id, t.organization_id, t.name, t.description,
	t.notification_type, t.notification_configuration, t.messages, t.created, t.modified
	FROM job_template_notification_templates a
	JOIN notification_templates t ON t.id = a.notification_template_id
	WHERE a.job_template_id = $1
	ORDER BY a.event_kind, t.name`
)

// AttachTemplate makes templateID fire for kind on jobs of jobTemplateID. Attaching twice is a no-op.
func (s *Store) AttachTemplate(ctx context.Context, jobTemplateID int64, templateID uuid.UUID, kind models.EventKind) error {
	if _, err := s.q.ExecContext(ctx, attachTemplateQuery, jobTemplateID, templateID, string(kind)); err != nil {
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (s *Store) DetachTemplate(ctx context.Context, jobTemplateID int64, templateID uuid.UUID, kind models.EventKind) error {
	if _, err := s.q.ExecContext(ctx, detachTemplateQuery, jobTemplateID, templateID, string(kind)); err != nil {
		return errors.NewQueryExecutionFailedError("detach notification template", err)
	}
	return nil
}

// TemplatesForJobTemplate returns the templates attached to a job template, grouped by the
// event kind they fire on.
func (s *Store) TemplatesForJobTemplate(ctx context.Context, jobTemplateID int64) (map[models.EventKind][]*models.NotificationTemplate, error) {
	rows, err := s.q.QueryContext(ctx, templatesForJobTemplateQuery, jobTemplateID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("resolve notification templates", err)
	}
	defer rows.Close()

	out := make(map[models.EventKind][]*models.NotificationTemplate)
	for rows.Next() {
		var (
			kind      string
			tpl       models.NotificationTemplate
			cfg, msgs []byte
		)
		if err := rows.Scan(&kind, &tpl.ID, &tpl.OrganizationID, &tpl.Name, &tpl.Description,
			&tpl.ChannelType, &cfg, &msgs, &tpl.CreatedAt, &tpl.ModifiedAt); err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan notification template", err)
		}
		if err := decodeTemplate(&tpl, cfg, msgs); err != nil {
			return nil, errors.NewQueryExecutionFailedError("decode notification template", err)
		}
		k := models.EventKind(kind)
		out[k] = append(out[k], &tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("resolve notification templates", err)
	}
	return out, nil
}
