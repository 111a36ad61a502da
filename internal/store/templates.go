// internal/store/templates.go
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/google/uuid"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/models"
)

const templateColumns = `id, organization_id, name, description, notification_type,
	notification_configuration, messages, created, modified`

const (
	insertTemplateQuery = `INSERT INTO notification_templates (` + templateColumns + `)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	updateTemplateQuery = `UPDATE notification_templates
	SET name = $2, description = $3, notification_type = $4,
		notification_configuration = $5, messages = $6, modified = $7
	WHERE id = $1`

	getTemplateQuery = `SELECT ` + templateColumns + ` FROM notification_templates WHERE id = $1`

	listTemplatesQuery = `SELECT ` + templateColumns + ` FROM notification_templates
	WHERE ($1 = 0 OR organization_id = $1)
	ORDER BY organization_id, name`

	deleteTemplateQuery = `DELETE FROM notification_templates WHERE id = $1`
)

func (s *Store) CreateTemplate(ctx context.Context, tpl *models.NotificationTemplate) error {
	cfg, msgs, err := encodeTemplate(tpl)
	if err != nil {
		return err
	}

	_, err = s.q.ExecContext(ctx, insertTemplateQuery,
		tpl.ID, tpl.OrganizationID, tpl.Name, tpl.Description, tpl.ChannelType,
		cfg, msgs, tpl.CreatedAt, tpl.ModifiedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewDuplicateTemplateError(tpl.Name)
		}
		return errors.NewDatabaseInsertFailedError(err)
	}
	return nil
}

func (s *Store) UpdateTemplate(ctx context.Context, tpl *models.NotificationTemplate) error {
	cfg, msgs, err := encodeTemplate(tpl)
	if err != nil {
		return err
	}

	res, err := s.q.ExecContext(ctx, updateTemplateQuery,
		tpl.ID, tpl.Name, tpl.Description, tpl.ChannelType, cfg, msgs, tpl.ModifiedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return errors.NewDuplicateTemplateError(tpl.Name)
		}
		return errors.NewQueryExecutionFailedError("update notification template", err)
	}
	return expectOneRow(res, func() error { return errors.NewTemplateNotFoundError(tpl.ID.String()) })
}

func (s *Store) GetTemplate(ctx context.Context, id uuid.UUID) (*models.NotificationTemplate, error) {
	tpl, err := scanTemplate(s.q.QueryRowContext(ctx, getTemplateQuery, id))
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewTemplateNotFoundError(id.String())
	}
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("get notification template", err)
	}
	return tpl, nil
}

// ListTemplates returns the templates of one organization, or of all when organizationID is 0.
func (s *Store) ListTemplates(ctx context.Context, organizationID int64) ([]*models.NotificationTemplate, error) {
	rows, err := s.q.QueryContext(ctx, listTemplatesQuery, organizationID)
	if err != nil {
		return nil, errors.NewQueryExecutionFailedError("list notification templates", err)
	}
	defer rows.Close()

	var out []*models.NotificationTemplate
	for rows.Next() {
		tpl, err := scanTemplate(rows)
		if err != nil {
			return nil, errors.NewQueryExecutionFailedError("scan notification template", err)
		}
		out = append(out, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.NewQueryExecutionFailedError("list notification templates", err)
	}
	return out, nil
}

// DeleteTemplate removes the template. Its notifications and job template attachments are
// removed by the foreign key cascade.
func (s *Store) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	res, err := s.q.ExecContext(ctx, deleteTemplateQuery, id)
	if err != nil {
		return errors.NewQueryExecutionFailedError("delete notification template", err)
	}
	return expectOneRow(res, func() error { return errors.NewTemplateNotFoundError(id.String()) })
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTemplate(row rowScanner) (*models.NotificationTemplate, error) {
	var (
		tpl       models.NotificationTemplate
		cfg, msgs []byte
	)
	if err := row.Scan(&tpl.ID, &tpl.OrganizationID, &tpl.Name, &tpl.Description, &tpl.ChannelType,
		&cfg, &msgs, &tpl.CreatedAt, &tpl.ModifiedAt); err != nil {
		return nil, err
	}
	if err := decodeTemplate(&tpl, cfg, msgs); err != nil {
		return nil, err
	}
	return &tpl, nil
}

func encodeTemplate(tpl *models.NotificationTemplate) (string, string, error) {
	cfg := tpl.Configuration
	if cfg == nil {
		cfg = map[string]interface{}{}
	}
	rawCfg, err := json.Marshal(cfg)
	if err != nil {
		return "", "", fmt.Errorf("encode notification_configuration: %w", err)
	}
	rawMsgs, err := json.Marshal(tpl.Messages)
	if err != nil {
		return "", "", fmt.Errorf("encode messages: %w", err)
	}
	return string(rawCfg), string(rawMsgs), nil
}

func decodeTemplate(tpl *models.NotificationTemplate, cfg, msgs []byte) error {
	tpl.Configuration = map[string]interface{}{}
	if len(cfg) > 0 {
		if err := json.Unmarshal(cfg, &tpl.Configuration); err != nil {
			return fmt.Errorf("decode notification_configuration: %w", err)
		}
	}
	tpl.Messages = models.DefaultMessages()
	if len(msgs) > 0 {
		if err := json.Unmarshal(msgs, &tpl.Messages); err != nil {
			return fmt.Errorf("decode messages: %w", err)
		}
	}
	return nil
}

func expectOneRow(res sql.Result, notFound func() error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.NewQueryExecutionFailedError("rows affected", err)
	}
	if n == 0 {
		return notFound()
	}
	return nil
}
