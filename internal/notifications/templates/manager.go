// Package templates owns the lifecycle of notification templates: validation, encrypted
// configuration, message merging on update, and sending through the channel catalog.
package templates

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/models"
	"notification-dispatch/internal/notifications/catalog"
	"notification-dispatch/internal/notifications/projection"
	"notification-dispatch/internal/notifications/render"
	"notification-dispatch/internal/notifications/vault"
)

// Repository persists templates.
type Repository interface {
	CreateTemplate(ctx context.Context, tpl *models.NotificationTemplate) error
	UpdateTemplate(ctx context.Context, tpl *models.NotificationTemplate) error
	GetTemplate(ctx context.Context, id uuid.UUID) (*models.NotificationTemplate, error)
	ListTemplates(ctx context.Context, organizationID int64) ([]*models.NotificationTemplate, error)
	DeleteTemplate(ctx context.Context, id uuid.UUID) error
}

type Manager struct {
	repo    Repository
	catalog *catalog.Catalog
	vault   *vault.Vault
	logger  logger.Logger
	now     func() time.Time
}

func NewManager(repo Repository, cat *catalog.Catalog, v *vault.Vault, log logger.Logger) *Manager {
	return &Manager{
		repo:    repo,
		catalog: cat,
		vault:   v,
		logger:  log.WithFields(map[string]interface{}{"component": "templates"}),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (m *Manager) Catalog() *catalog.Catalog { return m.catalog }

// Validate checks the channel configuration and dry-renders every message template
// against a stub context.
func (m *Manager) Validate(tpl *models.NotificationTemplate) error {
	if strings.TrimSpace(tpl.Name) == "" {
		return errors.NewTemplateValidationFailedError("name is required")
	}
	if err := m.catalog.ValidateConfiguration(tpl.ChannelType, tpl.Configuration); err != nil {
		return err
	}
	entry, err := m.catalog.Lookup(tpl.ChannelType)
	if err != nil {
		return err
	}
	// A bare marker here means no stored ciphertext was carried over for it.
	for _, field := range entry.SensitiveFields() {
		if v, ok := tpl.Configuration[field]; ok && v == vault.Marker {
			return errors.NewTemplateValidationFailedError(
				fmt.Sprintf("configuration.%s: masked value has no stored secret to keep", field))
		}
	}

	stub := projection.Stub()
	for _, kind := range models.EventKinds {
		msg := tpl.Messages.Get(kind)
		if msg == nil {
			continue
		}
		if msg.Message != nil {
			if err := render.Check(*msg.Message, stub); err != nil {
				return errors.NewTemplateValidationFailedError(fmt.Sprintf("messages.%s.message: %v", kind, err))
			}
		}
		if msg.Body != nil {
			if err := render.Check(*msg.Body, stub); err != nil {
				return errors.NewTemplateValidationFailedError(fmt.Sprintf("messages.%s.body: %v", kind, err))
			}
		}
	}
	return nil
}

// Create validates tpl, encrypts its sensitive fields and stores it in a single write.
// The id is assigned up front so the encryption key can be bound to it.
func (m *Manager) Create(ctx context.Context, tpl *models.NotificationTemplate) error {
	if tpl.ID == uuid.Nil {
		tpl.ID = uuid.New()
	}
	if tpl.Configuration == nil {
		tpl.Configuration = map[string]interface{}{}
	}
	tpl.Messages = tpl.Messages.Normalize()

	if err := m.Validate(tpl); err != nil {
		return err
	}
	entry, err := m.catalog.Lookup(tpl.ChannelType)
	if err != nil {
		return err
	}
	if err := m.vault.Seal(tpl.ID, entry.SensitiveFields(), tpl.Configuration); err != nil {
		return fmt.Errorf("seal configuration: %w", err)
	}

	now := m.now()
	tpl.CreatedAt, tpl.ModifiedAt = now, now
	if err := m.repo.CreateTemplate(ctx, tpl); err != nil {
		return err
	}

	m.logger.Info("notification template created", map[string]interface{}{
		"templateId": tpl.ID.String(),
		"channel":    tpl.ChannelType,
	})
	return nil
}

// Update applies changes to the stored template with changes.ID. Sensitive fields sent back
// as the mask marker keep their stored ciphertext, and messages merge per MergeMessages.
func (m *Manager) Update(ctx context.Context, changes *models.NotificationTemplate) (*models.NotificationTemplate, error) {
	stored, err := m.repo.GetTemplate(ctx, changes.ID)
	if err != nil {
		return nil, err
	}

	entry, err := m.catalog.Lookup(changes.ChannelType)
	if err != nil {
		return nil, err
	}

	cfg := make(map[string]interface{}, len(changes.Configuration))
	for k, v := range changes.Configuration {
		cfg[k] = v
	}
	if stored.ChannelType == changes.ChannelType {
		for _, field := range entry.SensitiveFields() {
			if v, ok := cfg[field]; ok && v == vault.Marker {
				cfg[field] = stored.Configuration[field]
			}
		}
	}

	updated := &models.NotificationTemplate{
		ID:             stored.ID,
		OrganizationID: stored.OrganizationID,
		Name:           changes.Name,
		Description:    changes.Description,
		ChannelType:    changes.ChannelType,
		Configuration:  cfg,
		Messages:       MergeMessages(changes.Messages, stored.Messages),
		CreatedAt:      stored.CreatedAt,
		ModifiedAt:     m.now(),
	}

	if err := m.Validate(updated); err != nil {
		return nil, err
	}
	if err := m.vault.Seal(updated.ID, entry.SensitiveFields(), updated.Configuration); err != nil {
		return nil, fmt.Errorf("seal configuration: %w", err)
	}
	if err := m.repo.UpdateTemplate(ctx, updated); err != nil {
		return nil, err
	}

	m.logger.Info("notification template updated", map[string]interface{}{
		"templateId": updated.ID.String(),
		"channel":    updated.ChannelType,
	})
	return updated, nil
}

func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*models.NotificationTemplate, error) {
	return m.repo.GetTemplate(ctx, id)
}

func (m *Manager) List(ctx context.Context, organizationID int64) ([]*models.NotificationTemplate, error) {
	return m.repo.ListTemplates(ctx, organizationID)
}

// Delete removes the template; its notifications go with it.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	return m.repo.DeleteTemplate(ctx, id)
}

// Display returns a copy safe to show: encrypted fields read as the mask marker.
func (m *Manager) Display(tpl *models.NotificationTemplate) *models.NotificationTemplate {
	out := *tpl
	var sensitive []string
	if entry, err := m.catalog.Lookup(tpl.ChannelType); err == nil {
		sensitive = entry.SensitiveFields()
	}
	out.Configuration = vault.Mask(sensitive, tpl.Configuration)

	out.Messages = models.DefaultMessages()
	for _, kind := range models.EventKinds {
		out.Messages[kind] = tpl.Messages.Get(kind).Clone()
	}
	return &out
}

// Send delivers one message through the template's channel and returns the number of
// recipients reached. The decrypted configuration never leaves this call.
func (m *Manager) Send(ctx context.Context, tpl *models.NotificationTemplate, subject string, body map[string]interface{}) (int, error) {
	entry, err := m.catalog.Lookup(tpl.ChannelType)
	if err != nil {
		return 0, err
	}

	cfg, err := m.vault.Open(tpl.ID, entry.SensitiveFields(), tpl.Configuration)
	if err != nil {
		return 0, err
	}

	params := entry.ApplyDefaults(cfg)
	recipients := catalog.ToStrings(params[entry.RecipientParameter])
	delete(params, entry.RecipientParameter)

	var sender string
	if entry.SenderParameter != "" {
		if v, ok := params[entry.SenderParameter]; ok && v != nil {
			sender = fmt.Sprint(v)
		}
		delete(params, entry.SenderParameter)
	}

	backend, err := entry.Build(params)
	if err != nil {
		return 0, err
	}

	return backend.Send(ctx, catalog.Message{
		Subject:    subject,
		Body:       backend.FormatBody(body),
		Sender:     sender,
		Recipients: recipients,
	})
}

// GenerateNotification builds the pending record for one rendered message.
func (m *Manager) GenerateNotification(tpl *models.NotificationTemplate, subject string, body map[string]interface{}, sourceEventID int64) *models.Notification {
	now := m.now()
	return &models.Notification{
		ID:            uuid.New(),
		TemplateID:    tpl.ID,
		ChannelType:   tpl.ChannelType,
		Status:        models.StatusPending,
		Recipients:    m.serializedRecipients(tpl),
		Subject:       subject,
		Body:          body,
		SourceEventID: sourceEventID,
		CreatedAt:     now,
		ModifiedAt:    now,
	}
}

func (m *Manager) serializedRecipients(tpl *models.NotificationTemplate) string {
	entry, err := m.catalog.Lookup(tpl.ChannelType)
	if err != nil {
		return ""
	}
	raw, err := json.Marshal(catalog.ToStrings(tpl.Configuration[entry.RecipientParameter]))
	if err != nil {
		return ""
	}
	return string(raw)
}
