// internal/workers/notifications/template-send/handler_test.go
package templatesend

import (
	"context"
	stderrors "errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-dispatch/internal/common/config"
	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/models"
)

// ==========================
// Mock Implementations
// ==========================

type MockTemplates struct {
	GetFunc func(ctx context.Context, id uuid.UUID) (*models.NotificationTemplate, error)
}

func (m *MockTemplates) Get(ctx context.Context, id uuid.UUID) (*models.NotificationTemplate, error) {
	return m.GetFunc(ctx, id)
}

func (m *MockTemplates) GenerateNotification(tpl *models.NotificationTemplate, subject string, body map[string]interface{}, sourceEventID int64) *models.Notification {
	return &models.Notification{
		ID:            uuid.New(),
		TemplateID:    tpl.ID,
		ChannelType:   tpl.ChannelType,
		Status:        models.StatusPending,
		Subject:       subject,
		Body:          body,
		SourceEventID: sourceEventID,
	}
}

type MockWriter struct {
	CreateFunc func(ctx context.Context, n *models.Notification) error
	created    []*models.Notification
}

func (m *MockWriter) CreateNotification(ctx context.Context, n *models.Notification) error {
	if m.CreateFunc != nil {
		if err := m.CreateFunc(ctx, n); err != nil {
			return err
		}
	}
	m.created = append(m.created, n)
	return nil
}

type MockScheduler struct {
	ScheduleFunc func(ctx context.Context, id uuid.UUID, sourceEventID int64) error
	scheduled    []uuid.UUID
}

func (m *MockScheduler) Schedule(ctx context.Context, id uuid.UUID, sourceEventID int64) error {
	if m.ScheduleFunc != nil {
		if err := m.ScheduleFunc(ctx, id, sourceEventID); err != nil {
			return err
		}
	}
	m.scheduled = append(m.scheduled, id)
	return nil
}

// ==========================
// Test Helper Functions
// ==========================

var testTemplate = &models.NotificationTemplate{ID: uuid.New(), Name: "ops", ChannelType: "slack"}

func foundTemplates() *MockTemplates {
	return &MockTemplates{GetFunc: func(_ context.Context, id uuid.UUID) (*models.NotificationTemplate, error) {
		if id != testTemplate.ID {
			return nil, errors.NewTemplateNotFoundError(id.String())
		}
		return testTemplate, nil
	}}
}

func createTestInput() *Input {
	return &Input{
		TemplateID:    testTemplate.ID.String(),
		Subject:       "Maintenance window starts at 22:00",
		Body:          map[string]interface{}{"body": "Expect deploys to pause."},
		SourceEventID: 12,
	}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name      string
		input     func() *Input
		writer    *MockWriter
		scheduler *MockScheduler
		validate  func(t *testing.T, out *Output, err error, w *MockWriter, s *MockScheduler)
	}{
		{
			name:      "queues the notification",
			input:     createTestInput,
			writer:    &MockWriter{},
			scheduler: &MockScheduler{},
			validate: func(t *testing.T, out *Output, err error, w *MockWriter, s *MockScheduler) {
				require.NoError(t, err)
				assert.Equal(t, StatusQueued, out.Status)
				assert.Equal(t, "slack", out.Channel)
				require.Len(t, w.created, 1)
				assert.Equal(t, out.NotificationID, w.created[0].ID.String())
				assert.Equal(t, int64(12), w.created[0].SourceEventID)
				assert.Equal(t, []uuid.UUID{w.created[0].ID}, s.scheduled)
				_, perr := time.Parse(time.RFC3339, out.QueuedAt)
				assert.NoError(t, perr)
			},
		},
		{
			name: "long subject is cut",
			input: func() *Input {
				in := createTestInput()
				in.Subject = strings.Repeat("x", 600)
				in.Body = nil
				return in
			},
			writer:    &MockWriter{},
			scheduler: &MockScheduler{},
			validate: func(t *testing.T, out *Output, err error, w *MockWriter, s *MockScheduler) {
				require.NoError(t, err)
				assert.Len(t, w.created[0].Subject, 512)
				assert.NotNil(t, w.created[0].Body)
			},
		},
		{
			name:  "persist failure is returned before scheduling",
			input: createTestInput,
			writer: &MockWriter{CreateFunc: func(context.Context, *models.Notification) error {
				return errors.NewDatabaseInsertFailedError(stderrors.New("disk full"))
			}},
			scheduler: &MockScheduler{},
			validate: func(t *testing.T, out *Output, err error, w *MockWriter, s *MockScheduler) {
				require.Error(t, err)
				assert.Nil(t, out)
				assert.Empty(t, s.scheduled)
			},
		},
		{
			name:   "schedule failure is returned",
			input:  createTestInput,
			writer: &MockWriter{},
			scheduler: &MockScheduler{ScheduleFunc: func(context.Context, uuid.UUID, int64) error {
				return errors.NewQueuePublishFailedError(stderrors.New("redis down"))
			}},
			validate: func(t *testing.T, out *Output, err error, w *MockWriter, s *MockScheduler) {
				require.Error(t, err)
				assert.True(t, stderrors.Is(err, errors.Sentinel(errors.ErrCodeQueuePublishFailed)))
			},
		},
		{
			name: "unknown template",
			input: func() *Input {
				in := createTestInput()
				in.TemplateID = uuid.NewString()
				return in
			},
			writer:    &MockWriter{},
			scheduler: &MockScheduler{},
			validate: func(t *testing.T, out *Output, err error, w *MockWriter, s *MockScheduler) {
				require.Error(t, err)
				assert.True(t, stderrors.Is(err, errors.Sentinel(errors.ErrCodeTemplateNotFound)))
				assert.Empty(t, w.created)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(LoadConfig(config.WorkerConfig{}), foundTemplates(), tt.writer, tt.scheduler, logger.NewTestLogger(t))
			out, err := h.Execute(context.Background(), tt.input())
			tt.validate(t, out, err, tt.writer, tt.scheduler)
		})
	}
}

// ==========================
// Validation Tests
// ==========================

func TestHandler_ValidateInput(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(in *Input)
		wantErr string
	}{
		{"missing template", func(in *Input) { in.TemplateID = "" }, "templateId is required"},
		{"bad template id", func(in *Input) { in.TemplateID = "42" }, "not a valid id"},
		{"blank subject", func(in *Input) { in.Subject = "   " }, "subject is required"},
		{"negative source", func(in *Input) { in.SourceEventID = -1 }, "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(LoadConfig(config.WorkerConfig{}), foundTemplates(), &MockWriter{}, &MockScheduler{}, logger.NewTestLogger(t))
			in := createTestInput()
			tt.mutate(in)

			_, err := h.Execute(context.Background(), in)

			require.Error(t, err)
			assert.True(t, stderrors.Is(err, errors.Sentinel(errors.ErrCodeInvalidInput)))
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 30*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
	assert.Equal(t, 2*time.Second, LoadConfig(config.WorkerConfig{Timeout: 2000}).Timeout)
	assert.Equal(t, 512, LoadConfig(config.WorkerConfig{}).MaxSubjectLength)
}
