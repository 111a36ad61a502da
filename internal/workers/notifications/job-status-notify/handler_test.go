// internal/workers/notifications/job-status-notify/handler_test.go
package jobstatusnotify

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-dispatch/internal/common/config"
	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/events"
	"notification-dispatch/internal/notifications/dispatch"
)

// ==========================
// Mock Implementations
// ==========================

type MockDispatcher struct {
	DispatchNowFunc func(ctx context.Context, src dispatch.EventSource, status string) (int, error)
}

func (m *MockDispatcher) DispatchNow(ctx context.Context, src dispatch.EventSource, status string) (int, error) {
	return m.DispatchNowFunc(ctx, src, status)
}

// ==========================
// Test Helper Functions
// ==========================

func createTestHandler(t *testing.T, d Dispatcher) *Handler {
	return NewHandler(LoadConfig(config.WorkerConfig{}), events.NewFactory(nil, "https://awx.example.com"), d, logger.NewTestLogger(t))
}

func createTestInput(status string) *Input {
	return &Input{JobID: 42, JobName: "Deploy", Status: status, JobTemplateID: 7}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute(t *testing.T) {
	tests := []struct {
		name     string
		input    *Input
		dispatch func(ctx context.Context, src dispatch.EventSource, status string) (int, error)
		validate func(t *testing.T, out *Output, err error)
	}{
		{
			name:  "dispatches notifications",
			input: createTestInput("failed"),
			dispatch: func(_ context.Context, src dispatch.EventSource, status string) (int, error) {
				assert.Equal(t, int64(42), src.ID())
				assert.Equal(t, "Deploy", src.Name())
				assert.Equal(t, "https://awx.example.com/#/jobs/playbook/42", src.UIURL())
				assert.Equal(t, "failed", status)
				return 2, nil
			},
			validate: func(t *testing.T, out *Output, err error) {
				require.NoError(t, err)
				assert.Equal(t, 2, out.NotificationsCreated)
				assert.Equal(t, StatusDispatched, out.Status)
				_, perr := time.Parse(time.RFC3339, out.DispatchedAt)
				assert.NoError(t, perr)
			},
		},
		{
			name:  "no templates attached",
			input: createTestInput("succeeded"),
			dispatch: func(context.Context, dispatch.EventSource, string) (int, error) {
				return 0, nil
			},
			validate: func(t *testing.T, out *Output, err error) {
				require.NoError(t, err)
				assert.Equal(t, StatusNone, out.Status)
			},
		},
		{
			name:  "invalid status is not retryable",
			input: createTestInput("cancelled"),
			dispatch: func(context.Context, dispatch.EventSource, string) (int, error) {
				return 0, errors.NewInvalidStatusError("cancelled")
			},
			validate: func(t *testing.T, out *Output, err error) {
				require.Error(t, err)
				assert.Nil(t, out)
				std := errors.Normalize(err)
				assert.Equal(t, errors.ErrCodeInvalidStatus, std.Code)
				assert.False(t, std.Retryable)
			},
		},
		{
			name:  "missing job template id",
			input: &Input{JobID: 1, Status: "running"},
			dispatch: func(context.Context, dispatch.EventSource, string) (int, error) {
				return 0, stderrors.New("dispatch must not be called")
			},
			validate: func(t *testing.T, _ *Output, err error) {
				assert.True(t, stderrors.Is(err, errors.Sentinel(errors.ErrCodeInvalidInput)))
			},
		},
		{
			name:  "database failure is retryable",
			input: createTestInput("running"),
			dispatch: func(context.Context, dispatch.EventSource, string) (int, error) {
				return 0, errors.NewDatabaseConnectionFailedError(stderrors.New("connection refused"))
			},
			validate: func(t *testing.T, _ *Output, err error) {
				assert.True(t, errors.Normalize(err).Retryable)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := createTestHandler(t, &MockDispatcher{DispatchNowFunc: tt.dispatch})
			out, err := h.Execute(context.Background(), tt.input)
			tt.validate(t, out, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	assert.Equal(t, 30*time.Second, LoadConfig(config.WorkerConfig{}).Timeout)
	assert.Equal(t, 5*time.Second, LoadConfig(config.WorkerConfig{Timeout: 5000}).Timeout)
}
