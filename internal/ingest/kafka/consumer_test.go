// internal/ingest/kafka/consumer_test.go
package kafka

import (
	"context"
	stderrors "errors"
	"io"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/events"
	"notification-dispatch/internal/notifications/dispatch"
)

// ==========================
// Mock Implementations
// ==========================

type fakeReader struct {
	messages  []kafkago.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(context.Context) (kafkago.Message, error) {
	if len(r.messages) == 0 {
		return kafkago.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type dispatchCall struct {
	id     int64
	status string
	url    string
}

type MockDispatcher struct {
	calls  []dispatchCall
	err    error
	errs   []error // returned one per call before falling back to err
	onCall func(n int)
}

func (m *MockDispatcher) DispatchNow(_ context.Context, src dispatch.EventSource, status string) (int, error) {
	m.calls = append(m.calls, dispatchCall{src.ID(), status, src.UIURL()})
	if m.onCall != nil {
		m.onCall(len(m.calls))
	}
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return 0, err
	}
	return 1, m.err
}

func message(offset int64, value string) kafkago.Message {
	return kafkago.Message{Offset: offset, Value: []byte(value)}
}

// ==========================
// Consumer Tests
// ==========================

func TestConsumer_Handle(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		wantErr  bool
		validate func(t *testing.T, d *MockDispatcher)
	}{
		{
			name:  "dispatches notifying status",
			value: `{"id": 12, "name": "Deploy", "type": "job", "status": "failed", "job_template_id": 4}`,
			validate: func(t *testing.T, d *MockDispatcher) {
				require.Len(t, d.calls, 1)
				assert.Equal(t, dispatchCall{12, "failed", "https://awx.example.com/#/jobs/playbook/12"}, d.calls[0])
			},
		},
		{
			name:  "ignores statuses that do not notify",
			value: `{"id": 12, "status": "pending", "job_template_id": 4}`,
			validate: func(t *testing.T, d *MockDispatcher) {
				assert.Empty(t, d.calls)
			},
		},
		{
			name:    "rejects malformed json",
			value:   `{"id": `,
			wantErr: true,
		},
		{
			name:    "rejects missing job template",
			value:   `{"id": 12, "status": "running"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &MockDispatcher{}
			c := NewConsumer(&fakeReader{}, events.NewFactory(nil, "https://awx.example.com"), d, logger.NewTestLogger(t))

			err := c.Handle(context.Background(), message(1, tt.value))
			if tt.wantErr {
				assert.Error(t, err)
				assert.Empty(t, d.calls)
				return
			}
			require.NoError(t, err)
			tt.validate(t, d)
		})
	}
}

func TestConsumer_RunCommitsPermanentFailures(t *testing.T) {
	reader := &fakeReader{messages: []kafkago.Message{
		message(10, `{"id": 1, "status": "running", "job_template_id": 4}`),
		message(11, `garbage`),
		message(12, `{"id": 2, "status": "succeeded", "job_template_id": 4}`),
	}}
	d := &MockDispatcher{err: stderrors.New("db down")}
	c := NewConsumer(reader, events.NewFactory(nil, "http://awx"), d, logger.NewTestLogger(t))

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []int64{10, 11, 12}, reader.committed)
	assert.Len(t, d.calls, 2)

	require.NoError(t, c.Close())
	assert.True(t, reader.closed)
}

func TestConsumer_RunRetriesTransientFailures(t *testing.T) {
	reader := &fakeReader{messages: []kafkago.Message{
		message(7, `{"id": 3, "status": "failed", "job_template_id": 4}`),
		message(8, `{"id": 4, "status": "succeeded", "job_template_id": 4}`),
	}}
	d := &MockDispatcher{errs: []error{
		errors.NewDatabaseInsertFailedError(stderrors.New("connection reset")),
		errors.NewQueuePublishFailedError(stderrors.New("redis timeout")),
	}}
	c := NewConsumer(reader, events.NewFactory(nil, "http://awx"), d, logger.NewTestLogger(t))
	c.retryBackoff = time.Millisecond

	require.NoError(t, c.Run(context.Background()))

	assert.Equal(t, []int64{7, 8}, reader.committed)
	require.Len(t, d.calls, 4)
	assert.Equal(t, int64(3), d.calls[0].id)
	assert.Equal(t, int64(3), d.calls[2].id, "the failed message is handled again before moving on")
	assert.Equal(t, int64(4), d.calls[3].id)
}

func TestConsumer_RunLeavesTransientFailureUncommitted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reader := &fakeReader{messages: []kafkago.Message{
		message(7, `{"id": 3, "status": "failed", "job_template_id": 4}`),
		message(8, `{"id": 4, "status": "succeeded", "job_template_id": 4}`),
	}}
	d := &MockDispatcher{
		err: errors.NewDatabaseInsertFailedError(stderrors.New("connection refused")),
		onCall: func(n int) {
			if n == 2 {
				cancel()
			}
		},
	}
	c := NewConsumer(reader, events.NewFactory(nil, "http://awx"), d, logger.NewTestLogger(t))
	c.retryBackoff = time.Millisecond

	require.NoError(t, c.Run(ctx))

	assert.Empty(t, reader.committed)
	assert.Len(t, d.calls, 2)
	assert.Len(t, reader.messages, 1, "no later message is fetched past the failing one")
}

func TestConsumer_BackoffIsCapped(t *testing.T) {
	reader := &fakeReader{messages: []kafkago.Message{
		message(1, `{"id": 3, "status": "failed", "job_template_id": 4}`),
	}}
	transient := errors.NewDatabaseConnectionFailedError(stderrors.New("down"))
	d := &MockDispatcher{errs: []error{transient, transient, transient, transient}}
	c := NewConsumer(reader, events.NewFactory(nil, "http://awx"), d, logger.NewTestLogger(t))
	c.retryBackoff = time.Millisecond
	c.maxBackoff = 2 * time.Millisecond

	start := time.Now()
	require.NoError(t, c.Run(context.Background()))

	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, []int64{1}, reader.committed)
	assert.Len(t, d.calls, 5)
}
