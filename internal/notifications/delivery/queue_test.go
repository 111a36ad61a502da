// internal/notifications/delivery/queue_test.go
package delivery

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
)

// ==========================
// Test Helper Functions
// ==========================

func newMiniredisQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisQueue(client, "notifications:pending", logger.NewTestLogger(t)), mr
}

// ==========================
// Queue Tests
// ==========================

func TestRedisQueue_ScheduleThenPopIsFIFO(t *testing.T) {
	q, mr := newMiniredisQueue(t)
	ctx := context.Background()
	first, second := uuid.New(), uuid.New()

	require.NoError(t, q.Schedule(ctx, first, 1))
	require.NoError(t, q.Schedule(ctx, second, 2))

	items, err := mr.List("notifications:pending")
	require.NoError(t, err)
	assert.Len(t, items, 2)

	n, err := q.Len(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	task, err := q.Pop(ctx, time.Second)
	require.NoError(t, err)
	require.NotNil(t, task)
	assert.Equal(t, first, task.NotificationID)
	assert.Equal(t, int64(1), task.SourceEventID)
	assert.False(t, task.EnqueuedAt.IsZero())

	task, err = q.Pop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, second, task.NotificationID)
}

func TestRedisQueue_PopMalformedPayload(t *testing.T) {
	q, mr := newMiniredisQueue(t)
	_, err := mr.Lpush("notifications:pending", "not json")
	require.NoError(t, err)

	task, err := q.Pop(context.Background(), time.Second)
	assert.Error(t, err)
	assert.Nil(t, task)
}

func TestRedisQueue_PopTimeoutReturnsNil(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewRedisQueue(client, "q", logger.NewNoOpLogger())

	mock.ExpectBRPop(time.Second, "q").RedisNil()

	task, err := q.Pop(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Nil(t, task)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_ScheduleFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewRedisQueue(client, "q", logger.NewNoOpLogger())

	mock.Regexp().ExpectLPush("q", `.*`).SetErr(stderrors.New("READONLY You can't write against a read only replica"))

	err := q.Schedule(context.Background(), uuid.New(), 9)
	require.Error(t, err)
	assert.True(t, stderrors.Is(err, errors.Sentinel(errors.ErrCodeQueuePublishFailed)))
	assert.True(t, errors.Normalize(err).Retryable)
}

func TestRedisQueue_LenFailure(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewRedisQueue(client, "q", logger.NewNoOpLogger())

	mock.ExpectLLen("q").SetErr(stderrors.New("connection refused"))

	_, err := q.Len(context.Background())
	assert.Error(t, err)
}
