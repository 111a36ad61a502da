// internal/notifications/delivery/consumer.go
package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"notification-dispatch/internal/common/logger"
)

// Deliverer settles one notification.
type Deliverer interface {
	Deliver(ctx context.Context, id uuid.UUID) error
}

// Consumer drains the queue with a fixed pool of goroutines. Every popped task is handled by
// exactly the goroutine that popped it.
type Consumer struct {
	queue       *RedisQueue
	deliverer   Deliverer
	concurrency int
	pollTimeout time.Duration
	backoff     time.Duration
	logger      logger.Logger
}

func NewConsumer(queue *RedisQueue, deliverer Deliverer, concurrency int, pollTimeout time.Duration, log logger.Logger) *Consumer {
	if concurrency <= 0 {
		concurrency = 1
	}
	if pollTimeout < time.Second {
		pollTimeout = time.Second
	}
	return &Consumer{
		queue:       queue,
		deliverer:   deliverer,
		concurrency: concurrency,
		pollTimeout: pollTimeout,
		backoff:     time.Second,
		logger:      log.WithFields(map[string]interface{}{"component": "delivery-consumer"}),
	}
}

// Run blocks until ctx is cancelled and every worker has returned.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("delivery consumer started", map[string]interface{}{"concurrency": c.concurrency})

	var wg sync.WaitGroup
	for i := 0; i < c.concurrency; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			c.work(ctx, worker)
		}(i)
	}
	wg.Wait()

	c.logger.Info("delivery consumer stopped", nil)
}

func (c *Consumer) work(ctx context.Context, worker int) {
	log := c.logger.WithFields(map[string]interface{}{"worker": worker})
	for {
		if ctx.Err() != nil {
			return
		}

		task, err := c.queue.Pop(ctx, c.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("failed to pop notification", map[string]interface{}{"error": err})
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.backoff):
			}
			continue
		}
		if task == nil {
			continue
		}

		if err := c.deliverer.Deliver(ctx, task.NotificationID); err != nil {
			log.Error("failed to deliver notification", map[string]interface{}{
				"notificationId": task.NotificationID.String(),
				"sourceEventId":  task.SourceEventID,
				"error":          err,
			})
		}
	}
}
