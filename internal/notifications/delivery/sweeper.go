// internal/notifications/delivery/sweeper.go
package delivery

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/models"
)

const sweepBatchSize = 500

type StaleLister interface {
	ListStalePending(ctx context.Context, olderThan time.Time, limit int) ([]*models.Notification, error)
}

type Scheduler interface {
	Schedule(ctx context.Context, notificationID uuid.UUID, sourceEventID int64) error
}

// Sweeper re-enqueues notifications left pending longer than staleAfter.
type Sweeper struct {
	cron       *cron.Cron
	schedule   string
	store      StaleLister
	scheduler  Scheduler
	queue      *RedisQueue
	staleAfter time.Duration
	logger     logger.Logger
	now        func() time.Time
}

func NewSweeper(schedule string, staleAfter time.Duration, store StaleLister, scheduler Scheduler, queue *RedisQueue, log logger.Logger) *Sweeper {
	return &Sweeper{
		cron:       cron.New(),
		schedule:   schedule,
		store:      store,
		scheduler:  scheduler,
		queue:      queue,
		staleAfter: staleAfter,
		logger:     log.WithFields(map[string]interface{}{"component": "delivery-sweeper"}),
		now:        time.Now,
	}
}

// Start registers the sweep on the cron schedule and starts the scheduler.
func (s *Sweeper) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("scheduled sweep failed", map[string]interface{}{"error": err})
		}
	})
	if err != nil {
		return err
	}
	s.logger.Info("starting sweeper", map[string]interface{}{"cron": s.schedule})
	s.cron.Start()
	return nil
}

// Stop waits up to five seconds for a running sweep.
func (s *Sweeper) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
	}
	s.logger.Info("sweeper stopped", nil)
}

// Sweep re-schedules one batch of stale pending notifications and returns how many it queued.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	if s.queue != nil {
		if _, err := s.queue.Len(ctx); err != nil {
			s.logger.Warn("failed to read queue depth", map[string]interface{}{"error": err})
		}
	}

	stale, err := s.store.ListStalePending(ctx, s.now().Add(-s.staleAfter), sweepBatchSize)
	if err != nil {
		return 0, err
	}

	queued := 0
	for _, n := range stale {
		if err := s.scheduler.Schedule(ctx, n.ID, n.SourceEventID); err != nil {
			return queued, err
		}
		queued++
	}
	if queued > 0 {
		s.logger.Info("re-queued stale notifications", map[string]interface{}{"count": queued})
	}
	return queued, nil
}
