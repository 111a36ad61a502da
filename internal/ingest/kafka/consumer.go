// Package kafka feeds job status changes from a Kafka topic into the dispatch trigger.
package kafka

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"notification-dispatch/internal/common/config"
	"notification-dispatch/internal/common/errors"
	"notification-dispatch/internal/common/logger"
	"notification-dispatch/internal/events"
	"notification-dispatch/internal/notifications/dispatch"
)

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafkago.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

type Dispatcher interface {
	DispatchNow(ctx context.Context, src dispatch.EventSource, status string) (int, error)
}

func NewReader(cfg config.KafkaConfig) *kafkago.Reader {
	return kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
	})
}

const (
	defaultRetryBackoff = time.Second
	defaultMaxBackoff   = 30 * time.Second
)

type Consumer struct {
	reader     MessageReader
	factory    *events.Factory
	dispatcher Dispatcher
	logger     logger.Logger

	retryBackoff time.Duration
	maxBackoff   time.Duration
}

func NewConsumer(reader MessageReader, factory *events.Factory, dispatcher Dispatcher, log logger.Logger) *Consumer {
	return &Consumer{
		reader:     reader,
		factory:    factory,
		dispatcher: dispatcher,
		logger:     log.WithFields(map[string]interface{}{"component": "kafka-ingest"}),

		retryBackoff: defaultRetryBackoff,
		maxBackoff:   defaultMaxBackoff,
	}
}

// Run reads until ctx is cancelled or the reader is closed. A message is committed once it
// has been dispatched or has failed for good; retryable failures hold the partition on that
// message until it goes through or ctx ends, leaving it uncommitted for redelivery.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("kafka consumer started", nil)
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || stderrors.Is(err, io.EOF) {
				c.logger.Info("kafka consumer stopped", nil)
				return nil
			}
			return fmt.Errorf("fetch message: %w", err)
		}

		log := c.logger.WithFields(map[string]interface{}{
			"partition": msg.Partition,
			"offset":    msg.Offset,
		})
		if err := c.process(ctx, msg, log); err != nil {
			log.Info("kafka consumer stopped with message uncommitted", nil)
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			log.Warn("failed to commit offset", map[string]interface{}{"error": err})
		}
	}
}

// process handles msg until it succeeds or fails with a non-retryable error. It returns an
// error only when ctx ends first.
func (c *Consumer) process(ctx context.Context, msg kafkago.Message, log logger.Logger) error {
	backoff := c.retryBackoff
	for attempt := 1; ; attempt++ {
		err := c.Handle(ctx, msg)
		if err == nil {
			return nil
		}

		stdErr := errors.Normalize(err)
		if !stdErr.Retryable {
			log.Error("failed to handle job status message", map[string]interface{}{
				"error": err,
				"code":  stdErr.Code,
			})
			return nil
		}

		log.Warn("job status dispatch failed, retrying", map[string]interface{}{
			"error":   err,
			"code":    stdErr.Code,
			"attempt": attempt,
			"backoff": backoff.String(),
		})
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		if backoff *= 2; backoff > c.maxBackoff {
			backoff = c.maxBackoff
		}
	}
}

// Handle dispatches one message. Statuses that do not notify are ignored.
func (c *Consumer) Handle(ctx context.Context, msg kafkago.Message) error {
	var status events.JobStatus
	if err := json.Unmarshal(msg.Value, &status); err != nil {
		return fmt.Errorf("decode job status: %w", err)
	}
	if err := status.Validate(); err != nil {
		return fmt.Errorf("invalid job status: %w", err)
	}
	if _, err := dispatch.StatusToEventKind(status.Status); err != nil {
		c.logger.Debug("status does not notify, skipping", map[string]interface{}{
			"jobId":  status.ID,
			"status": status.Status,
		})
		return nil
	}

	n, err := c.dispatcher.DispatchNow(ctx, c.factory.New(status), status.Status)
	if err != nil {
		return err
	}
	c.logger.Info("job status dispatched", map[string]interface{}{
		"jobId":         status.ID,
		"status":        status.Status,
		"notifications": n,
	})
	return nil
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
