package kafka

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	kafka_config "freezefit/pkg/kafka/config"
	"freezefit/pkg/logger"

	"github.com/segmentio/kafka-go"
)

const fetchBackoff = time.Second

// Consumer reads one topic as part of a consumer group. Offsets are
// committed after a message was handled or dead-lettered, so delivery is at
// least once.
type Consumer struct {
	reader     messageReader
	dlq        *kafka.Writer
	topic      string
	groupID    string
	maxRetries int
	backoff    time.Duration
	handler    MessageHandler
	middleware []Middleware
	log        *logger.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

func NewConsumer(cfg *kafka_config.Config, topic, groupID, dlqTopic string, handler MessageHandler, log *logger.Logger) (*Consumer, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("kafka config is required")
	case len(cfg.Brokers) == 0:
		return nil, errors.New("at least one kafka broker is required")
	case topic == "":
		return nil, errors.New("consumer topic cannot be empty")
	case groupID == "":
		return nil, errors.New("consumer group cannot be empty")
	case handler == nil:
		return nil, errors.New("message handler is required")
	}

	startOffset := kafka.LastOffset
	if cfg.StartFrom == kafka_config.StartOldest {
		startOffset = kafka.FirstOffset
	}

	c := &Consumer{
		reader: kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          topic,
			GroupID:        groupID,
			MaxWait:        cfg.MaxWait,
			CommitInterval: cfg.CommitInterval,
			SessionTimeout: cfg.SessionTimeout,
			StartOffset:    startOffset,
			ErrorLogger:    kafka.LoggerFunc(log.Printf),
		}),
		topic:      topic,
		groupID:    groupID,
		maxRetries: cfg.MaxRetries,
		backoff:    cfg.RetryBackoff,
		handler:    handler,
		log:        log,
	}
	if dlqTopic != "" {
		c.dlq = newWriter(cfg.Brokers, dlqTopic, log)
	}
	return c, nil
}

// Use appends middleware. The first registered runs outermost.
func (c *Consumer) Use(mw Middleware) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.middleware = append(c.middleware, mw)
}

// Start blocks until ctx is cancelled or the reader is closed.
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return ErrConsumerClosed
	}

	c.wg.Add(1)
	defer c.wg.Done()

	c.log.Info("Kafka consumer started", "topic", c.topic, "group_id", c.groupID)

	for {
		raw, err := c.reader.FetchMessage(ctx)
		switch {
		case err == nil:
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, io.EOF):
			return nil
		default:
			c.log.Error("Kafka consumer failed to fetch message", "topic", c.topic, "error", err)
			if !sleep(ctx, fetchBackoff) {
				return ctx.Err()
			}
			continue
		}

		msg := fromKafka(raw)
		if err := c.handle(ctx, msg); err != nil {
			c.log.Warn("Kafka message not processed",
				"topic", msg.Topic,
				"offset", msg.Offset,
				"event_id", msg.EventID(),
				"error", err,
			)
		}

		if err := c.reader.CommitMessages(ctx, raw); err != nil {
			c.log.Error("Kafka consumer failed to commit offset", "topic", msg.Topic, "offset", msg.Offset, "error", err)
		}
	}
}

// handle runs the middleware chain. Transient failures are retried with a
// linearly growing pause; anything else is dead-lettered.
func (c *Consumer) handle(ctx context.Context, msg Message) error {
	c.mu.RLock()
	h := wrap(c.handler, c.middleware)
	c.mu.RUnlock()

	for {
		attempt := msg.Attempt()
		err := h(ctx, msg)
		if err == nil {
			return nil
		}

		if ShouldRetry(err, attempt, c.maxRetries) {
			msg.nextAttempt()
			c.log.Warn("Retrying Kafka message",
				"event_id", msg.EventID(),
				"attempt", attempt+1,
				"max_retries", c.maxRetries,
				"error", err,
			)
			if !sleep(ctx, c.backoff*time.Duration(attempt+1)) {
				return ctx.Err()
			}
			continue
		}

		if c.dlq != nil {
			extra := map[string]string{headerDLQGroup: c.groupID}
			if dlqErr := deadLetter(ctx, c.dlq, msg, err, extra); dlqErr != nil {
				c.log.Error("Failed to dead-letter Kafka message", "event_id", msg.EventID(), "error", dlqErr, "cause", err)
			} else {
				c.log.Warn("Kafka message dead-lettered", "event_id", msg.EventID(), "attempts", attempt, "error_type", ClassifyError(err).String(), "error", err)
			}
		}
		return err
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Close stops fetching, waits for the in-flight message and closes the
// dead letter writer.
func (c *Consumer) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	err := c.reader.Close()
	c.wg.Wait()
	if c.dlq != nil {
		err = errors.Join(err, c.dlq.Close())
	}
	return err
}
