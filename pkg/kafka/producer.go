package kafka

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kafka_config "freezefit/pkg/kafka/config"
	"freezefit/pkg/logger"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/compress"
)

var (
	requiredAcks = map[string]kafka.RequiredAcks{
		kafka_config.AcksAll:    kafka.RequireAll,
		kafka_config.AcksLeader: kafka.RequireOne,
		kafka_config.AcksNone:   kafka.RequireNone,
	}
	codecs = map[string]compress.Compression{
		"gzip":   compress.Gzip,
		"snappy": compress.Snappy,
		"lz4":    compress.Lz4,
		"zstd":   compress.Zstd,
	}
)

// Producer writes event messages to one topic. Messages that cannot be
// written are parked on the dead letter topic when one is configured.
type Producer struct {
	writer     *kafka.Writer
	dlq        *kafka.Writer
	topic      string
	middleware []Middleware
	log        *logger.Logger

	mu     sync.RWMutex
	closed bool
}

func NewProducer(cfg *kafka_config.Config, topic, dlqTopic string, log *logger.Logger) (*Producer, error) {
	if cfg == nil {
		return nil, errors.New("kafka config is required")
	}
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one kafka broker is required")
	}
	if topic == "" {
		return nil, errors.New("producer topic cannot be empty")
	}

	w := newWriter(cfg.Brokers, topic, log)
	w.RequiredAcks = requiredAcks[cfg.RequiredAcks]
	w.Compression = codecs[cfg.Compression]
	w.MaxAttempts = cfg.WriteAttempts
	w.BatchTimeout = cfg.BatchTimeout

	p := &Producer{writer: w, topic: topic, log: log}
	if dlqTopic != "" {
		p.dlq = newWriter(cfg.Brokers, dlqTopic, log)
	}
	return p, nil
}

// newWriter hashes by key so one aggregate's events keep their order.
func newWriter(brokers []string, topic string, log *logger.Logger) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		MaxAttempts:  3,
		ErrorLogger:  kafka.LoggerFunc(log.Printf),
	}
}

// Use appends middleware. The first registered runs outermost.
func (p *Producer) Use(mw Middleware) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.middleware = append(p.middleware, mw)
}

func (p *Producer) Publish(ctx context.Context, msg Message) error {
	p.mu.RLock()
	closed, chain := p.closed, p.middleware
	p.mu.RUnlock()
	if closed {
		return ErrProducerClosed
	}

	if msg.Key == "" || len(msg.Value) == 0 {
		return fmt.Errorf("%w: key and value are required", ErrInvalidMessage)
	}
	msg.Topic = p.topic

	return wrap(p.write, chain)(ctx, msg)
}

func (p *Producer) write(ctx context.Context, msg Message) error {
	err := p.writer.WriteMessages(ctx, toKafka(msg))
	if err == nil || p.dlq == nil {
		return err
	}
	if dlqErr := deadLetter(ctx, p.dlq, msg, err, nil); dlqErr != nil {
		return fmt.Errorf("publish failed and dead letter failed (%v): %w", dlqErr, err)
	}
	return err
}

func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true

	err := p.writer.Close()
	if p.dlq != nil {
		err = errors.Join(err, p.dlq.Close())
	}
	return err
}

func toKafka(msg Message) kafka.Message {
	out := kafka.Message{Key: []byte(msg.Key), Value: msg.Value, Time: msg.Timestamp}
	for k, v := range msg.Headers {
		out.Headers = append(out.Headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	return out
}

func fromKafka(m kafka.Message) Message {
	msg := Message{
		Key:       string(m.Key),
		Value:     m.Value,
		Headers:   make(map[string]string, len(m.Headers)),
		Topic:     m.Topic,
		Partition: m.Partition,
		Offset:    m.Offset,
		Timestamp: m.Time,
	}
	for _, h := range m.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}

// deadLetter copies msg to the dead letter writer with the failure attached
// as headers. It ignores ctx cancellation so shutdown does not drop it.
func deadLetter(ctx context.Context, w *kafka.Writer, msg Message, cause error, extra map[string]string) error {
	headers := make(map[string]string, len(msg.Headers)+len(extra)+3)
	for k, v := range msg.Headers {
		headers[k] = v
	}
	for k, v := range extra {
		headers[k] = v
	}
	headers[HeaderOriginalTopic] = msg.Topic
	headers[headerDLQError] = cause.Error()
	headers[headerDLQAt] = time.Now().UTC().Format(time.RFC3339)

	msg.Headers = headers
	msg.Timestamp = time.Now()
	return w.WriteMessages(context.WithoutCancel(ctx), toKafka(msg))
}
