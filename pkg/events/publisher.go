package events

import (
	"context"

	"freezefit/pkg/kafka"
	"freezefit/pkg/logger"
	"freezefit/pkg/middleware"
)

type requestIDKey struct{}

// WithCorrelationID sets the correlation id for events published outside
// an HTTP request (jobs, consumers). Requests use their request id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func correlationID(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok {
		return id
	}
	return middleware.RequestIDFromContext(ctx)
}

type messagePublisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaPublisher writes events to the events topic keyed by aggregate id so
// events of one aggregate stay ordered.
type KafkaPublisher struct {
	producer messagePublisher
	source   string
	log      *logger.Logger
}

func NewKafkaPublisher(producer messagePublisher, source string, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, source: source, log: log}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType, aggregateID string, payload any) {
	evt, err := New(eventType, aggregateID, payload)
	if err != nil {
		p.log.Error("Failed to encode event", "event_type", eventType, "aggregate_id", aggregateID, "error", err)
		return
	}

	msg, err := kafka.Encode(aggregateID, evt, kafka.Meta{
		EventID:       evt.ID,
		EventType:     eventType,
		CorrelationID: correlationID(ctx),
		Source:        p.source,
	})
	if err != nil {
		p.log.Error("Failed to build event message", "event_type", eventType, "error", err)
		return
	}

	if err := p.producer.Publish(context.WithoutCancel(ctx), msg); err != nil {
		p.log.Error("Failed to publish event",
			"event_id", evt.ID,
			"event_type", eventType,
			"aggregate_id", aggregateID,
			"error", err,
		)
	}
}

// LogPublisher only logs events. Used when Kafka is disabled.
type LogPublisher struct {
	log *logger.Logger
}

func NewLogPublisher(log *logger.Logger) *LogPublisher {
	return &LogPublisher{log: log}
}

func (p *LogPublisher) Publish(ctx context.Context, eventType, aggregateID string, _ any) {
	p.log.Info("Event emitted",
		"event_type", eventType,
		"aggregate_id", aggregateID,
		"correlation_id", correlationID(ctx),
	)
}
