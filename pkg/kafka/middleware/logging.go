package kafka_middleware

import (
	"context"
	"time"

	"freezefit/pkg/kafka"
	"freezefit/pkg/logger"
)

// Logging logs every published or handled message. direction is "produce"
// or "consume" and selects the success level: publishes are logged at debug.
func Logging(log *logger.Logger, direction string) kafka.Middleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)

		attrs := []any{
			"direction", direction,
			"topic", msg.Topic,
			"key", msg.Key,
			"event_id", msg.EventID(),
			"event_type", msg.EventType(),
			"correlation_id", msg.CorrelationID(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if direction == DirectionConsume {
			attrs = append(attrs, "partition", msg.Partition, "offset", msg.Offset, "attempt", msg.Attempt())
		}

		switch {
		case err != nil:
			log.Error("Kafka message failed", append(attrs, "error_type", kafka.ClassifyError(err).String(), "error", err)...)
		case direction == DirectionProduce:
			log.Debug("Kafka message published", attrs...)
		default:
			log.Info("Kafka message processed", attrs...)
		}
		return err
	}
}
