package kafka_middleware

import (
	"context"
	"time"

	"freezefit/pkg/kafka"
	"freezefit/pkg/metrics"
)

const (
	DirectionProduce = "produce"
	DirectionConsume = "consume"
)

// Metrics counts messages by direction, topic and outcome.
func Metrics(direction string) kafka.Middleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()
		err := next(ctx, msg)

		outcome := "ok"
		if err != nil {
			outcome = kafka.ClassifyError(err).String()
		}
		metrics.RecordKafkaMessage(direction, msg.Topic, outcome, time.Since(start))
		return err
	}
}
