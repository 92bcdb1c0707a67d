package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Message is one record of an events topic. Key carries the aggregate id
// (appointment, review, user) so events of one aggregate share a partition.
type Message struct {
	Key       string
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
}

const (
	HeaderEventID       = "event-id"
	HeaderEventType     = "event-type"
	HeaderCorrelationID = "correlation-id"
	HeaderSource        = "source"
	HeaderAttempt       = "attempt"
	HeaderOriginalTopic = "original-topic"

	headerDLQError = "dlq-error"
	headerDLQGroup = "dlq-consumer-group"
	headerDLQAt    = "dlq-at"
)

// Meta is stamped on every event message as headers.
type Meta struct {
	EventID       string
	EventType     string
	CorrelationID string
	Source        string
}

// MessageHandler processes one message. Returning an error hands the message
// to the retry and dead-letter logic of the consumer.
type MessageHandler func(ctx context.Context, msg Message) error

// Middleware wraps publishing or handling of a message.
type Middleware func(ctx context.Context, msg Message, next MessageHandler) error

// Encode marshals value to JSON and builds a message keyed by key. An empty
// event id is generated.
func Encode(key string, value any, meta Meta) (Message, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	if meta.EventID == "" {
		meta.EventID = uuid.NewString()
	}

	headers := map[string]string{HeaderEventID: meta.EventID}
	setIfNotEmpty(headers, HeaderEventType, meta.EventType)
	setIfNotEmpty(headers, HeaderCorrelationID, meta.CorrelationID)
	setIfNotEmpty(headers, HeaderSource, meta.Source)

	return Message{
		Key:       key,
		Value:     data,
		Headers:   headers,
		Timestamp: time.Now().UTC(),
	}, nil
}

func setIfNotEmpty(headers map[string]string, key, value string) {
	if value != "" {
		headers[key] = value
	}
}

func (m Message) Decode(v any) error {
	return json.Unmarshal(m.Value, v)
}

func (m Message) EventID() string       { return m.Headers[HeaderEventID] }
func (m Message) EventType() string     { return m.Headers[HeaderEventType] }
func (m Message) CorrelationID() string { return m.Headers[HeaderCorrelationID] }

// Attempt is the number of retries already spent on the message. A missing or
// malformed header counts as zero.
func (m Message) Attempt() int {
	n, err := strconv.Atoi(m.Headers[HeaderAttempt])
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (m *Message) nextAttempt() {
	if m.Headers == nil {
		m.Headers = make(map[string]string)
	}
	m.Headers[HeaderAttempt] = strconv.Itoa(m.Attempt() + 1)
}

// wrap applies mws around h; the first middleware is the outermost.
func wrap(h MessageHandler, mws []Middleware) MessageHandler {
	for i := len(mws) - 1; i >= 0; i-- {
		mw, next := mws[i], h
		h = func(ctx context.Context, msg Message) error {
			return mw(ctx, msg, next)
		}
	}
	return h
}
