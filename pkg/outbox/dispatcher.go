package outbox

import (
	"context"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/dmehra2102/checkout-service/pkg/tracing"
)

// Publisher delivers one outbox event to the message sink.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// NewKafkaWriter hashes on the message key so every event of one order lands
// on the same partition in append order.
func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

type KafkaPublisher struct {
	writer KafkaWriter
	topic  string
}

func NewKafkaPublisher(writer KafkaWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: writer, topic: topic}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	attrs := event.Attributes()
	headers := make([]kafka.Header, 0, len(attrs)+1)
	for k, v := range attrs {
		headers = append(headers, kafka.Header{Key: k, Value: []byte(v)})
	}
	headers = tracing.InjectKafkaHeaders(tracing.ContextFromTraceparent(ctx, event.Traceparent), headers)

	msg := kafka.Message{
		Topic:   p.topic,
		Key:     []byte(event.AggregateID),
		Value:   event.Payload,
		Headers: headers,
	}
	return p.writer.WriteMessages(ctx, msg)
}

// NopPublisher drops events after logging them. Used with EVENT_SINK=none.
type NopPublisher struct {
	Log *slog.Logger
}

func (p NopPublisher) Publish(ctx context.Context, event Event) error {
	p.Log.Debug("outbox event discarded", "event_id", event.ID, "type", event.Type)
	return nil
}
