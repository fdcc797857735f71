package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/rl1809/stockledger/internal/core/domain"
)

const (
	batchTimeout = 10 * time.Millisecond
	batchSize    = 100
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes movement events keyed by item code, so every event
// of one item lands on the same partition in commit order.
type KafkaPublisher struct {
	writer     messageWriter
	propagator propagation.TextMapPropagator
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return newKafkaPublisher(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           batchTimeout,
		BatchSize:              batchSize,
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	})
}

func newKafkaPublisher(w messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: w, propagator: otel.GetTextMapPropagator()}
}

func (p *KafkaPublisher) PublishMovement(ctx context.Context, event domain.MovementEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal movement event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(event.ItemCode),
		Value: payload,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte("movement." + string(event.Kind))},
		},
	}
	p.propagator.Inject(ctx, headerCarrier{msg: &msg})

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write movement event %d: %w", event.TransactionID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// headerCarrier adapts kafka message headers to the propagation API.
type headerCarrier struct {
	msg *kafka.Message
}

func (c headerCarrier) Get(key string) string {
	for _, h := range c.msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{Key: key, Value: []byte(value)})
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.msg.Headers))
	for _, h := range c.msg.Headers {
		keys = append(keys, h.Key)
	}
	return keys
}
