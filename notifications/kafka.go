package notifications

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"

	models "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/models"
	telemetry "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/telemetry"
)

// Producer is the part of *kafka.Writer the publisher needs.
type Producer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Envelope is the wire shape of a published lifecycle signal.
type Envelope struct {
	Kind    models.NotificationKind    `json:"kind"`
	Message string                     `json:"message"`
	Payload models.NotificationPayload `json:"payload"`
}

// Kafka publishes signals keyed by event id so one event's signals stay
// ordered within a partition.
type Kafka struct {
	producer Producer
	topic    string
}

func NewKafka(producer Producer, topic string) *Kafka {
	return &Kafka{producer: producer, topic: topic}
}

func NewKafkaWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
	}
}

func (n *Kafka) Notify(ctx context.Context, kind models.NotificationKind, p models.NotificationPayload) error {
	value, err := json.Marshal(Envelope{Kind: kind, Message: Message(kind, p), Payload: p})
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	headers := []kafka.Header{{Key: "event_type", Value: []byte(kind)}}
	msg := kafka.Message{
		Topic:   n.topic,
		Key:     []byte(p.EventID.Hex()),
		Value:   value,
		Headers: telemetry.InjectKafkaHeaders(ctx, headers),
	}
	if err := n.producer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
