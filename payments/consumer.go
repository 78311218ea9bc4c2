package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	services "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/services"
	telemetry "github.com/Vintage-The-Gemini/Friends-gift-Commerce-sub002/telemetry"
)

// Reader is the part of *kafka.Reader the consumer needs.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer feeds payment signals from a kafka topic into a Router. A message
// is committed once it was applied or rejected for good; retryable failures
// are retried in place with backoff, so the offset never moves past a
// payment that could still be applied.
type Consumer struct {
	log    *slog.Logger
	reader Reader
	router *Router
	tracer trace.Tracer

	backoff    time.Duration
	maxBackoff time.Duration
}

func NewKafkaReader(brokers []string, topic, group string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: group,
	})
}

func NewConsumer(log *slog.Logger, reader Reader, router *Router) *Consumer {
	return &Consumer{
		log:        log,
		reader:     reader,
		router:     router,
		tracer:     otel.Tracer("payment-signal-consumer"),
		backoff:    250 * time.Millisecond,
		maxBackoff: 10 * time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) error {
	defer c.reader.Close()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		if err := c.process(ctx, msg); err != nil {
			// Only a cancelled context gets here; the message is redelivered
			// to whoever owns the partition next.
			return nil
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Error("commit failed", "offset", msg.Offset, "partition", msg.Partition, "err", err)
		}
	}
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) error {
	msgCtx := telemetry.ExtractKafkaHeaders(ctx, msg.Headers)
	msgCtx, span := c.tracer.Start(msgCtx, "ConsumePaymentSignal", trace.WithAttributes(
		attribute.Int("kafka.partition", msg.Partition),
		attribute.Int64("kafka.offset", msg.Offset),
	))
	defer span.End()

	var signal Signal
	if err := json.Unmarshal(msg.Value, &signal); err != nil {
		c.log.Error("unmarshal failed", "offset", msg.Offset, "err", err)
		span.SetStatus(codes.Error, "bad payload")
		return nil
	}
	span.SetAttributes(attribute.String("payment.ref", signal.PaymentReference))

	wait := c.backoff
	for {
		res, err := c.router.Handle(msgCtx, signal)
		if err == nil {
			c.log.Info("payment signal applied", "payment_ref", signal.PaymentReference,
				"outcome", string(signal.Outcome), "duplicate", res.Duplicate, "applied", res.Applied)
			return nil
		}
		span.RecordError(err)
		if !services.IsRetryable(err) {
			c.log.Warn("payment signal rejected", "payment_ref", signal.PaymentReference, "err", err)
			span.SetStatus(codes.Error, string(services.KindOf(err)))
			return nil
		}

		c.log.Warn("payment signal failed, retrying", "payment_ref", signal.PaymentReference, "err", err, "backoff", wait)
		select {
		case <-ctx.Done():
			return errors.Join(ctx.Err(), err)
		case <-time.After(wait):
		}
		wait = min(wait*2, c.maxBackoff)
	}
}
