package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/product"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"
	"github.com/segmentio/kafka-go"
)

var errUnknownEvent = errors.New("kafka: unknown event")

// MessageReader is the part of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Consumer feeds catalog events from Kafka into the bus. A message is committed once it is
// published, or when it cannot be decoded at all.
type Consumer struct {
	r      MessageReader
	pub    outbox.Publisher
	prefix string
	log    observability.Logger
}

func NewConsumer(r MessageReader, pub outbox.Publisher, topicPrefix string, tel observability.Observability) *Consumer {
	return &Consumer{
		r:      r,
		pub:    pub,
		prefix: topicPrefix,
		log:    observability.OrNop(tel).Logger().With(observability.F("component", "kafka_consumer")),
	}
}

// Run consumes until ctx ends. It returns nil on cancellation and the publish error when the bus
// refuses an event, leaving that message uncommitted.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		m, err := c.r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			c.log.Warn("kafka_fetch_failed", observability.Err(err))
			continue
		}

		e, err := c.decode(m)
		if err != nil {
			c.log.Warn("kafka_message_skipped",
				observability.F("topic", m.Topic),
				observability.F("offset", m.Offset),
				observability.Err(err),
			)
		} else if err := c.pub.Publish(ctx, e); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("kafka: publish %s: %w", e.EventName(), err)
		}

		if err := c.r.CommitMessages(ctx, m); err != nil && ctx.Err() == nil {
			c.log.Warn("kafka_commit_failed",
				observability.F("topic", m.Topic),
				observability.F("offset", m.Offset),
				observability.Err(err),
			)
		}
	}
}

func (c *Consumer) decode(m kafka.Message) (outbox.Event, error) {
	switch name := eventName(m, c.prefix); name {
	case product.ProductUpdated{}.EventName():
		var e product.ProductUpdated
		if err := json.Unmarshal(m.Value, &e); err != nil {
			return nil, err
		}
		return e, nil
	case product.PriceUpdated{}.EventName():
		var e product.PriceUpdated
		if err := json.Unmarshal(m.Value, &e); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, fmt.Errorf("%w: %q", errUnknownEvent, name)
	}
}

// eventName prefers the event_type header and falls back to the topic.
func eventName(m kafka.Message, prefix string) string {
	for _, h := range m.Headers {
		if h.Key == headerEventType {
			return string(h.Value)
		}
	}
	if prefix != "" {
		return strings.TrimPrefix(m.Topic, prefix+".")
	}
	return m.Topic
}
