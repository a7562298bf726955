package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domoutbox "github.com/Zhima-Mochi/marketplace-saga/internal/domain/outbox"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability"
	"github.com/Zhima-Mochi/marketplace-saga/internal/observability/logctx"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the forwarder needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Forwarder mirrors bus events onto Kafka topics, one topic per event name.
// Messages of one saga instance share a key and therefore a partition.
type Forwarder struct {
	w      MessageWriter
	prefix string
	log    observability.Logger
	now    func() time.Time

	requests observability.Counter
	duration observability.Histogram
}

func NewForwarder(w MessageWriter, topicPrefix string, tel observability.Observability) *Forwarder {
	tel = observability.OrNop(tel)
	m := tel.Metrics()
	return &Forwarder{
		w:        w,
		prefix:   topicPrefix,
		log:      tel.Logger().With(observability.F("component", "kafka_forwarder")),
		now:      time.Now,
		requests: m.Counter(observability.MExternalRequests),
		duration: m.Histogram(observability.MExternalRequestDuration),
	}
}

// Attach subscribes the forwarder to every named event on sub.
func (f *Forwarder) Attach(sub domoutbox.Subscriber, events ...string) {
	for _, name := range events {
		sub.Subscribe(name, f.Forward)
	}
}

func (f *Forwarder) Forward(ctx context.Context, e domoutbox.Event) error {
	name := e.EventName()
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("kafka: encode %s: %w", name, err)
	}
	topic := Topic(f.prefix, name)
	msg := kafka.Message{
		Topic: topic,
		Key:   partitionKey(value),
		Value: value,
		Time:  f.now().UTC(),
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(name)},
			{Key: headerEventID, Value: []byte(uuid.NewString())},
		},
	}

	start := time.Now()
	err = f.w.WriteMessages(ctx, msg)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	f.requests.Add(1,
		observability.L("peer", peerKafka),
		observability.L("endpoint", topic),
		observability.L("outcome", outcome),
	)
	f.duration.Observe(time.Since(start).Seconds(),
		observability.L("peer", peerKafka),
		observability.L("endpoint", topic),
	)
	if err != nil {
		logctx.FromOr(ctx, f.log).Warn("kafka_forward_failed",
			observability.F("topic", topic),
			observability.Err(err),
		)
		return fmt.Errorf("kafka: write %s: %w", topic, err)
	}
	return nil
}

// partitionKey picks the saga instance id out of an encoded event. Events without one are unkeyed.
func partitionKey(value []byte) []byte {
	var probe struct {
		InstanceID string `json:"instanceId"`
	}
	if json.Unmarshal(value, &probe) != nil || probe.InstanceID == "" {
		return nil
	}
	return []byte(probe.InstanceID)
}
