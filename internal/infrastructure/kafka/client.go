package kafka

import (
	"strings"

	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/cart"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/order"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/payment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/product"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/saga"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/shipment"
	"github.com/Zhima-Mochi/marketplace-saga/internal/domain/stock"
	"github.com/segmentio/kafka-go"
)

const (
	headerEventType = "event_type"
	headerEventID   = "event_id"
	peerKafka       = "kafka"
)

// Client holds the broker list shared by writers and readers.
type Client struct {
	Brokers     []string
	TopicPrefix string
}

// NewClient parses a comma separated broker list. Blank entries are ignored.
func NewClient(brokersCSV, topicPrefix string) *Client {
	brokers := []string{}
	for _, b := range strings.Split(brokersCSV, ",") {
		b = strings.TrimSpace(b)
		if b != "" {
			brokers = append(brokers, b)
		}
	}
	return &Client{Brokers: brokers, TopicPrefix: topicPrefix}
}

func (c *Client) Enabled() bool {
	return len(c.Brokers) > 0
}

// NewWriter returns a writer without a fixed topic; every message names its own.
func (c *Client) NewWriter() *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(c.Brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// NewReader joins groupID on the topics carrying the given events.
func (c *Client) NewReader(groupID string, events ...string) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     c.Brokers,
		GroupID:     groupID,
		GroupTopics: Topics(c.TopicPrefix, events...),
		MinBytes:    1,
		MaxBytes:    10e6,
	})
}

// Topic maps an event name to its topic.
func Topic(prefix, event string) string {
	if prefix == "" {
		return event
	}
	return prefix + "." + event
}

func Topics(prefix string, events ...string) []string {
	out := make([]string, 0, len(events))
	for _, e := range events {
		out = append(out, Topic(prefix, e))
	}
	return out
}

// SagaEvents lists what participants publish to each other, mark channels included.
// Catalog events are inbound only and are left out so the consumer never reads back its own writes.
func SagaEvents() []string {
	names := []string{
		cart.ReserveStock{}.EventName(),
		stock.StockConfirmed{}.EventName(),
		stock.ReserveStockFailed{}.EventName(),
		stock.StockReplenished{}.EventName(),
		order.InvoiceIssued{}.EventName(),
		payment.PaymentConfirmed{}.EventName(),
		payment.PaymentFailed{}.EventName(),
		shipment.ShipmentNotification{}.EventName(),
		shipment.DeliveryNotification{}.EventName(),
	}
	return append(names, saga.Channels()...)
}

// CatalogEvents are the events accepted from outside the saga.
func CatalogEvents() []string {
	return []string{
		product.ProductUpdated{}.EventName(),
		product.PriceUpdated{}.EventName(),
	}
}
